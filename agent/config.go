// Agent configuration types.
//
// Information Hiding:
// - Default values hidden
// - Normalization of partial configs hidden

package agent

// Config holds agent configuration.
// Pass it to New; zero fields take the defaults of DefaultConfig.
type Config struct {
	// Name identifies the agent in logs.
	Name string

	// SystemPrompt is prepended to the protocol instructions.
	SystemPrompt string

	// MaxSteps bounds the number of model calls per run.
	MaxSteps int

	// ErrorPrefix starts every observation produced by a tool fault.
	ErrorPrefix string

	// DisplayField names the key of a tool result object whose string
	// value is shown to the user as the final answer without another model call.
	DisplayField string

	// Parser reads model replies. Nil uses ParseOutput.
	Parser OutputParser

	// ExhaustedPreamble introduces collected observations when the step
	// limit is reached. It may contain one %d for the limit.
	ExhaustedPreamble string

	// Apology is the answer when the step limit is reached with nothing
	// collected. It may contain one %d for the limit.
	Apology string
}

// Default values.
const (
	DefaultMaxSteps     = 5
	DefaultErrorPrefix  = "Error: "
	DefaultDisplayField = "display"
)

// DefaultConfig returns a basic agent configuration.
func DefaultConfig() Config {
	return Config{
		Name:              "theseus",
		SystemPrompt:      "You are a helpful assistant that answers questions using the tools and knowledge available to you.",
		MaxSteps:          DefaultMaxSteps,
		ErrorPrefix:       DefaultErrorPrefix,
		DisplayField:      DefaultDisplayField,
		Parser:            ParserFunc(ParseOutput),
		ExhaustedPreamble: "I reached the step limit (%d steps) before finishing. Here is what I found:",
		Apology:           "I'm sorry, I couldn't find an answer within the step limit (%d steps).",
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = d.SystemPrompt
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = d.MaxSteps
	}
	if c.ErrorPrefix == "" {
		c.ErrorPrefix = d.ErrorPrefix
	}
	if c.DisplayField == "" {
		c.DisplayField = d.DisplayField
	}
	if c.Parser == nil {
		c.Parser = d.Parser
	}
	if c.ExhaustedPreamble == "" {
		c.ExhaustedPreamble = d.ExhaustedPreamble
	}
	if c.Apology == "" {
		c.Apology = d.Apology
	}
	return c
}
