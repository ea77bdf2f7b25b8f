// Agent builder for fluent configuration.
//
// Information Hiding:
// - Builder state management hidden
// - Default value application hidden

package agent

// Builder provides fluent configuration for creating agents.
// Usage: agent.NewBuilder("name") - no stutter.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new agent builder with the given name.
func NewBuilder(name string) *Builder {
	cfg := DefaultConfig()
	cfg.Name = name
	return &Builder{cfg: cfg}
}

// SystemPrompt sets the agent's base instructions.
func (b *Builder) SystemPrompt(prompt string) *Builder {
	b.cfg.SystemPrompt = prompt
	return b
}

// MaxSteps sets the step ceiling.
func (b *Builder) MaxSteps(n int) *Builder {
	b.cfg.MaxSteps = n
	return b
}

// ErrorPrefix sets the marker for tool fault observations.
func (b *Builder) ErrorPrefix(prefix string) *Builder {
	b.cfg.ErrorPrefix = prefix
	return b
}

// DisplayField sets the tool result key that short-circuits to an answer.
func (b *Builder) DisplayField(field string) *Builder {
	b.cfg.DisplayField = field
	return b
}

// Parser replaces the output parser.
func (b *Builder) Parser(p OutputParser) *Builder {
	b.cfg.Parser = p
	return b
}

// ExhaustedMessages sets the preamble and apology used at the step limit.
func (b *Builder) ExhaustedMessages(preamble, apology string) *Builder {
	b.cfg.ExhaustedPreamble = preamble
	b.cfg.Apology = apology
	return b
}

// Build creates the agent configuration.
func (b *Builder) Build() Config {
	return b.cfg.normalized()
}
