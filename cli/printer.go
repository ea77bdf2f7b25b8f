// Terminal output for CLI commands.
//
// Information Hiding:
// - Color choices hidden
// - Truncation of long observations hidden

package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/richinex/theseus/agent"
	"github.com/richinex/theseus/mcp"
	"github.com/richinex/theseus/model"
	"github.com/richinex/theseus/retrieval"
	"github.com/richinex/theseus/storage"
	"github.com/richinex/theseus/tools"
)

const maxObservationLen = 400

// Printer renders steps, answers and listings.
type Printer struct {
	w       io.Writer
	thought *color.Color
	action  *color.Color
	obs     *color.Color
	failure *color.Color
	answer  *color.Color
	dim     *color.Color
}

// NewPrinter creates a printer writing to w. Color is disabled when plain is set.
func NewPrinter(w io.Writer, plain bool) *Printer {
	p := &Printer{
		w:       w,
		thought: color.New(color.FgYellow),
		action:  color.New(color.FgCyan, color.Bold),
		obs:     color.New(color.FgWhite),
		failure: color.New(color.FgRed),
		answer:  color.New(color.FgGreen, color.Bold),
		dim:     color.New(color.Faint),
	}
	if plain {
		for _, c := range []*color.Color{p.thought, p.action, p.obs, p.failure, p.answer, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

// Step prints one reasoning step. It matches agent.StepObserver.
func (p *Printer) Step(step model.Step) {
	fmt.Fprintf(p.w, "[%d] ", step.Index)
	p.thought.Fprintln(p.w, step.Thought)
	if step.Action != nil {
		p.action.Fprintf(p.w, "    Action: %s %s\n", step.Action.Tool, string(step.Action.Args))
	}
	if step.Observation != nil {
		obs := truncateString(*step.Observation, maxObservationLen)
		if step.IsError {
			p.failure.Fprintf(p.w, "    Observation: %s\n", obs)
		} else {
			p.obs.Fprintf(p.w, "    Observation: %s\n", obs)
		}
	}
}

// Answer prints the final answer of a run.
func (p *Printer) Answer(result agent.Result) {
	p.answer.Fprintln(p.w, result.Answer)
}

// Stats prints run statistics.
func (p *Printer) Stats(result agent.Result) {
	p.dim.Fprintf(p.w, "(%s, %d steps, %d tool calls, %d LLM calls, %d tokens, %d resources)\n",
		result.Outcome, len(result.Steps), len(result.ToolCalls), result.LLMCalls,
		result.Usage.TotalTokens, len(result.Context.Resources))
}

// Resources prints retrieved resources with their scores.
func (p *Printer) Resources(resources []retrieval.Resource) {
	if len(resources) == 0 {
		p.dim.Fprintln(p.w, "No relevant resources.")
		return
	}
	for _, r := range resources {
		p.action.Fprintf(p.w, "%s", r.ID)
		p.dim.Fprintf(p.w, "  score=%.3f", r.Score)
		if r.Truncated {
			p.dim.Fprint(p.w, " (truncated)")
		}
		fmt.Fprintln(p.w)
		fmt.Fprintf(p.w, "    %s\n", truncateString(r.Text, maxObservationLen))
	}
}

// Candidates prints raw search hits.
func (p *Printer) Candidates(cands []storage.Candidate) {
	if len(cands) == 0 {
		p.dim.Fprintln(p.w, "No matches.")
		return
	}
	for _, c := range cands {
		p.action.Fprintf(p.w, "%s", c.ID)
		p.dim.Fprintf(p.w, "  score=%.3f\n", c.Score)
	}
}

// Tools prints the tool catalog.
func (p *Printer) Tools(descs []tools.Descriptor, verbose bool) {
	fmt.Fprintln(p.w, "Available tools:")
	fmt.Fprintln(p.w)
	for _, d := range descs {
		p.action.Fprintf(p.w, "  %s\n", d.Name)
		if d.Description != "" {
			fmt.Fprintf(p.w, "    %s\n", d.Description)
		}
		if verbose {
			for _, param := range d.Params() {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(p.w, "      %s%s: %s - %s\n", param.Name, req, param.Type, param.Description)
			}
		}
		fmt.Fprintln(p.w)
	}
}

// Prompts prints the MCP prompt templates.
func (p *Printer) Prompts(prompts []mcp.ServerPrompt) {
	if len(prompts) == 0 {
		fmt.Fprintln(p.w, "No prompts available.")
		return
	}
	fmt.Fprintln(p.w, "Available prompts:")
	fmt.Fprintln(p.w)
	for _, sp := range prompts {
		p.action.Fprintf(p.w, "  %s/%s\n", sp.Server, sp.Name)
		if sp.Description != "" {
			fmt.Fprintf(p.w, "    %s\n", sp.Description)
		}
	}
}

// Errorf prints a highlighted error line.
func (p *Printer) Errorf(format string, args ...any) {
	p.failure.Fprintf(p.w, format+"\n", args...)
}

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
