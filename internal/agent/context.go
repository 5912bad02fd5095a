package agent

import (
	"fmt"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/provider"
)

const defaultPersona = "You are a careful assistant that accomplishes tasks by invoking tools."

// instructionBlock teaches the model the invocation syntax the extractor
// recognizes. It is part of the system prompt on every step.
const instructionBlock = `## How to use tools

Invoke a tool by writing a call on its own line, or inside a fenced block:

` + "```tool" + `
read_file("/path/to/file")
` + "```" + `

Rules:
- Only call the tools listed above. Do not invent tool names.
- One call per line. Arguments may be positional or key=value.
- After each call you will receive its result before you continue.
- When you have everything you need, reply with your answer in plain prose
  and no tool calls.`

const finalizeInstruction = `All tool steps are complete. Write your final answer to the user now, in plain prose. Do not call any more tools.`

// buildRequest assembles the prompt for one generation: persona and the
// generated capability catalogue in the system text, then the user message
// followed by the accumulated step feedback.
func (a *Agent) buildRequest(userMsg string, records []StepRecord, finalizing bool) *provider.Request {
	persona := a.opts.Persona
	if persona == "" {
		persona = defaultPersona
	}

	var system strings.Builder
	system.WriteString(persona)
	system.WriteString("\n\n")
	system.WriteString(a.registry.Catalog())
	system.WriteString("\n")
	system.WriteString(instructionBlock)

	var prompt strings.Builder
	prompt.WriteString(userMsg)
	if len(records) > 0 {
		prompt.WriteString("\n\n## Steps so far\n")
		for _, rec := range records {
			prompt.WriteString(renderStep(rec))
		}
	}
	if finalizing {
		prompt.WriteString("\n\n")
		prompt.WriteString(finalizeInstruction)
	}

	return &provider.Request{
		System:      system.String(),
		Prompt:      prompt.String(),
		MaxTokens:   a.opts.MaxTokens,
		Temperature: a.opts.Temperature,
	}
}

// renderStep flattens one record into the observation text the model reads
// on the next step. Failures are prefixed "Error:" so the model treats them
// as feedback rather than file content.
func renderStep(rec StepRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "\n### Step %d\n", rec.Index+1)
	for i, res := range rec.Results {
		label := "rejected call"
		if i < len(rec.Calls) {
			label = fmt.Sprintf("%s(%s)", rec.Calls[i].Name, rec.Calls[i].RawArgs)
		}
		if res.Success {
			fmt.Fprintf(&sb, "Result of %s:\n%s\n", label, truncate(res.Output, 4000))
		} else {
			fmt.Fprintf(&sb, "Result of %s:\nError: %s\n", label, res.Err)
		}
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n[output truncated]"
}
