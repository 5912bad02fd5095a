package extract

import (
	"fmt"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/registry"
)

// decoyNames are tokens models hallucinate as pseudo-tools. They get a
// corrective message instead of a generic unknown-tool error so the next
// thinking prompt can steer the model back to the real catalogue.
var decoyNames = map[string]bool{
	"print":     true,
	"exec":      true,
	"execute":   true,
	"python":    true,
	"bash":      true,
	"shell":     true,
	"functions": true,
	"tool_code": true,
	"run_code":  true,
}

// Validate checks a candidate before parsing and execution. It returns
// ok=false with a human-readable reason; it never panics or errors. The
// checks short-circuit on the first failure: known name, non-empty arguments
// when the first parameter is required, even quote counts, balanced parens.
func Validate(name, rawArgs string, params []registry.Param, known Known) (bool, string) {
	if known == nil || !known(name) {
		if decoyNames[strings.ToLower(name)] {
			return false, fmt.Sprintf("%s is not a real tool. Use one of the registered tools listed in the system prompt.", name)
		}
		return false, fmt.Sprintf("unknown tool: %s", name)
	}

	trimmed := strings.TrimSpace(rawArgs)
	if trimmed == "" && len(params) > 0 && params[0].Required {
		return false, fmt.Sprintf("%s requires a %s argument", name, params[0].Name)
	}

	if strings.Count(rawArgs, `"`)%2 != 0 {
		return false, "unbalanced double quotes in arguments"
	}
	// Apostrophes inside double-quoted strings are ordinary text, so single
	// quote parity is only meaningful when no double quotes are present.
	if !strings.Contains(rawArgs, `"`) && strings.Count(rawArgs, `'`)%2 != 0 {
		return false, "unbalanced single quotes in arguments"
	}

	if strings.Count(rawArgs, "(") != strings.Count(rawArgs, ")") {
		return false, "unbalanced parentheses in arguments"
	}

	return true, ""
}

// IsDecoy reports whether a name is a known hallucinated pseudo-tool.
func IsDecoy(name string) bool {
	return decoyNames[strings.ToLower(name)]
}
