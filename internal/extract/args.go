package extract

import (
	"strconv"
	"strings"

	"github.com/stepwise-ai/stepwise/internal/registry"
)

// DefaultCount is the fallback for numeric count parameters (line/page
// counts) whose token is missing or unparseable.
const DefaultCount = 50

// ParseArgs converts raw argument text into typed values keyed by the
// declared parameter names. It never fails: unresolvable tokens map to the
// parameter's default value instead of aborting the call.
//
// Named form (key=value outside quotes) wins when present; otherwise tokens
// are assigned positionally in declaration order. Bare unquoted words are
// accepted as a fallback for enumerated or boolean-like parameters.
func ParseArgs(raw string, params []registry.Param) map[string]any {
	args := make(map[string]any, len(params))
	for _, p := range params {
		args[p.Name] = defaultValue(p)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || len(params) == 0 {
		return args
	}

	tokens := splitTop(raw)

	if named := parseNamed(tokens, params); named != nil {
		for k, v := range named {
			args[k] = v
		}
		return args
	}

	for i, tok := range tokens {
		if i >= len(params) {
			break
		}
		p := params[i]
		args[p.Name] = coerce(unquote(tok), p)
	}
	return args
}

func defaultValue(p registry.Param) any {
	switch p.Kind {
	case registry.KindInt:
		if p.DefaultInt != 0 {
			return p.DefaultInt
		}
		return 0
	case registry.KindBool:
		return false
	default:
		return ""
	}
}

// parseNamed returns key=value assignments, or nil if the tokens are not in
// named form. Only keys matching declared parameter names are taken.
func parseNamed(tokens []string, params []registry.Param) map[string]any {
	byName := make(map[string]registry.Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	out := make(map[string]any)
	for _, tok := range tokens {
		eq := indexOutsideQuotes(tok, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(tok[:eq])
		p, ok := byName[key]
		if !ok {
			continue
		}
		out[key] = coerce(unquote(strings.TrimSpace(tok[eq+1:])), p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func coerce(s string, p registry.Param) any {
	switch p.Kind {
	case registry.KindInt:
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n
		}
		if p.DefaultInt != 0 {
			return p.DefaultInt
		}
		return DefaultCount
	case registry.KindBool:
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "1", "on":
			return true
		default:
			return false
		}
	default:
		return s
	}
}

// splitTop splits argument text on commas that sit outside quotes and
// parentheses. An unterminated quote swallows the remainder into one final
// token instead of erroring.
func splitTop(raw string) []string {
	var tokens []string
	depth := 0
	start := 0
	i := 0
	for i < len(raw) {
		if strings.HasPrefix(raw[i:], `"""`) || strings.HasPrefix(raw[i:], `'''`) {
			qt := raw[i : i+3]
			end := strings.Index(raw[i+3:], qt)
			if end < 0 {
				break
			}
			i += 3 + end + 3
			continue
		}
		switch raw[i] {
		case '"', '\'':
			q := raw[i]
			j := i + 1
			for j < len(raw) && raw[j] != q {
				if raw[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(raw) {
				// Unbalanced quoting: remainder is a single trailing token.
				i = len(raw)
				continue
			}
			i = j + 1
			continue
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				tokens = append(tokens, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
		i++
	}
	tokens = append(tokens, strings.TrimSpace(raw[start:]))

	var out []string
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func indexOutsideQuotes(s string, c byte) int {
	inQuote := byte(0)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inQuote != 0 {
			if ch == '\\' {
				i++
			} else if ch == inQuote {
				inQuote = 0
			}
			continue
		}
		if ch == '"' || ch == '\'' {
			inQuote = ch
			continue
		}
		if ch == c {
			return i
		}
	}
	return -1
}

// unquote strips one level of matched single, double, or triple quotes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, qt := range []string{`"""`, `'''`} {
		if len(s) >= 6 && strings.HasPrefix(s, qt) && strings.HasSuffix(s, qt) {
			return s[3 : len(s)-3]
		}
	}
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	// Unbalanced leading quote: take the content as-is.
	if len(s) >= 1 && (s[0] == '"' || s[0] == '\'') {
		return s[1:]
	}
	return s
}
