// Package extract recognizes tool invocations inside free-form model output.
// The model is not guaranteed to emit any particular notation, so extraction
// is a union of independent best-effort rules over the raw text.
package extract

import (
	"regexp"
	"strings"
)

// Candidate is one recognized invocation before argument parsing.
type Candidate struct {
	Name    string
	RawArgs string
}

// Known reports whether a name is a registered capability. Unknown
// identifiers in prose are not candidates; the one exception is decoy names
// inside labeled tool blocks, which surface so they can be answered.
type Known func(name string) bool

// rule is one named extraction strategy. Rules are applied in order and
// their results unioned before deduplication.
type rule struct {
	name  string
	apply func(text string, known Known) []Candidate
}

var rules = []rule{
	{"fenced-block", extractFenced},
	{"bare-call", extractBare},
	{"lead-in", extractLeadIn},
}

// Extract returns the ordered, de-duplicated invocation candidates found in
// text. Order is first-appearance order across all rules; nested calls are
// split inner-first so later steps can reference inner effects. Extract is
// stateless: identical input yields identical output.
func Extract(text string, known Known) []Candidate {
	if strings.TrimSpace(text) == "" || known == nil {
		return nil
	}

	var found []Candidate
	for _, r := range rules {
		found = append(found, r.apply(text, known)...)
	}

	// Split nested calls: inner first, then the outer call with its
	// original (unsplit) argument text.
	var expanded []Candidate
	for _, c := range found {
		expanded = append(expanded, scanCalls(c.RawArgs, known)...)
		expanded = append(expanded, c)
	}

	return dedupe(expanded)
}

func dedupe(in []Candidate) []Candidate {
	seen := make(map[Candidate]bool, len(in))
	var out []Candidate
	for _, c := range in {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// fencedBlockRe matches fenced code blocks explicitly labeled as tool
// invocation blocks. The closing fence is optional: models routinely forget it.
var fencedBlockRe = regexp.MustCompile("(?s)```(?:tool_call|tool_code|tools|tool)[ \t]*\n(.*?)(?:```|$)")

func extractFenced(text string, known Known) []Candidate {
	// Inside an explicitly labeled tool block, decoy names (print, exec,
	// python, ...) are attempted invocations too: they pass through so the
	// validator can answer them with a corrective message. In prose they
	// stay invisible.
	inBlock := func(name string) bool { return known(name) || IsDecoy(name) }

	var out []Candidate
	for _, m := range fencedBlockRe.FindAllStringSubmatch(text, -1) {
		inner := m[1]
		out = append(out, scanCalls(inner, inBlock)...)
		out = append(out, extractLeadIn(inner, known)...)
	}
	return out
}

func extractBare(text string, known Known) []Candidate {
	return scanCalls(text, known)
}

// leadInRe matches softened natural-language phrasing immediately before a
// call, e.g. "I will use read_file(...)". The call itself is re-scanned from
// the identifier position so argument handling stays in one place.
var leadInRe = regexp.MustCompile(`(?i)(?:i will use|i'll use|i will call|let me use|let me call|i need to use|i need to call|using the)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

func extractLeadIn(text string, known Known) []Candidate {
	var out []Candidate
	for _, loc := range leadInRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[loc[2]:loc[3]]
		if !known(name) {
			continue
		}
		// loc[1] is the end of the whole match, i.e. just past '('.
		raw, ok := matchArgs(text, loc[1])
		if !ok {
			continue
		}
		out = append(out, Candidate{Name: name, RawArgs: raw})
	}
	return out
}

// scanCalls walks text and collects every identifier(...) whose identifier is
// a registered name. Argument text may span lines; parens and quotes inside
// string literals do not count toward nesting.
func scanCalls(text string, known Known) []Candidate {
	var out []Candidate
	for i := 0; i < len(text); i++ {
		if !isIdentStart(text[i]) {
			continue
		}
		j := i + 1
		for j < len(text) && isIdentPart(text[j]) {
			j++
		}
		name := text[i:j]
		k := j
		for k < len(text) && (text[k] == ' ' || text[k] == '\t') {
			k++
		}
		if k >= len(text) || text[k] != '(' || !known(name) {
			i = j - 1
			continue
		}
		raw, ok := matchArgs(text, k+1)
		if !ok {
			i = j - 1
			continue
		}
		out = append(out, Candidate{Name: name, RawArgs: raw})
		i = k + len(raw) // resume after the argument text
	}
	return out
}

// matchArgs extracts the argument text starting just after an opening paren.
// It tracks nesting depth and quote state; a paren inside a string literal is
// plain text. If no closing paren exists the remainder of the text is taken
// rather than failing closed, because models frequently drop the final paren
// on multiline arguments.
func matchArgs(text string, start int) (string, bool) {
	depth := 1
	i := start
	for i < len(text) {
		// Triple quotes delimit one literal value; consume it whole.
		if strings.HasPrefix(text[i:], `"""`) || strings.HasPrefix(text[i:], `'''`) {
			qt := text[i : i+3]
			end := strings.Index(text[i+3:], qt)
			if end < 0 {
				return text[start:], true
			}
			i += 3 + end + 3
			continue
		}
		switch text[i] {
		case '"', '\'':
			q := text[i]
			j := i + 1
			for j < len(text) && text[j] != q {
				if text[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(text) {
				// Unterminated quote: treat the rest as argument text.
				return text[start:], true
			}
			i = j + 1
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return text[start:i], true
			}
		}
		i++
	}
	// Partially closed call spanning to end of text.
	return text[start:], true
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
