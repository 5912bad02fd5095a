// Package registry provides the capability registry: the static catalogue of
// operations the agent may invoke, their parameter shapes, and their handlers.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ParamKind describes the expected value type of a parameter.
type ParamKind int

const (
	KindString ParamKind = iota
	KindInt
	KindBool
)

// Param declares one parameter of a capability.
type Param struct {
	Name     string
	Required bool
	Kind     ParamKind
	// Path marks parameters that are filesystem paths and must pass the
	// sandbox containment check before the handler runs.
	Path bool
	// DefaultInt is used when an int parameter is missing or unparseable.
	DefaultInt int
}

// HandlerFunc executes a capability with parsed arguments.
// Handlers return a user-facing result string; an error return means the
// handler itself failed (it is contained into a failure result, never thrown
// past the executor).
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Spec describes one registered capability.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Handler     HandlerFunc
}

// ToolCall is one recognized invocation extracted from model output.
// Immutable once built.
type ToolCall struct {
	Name    string
	RawArgs string
	Args    map[string]any
}

// Registry maps operation names to their specs. It is populated once at
// startup and read-only afterwards, so lookups need no locking.
type Registry struct {
	specs map[string]Spec
	order []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds a capability. Re-registering a name replaces the spec but
// keeps its original catalogue position.
func (r *Registry) Register(spec Spec) {
	if _, exists := r.specs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
}

// Get returns the spec for a name.
func (r *Registry) Get(name string) (Spec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Has reports whether a name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.specs[name]
	return ok
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Params returns the declared parameters for a name, or nil if unknown.
func (r *Registry) Params(name string) []Param {
	spec, ok := r.specs[name]
	if !ok {
		return nil
	}
	return spec.Params
}

// Catalog renders the capability catalogue exactly as it is advertised to
// the model inside the thinking prompt. Generating it from the registry
// keeps the model's vocabulary and the extractor's vocabulary in sync.
func (r *Registry) Catalog() string {
	var sb strings.Builder
	sb.WriteString("## Available Tools\n\n")
	for _, name := range r.order {
		spec := r.specs[name]
		params := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			label := p.Name
			if !p.Required {
				label += "?"
			}
			params = append(params, label)
		}
		sb.WriteString(fmt.Sprintf("- %s(%s): %s\n", name, strings.Join(params, ", "), spec.Description))
	}
	return sb.String()
}

// SortedNames returns registered names in lexical order, for stable output
// in diagnostics.
func (r *Registry) SortedNames() []string {
	out := r.Names()
	sort.Strings(out)
	return out
}

// GetString extracts a string argument with a default value.
func GetString(args map[string]any, key, defaultVal string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultVal
}

// GetInt extracts an int argument with a default value.
func GetInt(args map[string]any, key string, defaultVal int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return defaultVal
}

// GetBool extracts a bool argument with a default value.
func GetBool(args map[string]any, key string, defaultVal bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
