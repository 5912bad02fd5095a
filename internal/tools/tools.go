// Package tools implements the handlers behind the capability catalogue and
// registers them with their declared parameter shapes.
package tools

import (
	"github.com/stepwise-ai/stepwise/internal/profile"
	"github.com/stepwise-ai/stepwise/internal/provider"
	"github.com/stepwise-ai/stepwise/internal/registry"
	"github.com/stepwise-ai/stepwise/internal/sandbox"
)

// Category groups operations for the parallel dispatch variant.
type Category int

const (
	CategoryFile Category = iota
	CategoryMemory
	CategorySystem
)

var fileOps = map[string]bool{
	"read_file":    true,
	"write_file":   true,
	"create_file":  true,
	"delete_file":  true,
	"list_files":   true,
	"search_files": true,
}

var memoryOps = map[string]bool{
	"read_profile":   true,
	"update_profile": true,
	"append_note":    true,
}

// CategoryOf classifies an operation name by membership; anything not a file
// or memory operation runs on the system executor.
func CategoryOf(name string) Category {
	switch {
	case fileOps[name]:
		return CategoryFile
	case memoryOps[name]:
		return CategoryMemory
	default:
		return CategorySystem
	}
}

// Deps carries the collaborators tool handlers close over.
type Deps struct {
	Sandbox *sandbox.Sandbox
	Profile *profile.Store
	Pool    *provider.Pool
	LogPath string
	// SearchBaseURL overrides the web search endpoint, mainly for tests.
	SearchBaseURL string
}

// RegisterAll populates the registry with the full capability catalogue.
// Registration order is the order the catalogue is advertised to the model.
func RegisterAll(r *registry.Registry, deps Deps) {
	registerFilesystem(r, deps)
	registerProfile(r, deps)
	registerSystem(r, deps)
}
