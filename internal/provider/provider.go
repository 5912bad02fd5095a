// Package provider implements the upstream model backends and the pool
// router that rotates among them on rate-limit failures.
package provider

import (
	"context"
)

// Request contains the parameters for one generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// StreamChunk is one increment of a streaming generation. FullText is set on
// the final chunk.
type StreamChunk struct {
	Delta    string
	FullText string
	Done     bool
	Err      error
}

// File is a lightweight in-memory attachment for rich-input backends.
type File struct {
	Name string
	MIME string
	Data []byte
}

// Client is the interface all model backends implement.
type Client interface {
	// Generate performs a single completion and returns the full text.
	Generate(ctx context.Context, req *Request) (string, error)
	// GenerateStream returns a channel of incremental chunks. The channel is
	// closed after a chunk with Done set.
	GenerateStream(ctx context.Context, req *Request) (<-chan StreamChunk, error)
	// Model returns the configured model identifier.
	Model() string
}

// VisionClient is an optional interface for backends that accept image
// input. Callers type-assert: if vc, ok := client.(VisionClient); ok { ... }
type VisionClient interface {
	GenerateWithFile(ctx context.Context, req *Request, file File) (string, error)
}

// Backend pairs a configured model endpoint with its capability flags.
// Read-only after construction; the pool router owns all mutable state.
type Backend struct {
	Name        string
	Kind        string // "openai", "anthropic", "gemini"
	ModelID     string
	QuotaPerMin int
	RichInput   bool
	Client      Client
}
