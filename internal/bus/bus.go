// Package bus provides the async bus between front ends and the turn engine.
// Front ends publish TurnRequests; the daemon consumes them, runs turns, and
// streams TurnChunks back to per-source subscribers.
package bus

import (
	"context"
	"sync"
	"time"
)

// TurnRequest asks the engine to run one turn.
type TurnRequest struct {
	Source    string    `json:"source"`
	RequestID string    `json:"request_id"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TurnChunk is one streamed piece of a turn's answer. Done marks the final
// chunk; Err carries a terminal failure message.
type TurnChunk struct {
	Source    string `json:"source"`
	RequestID string `json:"request_id"`
	Delta     string `json:"delta,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Err       string `json:"err,omitempty"`
}

// TurnBus decouples front ends from the engine core.
type TurnBus struct {
	requests chan *TurnRequest
	chunks   chan *TurnChunk
	subs     map[string][]func(*TurnChunk)
	mu       sync.RWMutex
}

// NewTurnBus creates a bus with bounded queues.
func NewTurnBus() *TurnBus {
	return &TurnBus{
		requests: make(chan *TurnRequest, 100),
		chunks:   make(chan *TurnChunk, 100),
		subs:     make(map[string][]func(*TurnChunk)),
	}
}

// PublishRequest enqueues a turn request.
func (b *TurnBus) PublishRequest(req *TurnRequest) {
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}
	b.requests <- req
}

// ConsumeRequest blocks until a request arrives or the context ends.
func (b *TurnBus) ConsumeRequest(ctx context.Context) (*TurnRequest, error) {
	select {
	case req := <-b.requests:
		return req, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PublishChunk enqueues one answer chunk.
func (b *TurnBus) PublishChunk(chunk *TurnChunk) {
	b.chunks <- chunk
}

// Subscribe registers a callback for chunks addressed to a source.
func (b *TurnBus) Subscribe(source string, callback func(*TurnChunk)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[source] = append(b.subs[source], callback)
}

// DispatchChunks fans queued chunks out to subscribers. Run as a goroutine.
func (b *TurnBus) DispatchChunks(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk := <-b.chunks:
			b.mu.RLock()
			callbacks := b.subs[chunk.Source]
			b.mu.RUnlock()
			for _, cb := range callbacks {
				cb(chunk)
			}
		}
	}
}

// PendingRequests returns the number of queued requests.
func (b *TurnBus) PendingRequests() int {
	return len(b.requests)
}

// PendingChunks returns the number of queued chunks.
func (b *TurnBus) PendingChunks() int {
	return len(b.chunks)
}
