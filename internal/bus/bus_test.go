package bus

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishAndConsumeRequest(t *testing.T) {
	b := NewTurnBus()
	b.PublishRequest(&TurnRequest{Source: "cli", RequestID: "r1", Content: "hello"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, err := b.ConsumeRequest(ctx)
	if err != nil {
		t.Fatalf("ConsumeRequest: %v", err)
	}
	if req.RequestID != "r1" || req.Content != "hello" {
		t.Errorf("req = %+v", req)
	}
	if req.Timestamp.IsZero() {
		t.Error("timestamp should be stamped on publish")
	}
}

func TestConsumeRequestHonorsContext(t *testing.T) {
	b := NewTurnBus()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := b.ConsumeRequest(ctx); err == nil {
		t.Fatal("expected context error on empty bus")
	}
}

func TestDispatchChunksRoutesBySource(t *testing.T) {
	b := NewTurnBus()

	var mu sync.Mutex
	var cliChunks, webChunks []string
	done := make(chan struct{})

	b.Subscribe("cli", func(c *TurnChunk) {
		mu.Lock()
		cliChunks = append(cliChunks, c.Delta)
		mu.Unlock()
		if c.Done {
			close(done)
		}
	})
	b.Subscribe("web", func(c *TurnChunk) {
		mu.Lock()
		webChunks = append(webChunks, c.Delta)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.DispatchChunks(ctx)

	b.PublishChunk(&TurnChunk{Source: "cli", RequestID: "r1", Delta: "hel"})
	b.PublishChunk(&TurnChunk{Source: "cli", RequestID: "r1", Delta: "lo", Done: true})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch timed out")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(cliChunks) != 2 || cliChunks[0] != "hel" || cliChunks[1] != "lo" {
		t.Errorf("cli chunks = %v", cliChunks)
	}
	if len(webChunks) != 0 {
		t.Errorf("web got chunks not addressed to it: %v", webChunks)
	}
}
