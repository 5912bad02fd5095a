package provider

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

const (
	// defaultErrorWindow is how long a reported backend error counts as
	// recent for exhaustion detection.
	defaultErrorWindow = 60 * time.Second
	// defaultCooldown is the global backoff applied when every backend in
	// the pool has a recent error.
	defaultCooldown = 30 * time.Second
)

// ErrEmptyPool is returned when a pool is constructed without backends.
var ErrEmptyPool = errors.New("model pool requires at least one backend")

// Pool rotates among an ordered list of model backends. Order is significant:
// most-capable first, cheapest-quota last, so rotation falls back toward
// higher-throughput backends. The cursor and error map are guarded by a
// single mutex because concurrent conversation turns share one pool.
type Pool struct {
	mu       sync.Mutex
	backends []*Backend
	cursor   int
	errAt    map[string]time.Time
	window   time.Duration
	cooldown time.Duration

	// now and sleep are swappable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewPool creates a pool over the given backends in priority order.
func NewPool(backends []*Backend) (*Pool, error) {
	if len(backends) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{
		backends: backends,
		errAt:    make(map[string]time.Time),
		window:   defaultErrorWindow,
		cooldown: defaultCooldown,
		now:      time.Now,
		sleep:    time.Sleep,
	}, nil
}

// SetTimings overrides the error window and cooldown. Zero values keep the
// current setting.
func (p *Pool) SetTimings(window, cooldown time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if window > 0 {
		p.window = window
	}
	if cooldown > 0 {
		p.cooldown = cooldown
	}
}

// Size returns the number of backends in the pool.
func (p *Pool) Size() int {
	return len(p.backends)
}

// Current returns the backend at the cursor.
func (p *Pool) Current() *Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.backends[p.cursor]
}

// Advance moves the cursor to the next backend in ring order, skipping
// backends with an error inside the window while a healthy one remains, and
// returns the new current backend.
func (p *Pool) Advance(reason string) *Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	from := p.backends[p.cursor].Name
	cutoff := p.now().Add(-p.window)
	next := (p.cursor + 1) % len(p.backends)
	for i := 0; i < len(p.backends); i++ {
		cand := (p.cursor + 1 + i) % len(p.backends)
		if at, ok := p.errAt[p.backends[cand].Name]; !ok || !at.After(cutoff) {
			next = cand
			break
		}
	}
	p.cursor = next
	to := p.backends[p.cursor]
	slog.Info("Model pool rotated", "from", from, "to", to.Name, "reason", reason)
	return to
}

// ReportError records an error timestamp against a backend. When every
// backend has a recent error the pool enters a fixed cooldown, then clears
// all recorded errors and resets the cursor to the first backend.
func (p *Pool) ReportError(name string) {
	p.mu.Lock()
	p.errAt[name] = p.now()

	if p.recentErrorCountLocked() < len(p.backends) {
		p.mu.Unlock()
		return
	}

	slog.Warn("All model backends in error, entering cooldown", "cooldown", p.cooldown)
	cooldown := p.cooldown
	p.mu.Unlock()

	// Sleeping outside the lock keeps other turns from blocking on Current.
	p.sleep(cooldown)

	p.mu.Lock()
	p.errAt = make(map[string]time.Time)
	p.cursor = 0
	p.mu.Unlock()
	slog.Info("Model pool cooldown complete, reset to primary backend")
}

// RichInputBackend returns the first backend flagged for rich (image) input,
// or nil when the pool has none.
func (p *Pool) RichInputBackend() *Backend {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.backends {
		if b.RichInput {
			return b
		}
	}
	return nil
}

func (p *Pool) recentErrorCountLocked() int {
	cutoff := p.now().Add(-p.window)
	n := 0
	for _, b := range p.backends {
		if at, ok := p.errAt[b.Name]; ok && at.After(cutoff) {
			n++
		}
	}
	return n
}
