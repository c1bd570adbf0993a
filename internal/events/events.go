// Package events publishes pipeline completion events.
package events

import (
	"context"
	"sync"
	"time"
)

// DefaultSubject is the NATS subject generation events are published on.
const DefaultSubject = "proteus.generation"

// GenerationEvent summarizes one pipeline run. It never carries prompts,
// source text or credentials.
type GenerationEvent struct {
	RequestID        string    `json:"request_id"`
	Circuit          string    `json:"circuit"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model,omitempty"`
	Dialect          string    `json:"dialect,omitempty"`
	CompilationState string    `json:"compilation_state,omitempty"`
	Success          bool      `json:"success"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Cached           bool      `json:"cached"`
	DurationMS       int64     `json:"duration_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev GenerationEvent) error
	Ping(ctx context.Context) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, GenerationEvent) error { return nil }
func (Noop) Ping(context.Context) error { return nil }
func (Noop) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []GenerationEvent
}

func (r *Recorder) Publish(_ context.Context, ev GenerationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Ping(context.Context) error { return nil }
func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []GenerationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]GenerationEvent(nil), r.events...)
}
