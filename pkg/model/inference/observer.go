package inference

import (
	"context"
	"time"

	"github.com/jmylchreest/hfinfer/pkg/model/registry"
)

// Observer receives a notification after every call, successful or not.
//
// Implementations run on the caller's goroutine and should return quickly.
type Observer interface {
	OnCall(ctx context.Context, event CallEvent)
}

// CallEvent describes one completed call.
type CallEvent struct {
	RequestID string
	Model     string

	// Type is the resolved model type. Empty when the call failed before
	// resolution, e.g. on a blank prompt.
	Type registry.Type
	URL  string

	// Status is the final HTTP status, or 0 when no response was received.
	Status int
	// Attempts is the number of HTTP round trips, including retries.
	Attempts int

	// Err is nil on success.
	Err error

	StartedAt time.Time
	Duration  time.Duration
}

// Outcome returns "success" or the error kind.
func (e CallEvent) Outcome() string {
	if e.Err == nil {
		return "success"
	}
	if k := KindOf(e.Err); k != "" {
		return string(k)
	}
	return "error"
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, event CallEvent)

// OnCall implements Observer.
func (f ObserverFunc) OnCall(ctx context.Context, event CallEvent) {
	f(ctx, event)
}

// MultiObserver dispatches each event to several observers in order.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver creates an observer that dispatches to observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

// OnCall implements Observer.
func (m *MultiObserver) OnCall(ctx context.Context, event CallEvent) {
	for _, obs := range m.observers {
		obs.OnCall(ctx, event)
	}
}

// Add appends an observer. It is not safe to call concurrently with OnCall.
func (m *MultiObserver) Add(obs Observer) {
	m.observers = append(m.observers, obs)
}
