// Package events defines the records the daemon publishes and the Publisher
// interface implemented by each sink.
package events

import (
	"errors"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
)

// Type is the kind of a button event.
type Type string

const (
	TypeShort  Type = "SHORT"
	TypeLong   Type = "LONG"
	TypeDouble Type = "DOUBLE"
	// TypeLatch is emitted when only the latch changed.
	TypeLatch Type = "LATCH"
)

// Event is a button event to be published.
type Event struct {
	Timestamp  time.Time
	Button     string
	Index      int
	Pin        int
	Type       Type
	DurationMs uint32
	Latched    bool
	// LatchChanged is true when this event flipped the latch.
	LatchChanged bool
}

// FromReport converts a drained report into an Event for the named button.
func FromReport(at time.Time, name string, r button.Report) Event {
	e := Event{
		Timestamp:    at,
		Button:       name,
		Index:        r.Index,
		Pin:          r.Key,
		DurationMs:   r.Duration,
		Latched:      r.Latched,
		LatchChanged: r.LatchChanged,
	}
	switch r.Press {
	case button.Short:
		e.Type = TypeShort
	case button.Long:
		e.Type = TypeLong
	case button.Double:
		e.Type = TypeDouble
	default:
		e.Type = TypeLatch
	}
	return e
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, sinks publish it as is
	Retained   bool   // Whether the message should be retained by the broker
}

// Publisher publishes events to a sink.
type Publisher interface {
	// Publish sends a button event.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close releases the sink.
	Close() error
}

// Multi fans every call out to all publishers and joins their errors.
type Multi []Publisher

// Publish sends event to every publisher.
func (m Multi) Publish(event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishSystem sends event to every publisher.
func (m Multi) PublishSystem(event SystemEvent) error {
	var errs []error
	for _, p := range m {
		if err := p.PublishSystem(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
