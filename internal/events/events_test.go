package events

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
)

func TestFromReport(t *testing.T) {
	at := time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

	tests := []struct {
		press button.PressType
		want  Type
	}{
		{button.Short, TypeShort},
		{button.Long, TypeLong},
		{button.Double, TypeDouble},
		{button.None, TypeLatch},
	}

	for _, tt := range tests {
		t.Run(tt.press.String(), func(t *testing.T) {
			e := FromReport(at, "start", button.Report{
				Index:        1,
				Key:          25,
				Press:        tt.press,
				Duration:     420,
				Latched:      true,
				LatchChanged: true,
			})
			if e.Type != tt.want {
				t.Errorf("Type: got %s, want %s", e.Type, tt.want)
			}
			if e.Button != "start" || e.Index != 1 || e.Pin != 25 {
				t.Errorf("unexpected identity: %+v", e)
			}
			if e.DurationMs != 420 || !e.Latched || !e.LatchChanged {
				t.Errorf("unexpected state: %+v", e)
			}
			if !e.Timestamp.Equal(at) {
				t.Errorf("Timestamp: got %v, want %v", e.Timestamp, at)
			}
		})
	}
}

type recordingPublisher struct {
	events []Event
	system []SystemEvent
	closed bool
	err    error
}

func (r *recordingPublisher) Publish(e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func (r *recordingPublisher) PublishSystem(e SystemEvent) error {
	r.system = append(r.system, e)
	return r.err
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return r.err
}

func TestMultiFansOut(t *testing.T) {
	a := &recordingPublisher{}
	b := &recordingPublisher{}
	m := Multi{a, b}

	if err := m.Publish(Event{Type: TypeShort}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.PublishSystem(SystemEvent{Event: "STARTUP"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, p := range []*recordingPublisher{a, b} {
		if len(p.events) != 1 || len(p.system) != 1 || !p.closed {
			t.Errorf("publisher %d: events=%d system=%d closed=%v", i, len(p.events), len(p.system), p.closed)
		}
	}
}

func TestMultiJoinsErrors(t *testing.T) {
	errA := errors.New("a down")
	a := &recordingPublisher{err: errA}
	b := &recordingPublisher{}
	m := Multi{a, b}

	err := m.Publish(Event{Type: TypeLong})
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error to wrap errA, got %v", err)
	}
	if len(b.events) != 1 {
		t.Error("a failing publisher must not stop the others")
	}
}

func TestMultiEmpty(t *testing.T) {
	var m Multi
	if err := m.Publish(Event{}); err != nil {
		t.Errorf("empty Multi should not fail: %v", err)
	}
}
