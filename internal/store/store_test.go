package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sweeney/button-sensor/internal/events"
)

var at = time.Date(2026, 2, 2, 22, 18, 12, 0, time.UTC)

func TestKeys(t *testing.T) {
	if got := ButtonKey("buttons", "doorbell"); got != "buttons:doorbell" {
		t.Errorf("ButtonKey: got %s", got)
	}
	if got := EventsChannel("hall"); got != "hall:events" {
		t.Errorf("EventsChannel: got %s", got)
	}
	if got := SystemKey("hall"); got != "hall:system" {
		t.Errorf("SystemKey: got %s", got)
	}
}

func TestEventFields(t *testing.T) {
	tests := []struct {
		name         string
		event        events.Event
		wantDuration string // empty = field absent
	}{
		{"short", events.Event{Timestamp: at, Type: events.TypeShort, DurationMs: 120}, "120"},
		{"long latched", events.Event{Timestamp: at, Type: events.TypeLong, DurationMs: 1000, Latched: true}, "1000"},
		{"latch only", events.Event{Timestamp: at, Type: events.TypeLatch, Latched: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := eventFields(tt.event)
			if f["last_event"] != string(tt.event.Type) {
				t.Errorf("last_event: got %v", f["last_event"])
			}
			wantLatched := "false"
			if tt.event.Latched {
				wantLatched = "true"
			}
			if f["latched"] != wantLatched {
				t.Errorf("latched: got %v, want %s", f["latched"], wantLatched)
			}
			if f["updated"] != "2026-02-02T22:18:12Z" {
				t.Errorf("updated: got %v", f["updated"])
			}
			got, ok := f["last_duration_ms"]
			if tt.wantDuration == "" {
				if ok {
					t.Errorf("last_duration_ms should be absent, got %v", got)
				}
			} else if got != tt.wantDuration {
				t.Errorf("last_duration_ms: got %v, want %s", got, tt.wantDuration)
			}
		})
	}
}

func TestEventPayload(t *testing.T) {
	data, err := eventPayload(events.Event{
		Timestamp:  at,
		Button:     "doorbell",
		Index:      1,
		Pin:        17,
		Type:       events.TypeDouble,
		DurationMs: 150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m eventMessage
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m.Button != "doorbell" || m.Event != "DOUBLE" || m.DurationMs != 150 || m.Pin != 17 {
		t.Errorf("unexpected payload: %+v", m)
	}
}

func TestSystemPayload(t *testing.T) {
	raw := []byte(`{"status":{}}`)
	got, err := systemPayload(events.SystemEvent{Event: "HEARTBEAT", RawPayload: raw})
	if err != nil || string(got) != string(raw) {
		t.Errorf("raw payload not passed through: %s, %v", got, err)
	}

	got, err = systemPayload(events.SystemEvent{Timestamp: at, Event: "SHUTDOWN", Reason: "SIGINT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var m map[string]string
	if err := json.Unmarshal(got, &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m["event"] != "SHUTDOWN" || m["reason"] != "SIGINT" || m["timestamp"] != "2026-02-02T22:18:12Z" {
		t.Errorf("unexpected payload: %v", m)
	}
}

func TestNewRedisPublisherRequiresAddr(t *testing.T) {
	if _, err := NewRedisPublisher(context.Background(), Options{}); err == nil {
		t.Error("expected error without addr")
	}
}

func TestNewRedisPublisherUnreachable(t *testing.T) {
	// Port 1 on loopback refuses immediately.
	_, err := NewRedisPublisher(context.Background(), Options{
		Addr:    "127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err == nil {
		t.Error("expected connection error")
	}
}

// newTestPublisher starts an in-memory Redis and connects a publisher to it.
// Log output is captured in the returned buffer.
func newTestPublisher(t *testing.T) (*RedisPublisher, *miniredis.Miniredis, *bytes.Buffer) {
	t.Helper()
	srv := miniredis.RunT(t)
	var logs bytes.Buffer
	p, err := NewRedisPublisher(context.Background(), Options{
		Addr:    srv.Addr(),
		Timeout: 500 * time.Millisecond,
		Logger:  slog.New(slog.NewTextHandler(&logs, nil)),
	})
	if err != nil {
		t.Fatalf("NewRedisPublisher: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p, srv, &logs
}

// listen subscribes to channels and forwards messages on a buffered channel
// so a publish never waits on the test.
func listen(srv *miniredis.Miniredis, channels ...string) <-chan miniredis.PubsubMessage {
	sub := srv.NewSubscriber()
	for _, ch := range channels {
		sub.Subscribe(ch)
	}
	out := make(chan miniredis.PubsubMessage, 16)
	go func() {
		for m := range sub.Messages() {
			out <- m
		}
	}()
	return out
}

func receive(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
	}
	return miniredis.PubsubMessage{}
}

func TestPublishWritesHashAndChannel(t *testing.T) {
	p, srv, _ := newTestPublisher(t)
	msgs := listen(srv, "buttons:events")

	short := events.Event{Timestamp: at, Button: "doorbell", Index: 0, Pin: 17, Type: events.TypeShort, DurationMs: 120}
	if err := p.Publish(short); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	want := map[string]string{
		"last_event":       "SHORT",
		"last_duration_ms": "120",
		"latched":          "false",
		"updated":          "2026-02-02T22:18:12Z",
	}
	for field, v := range want {
		if got := srv.HGet("buttons:doorbell", field); got != v {
			t.Errorf("%s = %q, want %q", field, got, v)
		}
	}

	m := receive(t, msgs)
	if m.Channel != "buttons:events" {
		t.Errorf("channel = %s", m.Channel)
	}
	var body eventMessage
	if err := json.Unmarshal([]byte(m.Message), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Button != "doorbell" || body.Event != "SHORT" || body.DurationMs != 120 {
		t.Errorf("unexpected message: %+v", body)
	}

	// A latch toggle keeps the last press duration.
	latch := events.Event{Timestamp: at.Add(time.Second), Button: "doorbell", Type: events.TypeLatch, Latched: true, LatchChanged: true}
	if err := p.Publish(latch); err != nil {
		t.Fatalf("Publish latch: %v", err)
	}
	if got := srv.HGet("buttons:doorbell", "last_duration_ms"); got != "120" {
		t.Errorf("last_duration_ms = %q after LATCH, want 120", got)
	}
	if got := srv.HGet("buttons:doorbell", "latched"); got != "true" {
		t.Errorf("latched = %q, want true", got)
	}
	if m := receive(t, msgs); !strings.Contains(m.Message, `"event":"LATCH"`) {
		t.Errorf("unexpected latch message: %s", m.Message)
	}
}

func TestPublishSystemWritesHashAndChannel(t *testing.T) {
	p, srv, _ := newTestPublisher(t)
	msgs := listen(srv, "buttons:system")

	if err := p.PublishSystem(events.SystemEvent{Timestamp: at, Event: "SHUTDOWN", Reason: "SIGTERM"}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}
	if got := srv.HGet("buttons:system", "last_event"); got != "SHUTDOWN" {
		t.Errorf("last_event = %q", got)
	}
	if got := srv.HGet("buttons:system", "reason"); got != "SIGTERM" {
		t.Errorf("reason = %q", got)
	}

	m := receive(t, msgs)
	if m.Channel != "buttons:system" || !strings.Contains(m.Message, `"reason":"SIGTERM"`) {
		t.Errorf("unexpected message on %s: %s", m.Channel, m.Message)
	}

	// A raw status payload is forwarded untouched.
	raw := []byte(`{"event":"HEARTBEAT"}`)
	if err := p.PublishSystem(events.SystemEvent{Timestamp: at, Event: "HEARTBEAT", RawPayload: raw}); err != nil {
		t.Fatalf("PublishSystem raw: %v", err)
	}
	if m := receive(t, msgs); m.Message != string(raw) {
		t.Errorf("raw payload = %s", m.Message)
	}
}

func TestSetPressedNotifies(t *testing.T) {
	p, srv, _ := newTestPublisher(t)
	msgs := listen(srv, "buttons:lamp")

	if err := p.SetPressed("lamp", true, at); err != nil {
		t.Fatalf("SetPressed: %v", err)
	}
	if got := srv.HGet("buttons:lamp", "pressed"); got != "true" {
		t.Errorf("pressed = %q, want true", got)
	}
	if m := receive(t, msgs); m.Channel != "buttons:lamp" || m.Message != "pressed" {
		t.Errorf("unexpected notify %s: %s", m.Channel, m.Message)
	}

	if err := p.SetPressed("lamp", false, at.Add(time.Second)); err != nil {
		t.Fatalf("SetPressed: %v", err)
	}
	if got := srv.HGet("buttons:lamp", "pressed"); got != "false" {
		t.Errorf("pressed = %q, want false", got)
	}
	if got := srv.HGet("buttons:lamp", "updated"); got != "2026-02-02T22:18:13Z" {
		t.Errorf("updated = %q", got)
	}
	receive(t, msgs)
}

func TestConnectedTracksServer(t *testing.T) {
	p, srv, logs := newTestPublisher(t)
	e := events.Event{Timestamp: at, Button: "doorbell", Type: events.TypeShort, DurationMs: 80}

	if !p.IsConnected() {
		t.Fatal("expected connected after NewRedisPublisher")
	}

	srv.Close()
	if err := p.Publish(e); err == nil {
		t.Fatal("expected error with server stopped")
	}
	if p.IsConnected() {
		t.Error("expected disconnected after failed publish")
	}
	if !strings.Contains(logs.String(), "redis unavailable") {
		t.Errorf("expected unavailable log, got %q", logs.String())
	}

	if err := srv.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	// Pooled connections from before the stop may fail once more.
	var err error
	for i := 0; i < 5; i++ {
		if err = p.Publish(e); err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("publish after restart: %v", err)
	}
	if !p.IsConnected() {
		t.Error("expected connected after restart")
	}
	if !strings.Contains(logs.String(), "redis reconnected") {
		t.Errorf("expected reconnect log, got %q", logs.String())
	}
	if got := srv.HGet("buttons:doorbell", "last_event"); got != "SHORT" {
		t.Errorf("last_event = %q after reconnect", got)
	}
}
