// Package store mirrors button state into Redis hashes and publishes
// every event on Redis pub/sub channels.
//
// Layout, for prefix "buttons" and a button named "doorbell":
//
//	HASH    buttons:doorbell  pressed, latched, last_event, last_duration_ms, updated
//	HASH    buttons:system    last_event, reason, updated
//	PUBLISH buttons:events    JSON event
//	PUBLISH buttons:system    JSON system event (or the raw status payload)
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweeney/button-sensor/internal/events"
)

// DefaultKeyPrefix is the key prefix when none is configured.
const DefaultKeyPrefix = "buttons"

const defaultTimeout = 2 * time.Second

// Options configures a RedisPublisher.
type Options struct {
	Addr      string
	KeyPrefix string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// RedisPublisher writes button state and events to Redis.
type RedisPublisher struct {
	client    *redis.Client
	prefix    string
	timeout   time.Duration
	logger    *slog.Logger
	connected atomic.Bool
}

var _ events.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to Redis and verifies the connection with PING.
func NewRedisPublisher(ctx context.Context, o Options) (*RedisPublisher, error) {
	if o.Addr == "" {
		return nil, errors.New("redis addr not set")
	}
	p := &RedisPublisher{
		client:  redis.NewClient(&redis.Options{Addr: o.Addr}),
		prefix:  o.KeyPrefix,
		timeout: o.Timeout,
		logger:  o.Logger,
	}
	if p.prefix == "" {
		p.prefix = DefaultKeyPrefix
	}
	if p.timeout <= 0 {
		p.timeout = defaultTimeout
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.Ping(pingCtx).Err(); err != nil {
		p.client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", o.Addr, err)
	}
	p.connected.Store(true)
	return p, nil
}

// ButtonKey is the hash key holding one button's state.
func ButtonKey(prefix, name string) string {
	return prefix + ":" + name
}

// EventsChannel is the pub/sub channel carrying button events.
func EventsChannel(prefix string) string {
	return prefix + ":events"
}

// SystemKey is both the hash and the pub/sub channel for system events.
func SystemKey(prefix string) string {
	return prefix + ":system"
}

type eventMessage struct {
	Timestamp    string `json:"timestamp"`
	Button       string `json:"button"`
	Index        int    `json:"index"`
	Pin          int    `json:"pin"`
	Event        string `json:"event"`
	DurationMs   uint32 `json:"duration_ms"`
	Latched      bool   `json:"latched"`
	LatchChanged bool   `json:"latch_changed"`
}

// eventFields returns the hash fields updated by a button event.
// Latch-only events leave the last press duration untouched.
func eventFields(e events.Event) map[string]interface{} {
	fields := map[string]interface{}{
		"latched":    strconv.FormatBool(e.Latched),
		"last_event": string(e.Type),
		"updated":    e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.Type != events.TypeLatch {
		fields["last_duration_ms"] = strconv.FormatUint(uint64(e.DurationMs), 10)
	}
	return fields
}

func eventPayload(e events.Event) ([]byte, error) {
	return json.Marshal(eventMessage{
		Timestamp:    e.Timestamp.UTC().Format(time.RFC3339),
		Button:       e.Button,
		Index:        e.Index,
		Pin:          e.Pin,
		Event:        string(e.Type),
		DurationMs:   e.DurationMs,
		Latched:      e.Latched,
		LatchChanged: e.LatchChanged,
	})
}

func systemPayload(e events.SystemEvent) ([]byte, error) {
	if e.RawPayload != nil {
		return e.RawPayload, nil
	}
	return json.Marshal(map[string]string{
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339),
		"event":     e.Event,
		"reason":    e.Reason,
	})
}

// exec runs fn inside a MULTI/EXEC transaction and tracks connectivity.
func (p *RedisPublisher) exec(fn func(ctx context.Context, pipe redis.Pipeliner)) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	fn(ctx, pipe)
	_, err := pipe.Exec(ctx)

	was := p.connected.Swap(err == nil)
	switch {
	case err != nil && was:
		p.logger.Warn("redis unavailable", "error", err)
	case err == nil && !was:
		p.logger.Info("redis reconnected")
	}
	return err
}

// Publish updates the button's hash and publishes the event.
func (p *RedisPublisher) Publish(e events.Event) error {
	payload, err := eventPayload(e)
	if err != nil {
		return fmt.Errorf("format redis payload: %w", err)
	}
	key := ButtonKey(p.prefix, e.Button)
	err = p.exec(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, eventFields(e))
		pipe.Publish(ctx, EventsChannel(p.prefix), payload)
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// PublishSystem records the system event and publishes it.
func (p *RedisPublisher) PublishSystem(e events.SystemEvent) error {
	payload, err := systemPayload(e)
	if err != nil {
		return fmt.Errorf("format redis system payload: %w", err)
	}
	key := SystemKey(p.prefix)
	err = p.exec(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, map[string]interface{}{
			"last_event": e.Event,
			"reason":     e.Reason,
			"updated":    e.Timestamp.UTC().Format(time.RFC3339),
		})
		pipe.Publish(ctx, key, payload)
	})
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", key, err)
	}
	return nil
}

// SetPressed mirrors the debounced pressed state of a button and notifies
// subscribers of the button's key with the field name.
func (p *RedisPublisher) SetPressed(name string, pressed bool, at time.Time) error {
	key := ButtonKey(p.prefix, name)
	err := p.exec(func(ctx context.Context, pipe redis.Pipeliner) {
		pipe.HSet(ctx, key, map[string]interface{}{
			"pressed": strconv.FormatBool(pressed),
			"updated": at.UTC().Format(time.RFC3339),
		})
		pipe.Publish(ctx, key, "pressed")
	})
	if err != nil {
		return fmt.Errorf("redis set pressed %s: %w", key, err)
	}
	return nil
}

// IsConnected reports whether the last Redis round trip succeeded.
func (p *RedisPublisher) IsConnected() bool {
	return p.connected.Load()
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
