// Package status provides a thread-safe status tracker for the button-sensor daemon.
// It is written by the poll loop and read by HTTP handlers and the websocket hub.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/events"
)

// NetworkInfo contains network state as reported by the host environment.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	Timing      button.TimingConfig
	Backend     string
	Broker      string
	Format      string
	RedisAddr   string // empty = disabled
	HTTPAddr    string
}

// ButtonInfo identifies a configured button.
type ButtonInfo struct {
	Name    string
	Pin     int
	Enabled bool
}

// Counts tallies published events for one button.
type Counts struct {
	Short  int
	Long   int
	Double int
	Latch  int
}

// ButtonState is the tracked view of one button.
type ButtonState struct {
	ButtonInfo
	Pressed        bool
	Latched        bool
	LastEvent      string
	LastDurationMs uint32
	LastEventAt    time.Time
	Counts         Counts
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Buttons        []ButtonState
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	MQTTBuffered   int // messages queued while the broker is unreachable
	RedisConnected bool
	InputErrors    int // failed line reads since start
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time, config and buttons.
func NewTracker(startTime time.Time, cfg Config, buttons []ButtonInfo) *Tracker {
	states := make([]ButtonState, len(buttons))
	for i, b := range buttons {
		states[i].ButtonInfo = b
	}
	return &Tracker{
		snap: Snapshot{
			Buttons:   states,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the debounced pressed and latched state of every button.
// Called from runLoop on every tick. Extra or missing entries are ignored.
func (t *Tracker) Update(pressed, latched []bool) {
	t.mu.Lock()
	for i := range t.snap.Buttons {
		if i < len(pressed) {
			t.snap.Buttons[i].Pressed = pressed[i]
		}
		if i < len(latched) {
			t.snap.Buttons[i].Latched = latched[i]
		}
	}
	t.mu.Unlock()
}

// Record stores a published event against its button.
func (t *Tracker) Record(e events.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.Index < 0 || e.Index >= len(t.snap.Buttons) {
		return
	}
	b := &t.snap.Buttons[e.Index]
	b.LastEvent = string(e.Type)
	b.LastEventAt = e.Timestamp
	b.Latched = e.Latched
	switch e.Type {
	case events.TypeShort:
		b.Counts.Short++
	case events.TypeLong:
		b.Counts.Long++
	case events.TypeDouble:
		b.Counts.Double++
	case events.TypeLatch:
		b.Counts.Latch++
	}
	if e.Type != events.TypeLatch {
		b.LastDurationMs = e.DurationMs
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetMQTTBuffered sets the number of messages waiting for the broker.
func (t *Tracker) SetMQTTBuffered(n int) {
	t.mu.Lock()
	t.snap.MQTTBuffered = n
	t.mu.Unlock()
}

// SetInputErrors sets the running count of failed line reads.
func (t *Tracker) SetInputErrors(n int) {
	t.mu.Lock()
	t.snap.InputErrors = n
	t.mu.Unlock()
}

// SetRedisConnected sets the Redis connection status.
func (t *Tracker) SetRedisConnected(connected bool) {
	t.mu.Lock()
	t.snap.RedisConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Buttons = append([]ButtonState(nil), t.snap.Buttons...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
