// Package config is the YAML configuration for the button-sensor daemon.
//
// Layering is defaults → file → flag overrides → Validate, so the rest of the
// code can assume a well-formed config.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/button-sensor/internal/button"
	"github.com/sweeney/button-sensor/internal/input"
	"github.com/sweeney/button-sensor/internal/mqtt"
	"github.com/sweeney/button-sensor/internal/store"
)

// Config is the top-level YAML configuration.
type Config struct {
	PollMs      int           `yaml:"poll_ms"`
	HeartbeatMs int           `yaml:"heartbeat_ms"`
	Timing      TimingConfig  `yaml:"timing"`
	Input       InputConfig   `yaml:"input"`
	Buttons     []ButtonEntry `yaml:"buttons"`
	MQTT        MQTTConfig    `yaml:"mqtt"`
	Redis       RedisConfig   `yaml:"redis"`
	HTTP        HTTPConfig    `yaml:"http"`
	Logging     LoggingConfig `yaml:"logging"`
}

// TimingConfig holds thresholds in milliseconds.
// In a button entry a zero value inherits the global threshold.
type TimingConfig struct {
	DebounceMs          uint32 `yaml:"debounce_ms,omitempty"`
	ShortPressMinMs     uint32 `yaml:"short_press_min_ms,omitempty"`
	LongPressMinMs      uint32 `yaml:"long_press_min_ms,omitempty"`
	DoubleClickMaxGapMs uint32 `yaml:"double_click_max_gap_ms,omitempty"`
}

type InputConfig struct {
	Backend string `yaml:"backend"`
	Chip    string `yaml:"chip,omitempty"`
}

// ButtonEntry configures one physical button.
type ButtonEntry struct {
	Name      string       `yaml:"name"`
	Pin       int          `yaml:"pin"`
	ActiveLow *bool        `yaml:"active_low,omitempty"` // default true
	Enabled   *bool        `yaml:"enabled,omitempty"`    // default true
	Timing    TimingConfig `yaml:"timing,omitempty"`
	Latch     LatchConfig  `yaml:"latch,omitempty"`
}

type LatchConfig struct {
	Enabled bool   `yaml:"enabled"`
	Mode    string `yaml:"mode,omitempty"`    // toggle|set|reset
	Trigger string `yaml:"trigger,omitempty"` // short|long|double
	Initial bool   `yaml:"initial,omitempty"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
	Format      string `yaml:"format"`
	BufferSize  int    `yaml:"buffer_size"`
}

type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	KeyPrefix string `yaml:"key_prefix"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults. Buttons are
// left empty; a config file or -buttons flag must name them.
func DefaultConfig() Config {
	t := button.DefaultTiming()
	return Config{
		PollMs:      5,
		HeartbeatMs: 900000,
		Timing: TimingConfig{
			DebounceMs:          t.Debounce,
			ShortPressMinMs:     t.ShortPressMin,
			LongPressMinMs:      t.LongPressMin,
			DoubleClickMaxGapMs: t.DoubleClickMaxGap,
		},
		Input: InputConfig{
			Backend: input.BackendGPIOCdev,
			Chip:    input.DefaultChip,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "button-sensor",
			TopicPrefix: mqtt.DefaultTopicPrefix,
			Format:      mqtt.FormatJSON,
			BufferSize:  mqtt.DefaultBufferSize,
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: store.DefaultKeyPrefix,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and parses a YAML config file on top of the defaults.
// Unknown fields and trailing documents are rejected.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the defaults.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	// An empty or comment-only file leaves the defaults in place.
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides holds values from command-line flags. A nil pointer means
// the flag was not set; a non-nil pointer is applied even if it is a zero value.
type FlagOverrides struct {
	PollMs      *int
	HeartbeatMs *int
	DebounceMs  *uint32

	Backend *string
	Chip    *string
	Buttons *string // "name:pin,name:pin"

	Broker *string
	Format *string

	RedisAddr *string

	HTTPAddr *string
	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	if o.PollMs != nil {
		cfg.PollMs = *o.PollMs
	}
	if o.HeartbeatMs != nil {
		cfg.HeartbeatMs = *o.HeartbeatMs
	}
	if o.DebounceMs != nil {
		cfg.Timing.DebounceMs = *o.DebounceMs
	}
	if o.Backend != nil {
		cfg.Input.Backend = *o.Backend
	}
	if o.Chip != nil {
		cfg.Input.Chip = *o.Chip
	}
	if o.Buttons != nil {
		entries, err := ParseButtonList(*o.Buttons)
		if err != nil {
			return err
		}
		cfg.Buttons = entries
	}
	if o.Broker != nil {
		cfg.MQTT.Broker = *o.Broker
	}
	if o.Format != nil {
		cfg.MQTT.Format = *o.Format
	}
	if o.RedisAddr != nil {
		cfg.Redis.Addr = *o.RedisAddr
		cfg.Redis.Enabled = *o.RedisAddr != ""
	}
	if o.HTTPAddr != nil {
		cfg.HTTP.Addr = *o.HTTPAddr
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	return nil
}

// ParseButtonList parses "name:pin,name:pin" into button entries with
// default polarity and no latch.
func ParseButtonList(s string) ([]ButtonEntry, error) {
	var out []ButtonEntry
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, pinStr, ok := strings.Cut(part, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("button %q: want name:pin", part)
		}
		pin, err := strconv.Atoi(strings.TrimSpace(pinStr))
		if err != nil {
			return nil, fmt.Errorf("button %q: bad pin: %w", part, err)
		}
		out = append(out, ButtonEntry{Name: name, Pin: pin})
	}
	return out, nil
}

// Validate checks config invariants and returns a user-friendly error.
// It returns warnings for suspicious but legal settings.
func (c *Config) Validate() (warnings []string, err error) {
	if c.PollMs <= 0 {
		return nil, errors.New("poll_ms must be > 0")
	}
	if c.HeartbeatMs < 0 {
		return nil, errors.New("heartbeat_ms must be >= 0")
	}

	switch c.Input.Backend {
	case input.BackendGPIOCdev, input.BackendPeriph, input.BackendRPIO:
	default:
		return nil, fmt.Errorf("input.backend must be one of %s, %s, %s",
			input.BackendGPIOCdev, input.BackendPeriph, input.BackendRPIO)
	}

	if len(c.Buttons) == 0 {
		return nil, errors.New("buttons must not be empty")
	}
	if len(c.Buttons) > button.MaskWidth {
		warnings = append(warnings, fmt.Sprintf("%d buttons configured; bitmask queries cover the first %d", len(c.Buttons), button.MaskWidth))
	}

	names := make(map[string]bool)
	pins := make(map[int]bool)
	for i, b := range c.Buttons {
		if b.Name == "" {
			return nil, fmt.Errorf("buttons[%d].name must not be empty", i)
		}
		if strings.ContainsAny(b.Name, ":/ ") {
			return nil, fmt.Errorf("buttons[%d].name %q must not contain ':', '/' or spaces", i, b.Name)
		}
		if names[b.Name] {
			return nil, fmt.Errorf("buttons[%d].name %q is duplicated", i, b.Name)
		}
		names[b.Name] = true
		if b.Pin < 0 {
			return nil, fmt.Errorf("buttons[%d].pin must be >= 0", i)
		}
		if pins[b.Pin] {
			return nil, fmt.Errorf("buttons[%d].pin %d is duplicated", i, b.Pin)
		}
		pins[b.Pin] = true

		if b.Latch.Enabled {
			if _, err := parseLatchMode(b.Latch.Mode); err != nil {
				return nil, fmt.Errorf("buttons[%d].latch.mode: %w", i, err)
			}
			if _, err := parseLatchTrigger(b.Latch.Trigger); err != nil {
				return nil, fmt.Errorf("buttons[%d].latch.trigger: %w", i, err)
			}
		}

		t := button.Resolve(c.GlobalTiming(), c.ChannelConfig(i))
		if t.ShortPressMin >= t.LongPressMin {
			warnings = append(warnings, fmt.Sprintf("button %s: short_press_min_ms (%d) >= long_press_min_ms (%d); short presses can never be classified",
				b.Name, t.ShortPressMin, t.LongPressMin))
		}
	}

	switch c.MQTT.Format {
	case mqtt.FormatJSON, mqtt.FormatCBOR:
	default:
		return nil, fmt.Errorf("mqtt.format must be %q or %q", mqtt.FormatJSON, mqtt.FormatCBOR)
	}
	if c.MQTT.BufferSize < 0 {
		return nil, errors.New("mqtt.buffer_size must be >= 0")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return nil, errors.New("redis.enabled is true but redis.addr is empty")
	}

	if c.Logging.Level == "" {
		return nil, errors.New("logging.level must not be empty")
	}

	return warnings, nil
}

// GlobalTiming converts the global thresholds into the core type.
func (c *Config) GlobalTiming() button.TimingConfig {
	return c.Timing.toCore()
}

func (t TimingConfig) toCore() button.TimingConfig {
	return button.TimingConfig{
		Debounce:          t.DebounceMs,
		ShortPressMin:     t.ShortPressMinMs,
		LongPressMin:      t.LongPressMinMs,
		DoubleClickMaxGap: t.DoubleClickMaxGapMs,
	}
}

// ChannelConfig converts button i into its core channel config. Latch enums
// are assumed validated; unknown values fall back to toggle on short.
func (c *Config) ChannelConfig(i int) button.ChannelConfig {
	b := c.Buttons[i]
	cc := button.DefaultChannelConfig()
	o := b.Timing.toCore()
	cc.Debounce = o.Debounce
	cc.ShortPressMin = o.ShortPressMin
	cc.LongPressMin = o.LongPressMin
	cc.DoubleClickMaxGap = o.DoubleClickMaxGap
	if b.ActiveLow != nil {
		cc.ActiveLow = *b.ActiveLow
	}
	if b.Enabled != nil {
		cc.Enabled = *b.Enabled
	}
	cc.LatchEnabled = b.Latch.Enabled
	cc.LatchMode, _ = parseLatchMode(b.Latch.Mode)
	cc.LatchTrigger, _ = parseLatchTrigger(b.Latch.Trigger)
	cc.LatchInitial = b.Latch.Initial
	return cc
}

// Pins returns every button's pin in configuration order.
func (c *Config) Pins() []int {
	pins := make([]int, len(c.Buttons))
	for i, b := range c.Buttons {
		pins[i] = b.Pin
	}
	return pins
}

// Names returns every button's name in configuration order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Buttons))
	for i, b := range c.Buttons {
		names[i] = b.Name
	}
	return names
}

// Lines returns the input line requests. Active-low buttons get a pull-up.
func (c *Config) Lines() []input.Line {
	lines := make([]input.Line, len(c.Buttons))
	for i := range c.Buttons {
		lines[i] = input.Line{Pin: c.Buttons[i].Pin, PullUp: c.ChannelConfig(i).ActiveLow}
	}
	return lines
}

func parseLatchMode(s string) (button.LatchMode, error) {
	switch strings.ToLower(s) {
	case "", "toggle":
		return button.LatchToggle, nil
	case "set":
		return button.LatchSet, nil
	case "reset":
		return button.LatchReset, nil
	default:
		return button.LatchToggle, fmt.Errorf("unknown mode %q (must be toggle, set or reset)", s)
	}
}

func parseLatchTrigger(s string) (button.LatchTrigger, error) {
	switch strings.ToLower(s) {
	case "", "short":
		return button.TriggerShort, nil
	case "long":
		return button.TriggerLong, nil
	case "double":
		return button.TriggerDouble, nil
	default:
		return button.TriggerShort, fmt.Errorf("unknown trigger %q (must be short, long or double)", s)
	}
}
