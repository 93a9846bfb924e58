// Package button contains the polled debounce and press classification logic
// for a bank of digital buttons.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injected as a Timestamp argument.
package button

// Timestamp is a millisecond reading from a monotonic clock with an arbitrary
// origin. It wraps at 2^32; elapsed time is always computed with elapsed().
type Timestamp uint32

// elapsed returns now-since in milliseconds, tolerating counter wraparound.
func elapsed(now, since Timestamp) uint32 {
	return uint32(now - since)
}

// PressType is the classification of a completed press.
type PressType uint8

const (
	None PressType = iota
	Short
	Long
	Double
)

func (p PressType) String() string {
	switch p {
	case Short:
		return "SHORT"
	case Long:
		return "LONG"
	case Double:
		return "DOUBLE"
	default:
		return "NONE"
	}
}

// LatchMode selects how a matching event changes the latched value.
type LatchMode uint8

const (
	LatchToggle LatchMode = iota
	LatchSet
	LatchReset
)

func (m LatchMode) String() string {
	switch m {
	case LatchSet:
		return "set"
	case LatchReset:
		return "reset"
	default:
		return "toggle"
	}
}

// LatchTrigger selects which finalized event drives the latch.
type LatchTrigger uint8

const (
	TriggerShort LatchTrigger = iota
	TriggerLong
	TriggerDouble
)

func (t LatchTrigger) String() string {
	switch t {
	case TriggerLong:
		return "long"
	case TriggerDouble:
		return "double"
	default:
		return "short"
	}
}

func (t LatchTrigger) matches(p PressType) bool {
	switch t {
	case TriggerShort:
		return p == Short
	case TriggerLong:
		return p == Long
	case TriggerDouble:
		return p == Double
	}
	return false
}

// TimingConfig holds the thresholds shared by every channel of a bank.
// All values are milliseconds. ShortPressMin <= LongPressMin is expected but
// not enforced; if violated, presses at or above LongPressMin still classify
// as Long and nothing classifies as Short.
type TimingConfig struct {
	Debounce          uint32
	ShortPressMin     uint32
	LongPressMin      uint32
	DoubleClickMaxGap uint32
}

// DefaultTiming returns 30ms debounce, 200ms short, 1000ms long and a 300ms
// double-click gap.
func DefaultTiming() TimingConfig {
	return TimingConfig{
		Debounce:          30,
		ShortPressMin:     200,
		LongPressMin:      1000,
		DoubleClickMaxGap: 300,
	}
}

// ChannelConfig holds per-button overrides and behaviour flags.
// A zero timing field falls back to the bank's TimingConfig.
type ChannelConfig struct {
	Debounce          uint32
	ShortPressMin     uint32
	LongPressMin      uint32
	DoubleClickMaxGap uint32

	// ActiveLow means a true sample from the Reader is a press.
	// When false the sample is inverted.
	ActiveLow bool
	// Enabled channels are read and stepped by Bank.Update.
	Enabled bool

	LatchEnabled bool
	LatchMode    LatchMode
	LatchTrigger LatchTrigger
	// LatchInitial is the latched value after construction and Reset.
	LatchInitial bool
}

// DefaultChannelConfig returns an enabled, active-low channel with no
// overrides and no latch.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		ActiveLow: true,
		Enabled:   true,
	}
}

// Report is what Bank.Collect drains from one channel.
type Report struct {
	Index int
	Key   int
	// Press is the consumed event, None if only the latch changed.
	Press    PressType
	Duration uint32
	Latched  bool
	// LatchChanged is true when the latched value flipped since the last read.
	LatchChanged bool
}
