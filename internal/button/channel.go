package button

// Channel is the debounce and classification state machine for one button.
// Only Step, Reset and the enable/config setters mutate it.
type Channel struct {
	cfg    ChannelConfig
	global TimingConfig

	// Debounced state
	committed bool
	// Last polarity-corrected sample and when it last flipped
	raw          bool
	rawChangedAt Timestamp
	// Valid only while committed is true
	pressStartedAt Timestamp

	event        PressType
	lastDuration uint32

	// A short press held back in case a second click follows
	pendingSingle      bool
	pendingSingleSince Timestamp

	latched        bool
	latchedChanged bool
}

// NewChannel creates an idle channel.
func NewChannel(cfg ChannelConfig, global TimingConfig) *Channel {
	c := &Channel{cfg: cfg, global: global}
	c.Reset()
	return c
}

// Step advances the state machine with one raw sample taken at now.
// Disabled channels ignore it.
func (c *Channel) Step(now Timestamp, sample bool) {
	if !c.cfg.Enabled {
		return
	}
	t := Resolve(c.global, c.cfg)

	pressed := sample
	if !c.cfg.ActiveLow {
		pressed = !sample
	}

	// Every raw edge restarts the debounce window
	if pressed != c.raw {
		c.raw = pressed
		c.rawChangedAt = now
	}

	if c.raw != c.committed && elapsed(now, c.rawChangedAt) >= t.Debounce {
		c.committed = c.raw
		if c.committed {
			c.pressStartedAt = now
		} else {
			c.release(now, t)
		}
	}

	// Flush a deferred short once the double-click window has passed
	if c.pendingSingle && c.event == None && !c.raw && !c.committed &&
		elapsed(now, c.pendingSingleSince) >= t.DoubleClickMaxGap {
		c.pendingSingle = false
		c.finalize(Short)
	}
}

// release classifies a committed press that ended at now.
func (c *Channel) release(now Timestamp, t TimingConfig) {
	d := elapsed(now, c.pressStartedAt)
	c.lastDuration = d

	switch {
	case d >= t.LongPressMin:
		// A long press absorbs any click still waiting for a partner
		c.pendingSingle = false
		c.finalize(Long)

	case d >= t.ShortPressMin:
		if c.pendingSingle {
			if elapsed(now, c.pendingSingleSince) <= t.DoubleClickMaxGap {
				c.pendingSingle = false
				c.finalize(Double)
				return
			}
			// Too late to pair: the earlier click stands on its own. It
			// occupies the event slot until consumed; a Double completed
			// before then replaces it.
			c.finalize(Short)
		}
		c.pendingSingle = true
		c.pendingSingleSince = now

	default:
		c.finalize(None)
	}
}

func (c *Channel) finalize(p PressType) {
	c.event = p
	if p == None || !c.cfg.LatchEnabled || !c.cfg.LatchTrigger.matches(p) {
		return
	}

	next := c.latched
	switch c.cfg.LatchMode {
	case LatchToggle:
		next = !c.latched
	case LatchSet:
		next = true
	case LatchReset:
		next = false
	}
	if next != c.latched {
		c.latched = next
		c.latchedChanged = true
	}
}

// IsPressed returns the debounced pressed state.
func (c *Channel) IsPressed() bool {
	return c.committed
}

// ConsumePressType returns the pending event and clears it.
func (c *Channel) ConsumePressType() PressType {
	p := c.event
	c.event = None
	return p
}

// PeekPressType returns the pending event without clearing it.
func (c *Channel) PeekPressType() PressType {
	return c.event
}

// ClearPressType drops the pending event.
func (c *Channel) ClearPressType() {
	c.event = None
}

// LastPressDuration returns the duration in ms of the most recently completed
// press, or 0 if none has completed since the last reset.
func (c *Channel) LastPressDuration() uint32 {
	return c.lastDuration
}

// HeldFor returns how long the current debounced press has lasted at now,
// or 0 when released.
func (c *Channel) HeldFor(now Timestamp) uint32 {
	if !c.committed {
		return 0
	}
	return elapsed(now, c.pressStartedAt)
}

// IsLatched returns the latch state.
func (c *Channel) IsLatched() bool {
	return c.latched
}

// ConsumeLatchedChanged reports whether the latch flipped since the last
// call, and clears the flag.
func (c *Channel) ConsumeLatchedChanged() bool {
	ch := c.latchedChanged
	c.latchedChanged = false
	return ch
}

// Reset returns the channel to idle and reapplies LatchInitial.
// Configuration is kept.
func (c *Channel) Reset() {
	c.committed = false
	c.raw = false
	c.rawChangedAt = 0
	c.pressStartedAt = 0
	c.event = None
	c.lastDuration = 0
	c.pendingSingle = false
	c.pendingSingleSince = 0
	c.latched = c.cfg.LatchInitial
	c.latchedChanged = false
}

// Enabled reports whether Step has any effect.
func (c *Channel) Enabled() bool {
	return c.cfg.Enabled
}

// SetEnabled enables or disables the channel. Disabling resets it so that
// re-enabling never replays stale state.
func (c *Channel) SetEnabled(enabled bool) {
	c.cfg.Enabled = enabled
	if !enabled {
		c.Reset()
	}
}

// Config returns the channel's configuration.
func (c *Channel) Config() ChannelConfig {
	return c.cfg
}

// SetConfig replaces the channel's configuration. Runtime state is kept
// unless the new configuration disables the channel.
func (c *Channel) SetConfig(cfg ChannelConfig) {
	c.cfg = cfg
	if !cfg.Enabled {
		c.Reset()
	}
}

// SetGlobalTiming replaces the fallback thresholds.
func (c *Channel) SetGlobalTiming(t TimingConfig) {
	c.global = t
}

// Timing returns the effective thresholds.
func (c *Channel) Timing() TimingConfig {
	return Resolve(c.global, c.cfg)
}
