package button

import "testing"

// testTiming: 10ms debounce, 50ms short, 200ms long, 100ms double-click gap.
func testTiming() TimingConfig {
	return TimingConfig{Debounce: 10, ShortPressMin: 50, LongPressMin: 200, DoubleClickMaxGap: 100}
}

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	return NewChannel(DefaultChannelConfig(), testTiming())
}

// hold steps c once per millisecond from..to inclusive with the same sample.
func hold(c *Channel, pressed bool, from, to Timestamp) {
	for now := from; ; now++ {
		c.Step(now, pressed)
		if now == to {
			return
		}
	}
}

// press holds the raw signal pressed for d ms starting at start, then released
// until the release commits. It returns the release commit time.
func press(c *Channel, start Timestamp, d uint32) Timestamp {
	hold(c, true, start, start+Timestamp(d)-1)
	end := start + Timestamp(d) + Timestamp(c.Timing().Debounce)
	hold(c, false, start+Timestamp(d), end)
	return end
}

func TestNewChannelIsIdle(t *testing.T) {
	c := newTestChannel(t)
	if c.IsPressed() {
		t.Error("new channel should not be pressed")
	}
	if p := c.PeekPressType(); p != None {
		t.Errorf("expected no pending event, got %s", p)
	}
	if d := c.LastPressDuration(); d != 0 {
		t.Errorf("expected last duration 0, got %d", d)
	}
	if c.IsLatched() {
		t.Error("new channel should not be latched")
	}
}

func TestDebounceCommitsAfterWindow(t *testing.T) {
	c := newTestChannel(t)

	hold(c, true, 0, 9)
	if c.IsPressed() {
		t.Fatal("should not commit before debounce window")
	}

	c.Step(10, true)
	if !c.IsPressed() {
		t.Fatal("should commit once raw held for debounce window")
	}
}

func TestDebounceRejectsBounce(t *testing.T) {
	c := newTestChannel(t)

	hold(c, true, 0, 5)
	hold(c, false, 6, 100)
	if c.IsPressed() {
		t.Error("bounce shorter than debounce window must not commit")
	}
	if p := c.PeekPressType(); p != None {
		t.Errorf("expected no event from bounce, got %s", p)
	}
}

func TestDebounceRestartsOnEveryEdge(t *testing.T) {
	c := newTestChannel(t)

	hold(c, true, 0, 5)
	c.Step(6, false)
	hold(c, true, 7, 16)
	if c.IsPressed() {
		t.Fatal("window should restart at the edge at t=7")
	}

	c.Step(17, true)
	if !c.IsPressed() {
		t.Fatal("expected commit 10ms after last edge")
	}
}

func TestReleaseDurationIsExact(t *testing.T) {
	c := newTestChannel(t)

	// Commit press at 10, raw release at 100, commit release at 110.
	end := press(c, 0, 100)
	if end != 110 {
		t.Fatalf("expected release commit at 110, got %d", end)
	}
	if c.IsPressed() {
		t.Error("expected released")
	}
	if d := c.LastPressDuration(); d != 100 {
		t.Errorf("expected duration 100, got %d", d)
	}
}

func TestActiveHighInvertsSample(t *testing.T) {
	cfg := DefaultChannelConfig()
	cfg.ActiveLow = false
	c := NewChannel(cfg, testTiming())

	hold(c, true, 0, 50)
	if c.IsPressed() {
		t.Error("active-high channel should treat true sample as released")
	}

	hold(c, false, 51, 61)
	if !c.IsPressed() {
		t.Error("active-high channel should treat false sample as pressed")
	}
}

func TestClassificationBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		duration uint32
		want     PressType
	}{
		{"below short", 49, None},
		{"exactly short", 50, Short},
		{"below long", 199, Short},
		{"exactly long", 200, Long},
		{"well above long", 1000, Long},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestChannel(t)
			end := press(c, 0, tt.duration)

			if d := c.LastPressDuration(); d != tt.duration {
				t.Errorf("expected duration %d, got %d", tt.duration, d)
			}

			// Let any deferred short flush.
			hold(c, false, end+1, end+100)
			if got := c.ConsumePressType(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLongFinalizesImmediately(t *testing.T) {
	c := newTestChannel(t)
	press(c, 0, 200)

	if p := c.PeekPressType(); p != Long {
		t.Errorf("expected LONG at release commit, got %s", p)
	}
}

func TestShortDeferredUntilGapElapses(t *testing.T) {
	c := newTestChannel(t)
	end := press(c, 0, 100)

	if p := c.PeekPressType(); p != None {
		t.Fatalf("short must be deferred at release, got %s", p)
	}

	hold(c, false, end+1, end+99)
	if p := c.PeekPressType(); p != None {
		t.Fatalf("short flushed before gap elapsed: %s", p)
	}

	c.Step(end+100, false)
	if p := c.PeekPressType(); p != Short {
		t.Errorf("expected SHORT once gap elapsed, got %s", p)
	}
}

func TestZeroGapFlushesAtRelease(t *testing.T) {
	timing := testTiming()
	timing.DoubleClickMaxGap = 0
	c := NewChannel(DefaultChannelConfig(), timing)

	press(c, 0, 100)
	if p := c.PeekPressType(); p != Short {
		t.Errorf("expected SHORT at release with zero gap, got %s", p)
	}
}

func TestDoubleClickAtGap(t *testing.T) {
	c := newTestChannel(t)

	first := press(c, 0, 60) // release commits at 70
	hold(c, false, first+1, 99)
	second := press(c, 100, 60) // release commits at 170

	if second-first != 100 {
		t.Fatalf("expected releases 100ms apart, got %d", second-first)
	}
	if p := c.ConsumePressType(); p != Double {
		t.Fatalf("expected DOUBLE, got %s", p)
	}

	hold(c, false, second+1, second+300)
	if p := c.ConsumePressType(); p != None {
		t.Errorf("double click must not leave a pending short, got %s", p)
	}
}

func TestDoubleClickPastGap(t *testing.T) {
	c := newTestChannel(t)

	first := press(c, 0, 60) // 70
	hold(c, false, first+1, 100)
	second := press(c, 101, 60) // 171

	if second-first != 101 {
		t.Fatalf("expected releases 101ms apart, got %d", second-first)
	}
	if p := c.PeekPressType(); p != Short {
		t.Fatalf("expected first click to finalize as SHORT, got %s", p)
	}

	// The second click is pending on its own; the unconsumed first event
	// holds its flush back.
	hold(c, false, second+1, second+150)
	if p := c.ConsumePressType(); p != Short {
		t.Fatalf("expected SHORT, got %s", p)
	}
	if p := c.PeekPressType(); p != None {
		t.Fatalf("expected no event right after consume, got %s", p)
	}

	c.Step(second+151, false)
	if p := c.ConsumePressType(); p != Short {
		t.Errorf("expected second click to flush as SHORT, got %s", p)
	}
}

// The event slot holds one verdict. A Short produced by a stale pair is lost
// if the caller does not consume it before the next click completes a Double.
func TestUnconsumedStaleShortOverwrittenByDouble(t *testing.T) {
	c := newTestChannel(t)

	first := press(c, 0, 60) // 70
	hold(c, false, first+1, 100)
	second := press(c, 101, 60) // 171
	if p := c.PeekPressType(); p != Short {
		t.Fatalf("expected first click queued as SHORT, got %s", p)
	}

	third := press(c, second+1, 60) // 242
	if uint32(third-second) > testTiming().DoubleClickMaxGap {
		t.Fatalf("third click should pair with the second, gap %d", third-second)
	}
	if p := c.ConsumePressType(); p != Double {
		t.Errorf("expected DOUBLE to replace the unconsumed SHORT, got %s", p)
	}
	hold(c, false, third+1, third+300)
	if p := c.PeekPressType(); p != None {
		t.Errorf("nothing should remain after the pair, got %s", p)
	}
}

func TestFlushWaitsForFullRelease(t *testing.T) {
	c := newTestChannel(t)

	first := press(c, 0, 60) // 70
	hold(c, false, first+1, 150)
	// Raw press begins before the window closes and is still debouncing
	// when it does.
	hold(c, true, 165, 175)
	if p := c.PeekPressType(); p != None {
		t.Errorf("flush must wait while a second press is in progress, got %s", p)
	}
}

func TestLongPressAbsorbsPendingSingle(t *testing.T) {
	c := newTestChannel(t)

	first := press(c, 0, 60)
	hold(c, false, first+1, first+20)
	second := press(c, first+21, 300)

	if p := c.ConsumePressType(); p != Long {
		t.Fatalf("expected LONG, got %s", p)
	}
	hold(c, false, second+1, second+200)
	if p := c.ConsumePressType(); p != None {
		t.Errorf("expected no stale SHORT after a long press, got %s", p)
	}
}

func TestConsumeIsIdempotent(t *testing.T) {
	c := newTestChannel(t)
	press(c, 0, 250)

	if p := c.ConsumePressType(); p != Long {
		t.Fatalf("expected LONG, got %s", p)
	}
	if p := c.ConsumePressType(); p != None {
		t.Errorf("second consume should return NONE, got %s", p)
	}
}

func TestPeekAndClear(t *testing.T) {
	c := newTestChannel(t)
	press(c, 0, 250)

	if p := c.PeekPressType(); p != Long {
		t.Fatalf("expected LONG, got %s", p)
	}
	if p := c.PeekPressType(); p != Long {
		t.Fatalf("peek must not consume, got %s", p)
	}
	c.ClearPressType()
	if p := c.PeekPressType(); p != None {
		t.Errorf("expected NONE after clear, got %s", p)
	}
	if d := c.LastPressDuration(); d != 250 {
		t.Errorf("clear must not touch last duration, got %d", d)
	}
}

func TestLastPressDurationPersists(t *testing.T) {
	c := newTestChannel(t)
	end := press(c, 0, 80)
	c.ConsumePressType()

	hold(c, false, end+1, end+500)
	if d := c.LastPressDuration(); d != 80 {
		t.Errorf("expected duration to persist, got %d", d)
	}

	// A flicker that commits as a too-short press replaces it.
	press(c, end+501, 20)
	if d := c.LastPressDuration(); d != 20 {
		t.Errorf("expected duration 20, got %d", d)
	}
}

func TestHeldFor(t *testing.T) {
	c := newTestChannel(t)

	if h := c.HeldFor(0); h != 0 {
		t.Errorf("expected 0 while released, got %d", h)
	}
	hold(c, true, 0, 10)
	if h := c.HeldFor(60); h != 50 {
		t.Errorf("expected 50ms held, got %d", h)
	}
}

func TestWraparoundDuration(t *testing.T) {
	c := newTestChannel(t)
	start := Timestamp(0xFFFFFFF0)

	end := press(c, start, 150)
	if d := c.LastPressDuration(); d != 150 {
		t.Errorf("expected duration 150 across wrap, got %d", d)
	}
	if end >= start {
		t.Fatalf("test should cross the wrap, end=%d", end)
	}

	hold(c, false, end+1, end+100)
	if p := c.ConsumePressType(); p != Short {
		t.Errorf("expected SHORT across wrap, got %s", p)
	}
}

func TestMisorderedThresholdsFollowComparisons(t *testing.T) {
	timing := TimingConfig{Debounce: 10, ShortPressMin: 300, LongPressMin: 200, DoubleClickMaxGap: 0}

	c := NewChannel(DefaultChannelConfig(), timing)
	press(c, 0, 250)
	if p := c.ConsumePressType(); p != Long {
		t.Errorf("250ms: expected LONG, got %s", p)
	}

	c = NewChannel(DefaultChannelConfig(), timing)
	press(c, 0, 150)
	if p := c.ConsumePressType(); p != None {
		t.Errorf("150ms: expected NONE, got %s", p)
	}
}

func TestPerChannelOverrides(t *testing.T) {
	cfg := DefaultChannelConfig()
	cfg.LongPressMin = 500
	c := NewChannel(cfg, testTiming())

	press(c, 0, 300)
	if p := c.PeekPressType(); p == Long {
		t.Error("300ms should not be LONG with a 500ms override")
	}
	if got := c.Timing().LongPressMin; got != 500 {
		t.Errorf("expected effective long 500, got %d", got)
	}
}

func latchChannel(mode LatchMode, trigger LatchTrigger, initial bool) *Channel {
	cfg := DefaultChannelConfig()
	cfg.LatchEnabled = true
	cfg.LatchMode = mode
	cfg.LatchTrigger = trigger
	cfg.LatchInitial = initial
	return NewChannel(cfg, testTiming())
}

func TestLatchToggle(t *testing.T) {
	c := latchChannel(LatchToggle, TriggerLong, false)

	end := press(c, 0, 250)
	if !c.IsLatched() {
		t.Fatal("expected latched after first long press")
	}
	if !c.ConsumeLatchedChanged() {
		t.Error("expected change flag after toggle")
	}
	if c.ConsumeLatchedChanged() {
		t.Error("change flag must clear on read")
	}

	press(c, end+1, 250)
	if c.IsLatched() {
		t.Error("expected unlatched after second long press")
	}
	if !c.ConsumeLatchedChanged() {
		t.Error("expected change flag after second toggle")
	}
}

func TestLatchSetIsIdempotent(t *testing.T) {
	c := latchChannel(LatchSet, TriggerLong, false)

	end := press(c, 0, 250)
	if !c.IsLatched() || !c.ConsumeLatchedChanged() {
		t.Fatal("expected first SET to latch and raise change flag")
	}

	press(c, end+1, 250)
	if !c.IsLatched() {
		t.Error("expected still latched")
	}
	if c.ConsumeLatchedChanged() {
		t.Error("repeat SET must not raise change flag")
	}
}

func TestLatchResetIsIdempotent(t *testing.T) {
	c := latchChannel(LatchReset, TriggerLong, true)

	end := press(c, 0, 250)
	if c.IsLatched() || !c.ConsumeLatchedChanged() {
		t.Fatal("expected first RESET to unlatch and raise change flag")
	}

	press(c, end+1, 250)
	if c.ConsumeLatchedChanged() {
		t.Error("repeat RESET must not raise change flag")
	}
}

func TestLatchIgnoresOtherEvents(t *testing.T) {
	c := latchChannel(LatchToggle, TriggerDouble, false)

	end := press(c, 0, 250) // long
	hold(c, false, end+1, end+200)
	end = press(c, end+201, 60) // short
	hold(c, false, end+1, end+200)

	if c.IsLatched() {
		t.Error("LONG and SHORT must not drive a DOUBLE-triggered latch")
	}

	first := press(c, end+201, 60)
	second := press(c, first+1, 60)
	if p := c.PeekPressType(); p != Double {
		t.Fatalf("expected DOUBLE at %d, got %s", second, p)
	}
	if !c.IsLatched() {
		t.Error("expected DOUBLE to toggle the latch")
	}
}

func TestLatchOnDeferredShort(t *testing.T) {
	c := latchChannel(LatchToggle, TriggerShort, false)

	end := press(c, 0, 60)
	if c.IsLatched() {
		t.Fatal("latch must wait for the short to be finalized")
	}
	hold(c, false, end+1, end+100)
	if !c.IsLatched() {
		t.Error("expected latch once the short flushed")
	}
}

func TestResetReappliesLatchInitial(t *testing.T) {
	c := latchChannel(LatchToggle, TriggerLong, true)

	press(c, 0, 250)
	if c.IsLatched() {
		t.Fatal("expected toggle from initial true to false")
	}

	c.Reset()
	if !c.IsLatched() {
		t.Error("expected LatchInitial after reset")
	}
	if c.ConsumeLatchedChanged() {
		t.Error("reset must clear change flag")
	}
	if d := c.LastPressDuration(); d != 0 {
		t.Errorf("reset must clear duration, got %d", d)
	}
	if !c.Config().LatchEnabled {
		t.Error("reset must keep configuration")
	}
}

func TestDisableMidPressScrubsState(t *testing.T) {
	c := newTestChannel(t)

	end := press(c, 0, 250)
	hold(c, true, end+1, end+20)
	if !c.IsPressed() {
		t.Fatal("expected pressed before disable")
	}

	c.SetEnabled(false)
	if c.IsPressed() {
		t.Error("disable must clear committed state")
	}
	if p := c.PeekPressType(); p != None {
		t.Errorf("disable must clear pending event, got %s", p)
	}
	if d := c.LastPressDuration(); d != 0 {
		t.Errorf("disable must clear duration, got %d", d)
	}

	// Steps while disabled are ignored.
	hold(c, true, end+21, end+100)
	if c.IsPressed() {
		t.Error("disabled channel must not commit")
	}

	c.SetEnabled(true)
	hold(c, false, end+101, end+400)
	if c.IsPressed() {
		t.Error("re-enabled channel should start released")
	}
	if p := c.ConsumePressType(); p != None {
		t.Errorf("re-enabled channel must not replay events, got %s", p)
	}
}

func TestSetConfigDisabledScrubs(t *testing.T) {
	c := newTestChannel(t)
	press(c, 0, 250)

	cfg := c.Config()
	cfg.Enabled = false
	c.SetConfig(cfg)
	if p := c.PeekPressType(); p != None {
		t.Errorf("expected scrubbed event, got %s", p)
	}
	if c.Enabled() {
		t.Error("expected disabled")
	}
}

func TestPressTypeString(t *testing.T) {
	tests := map[PressType]string{
		None:          "NONE",
		Short:         "SHORT",
		Long:          "LONG",
		Double:        "DOUBLE",
		PressType(42): "NONE",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("PressType(%d).String(): got %q, want %q", p, got, want)
		}
	}
}
