package button

// MaskWidth is the number of channels covered by PressedMask and LatchedMask.
const MaskWidth = 32

// Reader returns the raw, polarity-uncorrected sample for a button key.
// It must return promptly and have no side effects visible to the bank.
type Reader interface {
	Read(key int) bool
}

// ReaderFunc adapts a function to a Reader.
type ReaderFunc func(key int) bool

// Read calls f.
func (f ReaderFunc) Read(key int) bool {
	return f(key)
}

// Handler is the query and update surface of a bank.
type Handler interface {
	Update(now Timestamp)
	Size() int
	IsPressed(index int) bool
	ConsumePressType(index int) PressType
	LastPressDuration(index int) uint32
	IsLatched(index int) bool
	PressedMask() uint32
	LatchedMask() uint32
	Reset()
}

var _ Handler = (*Bank)(nil)

// Bank owns a fixed set of channels, one per key, sharing a TimingConfig.
// Index i addresses the channel created for keys[i]. Out-of-range indexes
// are inert: queries return false, None or 0 and setters do nothing.
//
// A Bank is not safe for concurrent use.
type Bank struct {
	keys     []int
	channels []Channel
	reader   Reader
	timing   TimingConfig
}

// NewBank creates a bank with one default-configured channel per key.
func NewBank(keys []int, reader Reader, timing TimingConfig) *Bank {
	b := &Bank{
		keys:     append([]int(nil), keys...),
		channels: make([]Channel, len(keys)),
		reader:   reader,
		timing:   timing,
	}
	for i := range b.channels {
		b.channels[i] = Channel{cfg: DefaultChannelConfig(), global: timing}
		b.channels[i].Reset()
	}
	return b
}

// Update reads and steps every enabled channel. Disabled channels are not read.
func (b *Bank) Update(now Timestamp) {
	if b.reader == nil {
		return
	}
	for i := range b.channels {
		c := &b.channels[i]
		if !c.cfg.Enabled {
			continue
		}
		c.Step(now, b.reader.Read(b.keys[i]))
	}
}

// Poll is Update at clock.Now().
func (b *Bank) Poll(clock Clock) {
	b.Update(clock.Now())
}

func (b *Bank) channel(index int) *Channel {
	if index < 0 || index >= len(b.channels) {
		return nil
	}
	return &b.channels[index]
}

// Size returns the number of channels.
func (b *Bank) Size() int {
	return len(b.channels)
}

// Key returns the key for index, or -1.
func (b *Bank) Key(index int) int {
	if index < 0 || index >= len(b.keys) {
		return -1
	}
	return b.keys[index]
}

// IndexOf returns the index of the first channel bound to key, or -1.
func (b *Bank) IndexOf(key int) int {
	for i, k := range b.keys {
		if k == key {
			return i
		}
	}
	return -1
}

func (b *Bank) IsPressed(index int) bool {
	if c := b.channel(index); c != nil {
		return c.IsPressed()
	}
	return false
}

func (b *Bank) ConsumePressType(index int) PressType {
	if c := b.channel(index); c != nil {
		return c.ConsumePressType()
	}
	return None
}

func (b *Bank) PeekPressType(index int) PressType {
	if c := b.channel(index); c != nil {
		return c.PeekPressType()
	}
	return None
}

func (b *Bank) ClearPressType(index int) {
	if c := b.channel(index); c != nil {
		c.ClearPressType()
	}
}

func (b *Bank) LastPressDuration(index int) uint32 {
	if c := b.channel(index); c != nil {
		return c.LastPressDuration()
	}
	return 0
}

func (b *Bank) HeldFor(index int, now Timestamp) uint32 {
	if c := b.channel(index); c != nil {
		return c.HeldFor(now)
	}
	return 0
}

func (b *Bank) IsLatched(index int) bool {
	if c := b.channel(index); c != nil {
		return c.IsLatched()
	}
	return false
}

func (b *Bank) ConsumeLatchedChanged(index int) bool {
	if c := b.channel(index); c != nil {
		return c.ConsumeLatchedChanged()
	}
	return false
}

func (b *Bank) Enabled(index int) bool {
	if c := b.channel(index); c != nil {
		return c.Enabled()
	}
	return false
}

func (b *Bank) SetEnabled(index int, enabled bool) {
	if c := b.channel(index); c != nil {
		c.SetEnabled(enabled)
	}
}

// ChannelConfig returns the configuration of index, or the zero value.
func (b *Bank) ChannelConfig(index int) ChannelConfig {
	if c := b.channel(index); c != nil {
		return c.Config()
	}
	return ChannelConfig{}
}

// SetChannelConfig replaces the configuration of index. The channel is reset
// so that LatchInitial takes effect.
func (b *Bank) SetChannelConfig(index int, cfg ChannelConfig) {
	if c := b.channel(index); c != nil {
		c.SetConfig(cfg)
		c.Reset()
	}
}

// PressedMask has bit i set iff channel i is pressed, for the first
// MaskWidth channels.
func (b *Bank) PressedMask() uint32 {
	return b.mask((*Channel).IsPressed)
}

// LatchedMask has bit i set iff channel i is latched, for the first
// MaskWidth channels.
func (b *Bank) LatchedMask() uint32 {
	return b.mask((*Channel).IsLatched)
}

func (b *Bank) mask(bit func(*Channel) bool) uint32 {
	var m uint32
	for i := 0; i < len(b.channels) && i < MaskWidth; i++ {
		if bit(&b.channels[i]) {
			m |= 1 << uint(i)
		}
	}
	return m
}

// PressedSnapshot returns the pressed state of every channel.
func (b *Bank) PressedSnapshot() []bool {
	out := make([]bool, len(b.channels))
	for i := range b.channels {
		out[i] = b.channels[i].IsPressed()
	}
	return out
}

// LatchedSnapshot returns the latch state of every channel.
func (b *Bank) LatchedSnapshot() []bool {
	out := make([]bool, len(b.channels))
	for i := range b.channels {
		out[i] = b.channels[i].IsLatched()
	}
	return out
}

// ForEach calls f with every index and its pressed state.
func (b *Bank) ForEach(f func(index int, pressed bool)) {
	for i := range b.channels {
		f(i, b.channels[i].IsPressed())
	}
}

// Collect consumes the pending event and latch edge of every channel and
// returns one Report per channel that had either.
func (b *Bank) Collect() []Report {
	var reports []Report
	for i := range b.channels {
		c := &b.channels[i]
		p := c.ConsumePressType()
		changed := c.ConsumeLatchedChanged()
		if p == None && !changed {
			continue
		}
		reports = append(reports, Report{
			Index:        i,
			Key:          b.keys[i],
			Press:        p,
			Duration:     c.LastPressDuration(),
			Latched:      c.IsLatched(),
			LatchChanged: changed,
		})
	}
	return reports
}

// Reset returns every channel to idle. Configuration is kept.
func (b *Bank) Reset() {
	for i := range b.channels {
		b.channels[i].Reset()
	}
}

// Timing returns the global thresholds.
func (b *Bank) Timing() TimingConfig {
	return b.timing
}

// SetTiming replaces the global thresholds for every channel.
func (b *Bank) SetTiming(t TimingConfig) {
	b.timing = t
	for i := range b.channels {
		b.channels[i].SetGlobalTiming(t)
	}
}

// SetReader replaces the sample source.
func (b *Bank) SetReader(r Reader) {
	b.reader = r
}
