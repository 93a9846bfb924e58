package input

import "errors"

// Sample is one scripted reading: pin -> asserted low.
// Pins missing from a sample read as false.
type Sample map[int]bool

// FakeReader is a test double that returns scripted line values.
type FakeReader struct {
	// Samples contains scripted values to return.
	// Each pin advances through Samples independently, one step per Read.
	Samples []Sample

	// index tracks the next position in Samples per pin
	index map[int]int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples, index: make(map[int]int)}
}

// Read returns the next scripted value for pin.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read(pin int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	if f.index == nil {
		f.index = make(map[int]int)
	}
	i := f.index[pin]
	if i < len(f.Samples)-1 {
		f.index[pin] = i + 1
	}

	return f.Samples[i][pin], nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds every pin to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = make(map[int]int)
	f.Closed = false
}
