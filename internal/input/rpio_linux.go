//go:build linux

package input

import (
	"fmt"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// RPIOReader reads Broadcom GPIO registers through /dev/gpiomem.
type RPIOReader struct {
	pins map[int]rpio.Pin
}

// NewRPIOReader maps GPIO memory and configures every line as an input.
func NewRPIOReader(lines []Line) (*RPIOReader, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}

	r := &RPIOReader{pins: make(map[int]rpio.Pin, len(lines))}
	for _, l := range lines {
		p := rpio.Pin(l.Pin)
		p.Input()
		if l.PullUp {
			p.PullUp()
		} else {
			p.PullDown()
		}
		r.pins[l.Pin] = p
	}
	return r, nil
}

// Read returns true when the line reads low.
func (r *RPIOReader) Read(pin int) (bool, error) {
	p, ok := r.pins[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not configured", pin)
	}
	return p.Read() == rpio.Low, nil
}

// Close restores pull-down bias and unmaps GPIO memory.
func (r *RPIOReader) Close() error {
	for _, p := range r.pins {
		p.PullDown()
	}
	r.pins = nil
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpiomem: %w", err)
	}
	return nil
}
