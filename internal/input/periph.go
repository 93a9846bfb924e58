package input

import (
	"fmt"
	"strconv"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphReader reads lines through the periph.io host drivers.
type PeriphReader struct {
	pins map[int]gpio.PinIO
}

// NewPeriphReader initializes the host drivers and configures every line as
// an input without edge detection.
func NewPeriphReader(lines []Line) (*PeriphReader, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	r := &PeriphReader{pins: make(map[int]gpio.PinIO, len(lines))}
	for _, l := range lines {
		p := gpioreg.ByName(strconv.Itoa(l.Pin))
		if p == nil {
			return nil, fmt.Errorf("pin %d: no such gpio", l.Pin)
		}
		pull := gpio.PullDown
		if l.PullUp {
			pull = gpio.PullUp
		}
		if err := p.In(pull, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure pin %d: %w", l.Pin, err)
		}
		r.pins[l.Pin] = p
	}
	return r, nil
}

// Read returns true when the line reads low.
func (r *PeriphReader) Read(pin int) (bool, error) {
	p, ok := r.pins[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not configured", pin)
	}
	return p.Read() == gpio.Low, nil
}

// Close halts every pin.
func (r *PeriphReader) Close() error {
	var errs []error
	for pin, p := range r.pins {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt pin %d: %w", pin, err))
		}
	}
	r.pins = nil
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
