//go:build linux

package input

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOCdevReader reads lines through the Linux GPIO character device.
type GPIOCdevReader struct {
	chip  *gpiocdev.Chip
	lines map[int]*gpiocdev.Line
	order []int
}

// NewGPIOCdevReader requests every line as an input with the requested bias.
func NewGPIOCdevReader(chipName string, lines []Line) (*GPIOCdevReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &GPIOCdevReader{chip: chip, lines: make(map[int]*gpiocdev.Line, len(lines))}
	for _, l := range lines {
		if _, ok := r.lines[l.Pin]; ok {
			continue
		}
		line, err := chip.RequestLine(l.Pin, gpiocdev.AsInput, bias(l.PullUp))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request pin %d: %w", l.Pin, err)
		}
		r.lines[l.Pin] = line
		r.order = append(r.order, l.Pin)
	}
	return r, nil
}

func bias(pullUp bool) gpiocdev.LineReqOption {
	if pullUp {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithPullDown
}

// Read returns true when the line reads 0.
func (r *GPIOCdevReader) Read(pin int) (bool, error) {
	line, ok := r.lines[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not requested", pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 0, nil
}

// Close releases GPIO resources.
// Lines are reconfigured to input with pull-down (matching Pi boot defaults)
// before closing so external hardware does not see floating pins at reboot.
func (r *GPIOCdevReader) Close() error {
	var errs []error

	for _, pin := range r.order {
		line := r.lines[pin]
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	r.lines = nil
	r.order = nil

	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
