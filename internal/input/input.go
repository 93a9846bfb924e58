// Package input provides raw button line reading with hardware abstraction.
// Real implementations cover the Linux GPIO character device, periph.io and
// /dev/gpiomem. The fake implementation allows testing without hardware.
package input

import (
	"fmt"
	"log/slog"
)

// Reader reads raw button lines.
type Reader interface {
	// Read returns true when the line for pin is asserted low.
	// Polarity correction is left to the caller.
	Read(pin int) (bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Line describes one input line to request.
type Line struct {
	Pin int
	// PullUp biases the line high (active-low wiring); otherwise it is
	// pulled down.
	PullUp bool
}

// Backend names accepted by Open.
const (
	BackendGPIOCdev = "gpiocdev"
	BackendPeriph   = "periph"
	BackendRPIO     = "rpio"
)

// DefaultChip is the GPIO character device used by the gpiocdev backend.
const DefaultChip = "gpiochip0"

// Open creates a Reader for lines on the named backend.
func Open(backend, chip string, lines []Line) (Reader, error) {
	var (
		r   Reader
		err error
	)
	switch backend {
	case BackendGPIOCdev, "":
		if chip == "" {
			chip = DefaultChip
		}
		r, err = wrap(NewGPIOCdevReader(chip, lines))
	case BackendPeriph:
		r, err = wrap(NewPeriphReader(lines))
	case BackendRPIO:
		r, err = wrap(NewRPIOReader(lines))
	default:
		return nil, fmt.Errorf("unknown input backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", backend, err)
	}
	return r, nil
}

// wrap keeps a failed constructor's typed nil out of the Reader interface.
func wrap[R Reader](r R, err error) (Reader, error) {
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Sampler adapts a Reader to the infallible button.Reader contract.
// When a read fails it repeats the last good sample for that pin.
// Not safe for concurrent use.
type Sampler struct {
	reader  Reader
	logger  *slog.Logger
	last    map[int]bool
	failing map[int]bool
	errors  int
}

// NewSampler wraps r.
func NewSampler(r Reader, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		reader:  r,
		logger:  logger,
		last:    make(map[int]bool),
		failing: make(map[int]bool),
	}
}

// Read returns the current level of pin, or the last good one on error.
func (s *Sampler) Read(pin int) bool {
	v, err := s.reader.Read(pin)
	if err != nil {
		s.errors++
		if !s.failing[pin] {
			s.failing[pin] = true
			s.logger.Warn("input read failed, holding last sample", "pin", pin, "error", err)
		}
		return s.last[pin]
	}
	if s.failing[pin] {
		delete(s.failing, pin)
		s.logger.Info("input read recovered", "pin", pin)
	}
	s.last[pin] = v
	return v
}

// Errors returns the number of failed reads so far.
func (s *Sampler) Errors() int {
	return s.errors
}
