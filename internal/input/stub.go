//go:build !linux

package input

import "errors"

var errUnsupported = errors.New("input: not supported on this platform (requires Linux)")

// GPIOCdevReader is not available on non-Linux platforms.
type GPIOCdevReader struct{}

// NewGPIOCdevReader returns an error on non-Linux platforms.
func NewGPIOCdevReader(chipName string, lines []Line) (*GPIOCdevReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *GPIOCdevReader) Read(pin int) (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *GPIOCdevReader) Close() error {
	return nil
}

// RPIOReader is not available on non-Linux platforms.
type RPIOReader struct{}

// NewRPIOReader returns an error on non-Linux platforms.
func NewRPIOReader(lines []Line) (*RPIOReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RPIOReader) Read(pin int) (bool, error) {
	return false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RPIOReader) Close() error {
	return nil
}
