//go:build !linux

package mmio

import (
	"errors"
	"runtime"
)

// Window is only available on Linux.
type Window struct{}

func OpenWindow(path string, phys, size uint64) (*Window, error) {
	return nil, errors.New("mmio windows are not supported on " + runtime.GOOS)
}

func (w *Window) MMIORegions() []Region { return nil }

func (w *Window) ReadMMIO(addr uint64, data []byte) error {
	return errors.New("mmio windows are not supported on " + runtime.GOOS)
}

func (w *Window) WriteMMIO(addr uint64, data []byte) error {
	return errors.New("mmio windows are not supported on " + runtime.GOOS)
}

func (w *Window) Close() error { return nil }
