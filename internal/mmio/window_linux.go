//go:build linux

package mmio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Window is a physical address range mapped into this process, normally
// through /dev/mem. It serves as a Device for Mux.
type Window struct {
	region  Region
	pageOff uint64
	mem     []byte
}

// OpenWindow maps size bytes of physical memory starting at phys from the
// file at path.
func OpenWindow(path string, phys, size uint64) (*Window, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	pageSize := uint64(os.Getpagesize())
	pageOff := phys & (pageSize - 1)
	mem, err := unix.Mmap(
		int(f.Fd()),
		int64(phys-pageOff),
		int(size+pageOff),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap %s at %#x: %w", path, phys, err)
	}

	return &Window{
		region:  Region{Address: phys, Size: size},
		pageOff: pageOff,
		mem:     mem,
	}, nil
}

func (w *Window) MMIORegions() []Region { return []Region{w.region} }

func (w *Window) ptr(addr uint64, n int) (unsafe.Pointer, error) {
	if w.mem == nil {
		return nil, fmt.Errorf("window %s is closed", w.region)
	}
	if !w.region.Contains(addr, n) {
		return nil, fmt.Errorf("address %#x outside window %s", addr, w.region)
	}
	off := addr - w.region.Address + w.pageOff
	if off%uint64(n) != 0 {
		return nil, fmt.Errorf("unaligned %d-byte access at %#x", n, addr)
	}
	return unsafe.Pointer(&w.mem[off]), nil
}

func (w *Window) ReadMMIO(addr uint64, data []byte) error {
	p, err := w.ptr(addr, len(data))
	if err != nil {
		return err
	}
	switch len(data) {
	case 1:
		data[0] = *(*uint8)(p)
	case 4:
		binary.LittleEndian.PutUint32(data, atomic.LoadUint32((*uint32)(p)))
	case 8:
		binary.LittleEndian.PutUint64(data, atomic.LoadUint64((*uint64)(p)))
	default:
		return fmt.Errorf("unsupported access width %d", len(data))
	}
	return nil
}

func (w *Window) WriteMMIO(addr uint64, data []byte) error {
	p, err := w.ptr(addr, len(data))
	if err != nil {
		return err
	}
	switch len(data) {
	case 1:
		*(*uint8)(p) = data[0]
	case 4:
		atomic.StoreUint32((*uint32)(p), binary.LittleEndian.Uint32(data))
	case 8:
		atomic.StoreUint64((*uint64)(p), binary.LittleEndian.Uint64(data))
	default:
		return fmt.Errorf("unsupported access width %d", len(data))
	}
	return nil
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w.mem == nil {
		return nil
	}
	mem := w.mem
	w.mem = nil
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap window %s: %w", w.region, err)
	}
	return nil
}

var (
	_ Device = (*Window)(nil)
)
