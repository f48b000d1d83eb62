// Package mmio describes memory-mapped register access for device drivers.
package mmio

import (
	"encoding/binary"
	"fmt"
)

// Region is a contiguous range of physical addresses served by one device.
type Region struct {
	Address uint64
	Size    uint64
}

// Contains reports whether an access of n bytes at addr falls inside the region.
func (r Region) Contains(addr uint64, n int) bool {
	return addr >= r.Address && addr+uint64(n) <= r.Address+r.Size
}

func (r Region) String() string {
	return fmt.Sprintf("[%#x, %#x)", r.Address, r.Address+r.Size)
}

// Device serves reads and writes for a set of MMIO regions. len(data) is the
// access width in bytes.
type Device interface {
	MMIORegions() []Region
	ReadMMIO(addr uint64, data []byte) error
	WriteMMIO(addr uint64, data []byte) error
}

// Bus is the register access surface used by drivers. Accesses never fail:
// a bad address is a bus fault, which on hardware is a synchronous abort.
type Bus interface {
	Read8(addr uint64) uint8
	Write8(addr uint64, v uint8)
	Read32(addr uint64) uint32
	Write32(addr uint64, v uint32)
	Read64(addr uint64) uint64
	Write64(addr uint64, v uint64)
}

// BusFault is the panic value raised by Mux for unmapped or rejected accesses.
type BusFault struct {
	Addr  uint64
	Width int
	Write bool
	Err   error
}

func (f *BusFault) Error() string {
	op := "read"
	if f.Write {
		op = "write"
	}
	if f.Err != nil {
		return fmt.Sprintf("mmio: %d-byte %s at %#x: %v", f.Width, op, f.Addr, f.Err)
	}
	return fmt.Sprintf("mmio: %d-byte %s at %#x: no device", f.Width, op, f.Addr)
}

func (f *BusFault) Unwrap() error { return f.Err }

// Mux routes bus accesses to the device owning the address.
type Mux struct {
	devices []Device
}

// NewMux builds a bus over the given devices. Overlapping regions resolve to
// the first device registered.
func NewMux(devices ...Device) *Mux {
	return &Mux{devices: devices}
}

// Attach adds a device to the bus.
func (m *Mux) Attach(dev Device) {
	m.devices = append(m.devices, dev)
}

func (m *Mux) lookup(addr uint64, n int) Device {
	for _, dev := range m.devices {
		for _, r := range dev.MMIORegions() {
			if r.Contains(addr, n) {
				return dev
			}
		}
	}
	return nil
}

func (m *Mux) read(addr uint64, data []byte) {
	dev := m.lookup(addr, len(data))
	if dev == nil {
		panic(&BusFault{Addr: addr, Width: len(data)})
	}
	if err := dev.ReadMMIO(addr, data); err != nil {
		panic(&BusFault{Addr: addr, Width: len(data), Err: err})
	}
}

func (m *Mux) write(addr uint64, data []byte) {
	dev := m.lookup(addr, len(data))
	if dev == nil {
		panic(&BusFault{Addr: addr, Width: len(data), Write: true})
	}
	if err := dev.WriteMMIO(addr, data); err != nil {
		panic(&BusFault{Addr: addr, Width: len(data), Write: true, Err: err})
	}
}

func (m *Mux) Read8(addr uint64) uint8 {
	var buf [1]byte
	m.read(addr, buf[:])
	return buf[0]
}

func (m *Mux) Write8(addr uint64, v uint8) {
	m.write(addr, []byte{v})
}

func (m *Mux) Read32(addr uint64) uint32 {
	var buf [4]byte
	m.read(addr, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

func (m *Mux) Write32(addr uint64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	m.write(addr, buf[:])
}

func (m *Mux) Read64(addr uint64) uint64 {
	var buf [8]byte
	m.read(addr, buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

func (m *Mux) Write64(addr uint64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.write(addr, buf[:])
}

var (
	_ Bus = (*Mux)(nil)
)
