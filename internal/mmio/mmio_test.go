package mmio

import (
	"encoding/binary"
	"errors"
	"testing"
)

type ramDevice struct {
	region Region
	mem    []byte
	reject error
}

func newRAM(addr, size uint64) *ramDevice {
	return &ramDevice{region: Region{Address: addr, Size: size}, mem: make([]byte, size)}
}

func (d *ramDevice) MMIORegions() []Region { return []Region{d.region} }

func (d *ramDevice) ReadMMIO(addr uint64, data []byte) error {
	if d.reject != nil {
		return d.reject
	}
	copy(data, d.mem[addr-d.region.Address:])
	return nil
}

func (d *ramDevice) WriteMMIO(addr uint64, data []byte) error {
	if d.reject != nil {
		return d.reject
	}
	copy(d.mem[addr-d.region.Address:], data)
	return nil
}

func expectFault(t *testing.T, fn func()) *BusFault {
	t.Helper()
	var fault *BusFault
	func() {
		defer func() {
			f, ok := recover().(*BusFault)
			if !ok {
				t.Fatalf("expected *BusFault panic")
			}
			fault = f
		}()
		fn()
	}()
	return fault
}

func TestRegionContains(t *testing.T) {
	r := Region{Address: 0x1000, Size: 0x100}
	tests := []struct {
		addr uint64
		n    int
		want bool
	}{
		{0x1000, 4, true},
		{0x10fc, 4, true},
		{0x10fd, 4, false},
		{0xfff, 1, false},
		{0x1100, 1, false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.addr, tt.n); got != tt.want {
			t.Fatalf("Contains(%#x, %d)=%v, want %v", tt.addr, tt.n, got, tt.want)
		}
	}
}

func TestMuxRoutesByRegion(t *testing.T) {
	a := newRAM(0x1000, 0x100)
	b := newRAM(0x2000, 0x100)
	m := NewMux(a)
	m.Attach(b)

	m.Write32(0x1004, 0xdeadbeef)
	m.Write64(0x2008, 0x0102030405060708)
	m.Write8(0x2000, 0x7f)

	if got := binary.LittleEndian.Uint32(a.mem[4:]); got != 0xdeadbeef {
		t.Fatalf("device a word=%#x, want 0xdeadbeef", got)
	}
	if got := m.Read64(0x2008); got != 0x0102030405060708 {
		t.Fatalf("Read64=%#x, want 0x0102030405060708", got)
	}
	if got := m.Read8(0x200f); got != 0x01 {
		t.Fatalf("Read8=%#x, want 0x01 (little endian)", got)
	}
	if got := m.Read32(0x1004); got != 0xdeadbeef {
		t.Fatalf("Read32=%#x, want 0xdeadbeef", got)
	}
	if got := m.Read8(0x2000); got != 0x7f {
		t.Fatalf("Read8=%#x, want 0x7f", got)
	}
}

func TestMuxFaults(t *testing.T) {
	dev := newRAM(0x1000, 0x100)
	m := NewMux(dev)

	f := expectFault(t, func() { m.Read32(0x3000) })
	if f.Addr != 0x3000 || f.Width != 4 || f.Write {
		t.Fatalf("fault=%+v", f)
	}

	// Straddling the end of a region is not served.
	f = expectFault(t, func() { m.Write64(0x10fc, 1) })
	if !f.Write || f.Width != 8 {
		t.Fatalf("fault=%+v", f)
	}

	errNope := errors.New("nope")
	dev.reject = errNope
	f = expectFault(t, func() { m.Read8(0x1000) })
	if !errors.Is(f, errNope) {
		t.Fatalf("fault=%v, want wrapping %v", f, errNope)
	}
}
