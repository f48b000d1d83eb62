package itr

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tinyrange/tzgic/internal/gic"
	"github.com/tinyrange/tzgic/internal/gicsim"
	"github.com/tinyrange/tzgic/internal/mmio"
)

type recordingChip struct {
	mu    sync.Mutex
	calls []string
}

func (c *recordingChip) record(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

func (c *recordingChip) Add(id uint32, flags uint32) { c.record("add %d %d", id, flags) }
func (c *recordingChip) Enable(id uint32) { c.record("enable %d", id) }
func (c *recordingChip) Disable(id uint32) { c.record("disable %d", id) }
func (c *recordingChip) RaisePending(id uint32) { c.record("pending %d", id) }
func (c *recordingChip) RaiseSGI(id uint32, mask uint8) { c.record("sgi %d %#x", id, mask) }
func (c *recordingChip) SetAffinity(id uint32, mask uint8) { c.record("affinity %d %#x", id, mask) }

func TestRegisterAddsOnChip(t *testing.T) {
	chip := &recordingChip{}
	f := New(chip)

	h := &Handler{ID: 40, Flags: 1, Fn: func(uint32) Result { return Handled }}
	if err := f.Register(h); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := f.Register(h); err == nil {
		t.Fatalf("duplicate Register succeeded")
	}
	if err := f.Register(&Handler{ID: 41}); err == nil {
		t.Fatalf("Register without callback succeeded")
	}
	if len(chip.calls) != 1 || chip.calls[0] != "add 40 1" {
		t.Fatalf("chip calls=%v, want [add 40 1]", chip.calls)
	}
}

func TestHandleDisablesOnNotHandled(t *testing.T) {
	chip := &recordingChip{}
	f := New(chip)
	if err := f.Register(&Handler{ID: 50, Fn: func(uint32) Result { return NotHandled }}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	f.Handle(50)
	if got := chip.calls[len(chip.calls)-1]; got != "disable 50" {
		t.Fatalf("last chip call=%q, want disable 50", got)
	}
	if f.Count(50) != 1 {
		t.Fatalf("Count(50)=%d, want 1", f.Count(50))
	}
}

func TestHandleUnknownIsFatal(t *testing.T) {
	f := New(&recordingChip{})
	defer func() {
		err, ok := recover().(*UnhandledError)
		if !ok || err.ID != 77 {
			t.Fatalf("recovered %v, want UnhandledError for 77", err)
		}
	}()
	f.Handle(77)
}

func TestUnregister(t *testing.T) {
	chip := &recordingChip{}
	f := New(chip)
	if err := f.Register(&Handler{ID: 60, Fn: func(uint32) Result { return Handled }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	f.Unregister(60)
	f.Unregister(60)
	if len(chip.calls) != 2 || chip.calls[1] != "disable 60" {
		t.Fatalf("chip calls=%v", chip.calls)
	}
	if err := f.Register(&Handler{ID: 60, Fn: func(uint32) Result { return Handled }}); err != nil {
		t.Fatalf("Register after Unregister: %v", err)
	}
}

func TestFrameworkDrivesController(t *testing.T) {
	m := gicsim.New(gicsim.Config{
		Cores:             2,
		ITLinesNumber:     2,
		DistributorBase:   0x8000000,
		RedistributorBase: 0x80a0000,
		RWPLatency:        2,
	})
	c := gic.New(mmio.NewMux(m), m, gic.Config{
		DistributorBase:   0x8000000,
		RedistributorBase: 0x80a0000,
		Cores:             2,
	})
	f := New(c)

	var got []uint32
	for _, id := range []uint32{29, 42} {
		h := &Handler{ID: id, Fn: func(id uint32) Result {
			got = append(got, id)
			return Handled
		}}
		if err := f.Register(h); err != nil {
			t.Fatalf("Register(%d): %v", id, err)
		}
		f.Enable(id)
	}

	m.Assert(42)
	m.Assert(29)
	for {
		if _, ok := c.Dispatch(f); !ok {
			break
		}
	}
	if len(got) != 2 || got[0] != 29 || got[1] != 42 {
		t.Fatalf("handled=%v, want [29 42]", got)
	}
	if f.Count(42) != 1 {
		t.Fatalf("Count(42)=%d, want 1", f.Count(42))
	}
	if len(m.EOIs()) != 2 {
		t.Fatalf("EOIs=%v, want 2", m.EOIs())
	}
}

var (
	_ Chip        = (*gic.Controller)(nil)
	_ gic.Handler = (*Framework)(nil)
)
