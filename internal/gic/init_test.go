package gic

import (
	"testing"

	"github.com/tinyrange/tzgic/internal/gicsim"
	"github.com/tinyrange/tzgic/internal/mmio"
)

func TestDiscoverIndexesFramesByProcessorNumber(t *testing.T) {
	m := newTestModel(gicsim.Config{Cores: 3, ProcessorNumbers: []int{2, 0, 1}})
	topo := Discover(mmio.NewMux(m), Config{
		DistributorBase:   testDistBase,
		RedistributorBase: testRedistBase,
		Cores:             4,
	})

	want := []uint64{
		testRedistBase + RedistributorStride,
		testRedistBase + 2*RedistributorStride,
		testRedistBase,
		0,
	}
	if len(topo.Redistributors) != len(want) {
		t.Fatalf("len(Redistributors)=%d, want %d", len(topo.Redistributors), len(want))
	}
	for i := range want {
		if topo.Redistributors[i] != want[i] {
			t.Fatalf("Redistributors[%d]=%#x, want %#x", i, topo.Redistributors[i], want[i])
		}
		if present := i < 3; topo.Present[i] != present {
			t.Fatalf("Present[%d]=%v, want %v", i, topo.Present[i], present)
		}
	}
}

func TestDiscoverAcceptsFrameAtAddressZero(t *testing.T) {
	m := gicsim.New(gicsim.Config{
		Cores:             2,
		ITLinesNumber:     1,
		DistributorBase:   testDistBase,
		RedistributorBase: 0,
	})
	bus := mmio.NewMux(m)
	topo := Discover(bus, Config{
		DistributorBase:   testDistBase,
		RedistributorBase: 0,
		Cores:             2,
	})
	if !topo.Present[0] || topo.Redistributors[0] != 0 {
		t.Fatalf("core 0 frame=%#x present=%v, want frame at 0", topo.Redistributors[0], topo.Present[0])
	}
	if !topo.Present[1] || topo.Redistributors[1] != RedistributorStride {
		t.Fatalf("core 1 frame=%#x present=%v", topo.Redistributors[1], topo.Present[1])
	}

	// Reading through the frame at zero must not be treated as a missing frame.
	st := topo.Report(bus, 0, nil)
	if st.Core != 0 || len(st.Enabled) != 0 {
		t.Fatalf("report=%+v, want core 0 with nothing enabled", st)
	}

	mustHalt(t, "redistributor", func() { topo.Report(bus, 2, nil) })
}

func TestDiscoverLineCount(t *testing.T) {
	for _, n := range []uint32{0, 2, 30, 31} {
		m := newTestModel(gicsim.Config{ITLinesNumber: n})
		topo := Discover(mmio.NewMux(m), Config{
			DistributorBase:   testDistBase,
			RedistributorBase: testRedistBase,
			Cores:             2,
		})
		// newTestModel turns 0 into 2.
		it := n
		if it == 0 {
			it = 2
		}
		if want := (it + 1) * 32; topo.Lines != want {
			t.Fatalf("ITLinesNumber=%d: Lines=%d, want %d", it, topo.Lines, want)
		}
	}
}

func TestDiscoverRejectsTooManyFrames(t *testing.T) {
	m := newTestModel(gicsim.Config{Cores: 4})
	mustHalt(t, "discover", func() {
		Discover(mmio.NewMux(m), Config{
			DistributorBase:   testDistBase,
			RedistributorBase: testRedistBase,
			Cores:             2,
		})
	})
}

func TestNewRequiresFirmwareState(t *testing.T) {
	m := newTestModel(gicsim.Config{NoFirmware: true})
	mustHalt(t, "init", func() {
		New(mmio.NewMux(m), m, Config{
			DistributorBase:   testDistBase,
			RedistributorBase: testRedistBase,
			Cores:             2,
		})
	})
}

func TestNewRequiresSystemRegisterInterface(t *testing.T) {
	m := newTestModel(gicsim.Config{Cores: 2})
	// Core 5 has no frame, so the model reports SRE off for it.
	m.Switch(5)
	mustHalt(t, "init", func() {
		New(mmio.NewMux(m), m, Config{
			DistributorBase:   testDistBase,
			RedistributorBase: testRedistBase,
			Cores:             2,
		})
	})
}

func TestNewDiscovers(t *testing.T) {
	c, _ := newTestController(t, gicsim.Config{Cores: 2, ITLinesNumber: 3})
	if c.Lines() != 128 {
		t.Fatalf("Lines=%d, want 128", c.Lines())
	}
	topo := c.Topology()
	if topo.Redistributors[0] != testRedistBase || topo.Redistributors[1] != testRedistBase+RedistributorStride {
		t.Fatalf("unexpected redistributors %#x", topo.Redistributors)
	}
}
