package gicsim

import (
	"testing"

	"github.com/tinyrange/tzgic/internal/mmio"
)

const (
	testDist   = 0x2f000000
	testRedist = 0x2f100000
)

func newTestBus(cfg Config) (*Model, *mmio.Mux) {
	cfg.DistributorBase = testDist
	cfg.RedistributorBase = testRedist
	m := New(cfg)
	return m, mmio.NewMux(m)
}

func TestFirmwareState(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 2})
	if got := bus.Read32(testDist + gicdCtlr); got&ctlrAREs == 0 {
		t.Fatalf("GICD_CTLR=%#x, want ARE_S set", got)
	}
	m.Switch(1)
	if m.SRE() != 1 {
		t.Fatalf("SRE=%d, want 1", m.SRE())
	}

	m, bus = newTestBus(Config{Cores: 2, NoFirmware: true})
	if got := bus.Read32(testDist + gicdCtlr); got != 0 {
		t.Fatalf("GICD_CTLR=%#x, want 0", got)
	}
	if m.SRE() != 0 {
		t.Fatalf("SRE=%d, want 0", m.SRE())
	}
}

func TestTypers(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 3, ITLinesNumber: 4, ProcessorNumbers: []int{2, 0, 1}})
	if m.Lines() != 160 {
		t.Fatalf("lines=%d, want 160", m.Lines())
	}
	if got := bus.Read32(testDist+gicdTyper) & 0x1f; got != 4 {
		t.Fatalf("ITLinesNumber=%d, want 4", got)
	}

	for frame, proc := range []uint64{2, 0, 1} {
		typer := bus.Read64(testRedist + uint64(frame)*gicrFrameSize + gicrTyper)
		if got := (typer >> 8) & 0xffff; got != proc {
			t.Fatalf("frame %d processor=%d, want %d", frame, got, proc)
		}
		if last := typer&gicrTyperLast != 0; last != (frame == 2) {
			t.Fatalf("frame %d Last=%v", frame, last)
		}
		lo := bus.Read32(testRedist + uint64(frame)*gicrFrameSize + gicrTyper)
		if uint64(lo) != typer&0xffffffff {
			t.Fatalf("frame %d low TYPER word=%#x, want %#x", frame, lo, typer&0xffffffff)
		}
	}
}

func TestRWPLatency(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 1, RWPLatency: 2})

	bus.Write32(testDist+gicdCtlr, ctlrAREs|ctlrEnableGrp1S)
	if !m.WritePending() {
		t.Fatalf("RWP not set after GICD_CTLR write")
	}
	for i := 0; i < 2; i++ {
		if bus.Read32(testDist+gicdCtlr)&gicdCtlrRWP == 0 {
			t.Fatalf("read %d: RWP clear too early", i)
		}
	}
	if got := bus.Read32(testDist + gicdCtlr); got != ctlrAREs|ctlrEnableGrp1S {
		t.Fatalf("GICD_CTLR=%#x after settle", got)
	}
	if m.RWPPolls() != 2 {
		t.Fatalf("polls=%d, want 2", m.RWPPolls())
	}

	// Clearing an enable in the redistributor sets GICR_CTLR.RWP.
	bus.Write32(testRedist+gicrSGIOffset+gicdIcenabler, 1<<27)
	if bus.Read32(testRedist+gicrCtlr)&gicrCtlrRWP == 0 {
		t.Fatalf("GICR_CTLR.RWP not set after ICENABLER0 write")
	}
}

func TestDistributorBankedRangeIsRAZWI(t *testing.T) {
	_, bus := newTestBus(Config{Cores: 1, ITLinesNumber: 1})

	bus.Write32(testDist+gicdIsenabler, 0xffffffff)
	if got := bus.Read32(testDist + gicdIsenabler); got != 0 {
		t.Fatalf("GICD_ISENABLER0=%#x, want 0", got)
	}
	bus.Write8(testDist+gicdIpriorityr+5, 0x80)
	if got := bus.Read8(testDist + gicdIpriorityr + 5); got != 0 {
		t.Fatalf("GICD_IPRIORITYR5=%#x, want 0", got)
	}

	bus.Write32(testDist+gicdIsenabler+4, 1<<10)
	if got := bus.Read32(testDist + gicdIsenabler + 4); got != 1<<10 {
		t.Fatalf("GICD_ISENABLER1=%#x, want bit 10", got)
	}
	bus.Write8(testDist+gicdIpriorityr+42, 0x80)
	if got := bus.Read8(testDist + gicdIpriorityr + 42); got != 0x80 {
		t.Fatalf("GICD_IPRIORITYR42=%#x, want 0x80", got)
	}
}

// configureSecure puts id in Secure Group 1 on the bank at base and enables it.
func configureSecure(bus mmio.Bus, base uint64, id uint32, pri uint8) {
	w := uint64(id/32) * 4
	bus.Write32(base+gicdIgroupr+w, bus.Read32(base+gicdIgroupr+w)&^(1<<(id%32)))
	bus.Write32(base+gicdIgrpmodr+w, bus.Read32(base+gicdIgrpmodr+w)|1<<(id%32))
	bus.Write8(base+gicdIpriorityr+uint64(id), pri)
	bus.Write32(base+gicdIsenabler+w, 1<<(id%32))
}

func TestDeliveryOrderAndLifecycle(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 2, ITLinesNumber: 1})
	sgiBase := uint64(testRedist + gicrSGIOffset)

	configureSecure(bus, sgiBase, 27, 0x20)
	configureSecure(bus, testDist, 40, 0x10)
	configureSecure(bus, testDist, 41, 0x10)
	bus.Write32(testDist+gicdCtlr, ctlrAREs|ctlrAREns|ctlrEnableGrp1S)

	m.Assert(27)
	m.Assert(41)
	m.Assert(40)

	if got := m.HPPIR1(); got != 40 {
		t.Fatalf("HPPIR1=%d, want 40", got)
	}
	var order []uint32
	for {
		id := m.IAR1()
		if id == spuriousID {
			break
		}
		if !m.Active(0, id) || m.Pending(0, id) {
			t.Fatalf("id %d not active after acknowledge", id)
		}
		order = append(order, id)
		m.EOIR1(id)
		if m.Active(0, id) {
			t.Fatalf("id %d still active after EOI", id)
		}
	}
	if len(order) != 3 || order[0] != 40 || order[1] != 41 || order[2] != 27 {
		t.Fatalf("order=%v, want [40 41 27]", order)
	}
	if len(m.EOIs()) != 3 || len(m.Acks()) != 3 {
		t.Fatalf("acks=%v eois=%v", m.Acks(), m.EOIs())
	}
}

func TestGroup0NotDelivered(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 1})
	sgiBase := uint64(testRedist + gicrSGIOffset)
	bus.Write32(sgiBase+gicdIsenabler, 1<<20)
	m.Assert(20)
	if got := m.HPPIR1(); got != spuriousID {
		t.Fatalf("HPPIR1=%d, want spurious", got)
	}
}

func TestSPIRouting(t *testing.T) {
	m, bus := newTestBus(Config{Cores: 2, ITLinesNumber: 1})
	configureSecure(bus, testDist, 50, 0)
	bus.Write64(testDist+gicdIrouter+50*8, 1)
	m.Assert(50)

	if got := m.HPPIR1(); got != spuriousID {
		t.Fatalf("HPPIR1=%d before EnableGrp1S, want spurious", got)
	}
	bus.Write32(testDist+gicdCtlr, ctlrAREs|ctlrEnableGrp1S)

	if got := m.HPPIR1(); got != spuriousID {
		t.Fatalf("core 0 HPPIR1=%d, want spurious", got)
	}
	m.Switch(1)
	if got := m.HPPIR1(); got != 50 {
		t.Fatalf("core 1 HPPIR1=%d, want 50", got)
	}

	// IRM makes any core eligible.
	bus.Write64(testDist+gicdIrouter+50*8, irouterIRM)
	routes := m.RouterWrites()
	if len(routes) != 2 {
		t.Fatalf("router writes=%+v, want 2", routes)
	}
	if r := routes[1]; r.ID != 50 || r.Value != irouterIRM || !r.Enabled || r.WritePending {
		t.Fatalf("router write=%+v, want enabled id 50 with IRM", r)
	}
	m.Switch(0)
	if got := m.IAR1(); got != 50 {
		t.Fatalf("core 0 IAR1=%d with IRM, want 50", got)
	}
}

func TestSGIGeneration(t *testing.T) {
	m, _ := newTestBus(Config{Cores: 4})

	m.Switch(1)
	m.ASGI1R(uint64(3)<<24 | 0b0101)
	if !m.Pending(0, 3) || m.Pending(1, 3) || !m.Pending(2, 3) || m.Pending(3, 3) {
		t.Fatalf("target list not honoured")
	}

	m.SGI1R(uint64(9)<<24 | sgirIRM)
	for core := 0; core < 4; core++ {
		if want := core != 1; m.Pending(core, 9) != want {
			t.Fatalf("core %d pending=%v, want %v", core, !want, want)
		}
	}

	// Other clusters do not exist.
	m.SGI1R(uint64(10)<<24 | 1<<16 | 0xf)
	for core := 0; core < 4; core++ {
		if m.Pending(core, 10) {
			t.Fatalf("core %d received SGI for cluster 1", core)
		}
	}

	w := m.SGIWrites()
	if len(w) != 3 || w[0].Secure || !w[1].Secure || w[0].Core != 1 {
		t.Fatalf("writes=%+v", w)
	}
}

func TestWaker(t *testing.T) {
	_, bus := newTestBus(Config{Cores: 1})
	bus.Write32(testRedist+gicrWaker, 0x2)
	if got := bus.Read32(testRedist + gicrWaker); got != 0x6 {
		t.Fatalf("GICR_WAKER=%#x, want 0x6", got)
	}
	bus.Write32(testRedist+gicrWaker, 0)
	if got := bus.Read32(testRedist + gicrWaker); got != 0 {
		t.Fatalf("GICR_WAKER=%#x, want 0", got)
	}
}
