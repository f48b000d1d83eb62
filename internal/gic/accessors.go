package gic

import "github.com/tinyrange/tzgic/internal/mmio"

// bank is one register bank holding per-interrupt state: the distributor
// for shared interrupts, or a core's redistributor SGI_base frame for
// banked ones. Both use the same offsets for the per-interrupt registers.
//
// Accessors touch only the bit or byte belonging to the id they are given
// and never wait; callers decide when to poll for write completion.
type bank struct {
	bus mmio.Bus

	// base of the per-interrupt registers.
	base uint64

	// ctlr is the control register that reports RWP for this bank.
	ctlr uint64
	rwp  uint32
}

func distributorBank(bus mmio.Bus, base uint64) bank {
	return bank{bus: bus, base: base, ctlr: base + gicdCtlr, rwp: CtlrRWP}
}

func redistributorBank(bus mmio.Bus, base uint64) bank {
	return bank{bus: bus, base: base + gicrSGIOffset, ctlr: base + gicrCtlr, rwp: gicrCtlrRWP}
}

// regAddr returns the address of the 32-interrupt register holding id.
func (b bank) regAddr(off uint64, id uint32) uint64 {
	return b.base + off + uint64(id>>5)<<2
}

func bitOf(id uint32) uint32 { return 1 << (id & 31) }

func (b bank) getBit(off uint64, id uint32) bool {
	return b.bus.Read32(b.regAddr(off, id))&bitOf(id) != 0
}

func (b bank) setBit(off uint64, id uint32) {
	addr := b.regAddr(off, id)
	b.bus.Write32(addr, b.bus.Read32(addr)|bitOf(id))
}

func (b bank) clearBit(off uint64, id uint32) {
	addr := b.regAddr(off, id)
	b.bus.Write32(addr, b.bus.Read32(addr)&^bitOf(id))
}

// writeBit writes a single one to a set/clear register (ISENABLER,
// ICENABLER, ISPENDR, ICPENDR). Zero bits have no effect in hardware.
func (b bank) writeBit(off uint64, id uint32) {
	b.bus.Write32(b.regAddr(off, id), bitOf(id))
}

func (b bank) group(id uint32) bool { return b.getBit(gicdIgroupr, id) }
func (b bank) clearGroup(id uint32) { b.clearBit(gicdIgroupr, id) }
func (b bank) groupMod(id uint32) bool { return b.getBit(gicdIgrpmodr, id) }
func (b bank) setGroupMod(id uint32) { b.setBit(gicdIgrpmodr, id) }
func (b bank) enabled(id uint32) bool { return b.getBit(gicdIsenabler, id) }
func (b bank) setEnable(id uint32) { b.writeBit(gicdIsenabler, id) }
func (b bank) clearEnable(id uint32) { b.writeBit(gicdIcenabler, id) }
func (b bank) pending(id uint32) bool { return b.getBit(gicdIspendr, id) }
func (b bank) setPending(id uint32) { b.writeBit(gicdIspendr, id) }
func (b bank) clearPending(id uint32) { b.writeBit(gicdIcpendr, id) }
func (b bank) active(id uint32) bool { return b.getBit(gicdIsactiver, id) }
func (b bank) priority(id uint32) uint8 { return b.bus.Read8(b.base + gicdIpriorityr + uint64(id)) }
func (b bank) setPriority(id uint32, p uint8) {
	b.bus.Write8(b.base+gicdIpriorityr+uint64(id), p)
}

func (b bank) readCtlr() uint32 { return b.bus.Read32(b.ctlr) }

// waitForPendingWrite spins until the bank reports that earlier writes to
// its control and clear-enable registers have taken effect.
func (b bank) waitForPendingWrite() {
	for b.bus.Read32(b.ctlr)&b.rwp != 0 {
	}
}

// Distributor-only registers.

func gicdReadTyper(bus mmio.Bus, base uint64) uint32 {
	return bus.Read32(base + gicdTyper)
}

func gicdReadRouter(bus mmio.Bus, base uint64, id uint32) uint64 {
	return bus.Read64(base + gicdIrouter + uint64(id)<<3)
}

func gicdWriteRouter(bus mmio.Bus, base uint64, id uint32, v uint64) {
	bus.Write64(base+gicdIrouter+uint64(id)<<3, v)
}

// gicdSetCtlr sets bits in GICD_CTLR, optionally waiting for RWP to clear.
func gicdSetCtlr(bus mmio.Bus, base uint64, bits uint32, wait bool) {
	d := distributorBank(bus, base)
	bus.Write32(base+gicdCtlr, d.readCtlr()|bits)
	if wait {
		d.waitForPendingWrite()
	}
}

// Redistributor-only registers.

func gicrReadTyper(bus mmio.Bus, base uint64) uint64 {
	return bus.Read64(base + gicrTyper)
}
