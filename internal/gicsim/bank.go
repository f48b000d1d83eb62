package gicsim

import "encoding/binary"

type bitReg int

const (
	regNone bitReg = iota
	regGroup
	regGroupMod
	regSetEnable
	regClearEnable
	regSetPending
	regClearPending
	regSetActive
	regClearActive
)

var bitRegs = []struct {
	off uint64
	reg bitReg
}{
	{gicdIgroupr, regGroup},
	{gicdIgrpmodr, regGroupMod},
	{gicdIsenabler, regSetEnable},
	{gicdIcenabler, regClearEnable},
	{gicdIspendr, regSetPending},
	{gicdIcpendr, regClearPending},
	{gicdIsactiver, regSetActive},
	{gicdIcactiver, regClearActive},
}

// irqBank holds the per-interrupt state of the distributor or of one
// redistributor. Each bit slice has one word per 32 interrupts.
type irqBank struct {
	group    []uint32
	groupMod []uint32
	enabled  []uint32
	pending  []uint32
	active   []uint32
	priority []uint8
}

func newIRQBank(lines int) irqBank {
	words := (lines + 31) / 32
	return irqBank{
		group:    make([]uint32, words),
		groupMod: make([]uint32, words),
		enabled:  make([]uint32, words),
		pending:  make([]uint32, words),
		active:   make([]uint32, words),
		priority: make([]uint8, lines),
	}
}

func decodeBitReg(off uint64, words int) (bitReg, int) {
	for _, r := range bitRegs {
		if off >= r.off && off < r.off+uint64(words)*4 && (off-r.off)%4 == 0 {
			return r.reg, int((off - r.off) / 4)
		}
	}
	return regNone, 0
}

func (b *irqBank) words(reg bitReg) []uint32 {
	switch reg {
	case regGroup:
		return b.group
	case regGroupMod:
		return b.groupMod
	case regSetEnable, regClearEnable:
		return b.enabled
	case regSetPending, regClearPending:
		return b.pending
	case regSetActive, regClearActive:
		return b.active
	default:
		return nil
	}
}

// read32 serves a 32-bit read of a per-interrupt register at off (relative
// to the bank's interrupt registers).
func (b *irqBank) read32(off uint64) (uint32, bool) {
	if off >= gicdIpriorityr && off+4 <= gicdIpriorityr+uint64(len(b.priority)) {
		i := off - gicdIpriorityr
		return binary.LittleEndian.Uint32(b.priority[i : i+4]), true
	}
	reg, w := decodeBitReg(off, len(b.enabled))
	if reg == regNone {
		return 0, false
	}
	return b.words(reg)[w], true
}

// write32 serves a 32-bit write. clearedEnable reports a write to
// ICENABLER, which raises RWP in the owning control register.
func (b *irqBank) write32(off uint64, v uint32) (handled, clearedEnable bool) {
	if off >= gicdIpriorityr && off+4 <= gicdIpriorityr+uint64(len(b.priority)) {
		i := off - gicdIpriorityr
		binary.LittleEndian.PutUint32(b.priority[i:i+4], v)
		return true, false
	}
	reg, w := decodeBitReg(off, len(b.enabled))
	words := b.words(reg)
	switch reg {
	case regGroup, regGroupMod:
		words[w] = v
	case regSetEnable, regSetPending, regSetActive:
		words[w] |= v
	case regClearEnable:
		words[w] &^= v
		return true, true
	case regClearPending, regClearActive:
		words[w] &^= v
	default:
		return false, false
	}
	return true, false
}

func (b *irqBank) priorityByte(off uint64) (*uint8, bool) {
	if off >= gicdIpriorityr && off < gicdIpriorityr+uint64(len(b.priority)) {
		return &b.priority[off-gicdIpriorityr], true
	}
	return nil, false
}

func bit(words []uint32, id uint32) bool {
	return words[id/32]&(1<<(id%32)) != 0
}

func setBit(words []uint32, id uint32) {
	words[id/32] |= 1 << (id % 32)
}

func clearBit(words []uint32, id uint32) {
	words[id/32] &^= 1 << (id % 32)
}

// deliverable reports whether id is a pending, enabled, inactive Secure
// Group 1 interrupt.
func (b *irqBank) deliverable(id uint32) bool {
	return bit(b.pending, id) && bit(b.enabled, id) && !bit(b.active, id) &&
		bit(b.groupMod, id) && !bit(b.group, id)
}
