// Package gicsim is a software model of a GICv3 interrupt controller: a
// distributor, one redistributor frame per core and the per-core ICC
// system-register interface. It serves MMIO through mmio.Device and lets
// tests and tools exercise the driver without hardware.
//
// Only the secure Group 1 delivery path is modelled. Priority masking,
// preemption and LPIs are not.
package gicsim

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/tinyrange/tzgic/internal/mmio"
)

// Config describes the simulated controller.
type Config struct {
	// Cores is the number of redistributor frames and CPU interfaces.
	Cores int

	// ITLinesNumber is reported in GICD_TYPER; the model implements
	// (ITLinesNumber+1)*32 interrupt ids.
	ITLinesNumber uint32

	DistributorBase   uint64
	RedistributorBase uint64

	// ProcessorNumbers lists the processor number each frame reports, in
	// frame order. Defaults to 0..Cores-1.
	ProcessorNumbers []int

	// RWPLatency is how many GICD_CTLR/GICR_CTLR reads keep reporting RWP
	// after a write that the architecture tracks with it.
	RWPLatency int

	// NoFirmware leaves GICD_CTLR.ARE_S and ICC_SRE_EL1.SRE clear, as if
	// the earlier boot stage never ran.
	NoFirmware bool
}

// Ack is one acknowledge or end-of-interrupt seen by a CPU interface.
type Ack struct {
	Core int
	ID   uint32
}

// SGIWrite is one write to ICC_SGI1R_EL1 (Secure) or ICC_ASGI1R_EL1.
type SGIWrite struct {
	Core   int
	Secure bool
	Value  uint64
}

// RouterWrite is one write to GICD_IROUTER<ID> with the state of the line
// when it landed.
type RouterWrite struct {
	ID    uint32
	Value uint64

	// Enabled is the line's enable bit at the time of the write.
	Enabled bool

	// WritePending is GICD_CTLR.RWP at the time of the write.
	WritePending bool
}

type distributor struct {
	irqBank
	ctlr   uint32
	rwp    int
	router []uint64
}

type redistributor struct {
	irqBank
	frame int
	proc  int
	ctlr  uint32
	rwp   int
	waker uint32
}

// Model is the simulated controller. It is safe for concurrent use.
type Model struct {
	mu sync.Mutex

	cfg   Config
	lines int

	dist    distributor
	redists []*redistributor
	byCore  map[int]*redistributor
	sre     map[int]uint64

	current int

	acks     []Ack
	eois     []Ack
	sgis     []SGIWrite
	routes   []RouterWrite
	isbs     int
	rwpPolls int
}

// New builds a model. Unless cfg.NoFirmware is set it starts in the state
// left by secure firmware: affinity routing on and SRE on every core.
func New(cfg Config) *Model {
	if cfg.Cores <= 0 {
		cfg.Cores = 1
	}
	if cfg.ITLinesNumber > 31 {
		cfg.ITLinesNumber = 31
	}
	if cfg.ProcessorNumbers == nil {
		cfg.ProcessorNumbers = make([]int, cfg.Cores)
		for i := range cfg.ProcessorNumbers {
			cfg.ProcessorNumbers[i] = i
		}
	}

	lines := int(cfg.ITLinesNumber+1) * 32
	m := &Model{
		cfg:   cfg,
		lines: lines,
		dist: distributor{
			irqBank: newIRQBank(lines),
			router:  make([]uint64, lines),
		},
		byCore: make(map[int]*redistributor),
		sre:    make(map[int]uint64),
	}
	for i, proc := range cfg.ProcessorNumbers {
		rd := &redistributor{irqBank: newIRQBank(32), frame: i, proc: proc}
		m.redists = append(m.redists, rd)
		m.byCore[proc] = rd
	}

	if !cfg.NoFirmware {
		m.dist.ctlr = ctlrAREs | ctlrAREns
		for _, proc := range cfg.ProcessorNumbers {
			m.sre[proc] = 1
		}
	}
	return m
}

// Lines returns the number of implemented interrupt ids.
func (m *Model) Lines() int { return m.lines }

// MMIORegions implements mmio.Device.
func (m *Model) MMIORegions() []mmio.Region {
	return []mmio.Region{
		{Address: m.cfg.DistributorBase, Size: gicdSize},
		{Address: m.cfg.RedistributorBase, Size: gicrFrameSize * uint64(len(m.redists))},
	}
}

func (m *Model) inDistributor(addr uint64) bool {
	return addr >= m.cfg.DistributorBase && addr < m.cfg.DistributorBase+gicdSize
}

func (m *Model) redistributorAt(addr uint64) (*redistributor, uint64, bool) {
	if addr < m.cfg.RedistributorBase {
		return nil, 0, false
	}
	off := addr - m.cfg.RedistributorBase
	idx := int(off / gicrFrameSize)
	if idx >= len(m.redists) {
		return nil, 0, false
	}
	return m.redists[idx], off % gicrFrameSize, true
}

// ReadMMIO implements mmio.Device.
func (m *Model) ReadMMIO(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var value uint64
	var err error
	if m.inDistributor(addr) {
		value, err = m.readDistributor(addr-m.cfg.DistributorBase, len(data))
	} else if rd, off, ok := m.redistributorAt(addr); ok {
		value, err = m.readRedistributor(rd, off, len(data))
	} else {
		return fmt.Errorf("gicsim: read outside controller at %#x", addr)
	}
	if err != nil {
		return err
	}
	putLE(data, value)
	return nil
}

// WriteMMIO implements mmio.Device.
func (m *Model) WriteMMIO(addr uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, err := getLE(data)
	if err != nil {
		return err
	}
	if m.inDistributor(addr) {
		return m.writeDistributor(addr-m.cfg.DistributorBase, len(data), value)
	}
	if rd, off, ok := m.redistributorAt(addr); ok {
		return m.writeRedistributor(rd, off, len(data), value)
	}
	return fmt.Errorf("gicsim: write outside controller at %#x", addr)
}

func (m *Model) readDistributor(off uint64, width int) (uint64, error) {
	switch width {
	case 1:
		// Banked ids read as zero in the distributor with affinity routing.
		if p, ok := m.dist.priorityByte(off); ok && off-gicdIpriorityr >= 32 {
			return uint64(*p), nil
		}
		return 0, nil
	case 8:
		if id, ok := m.routerIndex(off); ok {
			return m.dist.router[id], nil
		}
		return 0, nil
	case 4:
	default:
		return 0, fmt.Errorf("gicsim: unsupported distributor access width %d", width)
	}

	switch off {
	case gicdCtlr:
		v := m.dist.ctlr
		if m.dist.rwp > 0 {
			m.dist.rwp--
			m.rwpPolls++
			v |= gicdCtlrRWP
		}
		return uint64(v), nil
	case gicdTyper:
		return uint64(m.cfg.ITLinesNumber | typerSecurityExtn), nil
	case gicdIidr:
		return armIIDR, nil
	case gicdPidr2:
		return gicArchRevGICv3, nil
	}

	if reg, w := decodeBitReg(off, len(m.dist.enabled)); reg != regNone && w == 0 {
		return 0, nil
	}
	v, _ := m.dist.read32(off)
	return uint64(v), nil
}

func (m *Model) writeDistributor(off uint64, width int, value uint64) error {
	switch width {
	case 1:
		if p, ok := m.dist.priorityByte(off); ok && off-gicdIpriorityr >= 32 {
			*p = uint8(value)
		}
		return nil
	case 8:
		if id, ok := m.routerIndex(off); ok {
			m.dist.router[id] = value & irouterMask
			m.routes = append(m.routes, RouterWrite{
				ID:           id,
				Value:        value & irouterMask,
				Enabled:      bit(m.dist.enabled, id),
				WritePending: m.dist.rwp > 0,
			})
		}
		return nil
	case 4:
	default:
		return fmt.Errorf("gicsim: unsupported distributor access width %d", width)
	}

	if off == gicdCtlr {
		m.dist.ctlr = uint32(value) &^ gicdCtlrRWP
		m.dist.rwp = m.cfg.RWPLatency
		return nil
	}

	if reg, w := decodeBitReg(off, len(m.dist.enabled)); reg != regNone && w == 0 {
		return nil
	}
	if _, cleared := m.dist.write32(off, uint32(value)); cleared {
		m.dist.rwp = m.cfg.RWPLatency
	}
	return nil
}

func (m *Model) routerIndex(off uint64) (uint32, bool) {
	if off < gicdIrouter || (off-gicdIrouter)%8 != 0 {
		return 0, false
	}
	id := (off - gicdIrouter) / 8
	if id < 32 || id >= uint64(m.lines) {
		return 0, false
	}
	return uint32(id), true
}

func (m *Model) readRedistributor(rd *redistributor, off uint64, width int) (uint64, error) {
	if off == gicrTyper && width == 8 {
		return m.redistributorTyper(rd), nil
	}

	if off >= gicrSGIOffset {
		sgiOff := off - gicrSGIOffset
		switch width {
		case 1:
			if p, ok := rd.priorityByte(sgiOff); ok {
				return uint64(*p), nil
			}
			return 0, nil
		case 4:
			if off == gicrPidr2SGIBase {
				return gicArchRevGICv3, nil
			}
			v, _ := rd.read32(sgiOff)
			return uint64(v), nil
		default:
			return 0, fmt.Errorf("gicsim: unsupported redistributor access width %d", width)
		}
	}

	if width != 4 {
		return 0, fmt.Errorf("gicsim: unsupported redistributor access width %d at %#x", width, off)
	}
	switch off {
	case gicrCtlr:
		v := rd.ctlr
		if rd.rwp > 0 {
			rd.rwp--
			m.rwpPolls++
			v |= gicrCtlrRWP
		}
		return uint64(v), nil
	case gicrIidr:
		return armIIDR, nil
	case gicrTyper:
		return m.redistributorTyper(rd) & 0xffffffff, nil
	case gicrTyper + 4:
		return m.redistributorTyper(rd) >> 32, nil
	case gicrWaker:
		return uint64(rd.waker), nil
	case gicrPidr2RDBase:
		return gicArchRevGICv3, nil
	}
	return 0, nil
}

// redistributorTyper builds GICR_TYPER: affinity in [63:32], processor
// number in [23:8] and Last on the final frame.
func (m *Model) redistributorTyper(rd *redistributor) uint64 {
	v := uint64(rd.proc&0xff)<<32 | uint64(rd.proc&0xffff)<<8
	if rd.frame == len(m.redists)-1 {
		v |= gicrTyperLast
	}
	return v
}

func (m *Model) writeRedistributor(rd *redistributor, off uint64, width int, value uint64) error {
	if off >= gicrSGIOffset {
		sgiOff := off - gicrSGIOffset
		switch width {
		case 1:
			if p, ok := rd.priorityByte(sgiOff); ok {
				*p = uint8(value)
			}
			return nil
		case 4:
			if _, cleared := rd.write32(sgiOff, uint32(value)); cleared {
				rd.rwp = m.cfg.RWPLatency
			}
			return nil
		default:
			return fmt.Errorf("gicsim: unsupported redistributor access width %d", width)
		}
	}

	if width != 4 {
		return fmt.Errorf("gicsim: unsupported redistributor access width %d at %#x", width, off)
	}
	switch off {
	case gicrCtlr:
		rd.ctlr = uint32(value) &^ gicrCtlrRWP
		rd.rwp = m.cfg.RWPLatency
	case gicrWaker:
		// ChildrenAsleep follows ProcessorSleep.
		if value&0x2 == 0 {
			rd.waker = 0
		} else {
			rd.waker = 0x6
		}
	}
	return nil
}

func getLE(data []byte) (uint64, error) {
	switch len(data) {
	case 1:
		return uint64(data[0]), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(data)), nil
	case 8:
		return binary.LittleEndian.Uint64(data), nil
	default:
		return 0, fmt.Errorf("gicsim: unsupported access width %d", len(data))
	}
}

func putLE(data []byte, v uint64) {
	switch len(data) {
	case 1:
		data[0] = uint8(v)
	case 4:
		binary.LittleEndian.PutUint32(data, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(data, v)
	}
}

var (
	_ mmio.Device = (*Model)(nil)
)
