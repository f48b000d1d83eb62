package gicsim

// The methods below model the ICC_*_EL1 system registers of the core
// selected with Switch, so a Model can be handed to the driver as its CPU
// interface.

// Switch makes core the executing core for subsequent CPU interface calls.
func (m *Model) Switch(core int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = core
}

// CorePos returns the executing core.
func (m *Model) CorePos() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// SRE reads ICC_SRE_EL1 of the executing core.
func (m *Model) SRE() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sre[m.current]
}

// HPPIR1 returns the highest priority pending Group 1 interrupt for the
// executing core without acknowledging it.
func (m *Model) HPPIR1() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, _ := m.highestPending(m.current)
	return id
}

// IAR1 acknowledges the highest priority pending interrupt: it stops being
// pending and becomes active.
func (m *Model) IAR1() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, b := m.highestPending(m.current)
	if b == nil {
		return spuriousID
	}
	clearBit(b.pending, id)
	setBit(b.active, id)
	m.acks = append(m.acks, Ack{Core: m.current, ID: id})
	return id
}

// EOIR1 deactivates id on the executing core.
func (m *Model) EOIR1(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.eois = append(m.eois, Ack{Core: m.current, ID: id})
	if b := m.bankFor(m.current, id); b != nil {
		clearBit(b.active, id)
	}
}

// SGI1R writes ICC_SGI1R_EL1.
func (m *Model) SGI1R(v uint64) { m.generateSGI(v, true) }

// ASGI1R writes ICC_ASGI1R_EL1.
func (m *Model) ASGI1R(v uint64) { m.generateSGI(v, false) }

// ISB counts barriers.
func (m *Model) ISB() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isbs++
}

func (m *Model) generateSGI(v uint64, secure bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sgis = append(m.sgis, SGIWrite{Core: m.current, Secure: secure, Value: v})

	id := uint32(v>>24) & 0xf
	if v&sgirIRM != 0 {
		for core, rd := range m.byCore {
			if core != m.current {
				setBit(rd.pending, id)
			}
		}
		return
	}

	// Every core sits in cluster 0.0.0.
	aff := (v>>16)&0xff | (v>>32)&0xff<<8 | (v>>48)&0xff<<16
	if aff != 0 {
		return
	}
	targets := uint16(v)
	for core := 0; core < 16; core++ {
		if targets&(1<<core) == 0 {
			continue
		}
		if rd, ok := m.byCore[core]; ok {
			setBit(rd.pending, id)
		}
	}
}

// bankFor returns the bank holding id for core, or nil.
func (m *Model) bankFor(core int, id uint32) *irqBank {
	if id < 32 {
		rd, ok := m.byCore[core]
		if !ok {
			return nil
		}
		return &rd.irqBank
	}
	if int(id) >= m.lines {
		return nil
	}
	return &m.dist.irqBank
}

func (m *Model) routedTo(id uint32, core int) bool {
	r := m.dist.router[id]
	if r&irouterIRM != 0 {
		return true
	}
	return r&^irouterIRM == uint64(core)
}

// highestPending picks the deliverable interrupt with the lowest priority
// value, lowest id first on ties. It returns spuriousID and nil when there
// is none.
func (m *Model) highestPending(core int) (uint32, *irqBank) {
	best := uint32(spuriousID)
	var bestBank *irqBank
	bestPri := 256

	if rd, ok := m.byCore[core]; ok {
		for id := uint32(0); id < 32; id++ {
			if rd.deliverable(id) && int(rd.priority[id]) < bestPri {
				best, bestBank, bestPri = id, &rd.irqBank, int(rd.priority[id])
			}
		}
	}

	if m.dist.ctlr&ctlrEnableGrp1S != 0 {
		for id := uint32(32); id < uint32(m.lines); id++ {
			if m.dist.deliverable(id) && m.routedTo(id, core) && int(m.dist.priority[id]) < bestPri {
				best, bestBank, bestPri = id, &m.dist.irqBank, int(m.dist.priority[id])
			}
		}
	}
	return best, bestBank
}
