package gicsim

// Assert models a peripheral raising id. Banked ids are raised on the
// executing core.
func (m *Model) Assert(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.bankFor(m.current, id); b != nil {
		setBit(b.pending, id)
	}
}

// AssertOn raises banked id on core.
func (m *Model) AssertOn(core int, id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b := m.bankFor(core, id); b != nil {
		setBit(b.pending, id)
	}
}

// Active reports whether id is active on core.
func (m *Model) Active(core int, id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bankFor(core, id)
	return b != nil && bit(b.active, id)
}

// Pending reports whether id is pending on core.
func (m *Model) Pending(core int, id uint32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.bankFor(core, id)
	return b != nil && bit(b.pending, id)
}

// Acks returns every acknowledge so far.
func (m *Model) Acks() []Ack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Ack(nil), m.acks...)
}

// EOIs returns every end-of-interrupt write so far.
func (m *Model) EOIs() []Ack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Ack(nil), m.eois...)
}

// SGIWrites returns every SGI generation register write so far.
func (m *Model) SGIWrites() []SGIWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SGIWrite(nil), m.sgis...)
}

// RouterWrites returns every GICD_IROUTER write so far.
func (m *Model) RouterWrites() []RouterWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RouterWrite(nil), m.routes...)
}

// ISBs returns the number of barriers executed.
func (m *Model) ISBs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isbs
}

// RWPPolls returns how many control register reads observed RWP set.
func (m *Model) RWPPolls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rwpPolls
}

// WritePending reports whether RWP is currently set in the distributor or
// in any redistributor.
func (m *Model) WritePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dist.rwp > 0 {
		return true
	}
	for _, rd := range m.redists {
		if rd.rwp > 0 {
			return true
		}
	}
	return false
}
