package gic

import (
	"log/slog"

	"github.com/tinyrange/tzgic/internal/mmio"
)

// LineState is the configuration of one enabled interrupt.
type LineState struct {
	ID       uint32
	Group    Group
	Priority uint8
	Pending  bool
	Active   bool

	// Routing is GICD_IROUTER; zero for banked interrupts.
	Routing uint64
}

// State is a snapshot of the controller as seen from one core.
type State struct {
	Core              int
	DistributorCtlr   uint32
	RedistributorCtlr uint32
	Enabled           []LineState
}

// Report reads the state of every implemented interrupt as seen from core
// and lists the enabled ones. progress, if non-nil, is called after each
// identifier is read. Report only reads registers and may run on any core.
func (t Topology) Report(bus mmio.Bus, core int, progress func(id uint32)) State {
	dist := distributorBank(bus, t.DistributorBase)
	redist := t.redistributor(bus, core)

	st := State{
		Core:              core,
		DistributorCtlr:   dist.readCtlr(),
		RedistributorCtlr: redist.readCtlr(),
	}

	for id := uint32(0); id < t.Lines; id++ {
		b := dist
		if IsPerCore(id) {
			b = redist
		}
		if b.enabled(id) {
			line := LineState{
				ID:       id,
				Group:    decodeGroup(b.groupMod(id), b.group(id)),
				Priority: b.priority(id),
				Pending:  b.pending(id),
				Active:   b.active(id),
			}
			if !IsPerCore(id) {
				line.Routing = gicdReadRouter(bus, t.DistributorBase, id)
			}
			st.Enabled = append(st.Enabled, line)
		}
		if progress != nil {
			progress(id)
		}
	}
	return st
}

// Report snapshots the controller from the executing core.
func (c *Controller) Report() State {
	return c.topo.Report(c.bus, c.cpu.CorePos(), nil)
}

// LogState writes the executing core's view of the controller to the debug log.
func (c *Controller) LogState() {
	st := c.Report()
	slog.Debug("gic: state", "core", st.Core, "GICR_CTLR", st.RedistributorCtlr, "GICD_CTLR", st.DistributorCtlr)
	for _, line := range st.Enabled {
		slog.Debug("gic: enabled interrupt", "id", line.ID, "group", line.Group.String(), "priority", line.Priority)
	}
}
