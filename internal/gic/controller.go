// Package gic drives a GICv3 interrupt controller from the secure world:
// it configures interrupts as Secure Group 1, routes shared interrupts,
// raises SGIs and runs the acknowledge/handle/complete cycle for
// interrupts taken on the executing core.
//
// The driver does no locking. Configuration calls that touch the shared
// distributor must be serialized by the caller; redistributor state is only
// ever touched by the core that owns it.
package gic

import "github.com/tinyrange/tzgic/internal/mmio"

// Config is the boot-time description of the controller.
type Config struct {
	DistributorBase uint64

	// RedistributorBase is the address of the first redistributor frame.
	RedistributorBase uint64

	// Cores is the number of cores the platform supports.
	Cores int
}

// Topology is what discovery learns about the controller.
type Topology struct {
	DistributorBase uint64

	// Redistributors holds the frame base of each core, indexed by the
	// processor number reported by the frame. Present marks the cores that
	// have a frame; a frame may sit at address zero.
	Redistributors []uint64
	Present        []bool

	// Lines is the number of implemented interrupt identifiers.
	Lines uint32
}

// Controller is the live driver instance. It is created once at boot and
// mutated only through its operations.
type Controller struct {
	bus  mmio.Bus
	cpu  CPUInterface
	topo Topology
}

// Lines returns the number of implemented interrupt identifiers.
func (c *Controller) Lines() uint32 { return c.topo.Lines }

// Topology returns a copy of the discovered topology.
func (c *Controller) Topology() Topology {
	t := c.topo
	t.Redistributors = append([]uint64(nil), c.topo.Redistributors...)
	t.Present = append([]bool(nil), c.topo.Present...)
	return t
}

func (c *Controller) checkID(op string, id uint32) {
	if id >= c.topo.Lines {
		fatal(op, "interrupt %d out of range (lines=%d)", id, c.topo.Lines)
	}
}

func (c *Controller) distributor() bank {
	return distributorBank(c.bus, c.topo.DistributorBase)
}

// redistributor returns the bank of the executing core.
func (c *Controller) redistributor() bank {
	return c.topo.redistributor(c.bus, c.cpu.CorePos())
}

// bankFor selects the bank holding the state of id for the executing core.
func (c *Controller) bankFor(id uint32) bank {
	if IsPerCore(id) {
		return c.redistributor()
	}
	return c.distributor()
}

func (t Topology) redistributor(bus mmio.Bus, core int) bank {
	if core < 0 || core >= len(t.Present) || !t.Present[core] {
		fatal("redistributor", "no redistributor frame for core %d", core)
	}
	return redistributorBank(bus, t.Redistributors[core])
}
