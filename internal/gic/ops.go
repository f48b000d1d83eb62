package gic

import (
	"log/slog"
	"math/bits"
)

// Add configures id as a Secure Group 1 interrupt at the highest secure
// priority. Shared interrupts are routed to the primary core and the
// distributor's Secure Group 1 enable is turned on if it was off. The
// interrupt is left disabled. flags is accepted for the operation table and
// ignored.
func (c *Controller) Add(id uint32, flags uint32) {
	c.checkID("add", id)

	// Configuration must happen on a disabled line.
	c.disable(id)

	b := c.bankFor(id)
	b.clearGroup(id)
	b.setGroupMod(id)
	b.setPriority(id, HighestSecurePriority)

	if IsPerCore(id) {
		return
	}

	gicdWriteRouter(c.bus, c.topo.DistributorBase, id, RouterValue(0, 0, 0, 0, false))

	if c.distributor().readCtlr()&CtlrEnableGrp1S == 0 {
		gicdSetCtlr(c.bus, c.topo.DistributorBase, CtlrEnableGrp1S, true)
	}
}

// Enable sets the enable bit of id.
func (c *Controller) Enable(id uint32) {
	c.checkID("enable", id)
	c.bankFor(id).setEnable(id)
}

// Disable clears the enable bit of id and waits until the controller
// reports the write as complete.
func (c *Controller) Disable(id uint32) {
	c.checkID("disable", id)
	c.disable(id)
}

func (c *Controller) disable(id uint32) {
	b := c.bankFor(id)
	b.clearEnable(id)
	b.waitForPendingWrite()
}

// RaisePending marks id pending from software.
func (c *Controller) RaisePending(id uint32) {
	c.checkID("raise_pending", id)
	c.bankFor(id).setPending(id)
}

// ClearPending removes a pending state from id.
func (c *Controller) ClearPending(id uint32) {
	c.checkID("clear_pending", id)
	c.bankFor(id).clearPending(id)
}

// RaiseSGI generates SGI id on the cores in cpuMask. Ids below
// MinSecureSGIID are raised as Non-secure Group 1, the others as Secure
// Group 1.
func (c *Controller) RaiseSGI(id uint32, cpuMask uint8) {
	c.checkID("raise_sgi", id)
	if id >= NumSGI {
		fatal("raise_sgi", "interrupt %d is not an SGI", id)
	}

	v := SGIValue(0, 0, 0, id, uint16(cpuMask))
	if id < MinSecureSGIID {
		slog.Debug("gic: raise non-secure SGI", "core", c.cpu.CorePos(), "ICC_ASGI1R_EL1", v)
		c.cpu.ASGI1R(v)
		return
	}
	slog.Debug("gic: raise secure SGI", "core", c.cpu.CorePos(), "ICC_SGI1R_EL1", v)
	c.cpu.SGI1R(v)
}

// SetAffinity routes shared interrupt id to the cores in cpuMask. A single
// core gets exact routing; several cores select 1-of-N delivery, where the
// controller picks any participating core. The enabled state of id is the
// same before and after the call.
//
// cpuMask is not filtered against online cores: routing to an offline core
// is accepted and the interrupt waits until that core comes back.
func (c *Controller) SetAffinity(id uint32, cpuMask uint8) {
	c.checkID("set_affinity", id)
	if IsPerCore(id) {
		fatal("set_affinity", "interrupt %d is banked per core", id)
	}
	if cpuMask == 0 {
		fatal("set_affinity", "empty cpu mask for interrupt %d", id)
	}

	d := c.distributor()
	enabled := d.enabled(id)
	if enabled {
		// Never change routing of a live interrupt.
		d.clearEnable(id)
		d.waitForPendingWrite()
	}

	var route uint64
	if bits.OnesCount8(cpuMask) > 1 {
		route = RouterValue(0, 0, 0, 0, true)
	} else {
		route = RouterValue(0, 0, 0, uint8(bits.TrailingZeros8(cpuMask)), false)
	}
	gicdWriteRouter(c.bus, c.topo.DistributorBase, id, route)

	if enabled {
		d.setEnable(id)
	} else {
		d.waitForPendingWrite()
	}
}

// IsEnabled reports whether id is enabled, in the executing core's
// redistributor for banked interrupts.
func (c *Controller) IsEnabled(id uint32) bool {
	c.checkID("is_enabled", id)
	return c.bankFor(id).enabled(id)
}

// IsPending reports whether id is pending.
func (c *Controller) IsPending(id uint32) bool {
	c.checkID("is_pending", id)
	return c.bankFor(id).pending(id)
}

// Group reads back the security group of id.
func (c *Controller) Group(id uint32) Group {
	c.checkID("group", id)
	b := c.bankFor(id)
	return decodeGroup(b.groupMod(id), b.group(id))
}

// Priority reads back the priority of id.
func (c *Controller) Priority(id uint32) uint8 {
	c.checkID("priority", id)
	return c.bankFor(id).priority(id)
}

// Routing reads GICD_IROUTER for shared interrupt id.
func (c *Controller) Routing(id uint32) uint64 {
	c.checkID("routing", id)
	if IsPerCore(id) {
		fatal("routing", "interrupt %d is banked per core", id)
	}
	return gicdReadRouter(c.bus, c.topo.DistributorBase, id)
}

// DistributorControl reads GICD_CTLR.
func (c *Controller) DistributorControl() uint32 {
	return c.distributor().readCtlr()
}
