package gic

import (
	"log/slog"

	"github.com/tinyrange/tzgic/internal/mmio"
)

// New checks that firmware has prepared the controller and discovers it.
// Affinity routing for the secure state must already be enabled in
// GICD_CTLR and the system-register interface must be on for this core;
// anything else is an initialization-order bug and halts.
func New(bus mmio.Bus, cpu CPUInterface, cfg Config) *Controller {
	if distributorBank(bus, cfg.DistributorBase).readCtlr()&CtlrAREs == 0 {
		fatal("init", "GICD_CTLR.ARE_S is not set")
	}
	if cpu.SRE()&sreEnable == 0 {
		fatal("init", "ICC_SRE_EL1.SRE is not set on core %d", cpu.CorePos())
	}

	c := &Controller{
		bus:  bus,
		cpu:  cpu,
		topo: Discover(bus, cfg),
	}
	slog.Debug("gic: initialized",
		"distributor", c.topo.DistributorBase,
		"redistributors", len(c.topo.Redistributors),
		"lines", c.topo.Lines,
	)
	return c
}

// Discover walks the redistributor frames and reads the implemented line
// count. It only reads registers.
func Discover(bus mmio.Bus, cfg Config) Topology {
	if cfg.Cores <= 0 {
		fatal("discover", "invalid core count %d", cfg.Cores)
	}

	t := Topology{
		DistributorBase: cfg.DistributorBase,
		Redistributors:  make([]uint64, cfg.Cores),
		Present:         make([]bool, cfg.Cores),
	}

	frame := cfg.RedistributorBase
	for {
		typer := gicrReadTyper(bus, frame)
		proc := int((typer >> typerProcNumShift) & typerProcNumMask)
		if proc >= cfg.Cores {
			fatal("discover", "redistributor at %#x reports processor %d, only %d cores supported",
				frame, proc, cfg.Cores)
		}
		t.Redistributors[proc] = frame
		t.Present[proc] = true
		if typer&typerLast != 0 {
			break
		}
		frame += RedistributorStride
	}

	t.Lines = probeLines(bus, cfg.DistributorBase)
	return t
}

func probeLines(bus mmio.Bus, distBase uint64) uint32 {
	n := gicdReadTyper(bus, distBase) & typerITLinesNoMask
	return (n + 1) << 5
}
