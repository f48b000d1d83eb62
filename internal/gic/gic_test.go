package gic

import (
	"testing"

	"github.com/tinyrange/tzgic/internal/gicsim"
	"github.com/tinyrange/tzgic/internal/mmio"
)

const (
	testDistBase   = 0x2f000000
	testRedistBase = 0x2f100000
)

func newTestModel(cfg gicsim.Config) *gicsim.Model {
	if cfg.Cores == 0 {
		cfg.Cores = 2
	}
	if cfg.ITLinesNumber == 0 {
		cfg.ITLinesNumber = 2
	}
	cfg.DistributorBase = testDistBase
	cfg.RedistributorBase = testRedistBase
	return gicsim.New(cfg)
}

func newTestController(t *testing.T, cfg gicsim.Config) (*Controller, *gicsim.Model) {
	t.Helper()
	m := newTestModel(cfg)
	c := New(mmio.NewMux(m), m, Config{
		DistributorBase:   testDistBase,
		RedistributorBase: testRedistBase,
		Cores:             4,
	})
	return c, m
}

func mustHalt(t *testing.T, op string, fn func()) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		v, ok := r.(*ContractViolation)
		if !ok {
			t.Fatalf("recovered %v (%T), want *ContractViolation", r, r)
		}
		if v.Op != op {
			t.Fatalf("violation op=%q, want %q (%v)", v.Op, op, v)
		}
	}()
	fn()
}
