package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/x/ansi"
	"github.com/tinyrange/tzgic/internal/gic"
	"github.com/tinyrange/tzgic/internal/gicsim"
	"github.com/tinyrange/tzgic/internal/itr"
	"github.com/tinyrange/tzgic/internal/mmio"
	"github.com/tinyrange/tzgic/internal/platform"
)

type testEnv struct {
	model *gicsim.Model
	bus   mmio.Bus
	ctrl  *gic.Controller
	fw    *itr.Framework
}

type check struct {
	name string
	run  func(env *testEnv) error
}

var checks = []check{
	{"shared interrupt end to end", checkSharedInterrupt},
	{"banked configuration stays per core", checkBanking},
	{"SGI security path", checkSGISecurity},
	{"affinity routing", checkAffinity},
	{"priority order", checkPriorityOrder},
	{"out of range id halts", checkOutOfRange},
	{"spurious interrupt is ignored", checkSpurious},
}

func selftest(w io.Writer, desc platform.Description) error {
	if desc.Cores < 2 {
		return fmt.Errorf("selftest needs at least 2 cores, description has %d", desc.Cores)
	}

	pass := ansi.Style{}.Bold().ForegroundColor(ansi.Green)
	fail := ansi.Style{}.Bold().ForegroundColor(ansi.Red)

	failed := 0
	for _, c := range checks {
		env, err := newTestEnv(desc)
		if err == nil {
			var checkErr error
			if err = guard(func() { checkErr = c.run(env) }); err == nil {
				err = checkErr
			}
		}
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", fail.Styled("FAIL"), c.name, err)
			continue
		}
		fmt.Fprintf(w, "%s %s\n", pass.Styled("PASS"), c.name)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(checks))
	}
	return nil
}

func newTestEnv(desc platform.Description) (*testEnv, error) {
	m, ctrl, err := newSimController(desc)
	if err != nil {
		return nil, err
	}
	return &testEnv{model: m, bus: mmio.NewMux(m), ctrl: ctrl, fw: itr.New(ctrl)}, nil
}

func checkSharedInterrupt(env *testEnv) error {
	var calls int
	if err := env.fw.Register(&itr.Handler{ID: 42, Fn: func(uint32) itr.Result {
		calls++
		return itr.Handled
	}}); err != nil {
		return err
	}
	env.fw.Enable(42)
	if g := env.ctrl.Group(42); g != gic.Group1Secure {
		return fmt.Errorf("group=%s, want G1S", g)
	}
	if env.ctrl.DistributorControl()&gic.CtlrEnableGrp1S == 0 {
		return errors.New("GICD_CTLR.EnableGrp1S not set")
	}

	env.model.Assert(42)
	if id, ok := env.ctrl.Dispatch(env.fw); !ok || id != 42 {
		return fmt.Errorf("dispatch=(%d, %v), want (42, true)", id, ok)
	}
	if calls != 1 {
		return fmt.Errorf("handler ran %d times, want 1", calls)
	}
	if n := len(env.model.EOIs()); n != 1 {
		return fmt.Errorf("%d end-of-interrupt writes, want 1", n)
	}
	if env.model.Active(0, 42) {
		return errors.New("interrupt still active after dispatch")
	}
	return nil
}

func checkBanking(env *testEnv) error {
	env.model.Switch(0)
	env.ctrl.Add(27, 0)
	env.ctrl.Enable(27)
	env.model.Switch(1)
	if env.ctrl.IsEnabled(27) {
		return errors.New("id 27 enabled on core 1 after configuring core 0")
	}
	if g := env.ctrl.Group(27); g == gic.Group1Secure {
		return errors.New("id 27 secure on core 1 after configuring core 0")
	}
	env.model.Switch(0)
	if !env.ctrl.IsEnabled(27) {
		return errors.New("id 27 not enabled on core 0")
	}
	return nil
}

func checkSGISecurity(env *testEnv) error {
	env.ctrl.RaiseSGI(3, 0b10)
	env.ctrl.RaiseSGI(9, 0b10)
	writes := env.model.SGIWrites()
	if len(writes) != 2 {
		return fmt.Errorf("%d SGI writes, want 2", len(writes))
	}
	if writes[0].Secure {
		return errors.New("SGI 3 used the secure generation register")
	}
	if !writes[1].Secure {
		return errors.New("SGI 9 used the non-secure generation register")
	}
	if want := gic.SGIValue(0, 0, 0, 9, 0b10); writes[1].Value != want {
		return fmt.Errorf("SGI1R=%#x, want %#x", writes[1].Value, want)
	}
	return nil
}

func checkAffinity(env *testEnv) error {
	env.ctrl.Add(40, 0)
	env.ctrl.Enable(40)
	env.ctrl.SetAffinity(40, 0b10)
	if r, want := env.ctrl.Routing(40), gic.RouterValue(0, 0, 0, 1, false); r != want {
		return fmt.Errorf("routing=%#x, want %#x", r, want)
	}
	env.model.Assert(40)
	if id, ok := env.ctrl.Dispatch(gic.HandlerFunc(func(uint32) {})); ok {
		return fmt.Errorf("core 0 took id %d routed to core 1", id)
	}
	env.model.Switch(1)
	if id, ok := env.ctrl.Dispatch(gic.HandlerFunc(func(uint32) {})); !ok || id != 40 {
		return fmt.Errorf("core 1 dispatch=(%d, %v), want (40, true)", id, ok)
	}

	env.ctrl.SetAffinity(40, 0b11)
	if env.ctrl.Routing(40)&gic.IrouterIRM == 0 {
		return errors.New("multi-core mask did not select 1-of-N routing")
	}
	if !env.ctrl.IsEnabled(40) {
		return errors.New("SetAffinity left an enabled line disabled")
	}
	return nil
}

func checkPriorityOrder(env *testEnv) error {
	for _, id := range []uint32{27, 40, 41} {
		env.ctrl.Add(id, 0)
		env.ctrl.Enable(id)
	}
	env.model.Assert(27)
	env.model.Assert(41)
	env.model.Assert(40)

	var order []uint32
	h := gic.HandlerFunc(func(id uint32) { order = append(order, id) })
	for i := 0; i < 4; i++ {
		env.ctrl.Dispatch(h)
	}
	if fmt.Sprint(order) != "[27 40 41]" {
		return fmt.Errorf("order=%v, want [27 40 41]", order)
	}
	return nil
}

func checkOutOfRange(env *testEnv) error {
	err := guard(func() { env.ctrl.Enable(env.ctrl.Lines()) })
	var v *gic.ContractViolation
	if !errors.As(err, &v) {
		return fmt.Errorf("enable(%d) returned %v, want a contract violation", env.ctrl.Lines(), err)
	}
	return nil
}

func checkSpurious(env *testEnv) error {
	before := len(env.model.EOIs())
	if id, ok := env.ctrl.Dispatch(gic.HandlerFunc(func(id uint32) {})); ok || id != gic.SpuriousID {
		return fmt.Errorf("dispatch=(%d, %v), want (%d, false)", id, ok, gic.SpuriousID)
	}
	if len(env.model.EOIs()) != before {
		return errors.New("end of interrupt written for a spurious read")
	}
	return nil
}
