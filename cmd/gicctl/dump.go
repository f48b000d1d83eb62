package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/tinyrange/tzgic/internal/gic"
	"github.com/tinyrange/tzgic/internal/gicsim"
	"github.com/tinyrange/tzgic/internal/itr"
	"github.com/tinyrange/tzgic/internal/mmio"
	"github.com/tinyrange/tzgic/internal/platform"
	"golang.org/x/term"
)

// simLines is the ITLinesNumber of the model used by dump.
const simLines = 7

func dump(w io.Writer, desc platform.Description, opts options) error {
	var (
		bus  mmio.Bus
		topo gic.Topology
	)

	if opts.sim {
		m, ctrl, err := newSimController(desc)
		if err != nil {
			return err
		}
		m.Switch(opts.core)
		if err := guard(func() { enableForDump(ctrl, opts.enable) }); err != nil {
			return err
		}
		bus, topo = mmio.NewMux(m), ctrl.Topology()
	} else {
		mux, closeAll, err := mapDevmem(opts.devmem, desc)
		if err != nil {
			return err
		}
		defer closeAll()
		bus = mux
		if err := guard(func() { topo = gic.Discover(bus, desc.GIC()) }); err != nil {
			return err
		}
	}

	var st gic.State
	err := guard(func() {
		progress, finish := newProgress(topo.Lines)
		defer finish()
		st = topo.Report(bus, opts.core, progress)
	})
	if err != nil {
		return err
	}
	return printState(w, st)
}

func newSimController(desc platform.Description) (*gicsim.Model, *gic.Controller, error) {
	m := gicsim.New(gicsim.Config{
		Cores:             desc.Cores,
		ITLinesNumber:     simLines,
		DistributorBase:   desc.DistributorBase,
		RedistributorBase: desc.RedistributorBase,
	})
	var ctrl *gic.Controller
	if err := guard(func() { ctrl = gic.New(mmio.NewMux(m), m, desc.GIC()) }); err != nil {
		return nil, nil, err
	}
	return m, ctrl, nil
}

// enableForDump registers a no-op handler for each id so the model has
// something to report.
func enableForDump(ctrl *gic.Controller, ids []uint32) {
	fw := itr.New(ctrl)
	for _, id := range ids {
		if err := fw.Register(&itr.Handler{ID: id, Fn: func(uint32) itr.Result { return itr.Handled }}); err != nil {
			slog.Warn("gicctl: skipping interrupt", "id", id, "error", err)
			continue
		}
		fw.Enable(id)
	}
}

func mapDevmem(path string, desc platform.Description) (*mmio.Mux, func(), error) {
	distSize := desc.DistributorSize
	if distSize == 0 {
		distSize = 0x10000
	}
	redistSize := desc.RedistributorSize
	if redistSize == 0 {
		redistSize = uint64(desc.Cores) * gic.RedistributorStride
	}

	dist, err := mmio.OpenWindow(path, desc.DistributorBase, distSize)
	if err != nil {
		return nil, nil, err
	}
	redist, err := mmio.OpenWindow(path, desc.RedistributorBase, redistSize)
	if err != nil {
		dist.Close()
		return nil, nil, err
	}
	return mmio.NewMux(dist, redist), func() {
		redist.Close()
		dist.Close()
	}, nil
}

// newProgress returns a progress callback that draws a bar on an
// interactive terminal and does nothing otherwise.
func newProgress(lines uint32) (func(uint32), func()) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(int(lines),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("reading interrupt state"),
		progressbar.OptionClearOnFinish(),
	)
	return func(uint32) { bar.Add(1) }, func() { bar.Finish() }
}

var (
	bold   = ansi.Style{}.Bold()
	header = []string{"ID", "GROUP", "PRIO", "PENDING", "ACTIVE", "ROUTE"}
)

func printState(w io.Writer, st gic.State) error {
	fmt.Fprintf(w, "core %d  GICD_CTLR=%#08x  GICR_CTLR=%#08x\n", st.Core, st.DistributorCtlr, st.RedistributorCtlr)
	if len(st.Enabled) == 0 {
		_, err := fmt.Fprintln(w, "no interrupts enabled")
		return err
	}

	rows := [][]string{header}
	for _, line := range st.Enabled {
		route := "banked"
		if !gic.IsPerCore(line.ID) {
			route = fmt.Sprintf("%#x", line.Routing)
		}
		rows = append(rows, []string{
			bold.Styled(fmt.Sprint(line.ID)),
			line.Group.String(),
			fmt.Sprintf("%#04x", line.Priority),
			yesNo(line.Pending),
			yesNo(line.Active),
			route,
		})
	}

	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], ansi.StringWidth(cell))
		}
	}
	for _, row := range rows {
		var b strings.Builder
		for i, cell := range row {
			b.WriteString(cell)
			if i < len(row)-1 {
				b.WriteString(strings.Repeat(" ", widths[i]-ansi.StringWidth(cell)+2))
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
