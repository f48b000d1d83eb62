package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/tinyrange/tzgic/internal/gic"
	"github.com/tinyrange/tzgic/internal/mmio"
	"github.com/tinyrange/tzgic/internal/platform"
)

type options struct {
	config string
	dtb    string
	sim    bool
	devmem string
	core   int
	enable []uint32
	out    string
}

func run() error {
	var opts options

	flag.StringVar(&opts.config, "config", "", "platform description (YAML)")
	flag.StringVar(&opts.dtb, "dtb", "", "read the platform description from a device tree blob")
	flag.BoolVar(&opts.sim, "sim", true, "run against the software controller model")
	flag.StringVar(&opts.devmem, "devmem", "", "map controller registers from this file (e.g. /dev/mem); implies -sim=false")
	flag.IntVar(&opts.core, "core", 0, "core whose redistributor is reported")
	enable := flag.String("enable", "", "comma separated interrupt ids to configure and enable in the model before dump")
	flag.StringVar(&opts.out, "o", "", "output file for dtb (default stdout)")
	verbose := flag.Bool("v", false, "enable debug logging")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `gicctl - inspect and exercise a secure GICv3 interrupt controller

USAGE:
  gicctl [flags] <command>

COMMANDS:
  dump       Print the enabled interrupts as seen from one core
  selftest   Run the driver against the controller model and report PASS/FAIL
  dtb        Write a device tree describing the platform
  config     Print the platform description as YAML

FLAGS:
  -config FILE   Platform description in YAML (default: Arm FVP base layout)
  -dtb FILE      Read the platform description from a device tree blob
  -sim           Use the software controller model (default)
  -devmem PATH   Map registers from PATH instead of using the model (dump only)
  -core N        Core whose redistributor is reported (default 0)
  -enable LIST   Interrupt ids to configure in the model before dump, e.g. 27,42
  -o FILE        Output file for dtb
  -v             Debug logging

EXAMPLES:
  gicctl selftest
  gicctl -enable 27,42 -core 1 dump
  gicctl -dtb board.dtb config
  sudo gicctl -config board.yml -devmem /dev/mem dump
`)
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	if opts.devmem != "" {
		opts.sim = false
	}
	if *enable != "" {
		ids, err := parseIDs(*enable)
		if err != nil {
			return err
		}
		opts.enable = ids
	}

	desc, err := loadDescription(opts)
	if err != nil {
		return err
	}

	switch cmd := flag.Arg(0); cmd {
	case "dump":
		return dump(os.Stdout, desc, opts)
	case "selftest":
		return selftest(os.Stdout, desc)
	case "dtb":
		return writeDTB(desc, opts.out)
	case "config":
		data, err := desc.Marshal()
		if err != nil {
			return fmt.Errorf("encode description: %w", err)
		}
		_, err = os.Stdout.Write(data)
		return err
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func loadDescription(opts options) (platform.Description, error) {
	switch {
	case opts.config != "" && opts.dtb != "":
		return platform.Description{}, errors.New("-config and -dtb are mutually exclusive")
	case opts.config != "":
		return platform.Load(opts.config)
	case opts.dtb != "":
		blob, err := os.ReadFile(opts.dtb)
		if err != nil {
			return platform.Description{}, fmt.Errorf("read device tree: %w", err)
		}
		return platform.FromDeviceTree(blob)
	default:
		return platform.Default, nil
	}
}

func parseIDs(list string) ([]uint32, error) {
	var ids []uint32
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 0, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid interrupt id %q: %w", field, err)
		}
		ids = append(ids, uint32(v))
	}
	return ids, nil
}

func writeDTB(desc platform.Description, out string) error {
	blob, err := desc.DeviceTree()
	if err != nil {
		return err
	}
	if out == "" {
		_, err = os.Stdout.Write(blob)
		return err
	}
	if err := os.WriteFile(out, blob, 0o644); err != nil {
		return fmt.Errorf("write device tree: %w", err)
	}
	slog.Info("wrote device tree", "path", out, "size", len(blob))
	return nil
}

// guard turns the driver's halting panics into errors for the CLI.
func guard(fn func()) (err error) {
	defer func() {
		switch v := recover().(type) {
		case nil:
		case *gic.ContractViolation:
			err = v
		case *mmio.BusFault:
			err = v
		default:
			panic(v)
		}
	}()
	fn()
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gicctl: %v\n", err)
		os.Exit(1)
	}
}
