// Package platform holds the boot-time description of the interrupt
// controller: where its register frames live and how many cores it serves.
package platform

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/tinyrange/tzgic/internal/gic"
	"gopkg.in/yaml.v3"
)

// maxConfigSize bounds how much of a description file is read.
const maxConfigSize = 64 * 1024

// Description is the platform layout consumed by the driver at boot.
type Description struct {
	DistributorBase   uint64 `yaml:"distributor_base"`
	DistributorSize   uint64 `yaml:"distributor_size"`
	RedistributorBase uint64 `yaml:"redistributor_base"`
	// RedistributorSize covers every redistributor frame.
	RedistributorSize uint64 `yaml:"redistributor_size"`
	Cores             int    `yaml:"cores"`
}

// Default is the layout of the Arm FVP base platform.
var Default = Description{
	DistributorBase:   0x2f000000,
	DistributorSize:   0x10000,
	RedistributorBase: 0x2f100000,
	RedistributorSize: 0x200000,
	Cores:             8,
}

// Load reads a YAML description from path.
func Load(path string) (Description, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Description{}, fmt.Errorf("stat platform description: %w", err)
	}

	// World-writable descriptions could point the driver at arbitrary memory.
	if runtime.GOOS != "windows" && info.Mode().Perm()&0002 != 0 {
		slog.Error("platform: description is world-writable, refusing to load", "path", path, "mode", info.Mode())
		return Description{}, fmt.Errorf("platform description %s is world-writable", path)
	}
	if info.Size() > maxConfigSize {
		return Description{}, fmt.Errorf("platform description %s too large (%d bytes)", path, info.Size())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Description{}, fmt.Errorf("read platform description: %w", err)
	}
	d, err := Parse(data)
	if err != nil {
		return Description{}, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("platform: loaded description", "path", path, "cores", d.Cores)
	return d, nil
}

// Parse decodes and validates a YAML description. Unknown keys are errors.
func Parse(data []byte) (Description, error) {
	var d Description
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Description{}, fmt.Errorf("parse platform description: %w", err)
	}
	if err := d.Validate(); err != nil {
		return Description{}, err
	}
	return d, nil
}

// Marshal encodes the description as YAML.
func (d Description) Marshal() ([]byte, error) {
	return yaml.Marshal(d)
}

// Validate checks that the description can be handed to the driver.
func (d Description) Validate() error {
	var errs []error
	if d.Cores <= 0 {
		errs = append(errs, fmt.Errorf("cores must be positive, got %d", d.Cores))
	}
	if d.DistributorBase == 0 {
		errs = append(errs, errors.New("distributor_base is required"))
	}
	// Zero means the key was left out; the driver itself accepts a frame at 0.
	if d.RedistributorBase == 0 {
		errs = append(errs, errors.New("redistributor_base is required"))
	}
	if d.RedistributorBase%gic.RedistributorStride != 0 {
		errs = append(errs, fmt.Errorf("redistributor_base %#x is not frame aligned", d.RedistributorBase))
	}
	if d.RedistributorSize != 0 && d.Cores > 0 && d.RedistributorSize < uint64(d.Cores)*gic.RedistributorStride {
		errs = append(errs, fmt.Errorf("redistributor_size %#x cannot hold %d frames", d.RedistributorSize, d.Cores))
	}
	if d.DistributorSize != 0 && d.RedistributorSize != 0 && overlaps(
		d.DistributorBase, d.DistributorSize, d.RedistributorBase, d.RedistributorSize) {
		errs = append(errs, errors.New("distributor and redistributor regions overlap"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid platform description: %w", errors.Join(errs...))
	}
	return nil
}

func overlaps(a, asize, b, bsize uint64) bool {
	return a < b+bsize && b < a+asize
}

// GIC returns the driver configuration.
func (d Description) GIC() gic.Config {
	return gic.Config{
		DistributorBase:   d.DistributorBase,
		RedistributorBase: d.RedistributorBase,
		Cores:             d.Cores,
	}
}
