package platform

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyrange/tzgic/internal/fdt"
)

const gicCompatible = "arm,gic-v3"

// FromDeviceTree extracts the description from a flattened device tree.
// The controller node must carry two (address, size) reg pairs using two
// address and two size cells; cores are counted from /cpus.
func FromDeviceTree(blob []byte) (Description, error) {
	root, err := fdt.Parse(blob)
	if err != nil {
		return Description{}, fmt.Errorf("parse device tree: %w", err)
	}

	var (
		gicNode fdt.Node
		found   bool
	)
	root.Walk(func(_, n fdt.Node) bool {
		if n.Compatible(gicCompatible) {
			gicNode, found = n, true
			return false
		}
		return true
	})
	if !found {
		return Description{}, fmt.Errorf("device tree has no %q node", gicCompatible)
	}

	reg := gicNode.Properties["reg"].U64Cells()
	if len(reg) < 4 {
		return Description{}, fmt.Errorf("%s: reg has %d cells, want distributor and redistributor pairs", gicNode.Name, len(reg))
	}
	if len(reg) > 4 {
		slog.Warn("platform: ignoring extra GIC reg entries", "node", gicNode.Name, "entries", len(reg)/2)
	}

	d := Description{
		DistributorBase:   reg[0],
		DistributorSize:   reg[1],
		RedistributorBase: reg[2],
		RedistributorSize: reg[3],
	}
	if cpus, ok := root.Child("cpus"); ok {
		for _, c := range cpus.Children {
			if strings.HasPrefix(c.Name, "cpu@") {
				d.Cores++
			}
		}
	}
	if err := d.Validate(); err != nil {
		return Description{}, err
	}
	return d, nil
}

// DeviceTree returns a minimal tree describing the cores and the controller.
func (d Description) DeviceTree() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	cpus := fdt.Node{
		Name: "cpus",
		Properties: map[string]fdt.Property{
			"#address-cells": {U32: []uint32{1}},
			"#size-cells":    {U32: []uint32{0}},
		},
	}
	for i := 0; i < d.Cores; i++ {
		cpus.Children = append(cpus.Children, fdt.Node{
			Name: fmt.Sprintf("cpu@%x", i),
			Properties: map[string]fdt.Property{
				"device_type": {Strings: []string{"cpu"}},
				"compatible":  {Strings: []string{"arm,armv8"}},
				"reg":         {U32: []uint32{uint32(i)}},
			},
		})
	}

	root := fdt.Node{
		Name: "",
		Properties: map[string]fdt.Property{
			"#address-cells":   {U32: []uint32{2}},
			"#size-cells":      {U32: []uint32{2}},
			"interrupt-parent": {U32: []uint32{1}},
		},
		Children: []fdt.Node{
			cpus,
			{
				Name: fmt.Sprintf("interrupt-controller@%x", d.DistributorBase),
				Properties: map[string]fdt.Property{
					"compatible":           {Strings: []string{gicCompatible}},
					"#interrupt-cells":     {U32: []uint32{3}},
					"interrupt-controller": {Flag: true},
					"phandle":              {U32: []uint32{1}},
					"reg": {U64: []uint64{
						d.DistributorBase, d.DistributorSize,
						d.RedistributorBase, d.RedistributorSize,
					}},
				},
			},
		},
	}
	return fdt.Build(root)
}
