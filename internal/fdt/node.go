// Package fdt builds and parses Flattened Device Tree blobs.
package fdt

import (
	"encoding/binary"
	"strings"
)

// Property is a single device-tree property. Exactly one of the typed
// fields should be populated; Parse always fills Bytes (or Flag for empty
// properties) since the blob carries no type information.
type Property struct {
	Strings []string
	U32     []uint32
	U64     []uint64
	Bytes   []byte
	Flag    bool
}

// Kind returns the name of the populated field or an empty string if none are set.
func (p Property) Kind() string {
	switch {
	case len(p.Strings) > 0:
		return "strings"
	case len(p.U32) > 0:
		return "u32"
	case len(p.U64) > 0:
		return "u64"
	case len(p.Bytes) > 0:
		return "bytes"
	case p.Flag:
		return "flag"
	default:
		return ""
	}
}

// DefinedCount reports how many distinct fields on the property are populated.
func (p Property) DefinedCount() int {
	count := 0
	for _, set := range []bool{len(p.Strings) > 0, len(p.U32) > 0, len(p.U64) > 0, len(p.Bytes) > 0, p.Flag} {
		if set {
			count++
		}
	}
	return count
}

// Encode returns the property value as it appears in a blob.
func (p Property) Encode() []byte {
	var data []byte
	switch p.Kind() {
	case "strings":
		for _, v := range p.Strings {
			data = append(data, v...)
			data = append(data, 0)
		}
	case "u32":
		for _, v := range p.U32 {
			data = binary.BigEndian.AppendUint32(data, v)
		}
	case "u64":
		for _, v := range p.U64 {
			data = binary.BigEndian.AppendUint64(data, v)
		}
	case "bytes":
		data = append(data, p.Bytes...)
	}
	return data
}

// Cells decodes the value as big-endian 32-bit cells.
func (p Property) Cells() []uint32 {
	data := p.Encode()
	cells := make([]uint32, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		cells = append(cells, binary.BigEndian.Uint32(data[i:]))
	}
	return cells
}

// StringList decodes the value as a list of NUL-terminated strings.
func (p Property) StringList() []string {
	if len(p.Strings) > 0 {
		return p.Strings
	}
	s := strings.TrimSuffix(string(p.Encode()), "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}

// Node is one device-tree node with its properties and children.
type Node struct {
	Name       string
	Properties map[string]Property
	Children   []Node
}

// Child returns the direct child called name.
func (n Node) Child(name string) (Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Node{}, false
}

// Find resolves a slash-separated path such as "/cpus/cpu@0" from n.
func (n Node) Find(path string) (Node, bool) {
	cur := n
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		next, ok := cur.Child(part)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Compatible reports whether the node lists c in its compatible property.
func (n Node) Compatible(c string) bool {
	for _, v := range n.Properties["compatible"].StringList() {
		if v == c {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth first with their parent. It
// stops when fn returns false.
func (n Node) Walk(fn func(parent, node Node) bool) {
	n.walk(Node{}, fn)
}

func (n Node) walk(parent Node, fn func(parent, node Node) bool) bool {
	if !fn(parent, n) {
		return false
	}
	for _, c := range n.Children {
		if !c.walk(n, fn) {
			return false
		}
	}
	return true
}

// U64Cells decodes the value as pairs of cells forming 64-bit numbers.
func (p Property) U64Cells() []uint64 {
	if len(p.U64) > 0 {
		return p.U64
	}
	cells := p.Cells()
	out := make([]uint64, 0, len(cells)/2)
	for i := 0; i+1 < len(cells); i += 2 {
		out = append(out, uint64(cells[i])<<32|uint64(cells[i+1]))
	}
	return out
}
