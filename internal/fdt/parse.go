package fdt

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrBadMagic is returned by Parse when the blob does not start with the
// FDT magic number.
var ErrBadMagic = errors.New("fdt: bad magic")

// Parse decodes an FDT blob into a node tree. Property values are returned
// as raw Bytes, or Flag for empty properties.
func Parse(blob []byte) (Node, error) {
	if len(blob) < headerSize {
		return Node{}, fmt.Errorf("fdt: blob too short (%d bytes)", len(blob))
	}
	hdr := func(i int) uint32 { return binary.BigEndian.Uint32(blob[i*4:]) }
	if hdr(0) != magic {
		return Node{}, ErrBadMagic
	}
	total := int(hdr(1))
	offStruct := int(hdr(2))
	offStrings := int(hdr(3))
	if hdr(6) > version {
		return Node{}, fmt.Errorf("fdt: unsupported version %d", hdr(6))
	}
	sizeStrings := int(hdr(8))
	sizeStruct := int(hdr(9))
	if total > len(blob) || offStruct+sizeStruct > total || offStrings+sizeStrings > total {
		return Node{}, fmt.Errorf("fdt: header offsets exceed blob size %d", len(blob))
	}

	p := &parser{
		data:    blob[offStruct : offStruct+sizeStruct],
		strings: blob[offStrings : offStrings+sizeStrings],
	}
	p.skipNops()
	tok, err := p.token()
	if err != nil {
		return Node{}, err
	}
	if tok != tokenBeginNode {
		return Node{}, fmt.Errorf("fdt: expected root node, got token %#x", tok)
	}
	root, err := p.node()
	if err != nil {
		return Node{}, err
	}
	p.skipNops()
	if tok, err := p.token(); err != nil || tok != tokenEnd {
		return Node{}, fmt.Errorf("fdt: missing end token after root node")
	}
	return root, nil
}

type parser struct {
	data    []byte
	strings []byte
	off     int
}

func (p *parser) token() (uint32, error) {
	if p.off+4 > len(p.data) {
		return 0, fmt.Errorf("fdt: truncated structure block at %#x", p.off)
	}
	v := binary.BigEndian.Uint32(p.data[p.off:])
	p.off += 4
	return v, nil
}

func (p *parser) skipNops() {
	for p.off+4 <= len(p.data) && binary.BigEndian.Uint32(p.data[p.off:]) == tokenNop {
		p.off += 4
	}
}

func (p *parser) align() {
	p.off = (p.off + 3) &^ 3
}

// node parses a node body; the begin token has already been consumed.
func (p *parser) node() (Node, error) {
	end := bytes.IndexByte(p.data[p.off:], 0)
	if end < 0 {
		return Node{}, fmt.Errorf("fdt: unterminated node name at %#x", p.off)
	}
	n := Node{Name: string(p.data[p.off : p.off+end])}
	p.off += end + 1
	p.align()

	for {
		tok, err := p.token()
		if err != nil {
			return Node{}, err
		}
		switch tok {
		case tokenNop:
		case tokenProp:
			name, prop, err := p.property()
			if err != nil {
				return Node{}, fmt.Errorf("fdt: node %q: %w", n.Name, err)
			}
			if n.Properties == nil {
				n.Properties = make(map[string]Property)
			}
			n.Properties[name] = prop
		case tokenBeginNode:
			child, err := p.node()
			if err != nil {
				return Node{}, err
			}
			n.Children = append(n.Children, child)
		case tokenEndNode:
			return n, nil
		default:
			return Node{}, fmt.Errorf("fdt: unexpected token %#x in node %q", tok, n.Name)
		}
	}
}

func (p *parser) property() (string, Property, error) {
	length, err := p.token()
	if err != nil {
		return "", Property{}, err
	}
	nameOff, err := p.token()
	if err != nil {
		return "", Property{}, err
	}
	if int(nameOff) >= len(p.strings) {
		return "", Property{}, fmt.Errorf("property name offset %#x out of range", nameOff)
	}
	nameEnd := bytes.IndexByte(p.strings[nameOff:], 0)
	if nameEnd < 0 {
		return "", Property{}, fmt.Errorf("unterminated property name at %#x", nameOff)
	}
	name := string(p.strings[nameOff : int(nameOff)+nameEnd])

	if p.off+int(length) > len(p.data) {
		return "", Property{}, fmt.Errorf("property %q value overruns structure block", name)
	}
	var prop Property
	if length == 0 {
		prop.Flag = true
	} else {
		prop.Bytes = bytes.Clone(p.data[p.off : p.off+int(length)])
	}
	p.off += int(length)
	p.align()
	return name, prop, nil
}
