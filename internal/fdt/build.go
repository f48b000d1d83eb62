package fdt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

const (
	headerSize  = 0x28
	version     = 17
	lastCompVer = 16
	magic       = 0xd00dfeed

	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

// Build serializes the provided node tree into an FDT blob. Properties are
// emitted in name order so identical trees produce identical blobs.
func Build(root Node) ([]byte, error) {
	b := &builder{stringsOff: make(map[string]uint32)}
	if err := b.emitNode(root); err != nil {
		return nil, err
	}
	return b.finish(), nil
}

type builder struct {
	structBuf  bytes.Buffer
	strings    bytes.Buffer
	stringsOff map[string]uint32
}

func (b *builder) emitNode(n Node) error {
	b.writeToken(tokenBeginNode)
	b.structBuf.WriteString(n.Name)
	b.structBuf.WriteByte(0)
	b.pad()

	keys := make([]string, 0, len(n.Properties))
	for name := range n.Properties {
		keys = append(keys, name)
	}
	sort.Strings(keys)
	for _, name := range keys {
		prop := n.Properties[name]
		switch prop.DefinedCount() {
		case 0:
			return fmt.Errorf("fdt: property %s/%s has no values", n.Name, name)
		case 1:
		default:
			return fmt.Errorf("fdt: property %s/%s has multiple value kinds", n.Name, name)
		}
		b.property(name, prop.Encode())
	}

	for _, child := range n.Children {
		if err := b.emitNode(child); err != nil {
			return err
		}
	}

	b.writeToken(tokenEndNode)
	return nil
}

func (b *builder) property(name string, value []byte) {
	b.writeToken(tokenProp)
	b.writeToken(uint32(len(value)))
	b.writeToken(b.stringOffset(name))
	b.structBuf.Write(value)
	b.pad()
}

func (b *builder) finish() []byte {
	b.writeToken(tokenEnd)

	structBytes := b.structBuf.Bytes()
	stringsBytes := b.strings.Bytes()

	// One empty reservation entry terminates the memory reserve map.
	offMemReserve := headerSize
	offStruct := offMemReserve + 16
	offStrings := offStruct + len(structBytes)
	// The strings block is padded so the blob ends on a word boundary.
	totalSize := (offStrings + len(stringsBytes) + 3) &^ 3

	blob := make([]byte, totalSize)
	for i, v := range []uint32{
		magic,
		uint32(totalSize),
		uint32(offStruct),
		uint32(offStrings),
		uint32(offMemReserve),
		version,
		lastCompVer,
		0,
		uint32(len(stringsBytes)),
		uint32(len(structBytes)),
	} {
		binary.BigEndian.PutUint32(blob[i*4:], v)
	}
	copy(blob[offStruct:], structBytes)
	copy(blob[offStrings:], stringsBytes)

	return blob
}

func (b *builder) stringOffset(name string) uint32 {
	if off, ok := b.stringsOff[name]; ok {
		return off
	}
	off := uint32(b.strings.Len())
	b.strings.WriteString(name)
	b.strings.WriteByte(0)
	b.stringsOff[name] = off
	return off
}

func (b *builder) writeToken(token uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], token)
	b.structBuf.Write(tmp[:])
}

func (b *builder) pad() {
	for b.structBuf.Len()%4 != 0 {
		b.structBuf.WriteByte(0)
	}
}
