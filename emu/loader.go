package emu

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"debug80/emu/log"
	"debug80/hw/cpu"

	"github.com/marcinbor85/gohex"
)

// Segment is a contiguous block of program bytes.
type Segment struct {
	Addr uint16
	Data []byte
}

func (s Segment) End() uint16 { return s.Addr + uint16(len(s.Data)) - 1 }

// Program is a loaded program image.
type Program struct {
	Path     string
	Segments []Segment
	Entry    uint16
}

// Size returns the total number of program bytes.
func (p *Program) Size() int {
	n := 0
	for _, s := range p.Segments {
		n += len(s.Data)
	}
	return n
}

// Apply copies the program into mem, ignoring write protection.
func (p *Program) Apply(mem *cpu.Memory) {
	for _, s := range p.Segments {
		mem.Load(s.Addr, s.Data)
	}
}

func isHexFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihx", ".ihex":
		return true
	}
	return false
}

// LoadProgram reads the program at path. Intel HEX files are recognized by
// their extension, anything else is loaded as a raw binary at origin.
func LoadProgram(path string, origin uint16) (*Program, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	var p *Program
	if isHexFile(path) {
		p, err = ParseHex(bytes.NewReader(buf))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		p, err = RawProgram(buf, origin)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	p.Path = path

	log.ModEmu.InfoZ("program loaded").
		String("path", path).
		Int("segments", len(p.Segments)).
		Int("size", p.Size()).
		Hex16("entry", p.Entry).
		End()
	return p, nil
}

// ParseHex decodes an Intel HEX image. The entry point is the start address
// record if present, otherwise the lowest loaded address.
func ParseHex(r io.Reader) (*Program, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("invalid intel hex: %w", err)
	}

	p := &Program{}
	for _, seg := range mem.GetDataSegments() {
		if int(seg.Address)+len(seg.Data) > 0x10000 {
			return nil, fmt.Errorf("segment at %#x exceeds the 64K address space", seg.Address)
		}
		if len(seg.Data) == 0 {
			continue
		}
		p.Segments = append(p.Segments, Segment{Addr: uint16(seg.Address), Data: seg.Data})
	}
	if len(p.Segments) == 0 {
		return nil, fmt.Errorf("intel hex has no data")
	}

	if adr, ok := mem.GetStartAddress(); ok {
		p.Entry = uint16(adr)
	} else {
		p.Entry = p.Segments[0].Addr
		for _, s := range p.Segments[1:] {
			p.Entry = min(p.Entry, s.Addr)
		}
	}
	return p, nil
}

// RawProgram places buf at origin.
func RawProgram(buf []byte, origin uint16) (*Program, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	if int(origin)+len(buf) > 0x10000 {
		return nil, fmt.Errorf("%d bytes at %#04x exceed the 64K address space", len(buf), origin)
	}
	data := make([]byte, len(buf))
	copy(data, buf)
	return &Program{
		Segments: []Segment{{Addr: origin, Data: data}},
		Entry:    origin,
	}, nil
}
