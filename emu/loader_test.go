package emu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/cpu"
)

// hexRecord formats an Intel HEX record with its checksum.
func hexRecord(typ byte, addr uint16, data ...byte) string {
	sum := byte(len(data)) + byte(addr>>8) + byte(addr) + typ
	var sb strings.Builder
	fmt.Fprintf(&sb, ":%02X%04X%02X", len(data), addr, typ)
	for _, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
		sum += b
	}
	fmt.Fprintf(&sb, "%02X\n", -sum)
	return sb.String()
}

const hexEOF = ":00000001FF\n"

func TestParseHex(t *testing.T) {
	t.Run("segments", func(t *testing.T) {
		src := hexRecord(0, 0x2000, 0xAA, 0xBB) +
			hexRecord(0, 0x0800, 0x3E, 0x01, 0x76) +
			hexEOF

		p, err := ParseHex(strings.NewReader(src))
		if err != nil {
			t.Fatal(err)
		}

		want := []Segment{
			{Addr: 0x0800, Data: []byte{0x3E, 0x01, 0x76}},
			{Addr: 0x2000, Data: []byte{0xAA, 0xBB}},
		}
		if diff := cmp.Diff(want, p.Segments); diff != "" {
			t.Errorf("segments mismatch (-want +got):\n%s", diff)
		}
		if p.Entry != 0x0800 {
			t.Errorf("entry = %04X, want 0800", p.Entry)
		}
		if p.Size() != 5 {
			t.Errorf("size = %d, want 5", p.Size())
		}
		if end := p.Segments[0].End(); end != 0x0802 {
			t.Errorf("end = %04X, want 0802", end)
		}
	})

	t.Run("start address", func(t *testing.T) {
		src := hexRecord(0, 0x0800, 0x00, 0x00, 0x76) +
			hexRecord(5, 0, 0x00, 0x00, 0x08, 0x02) +
			hexEOF

		p, err := ParseHex(strings.NewReader(src))
		if err != nil {
			t.Fatal(err)
		}
		if p.Entry != 0x0802 {
			t.Errorf("entry = %04X, want 0802", p.Entry)
		}
	})

	t.Run("errors", func(t *testing.T) {
		for _, src := range []string{
			"not hex\n",
			":0300000001020304\n" + hexEOF,
			hexEOF,
		} {
			if _, err := ParseHex(strings.NewReader(src)); err == nil {
				t.Errorf("ParseHex(%q) succeeded", src)
			}
		}
	})
}

func TestRawProgram(t *testing.T) {
	buf := []byte{0x3E, 0x42, 0x76}
	p, err := RawProgram(buf, 0x0800)
	if err != nil {
		t.Fatal(err)
	}
	buf[0] = 0
	if p.Segments[0].Data[0] != 0x3E {
		t.Errorf("program aliases the input buffer")
	}

	var mem cpu.Memory
	mem.Protect(0x0800, 0x0800)
	p.Apply(&mem)
	if got := mem.Get(0x0800); got != 0x3E {
		t.Errorf("mem[0800] = %02X, loading must ignore protection", got)
	}

	if _, err := RawProgram(nil, 0); err == nil {
		t.Errorf("empty program accepted")
	}
	if _, err := RawProgram(make([]byte, 0x100), 0xFF80); err == nil {
		t.Errorf("program overflowing the address space accepted")
	}
}

func TestLoadProgram(t *testing.T) {
	dir := t.TempDir()

	hexPath := filepath.Join(dir, "prog.HEX")
	if err := os.WriteFile(hexPath, []byte(hexRecord(0, 0x4000, 0xC9)+hexEOF), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProgram(hexPath, 0x0800)
	if err != nil {
		t.Fatal(err)
	}
	if p.Entry != 0x4000 || p.Path != hexPath {
		t.Errorf("hex program = %+v", p)
	}

	binPath := filepath.Join(dir, "prog.bin")
	if err := os.WriteFile(binPath, []byte{0xC9}, 0644); err != nil {
		t.Fatal(err)
	}
	p, err = LoadProgram(binPath, 0x0900)
	if err != nil {
		t.Fatal(err)
	}
	if p.Entry != 0x0900 || p.Segments[0].Addr != 0x0900 {
		t.Errorf("raw program = %+v", p)
	}

	if _, err := LoadProgram(filepath.Join(dir, "missing.bin"), 0); err == nil {
		t.Errorf("missing program accepted")
	}
}
