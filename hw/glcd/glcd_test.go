package glcd

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/sched"
)

func newGLCD(t *testing.T) (*GLCD, *sched.Clock) {
	t.Helper()
	clk := &sched.Clock{}
	return New(clk, 4_000_000), clk
}

func TestTextRows(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x30) // basic
	g.WriteInstruction(0x01)

	for _, tt := range []struct {
		addr uint8
		text string
		row  int
	}{
		{0x80, "ROW1", 0},
		{0x90, "ROW2", 1},
		{0x88, "ROW3", 2},
		{0x98, "ROW4", 3},
	} {
		g.WriteInstruction(tt.addr)
		for i := range len(tt.text) {
			g.WriteData(tt.text[i])
		}
		if got := string(g.Snapshot().Text[tt.row][:4]); got != tt.text {
			t.Errorf("row %d = %q, want %q", tt.row, got, tt.text)
		}
	}
	if g.ddramAddr != 0x1A {
		t.Errorf("DDRAM address = %02X, want 1A", g.ddramAddr)
	}
}

func TestTextAddressWraps(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x80 | 0x1F)
	g.WriteData('a')
	g.WriteData('b')
	if g.ddramAddr != 0 {
		t.Fatalf("address after 1F = %02X, want 00", g.ddramAddr)
	}
}

func TestGDRAMAddressing(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x34) // extended
	g.WriteInstruction(0x36) // extended, graphics on

	// Upper half, row 5, column 2.
	g.WriteInstruction(0x80 | 5)
	g.WriteInstruction(0x80 | 2)
	g.WriteData(0xAA)
	g.WriteData(0x55)
	g.WriteData(0x01) // column 3

	// Lower half (column bit 3), row 0.
	g.WriteInstruction(0x80 | 0)
	g.WriteInstruction(0x80 | 0x08)
	g.WriteData(0xFF)

	s := g.Snapshot()
	want := map[int]uint8{
		5*16 + 4:  0xAA,
		5*16 + 5:  0x55,
		5*16 + 6:  0x01,
		32*16 + 0: 0xFF,
	}
	for idx, v := range want {
		if s.GDRAM[idx] != v {
			t.Errorf("gdram[%d] = %02X, want %02X", idx, s.GDRAM[idx], v)
		}
	}
	if !g.Pixel(0, 32) || !g.Pixel(32, 5) || g.Pixel(33, 5) || g.Pixel(0, 5) {
		t.Errorf("unexpected pixels")
	}
	if g.col != 8 || g.gdramPhase != 1 {
		t.Errorf("col = %d phase = %d, want 8 and 1", g.col, g.gdramPhase)
	}
}

func TestGDRAMAddressAfterFunctionSet(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x36)
	g.WriteInstruction(0x80 | 5) // row only, then back to basic
	g.WriteInstruction(0x30)
	g.WriteInstruction(0x36)

	g.WriteInstruction(0x80 | 3)
	g.WriteInstruction(0x80 | 1)
	g.WriteData(0xC3)

	if g.rowAddr != 3 || g.col != 1 {
		t.Fatalf("row = %d col = %d, want 3 and 1", g.rowAddr, g.col)
	}
	if got := g.Snapshot().GDRAM[3*16+2]; got != 0xC3 {
		t.Errorf("gdram[3*16+2] = %02X, want C3", got)
	}
}

func TestReverseToggle(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x34)

	g.WriteInstruction(0x05)
	if g.reverseRowMask != 0x02 {
		t.Fatalf("mask = %02X, want 02", g.reverseRowMask)
	}
	g.WriteInstruction(0x07)
	g.WriteInstruction(0x05)
	if g.reverseRowMask != 0x08 {
		t.Fatalf("mask = %02X, want 08", g.reverseRowMask)
	}
	g.WriteInstruction(0x07)
	if g.reverseRowMask != 0 {
		t.Fatalf("mask = %02X after toggling twice, want 00", g.reverseRowMask)
	}
}

func TestScroll(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x34)

	g.WriteInstruction(0x40 | 0x12) // SR=0: ignored
	if g.scrollOffset != 0 {
		t.Fatalf("scroll offset set while SR=0")
	}
	g.WriteInstruction(0x03) // SR=1
	g.WriteInstruction(0x40 | 0x3F)
	if g.scrollOffset != 0x3F {
		t.Fatalf("scroll offset = %02X, want 3F", g.scrollOffset)
	}

	g.WriteInstruction(0x30) // back to basic, 0x40 is a CGRAM address again
	g.WriteInstruction(0x40 | 0x01)
	if g.scrollOffset != 0x3F || g.target != toCGRAM {
		t.Fatalf("basic CGRAM address misdecoded")
	}
}

func TestStatus(t *testing.T) {
	g, clk := newGLCD(t)

	g.WriteInstruction(0x01)
	if g.ReadStatus()&busyFlag == 0 {
		t.Fatalf("not busy after clear")
	}
	clk.Advance(4 * 1600)
	g.WriteInstruction(0x80 | 0x13)
	clk.Advance(4 * 72)
	if st := g.ReadStatus(); st != 0x13 {
		t.Fatalf("text status = %02X, want 13", st)
	}

	g.WriteInstruction(0x36)
	g.WriteInstruction(0x80 | 0x07)
	g.WriteInstruction(0x80 | 0x00)
	clk.Advance(4 * 72)
	if st := g.ReadStatus(); st != 0x07 {
		t.Fatalf("graphics status = %02X, want 07", st)
	}
}

func TestReadBack(t *testing.T) {
	g, _ := newGLCD(t)
	g.WriteInstruction(0x80)
	g.WriteData('H')
	g.WriteData('i')
	g.WriteInstruction(0x80)

	got := []uint8{g.ReadData(), g.ReadData()}
	if diff := cmp.Diff([]uint8{'H', 'i'}, got); diff != "" {
		t.Fatalf("read back mismatch (-want +got):\n%s", diff)
	}
}
