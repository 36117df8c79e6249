package lcd

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/sched"
)

func newLCD(t *testing.T, cols int) (*LCD, *sched.Clock) {
	t.Helper()
	clk := &sched.Clock{}
	return New(clk, Config{Columns: cols, CyclesPerSecond: 4_000_000}), clk
}

func writeString(l *LCD, s string) {
	for i := range len(s) {
		l.WriteData(s[i])
	}
}

func rows(s Snapshot) []string {
	var out []string
	for _, r := range s.Rows {
		out = append(out, string(r))
	}
	return out
}

func TestWindowWrap(t *testing.T) {
	for _, cols := range []int{16, 20} {
		l, _ := newLCD(t, cols)
		l.WriteInstruction(0x01) // clear

		// A full row then one more character lands on the second row.
		writeString(l, strings.Repeat("a", cols)+"b")

		want := []string{
			strings.Repeat("a", cols),
			"b" + strings.Repeat(" ", cols-1),
			strings.Repeat(" ", cols),
			strings.Repeat(" ", cols),
		}
		if diff := cmp.Diff(want, rows(l.Snapshot())); diff != "" {
			t.Errorf("cols=%d: rows mismatch (-want +got):\n%s", cols, diff)
		}
		if l.addr != 0x41 {
			t.Errorf("cols=%d: address = %02X, want 41", cols, l.addr)
		}
	}
}

func TestWrapOrder(t *testing.T) {
	l, _ := newLCD(t, 20)
	l.WriteInstruction(0x01)
	writeString(l, strings.Repeat("0", 20)+strings.Repeat("1", 20)+strings.Repeat("2", 20)+strings.Repeat("3", 20)+"x")

	want := []string{
		"x" + strings.Repeat("0", 19),
		strings.Repeat("1", 20),
		strings.Repeat("2", 20),
		strings.Repeat("3", 20),
	}
	if diff := cmp.Diff(want, rows(l.Snapshot())); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDecrementWrap(t *testing.T) {
	l, _ := newLCD(t, 20)
	l.WriteInstruction(0x01)
	l.WriteInstruction(0x04) // entry mode: decrement, no shift
	l.WriteData('z')         // at 00, moves to end of row 4

	if l.addr != 0x40+20+19 {
		t.Fatalf("address = %02X, want %02X", l.addr, 0x40+20+19)
	}
	l.WriteData('y')
	if got := l.Snapshot().Rows[3][19]; got != 'y' {
		t.Errorf("row 4 last char = %q, want 'y'", got)
	}
}

func TestBusyFlag(t *testing.T) {
	l, clk := newLCD(t, 20)

	l.WriteInstruction(0x01)
	if st := l.ReadStatus(); st&busyFlag == 0 {
		t.Fatalf("status = %02X right after clear, want busy", st)
	}
	clk.Advance(4_000_000 * 1520 / 1_000_000)
	if st := l.ReadStatus(); st != 0x00 {
		t.Fatalf("status = %02X after clear time, want 00", st)
	}

	l.WriteInstruction(0x80 | 0x45)
	clk.Advance(4 * 37)
	if st := l.ReadStatus(); st != 0x45 {
		t.Fatalf("status = %02X, want 45", st)
	}
}

func TestCGRAM(t *testing.T) {
	l, _ := newLCD(t, 16)
	l.WriteInstruction(0x40 | 0x08) // CGRAM char 1
	for _, b := range []uint8{0xFF, 0x11, 0x0A} {
		l.WriteData(b)
	}
	l.WriteInstruction(0x40 | 0x08)
	got := []uint8{l.ReadData(), l.ReadData(), l.ReadData()}
	if diff := cmp.Diff([]uint8{0x1F, 0x11, 0x0A}, got); diff != "" {
		t.Errorf("cgram mismatch (-want +got):\n%s", diff)
	}
	if l.addr != 0 {
		t.Errorf("DDRAM address moved to %02X by CGRAM accesses", l.addr)
	}
}

func TestDisplayShift(t *testing.T) {
	l, _ := newLCD(t, 16)
	l.WriteInstruction(0x01)
	writeString(l, "0123456789ABCDEF")
	l.WriteInstruction(0x18) // shift display left

	if got := string(l.Snapshot().Rows[0]); got != "123456789ABCDEF " {
		t.Errorf("row 1 = %q after shift", got)
	}
	l.WriteInstruction(0x02) // home
	if got := string(l.Snapshot().Rows[0]); got != "0123456789ABCDEF" {
		t.Errorf("row 1 = %q after home", got)
	}
}

func TestDisplayControl(t *testing.T) {
	l, clk := newLCD(t, 20)
	l.WriteInstruction(0x0F)
	s := l.Snapshot()
	if !s.DisplayOn || !s.CursorOn || !s.CursorBlink {
		t.Fatalf("display control not applied: %+v", s)
	}
	phase := s.BlinkPhase
	clk.Advance(4_000_000 * 400 / 1000)
	if l.Snapshot().BlinkPhase == phase {
		t.Errorf("blink phase did not toggle")
	}
}
