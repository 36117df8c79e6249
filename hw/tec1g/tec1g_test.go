package tec1g

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/tec1"
)

func newBoard(t *testing.T) *Board {
	t.Helper()
	return New(platform.Config{KeyNMI: DefaultKeyNMI})
}

func TestLCDPorts(t *testing.T) {
	b := newBoard(t)

	b.Write(PortLCDInst, 0x01)
	if b.Read(PortLCDInst)&0x80 == 0 {
		t.Fatal("LCD not busy after clear")
	}
	b.RecordCycles(10_000)
	for _, c := range []byte("MON-3") {
		b.Write(PortLCDData, c)
	}
	b.Write(PortLCDInst, 0xC0) // second line
	b.Write(PortLCDData, '>')

	s := b.Snapshot()
	if got := string(s.LCD.Rows[0][:5]); got != "MON-3" {
		t.Errorf("row 0 = %q", got)
	}
	if s.LCD.Rows[1][0] != '>' {
		t.Errorf("row 1 = %q", s.LCD.Rows[1])
	}
}

func TestGLCDPorts(t *testing.T) {
	b := newBoard(t)

	b.Write(PortGLCDInst, 0x36)
	b.Write(PortGLCDInst, 0x80|3)
	b.Write(PortGLCDInst, 0x80|0)
	b.Write(PortGLCDData, 0x81)

	s := b.Snapshot()
	if !s.GLCD.Graphics || s.GLCD.GDRAM[3*16] != 0x81 {
		t.Fatalf("graphics=%v gdram=%02X", s.GLCD.Graphics, s.GLCD.GDRAM[3*16])
	}
	if st := b.Read(PortGLCDInst) &^ 0x80; st != 3 {
		t.Fatalf("status address = %02X, want 03", st)
	}
}

func TestMatrix(t *testing.T) {
	b := newBoard(t)
	b.Write(PortMatrixRow, 0x81)
	b.Write(PortMatrixCol, 0x3C)
	b.Write(PortMatrixRow, 0x02)
	b.Write(PortMatrixCol, 0xFF)

	want := [8]uint8{0x3C, 0xFF, 0, 0, 0, 0, 0, 0x3C}
	if diff := cmp.Diff(want, b.Snapshot().Matrix); diff != "" {
		t.Fatalf("matrix mismatch (-want +got):\n%s", diff)
	}
}

func TestSysCtrl(t *testing.T) {
	b := newBoard(t)

	var protects []bool
	b.OnProtect(func(p bool) { protects = append(protects, p) })

	b.Write(PortSysCtrl, platform.SysProtect|platform.SysCapsLock|0x08)
	b.Write(PortSysCtrl, platform.SysProtect|platform.SysShadow)
	b.Write(PortSysCtrl, 0)

	if diff := cmp.Diff([]bool{true, false}, protects); diff != "" {
		t.Fatalf("protect callbacks mismatch (-want +got):\n%s", diff)
	}

	b.Write(PortSysCtrl, platform.SysProtect|platform.SysCapsLock|0x10|platform.SysExpand)
	want := platform.SysCtrl{Value: 0x36, Protect: true, Expand: true, Bank: 2, CapsLock: true}
	if diff := cmp.Diff(want, b.SysCtrl()); diff != "" {
		t.Fatalf("sysctrl mismatch (-want +got):\n%s", diff)
	}

	b.ResetState()
	if diff := cmp.Diff([]bool{true, false, true, false}, protects); diff != "" {
		t.Fatalf("reset did not clear protect (-want +got):\n%s", diff)
	}
}

func TestKeypadPolling(t *testing.T) {
	b := newBoard(t)
	b.ApplyKey(input.KeyAddr)
	if b.Tick().Interrupt != nil {
		t.Fatal("TEC-1G raised an NMI on key press")
	}
	if b.Read(tec1.PortKeypad) != uint8(input.KeyAddr) {
		t.Fatal("key code not latched")
	}
}

func TestSDPort(t *testing.T) {
	b := newBoard(t)
	// CS high (inactive), MISO idles high.
	b.Write(PortSD, 0x04)
	if b.Read(PortSD)&0x80 == 0 {
		t.Fatal("MISO low on idle bus")
	}
}

func TestSpeedUpdatesLCD(t *testing.T) {
	b := newBoard(t)
	b.SetSpeed(platform.SpeedSlow)

	// 37us at 400kHz is 14 cycles.
	b.Write(PortLCDInst, 0x80)
	b.RecordCycles(14)
	if b.Read(PortLCDInst)&0x80 != 0 {
		t.Fatal("LCD busy timing not updated on speed change")
	}
}
