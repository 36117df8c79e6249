package platform

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/input"
	"debug80/hw/sched"
	"debug80/hw/uart"
)

func TestDisplayMultiplex(t *testing.T) {
	var d Display

	d.SetSegments(Segments(0x1))
	d.Select(0x01)
	d.Select(0)
	d.SetSegments(Segments(0xA) | SegDot)
	d.Select(0x22)
	d.Select(0xC0) // bits past the 6 digits are ignored

	want := [NumDigits]uint8{Segments(1), Segments(0xA) | SegDot, 0, 0, 0, Segments(0xA) | SegDot}
	if diff := cmp.Diff(want, d.Digits()); diff != "" {
		t.Fatalf("digits mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeSegments(t *testing.T) {
	for v := range uint8(16) {
		want := "0123456789ABCDEF"[v]
		if got := DecodeSegments(Segments(v) | SegDot); got != want {
			t.Errorf("DecodeSegments(%02X) = %c, want %c", Segments(v), got, want)
		}
	}
	if got := DecodeSegments(0); got != ' ' {
		t.Errorf("blank decoded as %q", got)
	}
}

func TestKeypadAutoRelease(t *testing.T) {
	clk := &sched.Clock{}
	kp := NewKeypad(clk, 100)

	kp.Press(input.KeyGo)
	if !kp.Down() || kp.Code() != uint8(input.KeyGo) {
		t.Fatalf("down=%v code=%02X after press", kp.Down(), kp.Code())
	}
	clk.Advance(60)
	kp.Press(input.Key5) // restarts the hold time
	clk.Advance(60)
	if !kp.Down() {
		t.Fatal("key released early")
	}
	clk.Advance(40)
	if kp.Down() {
		t.Fatal("key still down after hold time")
	}
	if kp.Code() != uint8(input.Key5) {
		t.Fatalf("code = %02X after release, want 05", kp.Code())
	}
}

func TestSerialRoundTrip(t *testing.T) {
	clk := &sched.Clock{}
	cfg := uart.Config{Baud: 9600, CyclesPerSecond: 4_000_000}
	cfg.Normalize()

	// Wire the RX line of one port to the TX line of another, sampling at
	// instruction-like boundaries.
	src := NewSerial(clk, cfg)
	dst := NewSerial(clk, cfg)

	var got []byte
	dst.OnByte(func(f uart.Frame) {
		if !f.FramingOK || !f.ParityOK {
			t.Errorf("bad frame %+v", f)
		}
		got = append(got, f.Byte)
	})

	src.Queue([]byte("TEC"))
	for range 20000 {
		dst.SetTX(src.RX())
		clk.Advance(7)
	}
	if string(got) != "TEC" {
		t.Fatalf("received %q, want TEC", got)
	}
}

func TestNotifier(t *testing.T) {
	now := time.Unix(0, 0)
	snap := Snapshot{Platform: "test"}

	n := NewNotifier(30*time.Millisecond, func() Snapshot { return snap })
	n.now = func() time.Time { return now }

	var got []Snapshot
	n.SetCallback(func(s Snapshot) { got = append(got, s) })

	n.Poll() // first snapshot always goes out
	n.Poll() // unchanged
	snap.Digits[0] = 0xEB
	now = now.Add(10 * time.Millisecond)
	n.Poll() // too early
	now = now.Add(20 * time.Millisecond)
	n.Poll()
	now = now.Add(time.Second)
	n.Poll() // unchanged
	snap.Speaker = true
	n.Flush()

	if len(got) != 3 {
		t.Fatalf("got %d snapshots, want 3", len(got))
	}
	if got[1].Digits[0] != 0xEB || !got[2].Speaker {
		t.Fatalf("unexpected snapshots %+v", got)
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Speed: SpeedSlow, LCDColumns: 12}
	cfg.Normalize()
	if cfg.Hz(cfg.Speed) != DefaultSlowClockHz || cfg.Hz(SpeedFast) != DefaultClockHz {
		t.Fatalf("clock rates %d/%d", cfg.Hz(SpeedFast), cfg.Hz(SpeedSlow))
	}
	if cfg.LCDColumns != 20 || cfg.KeyHold != DefaultKeyHold {
		t.Fatalf("columns=%d hold=%v", cfg.LCDColumns, cfg.KeyHold)
	}
	if c := Cycles(cfg.KeyHold, cfg.ClockHz); c != 160_000 {
		t.Fatalf("hold cycles = %d, want 160000", c)
	}
}

func TestSpeedText(t *testing.T) {
	var s Speed
	if err := s.UnmarshalText([]byte("slow")); err != nil || s != SpeedSlow {
		t.Fatalf("UnmarshalText(slow) = %v, %v", s, err)
	}
	if err := s.UnmarshalText([]byte("turbo")); err == nil {
		t.Fatal("UnmarshalText(turbo) succeeded")
	}
}
