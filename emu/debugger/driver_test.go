package debugger

import (
	"context"
	"testing"
	"time"

	"debug80/hw/cpu"
)

type testBoard struct {
	cycles   uint64
	silenced int
	hz       uint64
}

func (b *testBoard) RecordCycles(n uint64) { b.cycles += n }
func (b *testBoard) SilenceSpeaker()       { b.silenced++ }
func (b *testBoard) ClockHz() uint64       { return b.hz }

// nmiIO raises an NMI on the given tick.
type nmiIO struct {
	cpu.NopIO
	at, n int
}

func (io *nmiIO) Tick() cpu.Tick {
	io.n++
	if io.n == io.at {
		return cpu.Tick{Interrupt: cpu.NMI}
	}
	return cpu.Tick{}
}

func newTestDriver(t *testing.T, io cpu.IO, prog map[uint16][]byte) (*Driver, *cpu.CPU, *testBoard) {
	t.Helper()

	mem := &cpu.Memory{}
	for addr, b := range prog {
		mem.Load(addr, b)
	}
	if io == nil {
		io = cpu.NopIO{}
	}
	c := cpu.New(mem, io)
	c.Reset()
	board := &testBoard{}
	return NewDriver(c, board, nil), c, board
}

func TestBreakpoint(t *testing.T) {
	d, c, board := newTestDriver(t, nil, nil) // memory full of NOPs
	d.SetBreakpoints([]uint16{0x2000})

	idles := 0
	d.Idle = func() bool { idles++; return false }

	stop := d.RunUntilStop(context.Background(), nil, 0)
	if stop.Reason != ReasonBreakpoint || stop.PC != 0x2000 || c.PC() != 0x2000 {
		t.Fatalf("stop = %+v, pc = %04X, want breakpoint at 2000", stop, c.PC())
	}
	if idles != 0x2000/BatchSize {
		t.Errorf("idle called %d times, want %d", idles, 0x2000/BatchSize)
	}
	if board.cycles != 0x2000*4 {
		t.Errorf("cycles = %d, want %d", board.cycles, 0x2000*4)
	}

	// Resuming from the breakpoint runs through it.
	d.SkipBreakpointAt(c.PC())
	stop = d.RunUntilStop(context.Background(), map[uint16]struct{}{0x2003: {}}, 0)
	if stop.Reason != ReasonStep || stop.PC != 0x2003 {
		t.Fatalf("stop = %+v, want step at 2003", stop)
	}
}

func TestRunUntilReturn(t *testing.T) {
	prog := map[uint16][]byte{
		0x0000: {0xCD, 0x10, 0x00}, // CALL 0010
		0x0003: {0x76},             // HALT
		0x0010: {0xCD, 0x20, 0x00}, // CALL 0020
		0x0013: {0xC4, 0x30, 0x00}, // CALL NZ,0030 (not taken, Z set below)
		0x0016: {0xC9},             // RET
		0x0020: {0xAF},             // XOR A
		0x0021: {0xC9},             // RET
	}

	t.Run("call then return", func(t *testing.T) {
		d, c, _ := newTestDriver(t, nil, prog)
		stop := d.RunUntilReturn(context.Background(), 0, 0)
		if stop.Reason != ReasonStep || c.PC() != 0x0003 {
			t.Fatalf("stop = %+v, pc = %04X, want step at 0003", stop, c.PC())
		}
		if d.Depth() != 0 {
			t.Fatalf("depth = %d, want 0", d.Depth())
		}
	})

	t.Run("step out", func(t *testing.T) {
		d, c, _ := newTestDriver(t, nil, prog)
		d.Step()
		if d.Depth() != 1 || c.PC() != 0x0010 {
			t.Fatalf("after CALL depth = %d pc = %04X", d.Depth(), c.PC())
		}
		frames := d.CallStack()
		if len(frames) != 2 || frames[0].Entry != "0010" || frames[0].Ret != 0x0003 {
			t.Fatalf("unexpected call stack %+v", frames)
		}

		stop := d.RunUntilReturn(context.Background(), d.Depth(), 0)
		if stop.Reason != ReasonStep || c.PC() != 0x0003 || d.Depth() != 0 {
			t.Fatalf("stop = %+v, pc = %04X, depth = %d", stop, c.PC(), d.Depth())
		}
	})

	t.Run("step over", func(t *testing.T) {
		d, c, _ := newTestDriver(t, nil, prog)
		d.Step()

		// Over the CALL at 0010: run until depth is back to 1.
		d.Step()
		stop := d.RunUntilReturn(context.Background(), d.Depth(), 0)
		if stop.Reason != ReasonStep || c.PC() != 0x0013 || d.Depth() != 1 {
			t.Fatalf("stop = %+v, pc = %04X, depth = %d", stop, c.PC(), d.Depth())
		}
	})
}

func TestPause(t *testing.T) {
	d, c, board := newTestDriver(t, nil, nil)
	d.RequestPause()

	stop := d.RunUntilStop(context.Background(), nil, 0)
	if stop.Reason != ReasonPause || c.PC() != 0 {
		t.Fatalf("stop = %+v, want pause at 0000", stop)
	}
	if board.silenced != 1 {
		t.Fatalf("speaker silenced %d times, want 1", board.silenced)
	}

	// The request is consumed.
	stop = d.RunUntilStop(context.Background(), nil, 5)
	if stop.Reason != ReasonStep || stop.PC != 5 || stop.Message == "" {
		t.Fatalf("stop = %+v, want step at 0005 with a message", stop)
	}
}

func TestPauseFromIdle(t *testing.T) {
	d, c, _ := newTestDriver(t, nil, nil)
	d.Idle = func() bool {
		d.RequestPause()
		return false
	}
	stop := d.RunUntilStop(context.Background(), nil, 0)
	if stop.Reason != ReasonPause || c.PC() != BatchSize {
		t.Fatalf("stop = %+v, want pause at %04X", stop, BatchSize)
	}
}

func TestHalt(t *testing.T) {
	d, c, _ := newTestDriver(t, nil, map[uint16][]byte{0: {0x00, 0x76}})
	halts := 0
	d.OnHalt = func() { halts++ }

	stop := d.RunUntilStop(context.Background(), nil, 0)
	if stop.Reason != ReasonHalt || halts != 1 || !c.Halted() {
		t.Fatalf("stop = %+v, halts = %d", stop, halts)
	}

	// A halted CPU keeps running.
	stop = d.RunUntilStop(context.Background(), nil, 100)
	if stop.Reason != ReasonStep || halts != 1 {
		t.Fatalf("stop = %+v, halts = %d", stop, halts)
	}
}

func TestInterruptDepth(t *testing.T) {
	prog := map[uint16][]byte{
		0x0000: {0x00, 0x00},
		0x0066: {0xED, 0x45}, // RETN
	}
	d, c, _ := newTestDriver(t, &nmiIO{at: 1}, prog)

	d.Step()
	if d.Depth() != 1 || c.PC() != 0x0066 {
		t.Fatalf("depth = %d pc = %04X after NMI", d.Depth(), c.PC())
	}
	if frames := d.CallStack(); frames[0].Entry != "[nmi] $0066" {
		t.Fatalf("unexpected frame %+v", frames[0])
	}
	d.Step()
	if d.Depth() != 0 || c.PC() != 0x0001 {
		t.Fatalf("depth = %d pc = %04X after RETN", d.Depth(), c.PC())
	}
}

func TestCancel(t *testing.T) {
	d, c, board := newTestDriver(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stop := d.RunUntilStop(ctx, nil, 0)
	if stop.Reason != ReasonCancelled || stop.PC != 0 {
		t.Fatalf("stop = %+v, want cancelled at 0000", stop)
	}
	if c.PC() != 0 || board.cycles != 0 {
		t.Fatalf("pc = %04X, cycles = %d after a cancelled run", c.PC(), board.cycles)
	}

	stop = d.RunUntilReturn(ctx, 0, 0)
	if stop.Reason != ReasonCancelled || c.PC() != 0 {
		t.Fatalf("stop = %+v, pc = %04X, want cancelled at 0000", stop, c.PC())
	}

	// Cancelled in the middle of a batch.
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()
	d.SetBreakpoints([]uint16{0x0010})
	stop = d.RunUntilStop(ctx, nil, 0)
	if stop.Reason != ReasonBreakpoint {
		t.Fatalf("stop = %+v, want breakpoint", stop)
	}
	cancel()
	d.SkipBreakpointAt(c.PC())
	stop = d.RunUntilStop(ctx, nil, 0)
	if stop.Reason != ReasonCancelled || c.PC() != 0x0010 || board.cycles != 0x10*4 {
		t.Fatalf("stop = %+v, pc = %04X, cycles = %d", stop, c.PC(), board.cycles)
	}
}

func TestPacer(t *testing.T) {
	now := time.Unix(0, 0)
	var cycles uint64
	var slept []time.Duration

	p := NewPacer(time.Millisecond)
	p.now = func() time.Time { return now }
	p.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	p.SetCycleCounter(func() uint64 { return cycles })

	const hz = 1_000_000
	p.Start(hz)
	ctx := context.Background()

	// 10ms of cycles in 4ms.
	cycles += 10_000
	now = now.Add(4 * time.Millisecond)
	p.Wait(ctx, hz)

	// 100us ahead, sleeps the minimum.
	cycles += 1_100
	now = now.Add(time.Millisecond)
	p.Wait(ctx, hz)

	// Far behind: no sleep, restart.
	now = now.Add(time.Second)
	p.Wait(ctx, hz)
	cycles += 1_000
	p.Wait(ctx, hz)

	want := []time.Duration{6 * time.Millisecond, time.Millisecond, time.Millisecond}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Fatalf("slept %v, want %v", slept, want)
		}
	}
}
