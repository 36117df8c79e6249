// Package debugger runs the CPU under control of a debugger: breakpoints,
// stepping, call stack tracking and the websocket server front ends connect
// to.
package debugger

import (
	"context"
	"fmt"
	"sync/atomic"

	"debug80/emu/log"
	"debug80/hw/cpu"
)

// BatchSize is the number of instructions run between two yields.
const BatchSize = 1000

// Reason tells why a run stopped.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonPause
	ReasonBreakpoint
	ReasonStep
	ReasonHalt
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPause:
		return "pause"
	case ReasonBreakpoint:
		return "breakpoint"
	case ReasonStep:
		return "step"
	case ReasonHalt:
		return "halt"
	case ReasonCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("Reason(%d)", uint8(r))
}

// Stop describes where and why a run stopped.
type Stop struct {
	Reason  Reason
	PC      uint16
	Message string
}

// CPU is the processor as seen by the driver.
type CPU interface {
	PC() uint16
	Halted() bool
	Classify() cpu.Classification
	Step() cpu.StepResult
}

// Board receives the cycles retired by the CPU.
type Board interface {
	RecordCycles(n uint64)
	SilenceSpeaker()
	ClockHz() uint64
}

// A Driver steps a CPU. All methods but RequestPause must be called from the
// emulation goroutine.
type Driver struct {
	cpu   CPU
	board Board
	pacer *Pacer

	pause atomic.Bool

	breakpoints map[uint16]struct{}
	skip        uint16
	skipSet     bool

	depth  int
	cstack callStack

	// OnHalt is called when the CPU executes HALT. A halted CPU keeps
	// running until an interrupt wakes it up.
	OnHalt func()
	// Idle is called between batches and may apply pending actions. It
	// returns true to stop the run with ReasonPause.
	Idle func() bool
}

func NewDriver(c CPU, b Board, pacer *Pacer) *Driver {
	if pacer == nil {
		pacer = NewPacer(0)
	}
	return &Driver{
		cpu:         c,
		board:       b,
		pacer:       pacer,
		breakpoints: make(map[uint16]struct{}),
	}
}

// RequestPause asks the running loop to stop before the next instruction.
// Safe for concurrent use.
func (d *Driver) RequestPause() { d.pause.Store(true) }

func (d *Driver) SetBreakpoints(addrs []uint16) {
	clear(d.breakpoints)
	for _, a := range addrs {
		d.breakpoints[a] = struct{}{}
	}
}

func (d *Driver) Breakpoints() []uint16 {
	addrs := make([]uint16, 0, len(d.breakpoints))
	for a := range d.breakpoints {
		addrs = append(addrs, a)
	}
	return addrs
}

// SkipBreakpointAt lets the next run execute through pc once without
// stopping, to resume from a breakpoint.
func (d *Driver) SkipBreakpointAt(pc uint16) {
	d.skip = pc
	d.skipSet = true
}

// Depth returns the current call depth.
func (d *Driver) Depth() int { return d.depth }

// CallStack returns the frames of the current call stack, innermost first.
func (d *Driver) CallStack() []Frame { return d.cstack.build(d.cpu.PC()) }

// ResetStack forgets all call frames, after a CPU reset.
func (d *Driver) ResetStack() {
	d.depth = 0
	d.cstack.reset()
}

// RunUntilStop runs until a pause, a breakpoint, an address of extra, a HALT
// or, if limit is not zero, limit instructions.
func (d *Driver) RunUntilStop(ctx context.Context, extra map[uint16]struct{}, limit int) Stop {
	return d.run(ctx, extra, limit, -1)
}

// RunUntilReturn runs like RunUntilStop and also stops after a return brings
// the call depth below baseline, or to 0 when baseline is 0.
func (d *Driver) RunUntilReturn(ctx context.Context, baseline, limit int) Stop {
	return d.run(ctx, nil, limit, baseline)
}

// Step executes a single instruction.
func (d *Driver) Step() Stop {
	pc := d.cpu.PC()
	if stop, done := d.execute(pc, -1); done {
		return stop
	}
	return Stop{Reason: ReasonStep, PC: d.cpu.PC()}
}

func (d *Driver) run(ctx context.Context, extra map[uint16]struct{}, limit, baseline int) Stop {
	d.pacer.Start(d.board.ClockHz())
	done := ctx.Done()
	count := 0
	for {
		for range BatchSize {
			pc := d.cpu.PC()

			select {
			case <-done:
				return Stop{Reason: ReasonCancelled, PC: pc, Message: ctx.Err().Error()}
			default:
			}
			if d.pause.CompareAndSwap(true, false) {
				d.board.SilenceSpeaker()
				return Stop{Reason: ReasonPause, PC: pc}
			}

			if d.skipSet && pc == d.skip {
				d.skipSet = false
			} else {
				if _, ok := d.breakpoints[pc]; ok {
					return Stop{Reason: ReasonBreakpoint, PC: pc}
				}
				if _, ok := extra[pc]; ok {
					return Stop{Reason: ReasonStep, PC: pc}
				}
			}

			if stop, done := d.execute(pc, baseline); done {
				return stop
			}

			count++
			if limit > 0 && count >= limit {
				msg := fmt.Sprintf("stopped after %d instructions", count)
				log.ModDbg.InfoZ(msg).Hex16("pc", d.cpu.PC()).End()
				return Stop{Reason: ReasonStep, PC: d.cpu.PC(), Message: msg}
			}
		}

		if d.Idle != nil && d.Idle() {
			return Stop{Reason: ReasonPause, PC: d.cpu.PC()}
		}
		if err := d.pacer.Wait(ctx, d.board.ClockHz()); err != nil {
			return Stop{Reason: ReasonCancelled, PC: d.cpu.PC(), Message: err.Error()}
		}
	}
}

// execute runs the instruction at pc and tracks the call depth. It reports
// done when the run must stop.
func (d *Driver) execute(pc uint16, baseline int) (Stop, bool) {
	cls := d.cpu.Classify()
	wasHalted := d.cpu.Halted()
	res := d.cpu.Step()
	d.board.RecordCycles(uint64(res.Cycles))

	returned := false
	switch {
	case cls.Kind == cpu.KindCall && cls.Taken:
		d.depth++
		d.cstack.push(pc, cls.Target, cls.Return, frameCall)
	case cls.Kind == cpu.KindReturn && cls.Taken:
		if d.depth > 0 {
			d.depth--
		}
		d.cstack.pop()
		returned = true
	}

	if res.Interrupt != nil {
		flag := frameIRQ
		if res.Interrupt.NonMaskable {
			flag = frameNMI
		}
		d.depth++
		d.cstack.push(res.IntReturn, res.IntVector, res.IntReturn, flag)
	}

	if res.Halted && !wasHalted {
		if d.OnHalt != nil {
			d.OnHalt()
		}
		return Stop{Reason: ReasonHalt, PC: d.cpu.PC()}, true
	}
	if res.Stopped {
		return Stop{Reason: ReasonBreakpoint, PC: d.cpu.PC()}, true
	}
	if returned && baseline >= 0 && (d.depth < baseline || baseline == 0 && d.depth == 0) {
		return Stop{Reason: ReasonStep, PC: d.cpu.PC()}, true
	}
	return Stop{}, false
}
