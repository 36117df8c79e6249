package emu

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"debug80/emu/debugger"
	"debug80/emu/log"
	"debug80/hw/cpu"
	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/uart"
)

type command uint8

const (
	cmdNone command = iota
	cmdRun
	cmdStep
	cmdStepOver
	cmdStepOut
)

var commandNames = [...]string{"none", "run", "step", "step-over", "step-out"}

func (c command) String() string { return commandNames[c] }

const actionQueueLen = 256

// memoryTimeout bounds how long a memory query waits for the emulation
// goroutine.
const memoryTimeout = time.Second

var ErrNotRunning = errors.New("emulator is not running")

// Emulator drives a Machine from a single goroutine (Run) and exposes
// controls safe for concurrent use. Controls are queued and applied on the
// emulation goroutine between instruction batches, or immediately while
// execution is stopped. It implements debugger.Controller.
type Emulator struct {
	m *Machine

	// ResumeOnHalt keeps running after the CPU executes HALT instead of
	// stopping, as a real board does.
	ResumeOnHalt bool

	actions chan func()
	done    chan struct{}

	// Owned by the emulation goroutine.
	cmd  command
	busy bool

	state atomic.Pointer[debugger.State]

	// Hooks are registered before Run and called on the emulation
	// goroutine.
	stateHooks  []func(debugger.State)
	snapHooks   []func(platform.Snapshot)
	serialHooks []func(uart.Frame)
}

func NewEmulator(m *Machine) *Emulator {
	e := &Emulator{
		m:       m,
		actions: make(chan func(), actionQueueLen),
		done:    make(chan struct{}),
	}
	m.Driver.Idle = e.idle
	m.Board.OnUpdate(func(s platform.Snapshot) {
		for _, fn := range e.snapHooks {
			fn(s)
		}
	})
	m.Board.OnSerial(func(f uart.Frame) {
		log.ModSerial.DebugZ("tx byte").
			Hex8("byte", f.Byte).
			Bool("parity", f.ParityOK).
			Bool("framing", f.FramingOK).
			End()
		for _, fn := range e.serialHooks {
			fn(f)
		}
	})
	st := m.State(false, debugger.Stop{})
	e.state.Store(&st)
	return e
}

func (e *Emulator) Machine() *Machine { return e.m }

// OnState, OnSnapshot and OnSerial register hooks. They must be called
// before Run.
func (e *Emulator) OnState(fn func(debugger.State))       { e.stateHooks = append(e.stateHooks, fn) }
func (e *Emulator) OnSnapshot(fn func(platform.Snapshot)) { e.snapHooks = append(e.snapHooks, fn) }
func (e *Emulator) OnSerial(fn func(uart.Frame))          { e.serialHooks = append(e.serialHooks, fn) }

// Run executes the emulation loop until ctx is cancelled. It starts stopped
// unless Continue has been called before.
func (e *Emulator) Run(ctx context.Context) error {
	defer close(e.done)

	log.ModEmu.InfoZ("emulation started").Hex16("pc", e.m.CPU.PC()).End()
	e.publish(false, debugger.Stop{})

	for {
		if e.cmd == cmdNone {
			e.m.Board.Flush()
			select {
			case <-ctx.Done():
				log.ModEmu.InfoZ("emulation stopped").End()
				return nil
			case fn := <-e.actions:
				fn()
			}
			continue
		}

		cmd := e.cmd
		e.cmd = cmdNone
		stop := e.exec(ctx, cmd)
		if stop.Reason == debugger.ReasonCancelled {
			e.publish(false, stop)
			log.ModEmu.InfoZ("emulation stopped").End()
			return nil
		}
		if stop.Reason == debugger.ReasonHalt && e.ResumeOnHalt && cmd == cmdRun {
			e.cmd = cmdRun
			continue
		}

		log.ModEmu.DebugZ("stopped").
			Stringer("cmd", cmd).
			Stringer("reason", stop.Reason).
			Hex16("pc", stop.PC).
			End()
		e.m.Board.Flush()
		e.publish(false, stop)
	}
}

func (e *Emulator) exec(ctx context.Context, cmd command) debugger.Stop {
	d := e.m.Driver
	limit := e.m.cfg.Debugger.MaxInstructions

	e.busy = true
	defer func() { e.busy = false }()

	switch cmd {
	case cmdRun:
		d.SkipBreakpointAt(e.m.CPU.PC())
		e.publish(true, debugger.Stop{})
		return d.RunUntilStop(ctx, nil, limit)

	case cmdStep:
		return d.Step()

	case cmdStepOver:
		cls := e.m.CPU.Classify()
		if cls.Kind != cpu.KindCall || !cls.Taken {
			return d.Step()
		}
		if stop := d.Step(); stop.Reason != debugger.ReasonStep {
			return stop
		}
		e.publish(true, debugger.Stop{})
		return d.RunUntilReturn(ctx, d.Depth(), limit)

	case cmdStepOut:
		d.SkipBreakpointAt(e.m.CPU.PC())
		e.publish(true, debugger.Stop{})
		return d.RunUntilReturn(ctx, d.Depth(), limit)
	}
	return debugger.Stop{}
}

// idle applies the queued actions between two instruction batches.
func (e *Emulator) idle() bool {
	for {
		select {
		case fn := <-e.actions:
			fn()
		default:
			return false
		}
	}
}

func (e *Emulator) publish(running bool, stop debugger.Stop) {
	st := e.m.State(running, stop)
	e.state.Store(&st)
	for _, fn := range e.stateHooks {
		fn(st)
	}
}

// do queues fn for execution on the emulation goroutine. It is dropped once
// Run has returned.
func (e *Emulator) do(fn func()) {
	select {
	case e.actions <- fn:
	case <-e.done:
	}
}

// setCommand sets the next execution command, unless the machine is already
// executing one.
func (e *Emulator) setCommand(cmd command) {
	e.do(func() {
		if e.busy {
			return
		}
		e.cmd = cmd
	})
}

func (e *Emulator) Continue() { e.setCommand(cmdRun) }
func (e *Emulator) Step()     { e.setCommand(cmdStep) }
func (e *Emulator) StepOver() { e.setCommand(cmdStepOver) }
func (e *Emulator) StepOut()  { e.setCommand(cmdStepOut) }

// Pause stops a running machine at the next batch boundary, or cancels a
// pending command.
func (e *Emulator) Pause() {
	e.do(func() {
		if e.busy {
			e.m.Driver.RequestPause()
			return
		}
		e.cmd = cmdNone
	})
}

func (e *Emulator) Key(k input.Key) {
	e.do(func() {
		log.ModInput.DebugZ("key").Stringer("key", k).End()
		e.m.Board.ApplyKey(k)
	})
}

func (e *Emulator) Serial(data []byte) {
	buf := append([]byte(nil), data...)
	e.do(func() { e.m.Board.QueueSerial(buf) })
}

func (e *Emulator) SetSpeed(s platform.Speed) {
	e.do(func() {
		e.m.SetSpeed(s)
		log.ModEmu.InfoZ("speed").Stringer("speed", s).Uint64("hz", e.m.Board.ClockHz()).End()
		e.m.Board.Flush()
	})
}

// Reset resets the machine. A running machine keeps running from the entry
// point.
func (e *Emulator) Reset() {
	e.do(func() {
		e.m.Reset()
		if !e.busy {
			e.publish(false, debugger.Stop{PC: e.m.CPU.PC()})
		}
	})
}

func (e *Emulator) SetBreakpoints(addrs []uint16) {
	addrs = append([]uint16(nil), addrs...)
	e.do(func() {
		e.m.Driver.SetBreakpoints(addrs)
		log.ModDbg.DebugZ("breakpoints").Int("count", len(addrs)).End()
	})
}

// ViewMemory reads a memory window on the emulation goroutine.
func (e *Emulator) ViewMemory(sel debugger.Selector, addr uint16, size int) (debugger.MemView, error) {
	type result struct {
		v   debugger.MemView
		err error
	}
	res := make(chan result, 1)
	e.do(func() {
		v, err := e.m.View(sel, addr, size)
		res <- result{v, err}
	})

	select {
	case r := <-res:
		return r.v, r.err
	case <-e.done:
		return debugger.MemView{}, ErrNotRunning
	case <-time.After(memoryTimeout):
		return debugger.MemView{}, ErrNotRunning
	}
}

// State returns the last published execution state.
func (e *Emulator) State() debugger.State { return *e.state.Load() }
