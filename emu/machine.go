package emu

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"time"

	"debug80/emu/debugger"
	"debug80/emu/log"
	"debug80/hw/cpu"
	"debug80/hw/platform"
	"debug80/hw/speaker"
	"debug80/hw/tec1"
	"debug80/hw/tec1g"
)

// The TEC-1G protect latch write-protects this range.
const (
	protectFirst = 0x4000
	protectLast  = 0x7FFF
)

// Machine is a CPU, its memory, a trainer board and the stepping driver
// wired together. It is owned by a single goroutine.
type Machine struct {
	cfg Config

	Mem   *cpu.Memory
	CPU   *cpu.CPU
	Board platform.Platform
	// Speaker of the board, for audio output.
	Speaker *speaker.Speaker
	Driver  *debugger.Driver
	Pacer   *debugger.Pacer

	prog *Program
}

func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Machine{cfg: cfg, Mem: &cpu.Memory{}}
	pcfg := cfg.PlatformConfig()

	switch cfg.Machine.Platform {
	case PlatformTEC1:
		b := tec1.New(pcfg)
		m.Board, m.Speaker = b, b.Speaker
	case PlatformTEC1G:
		b := tec1g.New(pcfg)
		b.OnProtect(func(protect bool) {
			if protect {
				m.Mem.Protect(protectFirst, protectLast)
			} else {
				m.Mem.Unprotect(protectFirst, protectLast)
				m.protectROM()
			}
		})
		if cfg.SD.Image != "" {
			img, err := os.ReadFile(cfg.SD.Image)
			if err != nil {
				return nil, fmt.Errorf("failed to read sd image: %w", err)
			}
			b.SetSDImage(img)
		}
		m.Board, m.Speaker = b, b.Speaker
	}

	m.protectROM()
	m.CPU = cpu.New(m.Mem, m.Board)
	if cfg.TraceOut != nil {
		m.CPU.SetTraceOutput(cfg.TraceOut)
	}

	m.Pacer = debugger.NewPacer(time.Duration(cfg.Debugger.MinYieldMS) * time.Millisecond)
	m.Pacer.SetCycleCounter(func() uint64 { return m.CPU.Cycles })
	m.Driver = debugger.NewDriver(m.CPU, m.Board, m.Pacer)

	log.ModEmu.InfoZ("machine created").
		String("platform", cfg.Machine.Platform).
		Uint64("hz", m.Board.ClockHz()).
		Bool("key_nmi", pcfg.KeyNMI).
		End()
	return m, nil
}

// EnableAudio streams the speaker output to w as 16-bit little endian mono
// PCM samples at the configured sample rate.
func (m *Machine) EnableAudio(w io.Writer) {
	var buf []byte
	m.Speaker.EnableAudio(m.cfg.Audio.SampleRate, func(samples []int16) {
		buf = buf[:0]
		for _, s := range samples {
			buf = binary.LittleEndian.AppendUint16(buf, uint16(s))
		}
		if _, err := w.Write(buf); err != nil {
			log.ModSound.WarnZ("audio write failed").Error("err", err).End()
		}
	})
}

// protectROM re-applies the configured read-only ranges, a TEC-1G unprotect
// must not lift them.
func (m *Machine) protectROM() {
	for _, r := range m.cfg.Machine.ROM {
		m.Mem.Protect(r[0], r[1])
	}
}

// Load copies p into memory and starts execution at its entry point.
func (m *Machine) Load(p *Program) {
	m.prog = p
	p.Apply(m.Mem)
	m.CPU.SetPC(p.Entry)
}

func (m *Machine) Program() *Program { return m.prog }

// Reset puts the CPU and the board back in their power-on state, reloads
// the program and jumps to its entry point. RAM contents are kept.
func (m *Machine) Reset() {
	m.CPU.Reset()
	m.Board.ResetState()
	m.Driver.ResetStack()
	if m.prog != nil {
		m.Load(m.prog)
	}
	m.Pacer.Start(m.Board.ClockHz())
	log.ModEmu.InfoZ("machine reset").Hex16("pc", m.CPU.PC()).End()
}

// SetSpeed switches the board speed and restarts pacing.
func (m *Machine) SetSpeed(s platform.Speed) {
	m.Board.SetSpeed(s)
	m.Pacer.Start(m.Board.ClockHz())
}

// View returns a memory window.
func (m *Machine) View(sel debugger.Selector, addr uint16, size int) (debugger.MemView, error) {
	return debugger.ViewMemory(m.Mem, m.CPU.Regs(), sel, addr, size)
}

// State returns the current execution state.
func (m *Machine) State(running bool, stop debugger.Stop) debugger.State {
	return debugger.State{
		Running: running,
		Stop:    stop,
		Depth:   m.Driver.Depth(),
		Stack:   m.Driver.CallStack(),
		Regs:    m.CPU.Regs(),
	}
}
