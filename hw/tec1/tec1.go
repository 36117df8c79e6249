// Package tec1 emulates the I/O of the TEC-1 trainer: hex keypad, six
// multiplexed 7-segment digits, a speaker and a bit-banged serial port.
package tec1

import (
	"debug80/emu/log"
	"debug80/hw/cpu"
	"debug80/hw/hwio"
	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/sched"
	"debug80/hw/speaker"
	"debug80/hw/uart"
)

// I/O ports.
const (
	PortKeypad   = 0x00
	PortDigits   = 0x01
	PortSegments = 0x02
	PortStatus   = 0x03
)

// Port bits.
const (
	digitsSerialTX = 0x40
	digitsSpeaker  = 0x80

	statusKeyUp    = 0x40 // low while a key is down
	statusSerialRX = 0x80
)

const DefaultKeyNMI = true

// Board is a TEC-1. It implements platform.Platform.
type Board struct {
	Name string

	cfg   platform.Config
	clk   *sched.Clock
	hz    uint64
	speed platform.Speed

	IO *hwio.Table

	Keypad  *platform.Keypad
	Display platform.Display
	Speaker *speaker.Speaker
	Serial  *platform.Serial

	digits hwio.Reg8

	notifier *platform.Notifier
	pollEv   sched.EventID

	irq *cpu.Interrupt

	// speedHooks are called with the new clock rate on speed changes.
	speedHooks []func(hz uint64)
}

func New(cfg platform.Config) *Board {
	return NewBoard("tec1", cfg)
}

func (b *Board) init(cfg platform.Config) {
	b.cfg = cfg
	b.clk = &sched.Clock{}
	b.speed = cfg.Speed
	b.hz = cfg.Hz(cfg.Speed)

	b.Keypad = platform.NewKeypad(b.clk, platform.Cycles(cfg.KeyHold, b.hz))
	b.Speaker = speaker.New(b.clk, b.hz)
	ucfg := cfg.Serial
	ucfg.CyclesPerSecond = b.hz
	b.Serial = platform.NewSerial(b.clk, ucfg)

	b.digits = hwio.Reg8{
		Name:    "DIGITS",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: b.writeDigits,
	}

	b.IO = hwio.NewTable(b.Name)
	b.IO.Map(PortKeypad, &hwio.Port{
		Name:   "KEYPAD",
		Flags:  hwio.ReadOnlyFlag,
		ReadCb: func(uint8) uint8 { return b.Keypad.Code() },
	})
	b.IO.Map(PortDigits, &b.digits)
	b.IO.Map(PortSegments, &hwio.Port{
		Name:    "SEGMENTS",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: func(_, val uint8) { b.Display.SetSegments(val) },
	})
	b.IO.Map(PortStatus, &hwio.Port{
		Name:   "STATUS",
		Flags:  hwio.ReadOnlyFlag,
		ReadCb: b.readStatus,
	})

	b.OnSpeed(func(hz uint64) {
		b.Keypad.SetHold(platform.Cycles(b.cfg.KeyHold, hz))
		b.Speaker.SetCyclesPerSecond(hz)
		b.Serial.SetCyclesPerSecond(hz)
	})
}

// SetSnapshotSource sets the function building snapshots for OnUpdate.
func (b *Board) SetSnapshotSource(fn func() platform.Snapshot) {
	b.notifier = platform.NewNotifier(b.cfg.UpdateInterval, fn)
}

// OnSpeed registers fn to be called with the new clock rate on speed changes.
func (b *Board) OnSpeed(fn func(hz uint64)) {
	b.speedHooks = append(b.speedHooks, fn)
}

func (b *Board) Config() platform.Config { return b.cfg }

func (b *Board) writeDigits(_, val uint8) {
	b.Display.Select(val)
	b.Speaker.SetLevel(val&digitsSpeaker != 0)
	b.Serial.SetTX(val&digitsSerialTX != 0)
}

func (b *Board) readStatus(uint8) uint8 {
	v := uint8(0xFF)
	if b.Keypad.Down() {
		v &^= statusKeyUp
	}
	if !b.Serial.RX() {
		v &^= statusSerialRX
	}
	return v
}

func (b *Board) Read(port uint8) uint8       { return b.IO.Read8(port) }
func (b *Board) Write(port uint8, val uint8) { b.IO.Write8(port, val) }

// Tick delivers the interrupt raised by the last key press, once.
func (b *Board) Tick() cpu.Tick {
	irq := b.irq
	b.irq = nil
	return cpu.Tick{Interrupt: irq}
}

func (b *Board) ApplyKey(k input.Key) {
	b.Keypad.Press(k)
	if b.cfg.KeyNMI {
		b.irq = cpu.NMI
	}
}

func (b *Board) QueueSerial(data []byte) { b.Serial.Queue(data) }

func (b *Board) RecordCycles(n uint64) { b.clk.Advance(n) }

// SilenceSpeaker turns the speaker off. Serial lines are timed in emulated
// cycles and simply stop with the CPU.
func (b *Board) SilenceSpeaker() { b.Speaker.Silence() }

func (b *Board) Speed() platform.Speed { return b.speed }

func (b *Board) SetSpeed(s platform.Speed) {
	if s == b.speed {
		return
	}
	b.speed = s
	b.hz = b.cfg.Hz(s)

	log.ModEmu.InfoZ("speed change").
		Stringer("speed", s).
		Uint64("hz", b.hz).
		End()

	for _, fn := range b.speedHooks {
		fn(b.hz)
	}
	b.schedulePoll()
}

// ResetState returns the board to its power-on state. The clock keeps its
// cycle count.
func (b *Board) ResetState() {
	b.Keypad.Reset()
	b.Display.Reset()
	b.Speaker.Reset()
	b.Serial.Reset()
	b.digits.Value = 0
	b.irq = nil
}

func (b *Board) OnSerial(fn func(uart.Frame)) { b.Serial.OnByte(fn) }

func (b *Board) OnUpdate(fn func(platform.Snapshot)) {
	b.notifier.SetCallback(fn)
	b.schedulePoll()
}

// schedulePoll polls the notifier every update interval of emulated time.
func (b *Board) schedulePoll() {
	if b.pollEv != 0 {
		b.clk.Cancel(b.pollEv)
		b.pollEv = 0
	}
	interval := platform.Cycles(b.cfg.UpdateInterval, b.hz)
	if interval == 0 {
		interval = b.hz / 1000
	}
	b.pollEv = b.clk.ScheduleEvery(interval, b.notifier.Poll)
}

func (b *Board) Flush() { b.notifier.Flush() }

func (b *Board) Snapshot() platform.Snapshot { return b.snapshot() }

func (b *Board) snapshot() platform.Snapshot {
	return b.BaseSnapshot()
}

// BaseSnapshot returns the part of the snapshot common to TEC-1 boards.
func (b *Board) BaseSnapshot() platform.Snapshot {
	return platform.Snapshot{
		Platform:  b.Name,
		Digits:    b.Display.Digits(),
		Speaker:   b.Speaker.On(),
		SpeakerHz: b.Speaker.Frequency(),
		Speed:     b.speed,
	}
}

func (b *Board) Clock() *sched.Clock { return b.clk }
func (b *Board) ClockHz() uint64     { return b.hz }

// NewBoard builds a board named name, for boards extending the TEC-1.
func NewBoard(name string, cfg platform.Config) *Board {
	cfg.Normalize()
	b := &Board{Name: name}
	b.init(cfg)
	b.SetSnapshotSource(b.snapshot)
	return b
}
