// Package platform holds the pieces shared by the trainer board emulations:
// keypad latch, multiplexed 7-segment display, bit-banged serial port and the
// rate-limited snapshot notifier.
package platform

import (
	"fmt"
	"time"

	"debug80/hw/cpu"
	"debug80/hw/input"
	"debug80/hw/sched"
	"debug80/hw/sdspi"
	"debug80/hw/uart"
)

// Platform is a trainer board seen from the emulator. Platforms are driven
// from a single goroutine.
type Platform interface {
	cpu.IO

	ApplyKey(k input.Key)
	QueueSerial(data []byte)
	RecordCycles(n uint64)
	SilenceSpeaker()
	SetSpeed(s Speed)
	Speed() Speed
	ResetState()

	OnUpdate(fn func(Snapshot))
	OnSerial(fn func(uart.Frame))
	Snapshot() Snapshot
	// Flush emits a snapshot now if the visible state changed since the last
	// one, regardless of the update interval.
	Flush()

	Clock() *sched.Clock
	ClockHz() uint64
}

type Speed uint8

const (
	SpeedFast Speed = iota
	SpeedSlow
)

func (s Speed) String() string {
	switch s {
	case SpeedFast:
		return "fast"
	case SpeedSlow:
		return "slow"
	}
	return fmt.Sprintf("Speed(%d)", uint8(s))
}

func (s Speed) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Speed) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "fast":
		*s = SpeedFast
	case "slow":
		*s = SpeedSlow
	default:
		return fmt.Errorf("unknown speed %q", text)
	}
	return nil
}

// Config is the normalized board configuration.
type Config struct {
	ClockHz     uint64
	SlowClockHz uint64
	Speed       Speed

	// KeyHold is how long a key stays down after a press.
	KeyHold time.Duration
	// KeyNMI raises a non-maskable interrupt on key press.
	KeyNMI bool

	// UpdateInterval is the minimum wall-clock time between two snapshots.
	UpdateInterval time.Duration

	Serial     uart.Config
	LCDColumns int
	SD         sdspi.Config
}

const (
	DefaultClockHz        = 4_000_000
	DefaultSlowClockHz    = 400_000
	DefaultKeyHold        = 40 * time.Millisecond
	DefaultUpdateInterval = 33 * time.Millisecond
)

func (cfg *Config) Normalize() {
	if cfg.ClockHz == 0 {
		cfg.ClockHz = DefaultClockHz
	}
	if cfg.SlowClockHz == 0 {
		cfg.SlowClockHz = DefaultSlowClockHz
	}
	if cfg.KeyHold <= 0 {
		cfg.KeyHold = DefaultKeyHold
	}
	if cfg.UpdateInterval < 0 {
		cfg.UpdateInterval = 0
	}
	if cfg.LCDColumns != 16 {
		cfg.LCDColumns = 20
	}
	if cfg.SD == (sdspi.Config{}) {
		cfg.SD = sdspi.DefaultConfig()
	}
	cfg.Serial.Normalize()
}

// Hz returns the clock rate for speed s.
func (cfg *Config) Hz(s Speed) uint64 {
	if s == SpeedSlow {
		return cfg.SlowClockHz
	}
	return cfg.ClockHz
}

// Cycles converts d to a cycle count at hz.
func Cycles(d time.Duration, hz uint64) uint64 {
	return uint64(d.Microseconds()) * hz / 1_000_000
}
