package uart

import (
	"debug80/emu/log"
	"debug80/hw/sched"
)

// Frame is a decoded serial character. Errors are reported as flags, the byte
// is delivered regardless.
type Frame struct {
	Byte      uint8
	ParityOK  bool
	FramingOK bool
}

// Decoder reconstructs frames from line levels reported at instruction
// boundaries. A falling edge (towards the start bit level) on an idle line
// starts a frame; data bits are sampled at 1.5 bit times after the edge, then
// every bit time.
type Decoder struct {
	clk *sched.Clock
	cfg Config

	handler func(Frame)

	mark      bool // current logical level, true is idle
	receiving bool
	start     uint64
	bitIndex  int
	shift     uint8
	parityOK  bool
	framingOK bool
	sample    sched.EventID
}

func NewDecoder(clk *sched.Clock, cfg Config) *Decoder {
	cfg.Normalize()
	return &Decoder{clk: clk, cfg: cfg, mark: true}
}

func (d *Decoder) SetByteHandler(fn func(Frame)) { d.handler = fn }

// SetCyclesPerSecond changes the bit timing. A frame in progress keeps the
// timing it started with.
func (d *Decoder) SetCyclesPerSecond(hz uint64) { d.cfg.CyclesPerSecond = hz }

// RecordLevel reports the physical line level at the current cycle.
func (d *Decoder) RecordLevel(level bool) {
	mark := level != d.cfg.Inverted
	prev := d.mark
	d.mark = mark
	if d.receiving || !prev || mark {
		return
	}

	d.receiving = true
	d.start = d.clk.Now()
	d.bitIndex = 0
	d.shift = 0
	d.parityOK = true
	d.framingOK = true
	d.scheduleSample(d.cfg)
}

func (d *Decoder) scheduleSample(cfg Config) {
	at := d.start + cfg.offset(1.5+float64(d.bitIndex))
	d.sample = d.clk.ScheduleAt(at, func() { d.onSample(cfg) })
}

func (d *Decoder) onSample(cfg Config) {
	bit := d.mark
	idx := d.bitIndex
	switch {
	case idx < cfg.DataBits:
		if bit {
			d.shift |= 1 << idx
		}
	case cfg.Parity != ParityNone && idx == cfg.DataBits:
		d.parityOK = bit == cfg.parityBit(d.shift)
	default:
		if !bit {
			d.framingOK = false
		}
	}

	d.bitIndex++
	if d.bitIndex < cfg.frameBits() {
		d.scheduleSample(cfg)
		return
	}

	d.receiving = false
	f := Frame{Byte: d.shift, ParityOK: d.parityOK, FramingOK: d.framingOK}
	log.ModSerial.DebugZ("frame decoded").
		Hex8("byte", f.Byte).
		Bool("parity", f.ParityOK).
		Bool("framing", f.FramingOK).
		End()
	if d.handler != nil {
		d.handler(f)
	}
}

// Reset abandons the frame in progress and assumes an idle line.
func (d *Decoder) Reset() {
	if d.receiving {
		d.clk.Cancel(d.sample)
	}
	d.receiving = false
	d.mark = true
}
