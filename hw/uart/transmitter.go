package uart

import (
	"debug80/emu/log"
	"debug80/hw/sched"
)

type txState uint8

const (
	txIdle txState = iota
	txSending
)

// Transmitter serializes queued bytes onto a line, one bit per bit time.
type Transmitter struct {
	clk *sched.Clock
	cfg Config

	onLevel func(level bool)

	queue []byte

	state      txState
	bits       []bool // logical levels of the frame being sent, start bit first
	bitIndex   int
	frameStart uint64
	ev         sched.EventID
	mark       bool
}

func NewTransmitter(clk *sched.Clock, cfg Config) *Transmitter {
	cfg.Normalize()
	return &Transmitter{clk: clk, cfg: cfg, mark: true}
}

// OnLevel registers fn to be called on every line level change.
func (t *Transmitter) OnLevel(fn func(level bool)) { t.onLevel = fn }

func (t *Transmitter) SetCyclesPerSecond(hz uint64) { t.cfg.CyclesPerSecond = hz }

// Level returns the physical line level.
func (t *Transmitter) Level() bool { return t.mark != t.cfg.Inverted }

func (t *Transmitter) Busy() bool { return t.state == txSending }

// Pending returns the number of bytes waiting to be sent, excluding the one
// in flight.
func (t *Transmitter) Pending() int { return len(t.queue) }

// Queue appends data to the send queue and starts sending if idle.
func (t *Transmitter) Queue(data []byte) {
	t.queue = append(t.queue, data...)
	if t.state == txIdle {
		t.next()
	}
}

func (t *Transmitter) next() {
	if len(t.queue) == 0 {
		t.state = txIdle
		return
	}
	b := t.queue[0]
	t.queue = t.queue[1:]

	t.bits = t.bits[:0]
	t.bits = append(t.bits, false)
	for i := range t.cfg.DataBits {
		t.bits = append(t.bits, b>>i&1 != 0)
	}
	if t.cfg.Parity != ParityNone {
		t.bits = append(t.bits, t.cfg.parityBit(b))
	}
	for range t.cfg.StopBits {
		t.bits = append(t.bits, true)
	}

	log.ModSerial.DebugZ("sending byte").Hex8("byte", b).End()

	t.state = txSending
	t.frameStart = t.clk.Now()
	t.bitIndex = 0
	t.emit()
}

// emit drives the current bit and schedules the following one.
func (t *Transmitter) emit() {
	if t.bitIndex == len(t.bits) {
		t.next()
		return
	}
	t.setMark(t.bits[t.bitIndex])
	t.bitIndex++
	at := t.frameStart + t.cfg.offset(float64(t.bitIndex))
	t.ev = t.clk.ScheduleAt(at, t.emit)
}

func (t *Transmitter) setMark(mark bool) {
	if mark == t.mark {
		return
	}
	t.mark = mark
	if t.onLevel != nil {
		t.onLevel(t.Level())
	}
}

// Reset drops queued bytes, aborts the frame in flight and idles the line.
func (t *Transmitter) Reset() {
	if t.state == txSending {
		t.clk.Cancel(t.ev)
	}
	t.queue = t.queue[:0]
	t.state = txIdle
	t.setMark(true)
}
