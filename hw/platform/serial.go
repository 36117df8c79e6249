package platform

import (
	"debug80/emu/log"
	"debug80/hw/sched"
	"debug80/hw/uart"
)

// Serial is the bit-banged serial port of a board: the CPU drives the TX line
// through a port bit and polls the RX line.
type Serial struct {
	dec *uart.Decoder
	tx  *uart.Transmitter

	onByte func(uart.Frame)
	txLine bool
}

func NewSerial(clk *sched.Clock, cfg uart.Config) *Serial {
	s := &Serial{
		dec:    uart.NewDecoder(clk, cfg),
		tx:     uart.NewTransmitter(clk, cfg),
		txLine: !cfg.Inverted,
	}
	s.dec.SetByteHandler(s.received)
	return s
}

func (s *Serial) received(f uart.Frame) {
	log.ModSerial.DebugZ("tx byte").
		Hex8("byte", f.Byte).
		Bool("parity", f.ParityOK).
		Bool("framing", f.FramingOK).
		End()
	if s.onByte != nil {
		s.onByte(f)
	}
}

// OnByte registers fn to receive the bytes sent by the CPU.
func (s *Serial) OnByte(fn func(uart.Frame)) { s.onByte = fn }

// SetTX records the level of the CPU TX line.
func (s *Serial) SetTX(level bool) {
	if level == s.txLine {
		return
	}
	s.txLine = level
	s.dec.RecordLevel(level)
}

// RX returns the level of the line the CPU receives on.
func (s *Serial) RX() bool { return s.tx.Level() }

// Queue queues bytes for the CPU to receive.
func (s *Serial) Queue(data []byte) { s.tx.Queue(data) }

func (s *Serial) SetCyclesPerSecond(hz uint64) {
	s.dec.SetCyclesPerSecond(hz)
	s.tx.SetCyclesPerSecond(hz)
}

// Reset drops the frame being decoded and the bytes waiting to be received.
func (s *Serial) Reset() {
	s.dec.Reset()
	s.tx.Reset()
}
