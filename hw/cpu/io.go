package cpu

// IO is the port side of a machine. Read and Write serve IN and OUT
// instructions. Tick is called once after every instruction and may request
// an interrupt or ask the caller to stop.
type IO interface {
	Read(port uint8) uint8
	Write(port uint8, val uint8)
	Tick() Tick
}

type Tick struct {
	Interrupt *Interrupt
	Stop      bool
}

// Interrupt is an interrupt request. Data is the byte put on the data bus for
// maskable interrupts (RST opcode in mode 0, vector low byte in mode 2).
type Interrupt struct {
	NonMaskable bool
	Data        uint8
}

// NMI is a non-maskable interrupt request.
var NMI = &Interrupt{NonMaskable: true}

// ioAdapter exposes an IO as the port interface of the instruction core.
type ioAdapter struct{ io IO }

func (a ioAdapter) In(port uint8) uint8       { return a.io.Read(port) }
func (a ioAdapter) Out(port uint8, val uint8) { a.io.Write(port, val) }

// NopIO is an IO without any device: reads return 0xFF.
type NopIO struct{}

func (NopIO) Read(uint8) uint8   { return 0xFF }
func (NopIO) Write(uint8, uint8) {}
func (NopIO) Tick() Tick         { return Tick{} }
