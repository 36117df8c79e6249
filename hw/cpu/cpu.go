// Package cpu runs Z80 code on a flat memory image, counting T-states per
// instruction and delivering interrupts requested by the machine's IO.
package cpu

import (
	"io"

	"github.com/koron-go/z80"

	"debug80/emu/log"
)

// StepResult reports what a single Step did.
type StepResult struct {
	Cycles  int
	Halted  bool // CPU sits on HALT waiting for an interrupt
	Stopped bool // the IO asked to stop

	// Interrupt is set when an interrupt was accepted after the instruction.
	// IntReturn is then the address pushed on the stack and IntVector the
	// address of the handler.
	Interrupt *Interrupt
	IntReturn uint16
	IntVector uint16
}

type CPU struct {
	z   z80.CPU
	mem *Memory
	io  IO

	pending *Interrupt // maskable request not yet accepted

	Cycles uint64 // total T-states since reset

	trace *tracer
}

func New(mem *Memory, io IO) *CPU {
	c := &CPU{mem: mem, io: io}
	c.z.Memory = mem
	c.z.IO = ioAdapter{io}
	c.Reset()
	return c
}

// Reset puts the CPU in its power-on state: registers cleared, PC at 0,
// interrupts disabled.
func (c *CPU) Reset() {
	c.z.States = z80.States{}
	c.z.SP = 0xFFFF
	c.z.Interrupt = nil
	c.pending = nil
	c.Cycles = 0
}

func (c *CPU) PC() uint16      { return c.z.PC }
func (c *CPU) SetPC(pc uint16) { c.z.PC = pc }
func (c *CPU) SP() uint16      { return c.z.SP }
func (c *CPU) SetSP(sp uint16) { c.z.SP = sp }
func (c *CPU) Halted() bool    { return c.z.HALT }
func (c *CPU) Memory() *Memory { return c.mem }

func (c *CPU) InterruptMode() int { return c.z.IM }

// SetTraceOutput enables the execution trace. A nil writer disables it.
func (c *CPU) SetTraceOutput(w io.Writer) {
	if w == nil {
		c.trace = nil
		return
	}
	c.trace = &tracer{w: w, mem: c.mem}
}

// Step executes one instruction, or idles 4 T-states when halted, then lets
// the IO tick and accepts the interrupt it may request.
func (c *CPU) Step() StepResult {
	var res StepResult
	eiExecuted := false

	if c.z.HALT {
		res.Cycles = 4
	} else {
		pc := c.z.PC
		op := c.mem.Get(pc)
		if c.trace != nil {
			c.trace.write(c.Regs(), c.Cycles)
		}
		cycles := instrCycles(c.mem, pc)
		taken := c.conditionTaken(op)

		c.z.Step()

		res.Cycles = adjustTaken(op, c.mem.Get(pc+1), pc, c.z.PC, cycles, taken)
		eiExecuted = op == 0xFB
	}
	c.Cycles += uint64(res.Cycles)

	tick := c.io.Tick()
	res.Stopped = tick.Stop

	if intr := tick.Interrupt; intr != nil {
		if intr.NonMaskable {
			c.acceptNMI(&res)
		} else {
			c.pending = intr
		}
	}
	// Interrupts are not accepted right after EI, only after the following
	// instruction.
	if res.Interrupt == nil && c.pending != nil && !eiExecuted && c.z.IFF1 {
		c.acceptINT(&res)
	}

	res.Halted = c.z.HALT
	return res
}

// conditionTaken evaluates, before execution, the condition of conditional
// branches whose timing depends on it.
func (c *CPU) conditionTaken(op uint8) bool {
	f := c.z.AF.Lo
	switch {
	case op == 0x10: // DJNZ
		return c.z.BC.Hi != 1
	case op == 0x20, op == 0x28, op == 0x30, op == 0x38: // JR cc
		return condition(f, op>>3&3)
	case op&0xC7 == 0xC4, op&0xC7 == 0xC0: // CALL cc, RET cc
		return condition(f, op>>3&7)
	}
	return false
}

func adjustTaken(op, op2 uint8, pcBefore, pcAfter uint16, cycles int, taken bool) int {
	switch {
	case op == 0x10:
		if taken {
			return 13
		}
		return 8
	case op == 0x20, op == 0x28, op == 0x30, op == 0x38:
		if taken {
			return 12
		}
		return 7
	case op&0xC7 == 0xC4:
		if taken {
			return 17
		}
		return 10
	case op&0xC7 == 0xC0:
		if taken {
			return 11
		}
		return 5
	case op == 0xED && op2 >= 0xB0 && op2 <= 0xBB && op2&0x04 == 0:
		if pcAfter == pcBefore {
			return 21 // repeating
		}
	}
	return cycles
}

func (c *CPU) push(v uint16) {
	c.z.SP--
	c.mem.Set(c.z.SP, uint8(v>>8))
	c.z.SP--
	c.mem.Set(c.z.SP, uint8(v))
}

// wake leaves the HALT state, the return address is the instruction
// following HALT.
func (c *CPU) wake() {
	if c.z.HALT {
		c.z.HALT = false
		c.z.PC++
	}
}

func (c *CPU) acceptNMI(res *StepResult) {
	c.wake()
	c.z.IFF2 = c.z.IFF1
	c.z.IFF1 = false
	ret := c.z.PC
	c.push(ret)
	c.z.PC = 0x0066

	res.Cycles += 11
	res.Interrupt = NMI
	res.IntReturn = ret
	res.IntVector = 0x0066
	c.Cycles += 11

	log.ModCPU.DebugZ("nmi").Hex16("ret", ret).End()
}

func (c *CPU) acceptINT(res *StepResult) {
	intr := c.pending
	c.pending = nil

	c.wake()
	c.z.IFF1 = false
	c.z.IFF2 = false
	ret := c.z.PC
	c.push(ret)

	cycles := 13
	switch c.z.IM {
	case 0:
		// Only RST opcodes are supported on the data bus.
		if intr.Data&0xC7 == 0xC7 {
			c.z.PC = uint16(intr.Data & 0x38)
		} else {
			c.z.PC = 0x0038
		}
	case 1:
		c.z.PC = 0x0038
	case 2:
		vec := uint16(c.z.IR.Hi)<<8 | uint16(intr.Data&0xFE)
		c.z.PC = c.word(vec)
		cycles = 19
	}

	res.Cycles += cycles
	res.Interrupt = intr
	res.IntReturn = ret
	res.IntVector = c.z.PC
	c.Cycles += uint64(cycles)

	log.ModCPU.DebugZ("int").
		Int("im", c.z.IM).
		Hex16("ret", ret).
		Hex16("vector", c.z.PC).
		End()
}

// Interrupt requests an interrupt outside of IO ticks. A non-maskable request
// is accepted immediately, a maskable one on the next instruction boundary
// where interrupts are enabled.
func (c *CPU) Interrupt(intr *Interrupt) {
	if intr.NonMaskable {
		var res StepResult
		c.acceptNMI(&res)
		return
	}
	c.pending = intr
}

// Regs is a snapshot of the register file.
type Regs struct {
	AF, BC, DE, HL uint16
	IX, IY, SP, PC uint16
	I              uint8
	IFF1, IFF2     bool
	IM             int
	Halted         bool
}

func (c *CPU) Regs() Regs {
	pair := func(hi, lo uint8) uint16 { return uint16(hi)<<8 | uint16(lo) }
	return Regs{
		AF:     pair(c.z.AF.Hi, c.z.AF.Lo),
		BC:     pair(c.z.BC.Hi, c.z.BC.Lo),
		DE:     pair(c.z.DE.Hi, c.z.DE.Lo),
		HL:     pair(c.z.HL.Hi, c.z.HL.Lo),
		IX:     c.z.IX,
		IY:     c.z.IY,
		SP:     c.z.SP,
		PC:     c.z.PC,
		I:      c.z.IR.Hi,
		IFF1:   c.z.IFF1,
		IFF2:   c.z.IFF2,
		IM:     c.z.IM,
		Halted: c.z.HALT,
	}
}
