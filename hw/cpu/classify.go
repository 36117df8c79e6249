package cpu

// Kind tells how an instruction affects the call stack.
type Kind uint8

const (
	KindNone Kind = iota
	KindCall
	KindReturn
)

func (k Kind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindReturn:
		return "ret"
	}
	return "none"
}

// Classification describes the instruction about to execute.
type Classification struct {
	Kind  Kind
	Taken bool // condition holds (always true for unconditional forms)

	// For calls, Target is the called address and Return the address of the
	// following instruction. For returns, Target is the address popped from
	// the stack.
	Target uint16
	Return uint16
}

// Flag bits of the F register.
const (
	flagC  = 0x01
	flagPV = 0x04
	flagZ  = 0x40
	flagS  = 0x80
)

// condition evaluates the 3-bit condition code cc (NZ Z NC C PO PE P M).
func condition(f uint8, cc uint8) bool {
	var set bool
	switch cc >> 1 {
	case 0:
		set = f&flagZ != 0
	case 1:
		set = f&flagC != 0
	case 2:
		set = f&flagPV != 0
	case 3:
		set = f&flagS != 0
	}
	if cc&1 == 0 {
		return !set
	}
	return set
}

// Classify inspects the instruction at PC without executing it.
func (c *CPU) Classify() Classification {
	pc := c.z.PC
	op := c.mem.Get(pc)
	f := c.z.AF.Lo

	switch {
	case op == 0xCD:
		return Classification{Kind: KindCall, Taken: true, Target: c.word(pc + 1), Return: pc + 3}
	case op&0xC7 == 0xC4: // CALL cc,nn
		return Classification{Kind: KindCall, Taken: condition(f, op>>3&7), Target: c.word(pc + 1), Return: pc + 3}
	case op&0xC7 == 0xC7: // RST n
		return Classification{Kind: KindCall, Taken: true, Target: uint16(op & 0x38), Return: pc + 1}
	case op == 0xC9:
		return Classification{Kind: KindReturn, Taken: true, Target: c.word(c.z.SP)}
	case op&0xC7 == 0xC0: // RET cc
		return Classification{Kind: KindReturn, Taken: condition(f, op>>3&7), Target: c.word(c.z.SP)}
	case op == 0xED:
		// The ED x5/xD mirrors of RETN do not return on this core.
		if op2 := c.mem.Get(pc + 1); op2 == 0x45 || op2 == 0x4D { // RETN, RETI
			return Classification{Kind: KindReturn, Taken: true, Target: c.word(c.z.SP)}
		}
	}
	return Classification{}
}

func (c *CPU) word(addr uint16) uint16 {
	return uint16(c.mem.Get(addr)) | uint16(c.mem.Get(addr+1))<<8
}
