package cpu

// T-states of unprefixed opcodes. Conditional instructions hold their
// not-taken timing; prefixes hold 0.
var baseCycles = [256]uint8{
	// 0  1   2   3   4   5   6   7   8   9   A   B   C   D   E   F
	4, 10, 7, 6, 4, 4, 7, 4, 4, 11, 7, 6, 4, 4, 7, 4, // 0
	8, 10, 7, 6, 4, 4, 7, 4, 12, 11, 7, 6, 4, 4, 7, 4, // 1
	7, 10, 16, 6, 4, 4, 7, 4, 7, 11, 16, 6, 4, 4, 7, 4, // 2
	7, 10, 13, 6, 11, 11, 10, 4, 7, 11, 13, 6, 4, 4, 7, 4, // 3
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 4
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 5
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 6
	7, 7, 7, 7, 7, 7, 4, 7, 4, 4, 4, 4, 4, 4, 7, 4, // 7
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 8
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 9
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // A
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // B
	5, 10, 10, 10, 10, 11, 7, 11, 5, 10, 10, 0, 10, 17, 7, 11, // C
	5, 10, 10, 11, 10, 11, 7, 11, 5, 4, 10, 11, 10, 0, 7, 11, // D
	5, 10, 10, 19, 10, 11, 7, 11, 5, 4, 10, 4, 10, 0, 7, 11, // E
	5, 10, 10, 4, 10, 11, 7, 11, 5, 6, 10, 4, 10, 0, 7, 11, // F
}

// usesHL reports whether an unprefixed opcode addresses memory through (HL),
// which becomes (IX+d) or (IY+d) behind a DD or FD prefix.
func usesHL(op uint8) bool {
	switch {
	case op == 0x34, op == 0x35, op == 0x36:
		return true
	case op == 0x76:
		return false
	case op >= 0x40 && op <= 0x7F:
		return op&0x07 == 6 || op&0xF8 == 0x70
	case op >= 0x80 && op <= 0xBF:
		return op&0x07 == 6
	}
	return false
}

func cbCycles(op uint8) int {
	if op&0x07 != 6 {
		return 8
	}
	if op >= 0x40 && op <= 0x7F {
		return 12 // BIT n,(HL)
	}
	return 15
}

func indexCycles(op uint8) int {
	switch {
	case op == 0x34, op == 0x35:
		return 23
	case usesHL(op):
		return 19
	}
	return 4 + int(baseCycles[op])
}

func indexCBCycles(op uint8) int {
	if op >= 0x40 && op <= 0x7F {
		return 20
	}
	return 23
}

func edCycles(op uint8) int {
	switch {
	case op >= 0x40 && op <= 0x7F:
		switch op & 0x07 {
		case 0, 1:
			return 12 // IN r,(C) / OUT (C),r
		case 2:
			return 15 // SBC/ADC HL,rr
		case 3:
			return 20 // LD (nn),rr / LD rr,(nn)
		case 5:
			return 14 // RETN / RETI
		case 7:
			switch op {
			case 0x47, 0x4F, 0x57, 0x5F:
				return 9
			case 0x67, 0x6F:
				return 18
			}
		}
		return 8
	case op >= 0xA0 && op <= 0xBB && op&0x04 == 0:
		return 16 // block transfers; repeats are adjusted after execution
	}
	return 8
}

// instrCycles returns the T-states of the instruction at pc before it runs,
// assuming conditions are not taken.
func instrCycles(m *Memory, pc uint16) int {
	op := m.Get(pc)
	switch op {
	case 0xCB:
		return cbCycles(m.Get(pc + 1))
	case 0xED:
		return edCycles(m.Get(pc + 1))
	case 0xDD, 0xFD:
		op2 := m.Get(pc + 1)
		if op2 == 0xCB {
			return indexCBCycles(m.Get(pc + 3))
		}
		return indexCycles(op2)
	}
	return int(baseCycles[op])
}

// instrLen returns the encoded length of the instruction at pc.
func instrLen(m *Memory, pc uint16) int {
	op := m.Get(pc)
	switch op {
	case 0xCB:
		return 2
	case 0xED:
		switch m.Get(pc + 1) {
		case 0x43, 0x4B, 0x53, 0x5B, 0x63, 0x6B, 0x73, 0x7B:
			return 4
		}
		return 2
	case 0xDD, 0xFD:
		op2 := m.Get(pc + 1)
		if op2 == 0xCB {
			return 4
		}
		n := 1 + baseLen(op2)
		if usesHL(op2) {
			n++
		}
		return n
	}
	return baseLen(op)
}

func baseLen(op uint8) int {
	switch op {
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E,
		0x10, 0x18, 0x20, 0x28, 0x30, 0x38,
		0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE,
		0xD3, 0xDB:
		return 2
	case 0x01, 0x11, 0x21, 0x31, 0x22, 0x2A, 0x32, 0x3A,
		0xC2, 0xC3, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA,
		0xC4, 0xCC, 0xCD, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC:
		return 3
	}
	return 1
}
