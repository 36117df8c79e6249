package debugger

import (
	"fmt"
	"strings"

	"debug80/hw/cpu"
)

// Selector picks the address a memory view is centered on.
type Selector uint8

const (
	SelPC Selector = iota
	SelSP
	SelBC
	SelDE
	SelHL
	SelIX
	SelIY
	SelAbsolute
)

var selectorNames = [...]string{"pc", "sp", "bc", "de", "hl", "ix", "iy", "absolute"}

func (s Selector) String() string {
	if int(s) < len(selectorNames) {
		return selectorNames[s]
	}
	return fmt.Sprintf("Selector(%d)", uint8(s))
}

func ParseSelector(s string) (Selector, error) {
	for i, name := range selectorNames {
		if strings.EqualFold(s, name) {
			return Selector(i), nil
		}
	}
	return 0, fmt.Errorf("unknown memory selector %q", s)
}

const (
	minWindow = 16
	maxWindow = 4096
)

// MemView is a window of memory around a focus address.
type MemView struct {
	Base  uint16
	Bytes []byte
	// Focus is the offset of the focus address in Bytes.
	Focus int
	// ReadOnly holds, for each byte, whether it is write-protected.
	ReadOnly []bool
}

// ViewMemory returns a window of size bytes around the address selected by
// sel (addr for SelAbsolute). The window starts on a 16-byte boundary and
// wraps around the address space. It does not modify anything.
func ViewMemory(mem *cpu.Memory, regs cpu.Regs, sel Selector, addr uint16, size int) (MemView, error) {
	var focus uint16
	switch sel {
	case SelPC:
		focus = regs.PC
	case SelSP:
		focus = regs.SP
	case SelBC:
		focus = regs.BC
	case SelDE:
		focus = regs.DE
	case SelHL:
		focus = regs.HL
	case SelIX:
		focus = regs.IX
	case SelIY:
		focus = regs.IY
	case SelAbsolute:
		focus = addr
	default:
		return MemView{}, fmt.Errorf("unknown memory selector %d", sel)
	}

	size = min(max(size, minWindow), maxWindow)
	size = (size + 15) &^ 15

	base := focus&^0x0F - uint16(size/2)&^0x0F
	v := MemView{
		Base:     base,
		Bytes:    make([]byte, size),
		Focus:    int(focus - base),
		ReadOnly: make([]bool, size),
	}
	mem.Read(base, v.Bytes)
	for i := range v.ReadOnly {
		v.ReadOnly[i] = mem.ReadOnly(base + uint16(i))
	}
	return v, nil
}
