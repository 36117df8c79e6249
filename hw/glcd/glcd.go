// Package glcd emulates an ST7920 128x64 graphics LCD controller, with its
// text (DDRAM) and graphics (GDRAM) planes and the extended instruction set.
package glcd

import (
	"debug80/emu/log"
	"debug80/hw/sched"
)

// Timings, in microseconds.
const (
	opTime        = 72
	clearTime     = 1600
	gdramAddrTime = 72
	gdramDataTime = 72
	blinkTime     = 400_000
)

const (
	busyFlag = 0x80
	blank    = 0x20

	Width       = 128
	Height      = 64
	BytesPerRow = Width / 8
)

type target uint8

const (
	toDDRAM target = iota
	toCGRAM
	toGDRAM
)

type GLCD struct {
	clk *sched.Clock
	hz  uint64

	extended bool // RE
	graphics bool // G, graphic display on

	target target

	ddram      [64]uint8
	ddramAddr  uint8 // 5 bits
	ddramPhase int

	cgram      [128]uint8
	cgramAddr  uint8 // 6 bits, two bytes per address
	cgramPhase int

	gdram      [BytesPerRow * Height]uint8
	rowAddr    uint8 // 5 bits
	col        uint8 // 4 bits, bit 3 selects the lower half
	gdramPhase int
	gdramStep  int // 0: next address write is the row, 1: the column

	increment   bool
	entryShift  bool
	textShift   int
	displayOn   bool
	cursorOn    bool
	cursorBlink bool

	scrollSelect   bool // SR
	scrollOffset   uint8
	reverseRowMask uint8

	blinkVisible bool
	blinkEv      sched.EventID
	busyUntil    uint64
}

func New(clk *sched.Clock, cyclesPerSecond uint64) *GLCD {
	if cyclesPerSecond == 0 {
		cyclesPerSecond = 4_000_000
	}
	g := &GLCD{clk: clk, hz: cyclesPerSecond}
	g.Reset()
	return g
}

func (g *GLCD) Reset() {
	g.extended, g.graphics = false, false
	g.target = toDDRAM
	for i := range g.ddram {
		g.ddram[i] = blank
	}
	g.ddramAddr, g.ddramPhase = 0, 0
	clear(g.cgram[:])
	g.cgramAddr, g.cgramPhase = 0, 0
	clear(g.gdram[:])
	g.rowAddr, g.col, g.gdramPhase, g.gdramStep = 0, 0, 0, 0
	g.increment, g.entryShift, g.textShift = true, false, 0
	g.displayOn, g.cursorOn, g.cursorBlink = false, false, false
	g.scrollSelect, g.scrollOffset, g.reverseRowMask = false, 0, 0
	g.busyUntil = 0
	g.blinkVisible = true
	g.scheduleBlink()
}

func (g *GLCD) scheduleBlink() {
	if g.blinkEv != 0 {
		g.clk.Cancel(g.blinkEv)
	}
	g.blinkEv = g.clk.ScheduleEvery(g.cycles(blinkTime), func() {
		g.blinkVisible = !g.blinkVisible
	})
}

func (g *GLCD) SetCyclesPerSecond(hz uint64) {
	g.hz = hz
	g.scheduleBlink()
}

func (g *GLCD) cycles(us uint64) uint64 { return g.hz * us / 1_000_000 }

func (g *GLCD) setBusy(us uint64) {
	g.busyUntil = g.clk.Now() + g.cycles(us)
}

func (g *GLCD) Busy() bool { return g.clk.Now() < g.busyUntil }

// WriteInstruction decodes v with the basic or the extended instruction set
// depending on RE.
func (g *GLCD) WriteInstruction(v uint8) {
	log.ModGLCD.DebugZ("instruction").
		Hex8("val", v).
		Bool("ext", g.extended).
		End()

	if v&0xE0 == 0x20 {
		g.functionSet(v)
		g.setBusy(opTime)
		return
	}
	if g.extended {
		g.extendedInstruction(v)
		return
	}
	g.basicInstruction(v)
}

func (g *GLCD) functionSet(v uint8) {
	g.gdramStep = 0
	g.extended = v&0x04 != 0
	if g.extended {
		g.graphics = v&0x02 != 0
	}
}

func (g *GLCD) basicInstruction(v uint8) {
	switch {
	case v&0x80 != 0:
		g.ddramAddr = v & 0x1F
		g.ddramPhase = 0
		g.target = toDDRAM
	case v&0x40 != 0:
		g.cgramAddr = v & 0x3F
		g.cgramPhase = 0
		g.target = toCGRAM
	case v&0x10 != 0:
		right := v&0x04 != 0
		if v&0x08 != 0 {
			if right {
				g.textShift--
			} else {
				g.textShift++
			}
		} else {
			g.ddramAddr = step(g.ddramAddr, right)
			g.ddramPhase = 0
		}
	case v&0x08 != 0:
		g.displayOn = v&0x04 != 0
		g.cursorOn = v&0x02 != 0
		g.cursorBlink = v&0x01 != 0
	case v&0x04 != 0:
		g.increment = v&0x02 != 0
		g.entryShift = v&0x01 != 0
	case v&0x02 != 0:
		g.ddramAddr, g.ddramPhase = 0, 0
		g.textShift = 0
		g.target = toDDRAM
	case v&0x01 != 0:
		for i := range g.ddram {
			g.ddram[i] = blank
		}
		g.ddramAddr, g.ddramPhase = 0, 0
		g.textShift = 0
		g.increment = true
		g.target = toDDRAM
		g.setBusy(clearTime)
		return
	}
	g.setBusy(opTime)
}

func (g *GLCD) extendedInstruction(v uint8) {
	switch {
	case v&0x80 != 0:
		if g.gdramStep == 0 {
			g.rowAddr = v & 0x1F
			g.gdramStep = 1
		} else {
			g.col = v & 0x0F
			g.gdramStep = 0
			g.gdramPhase = 0
			g.target = toGDRAM
		}
		g.setBusy(gdramAddrTime)
		return
	case v&0x40 != 0:
		if g.scrollSelect {
			g.scrollOffset = v & 0x3F
		}
	case v&0x08 != 0:
		// sleep mode, not emulated
	case v&0x04 != 0:
		g.reverseRowMask ^= 1 << (v & 0x03)
	case v&0x02 != 0:
		g.scrollSelect = v&0x01 != 0
	case v&0x01 != 0:
		// standby, not emulated
	}
	g.setBusy(opTime)
}

func step(addr uint8, inc bool) uint8 {
	if inc {
		return (addr + 1) & 0x1F
	}
	return (addr - 1) & 0x1F
}

// ddramSlot maps a DDRAM address and byte phase to a storage slot. Rows are
// interleaved: bit 4 selects rows 1/2, bit 3 rows 3/4.
func ddramSlot(addr uint8, phase int) int {
	row := int(addr>>4&1) + int(addr>>3&1)*2
	col := int(addr & 7)
	return (row*8+col)*2 + phase
}

func (g *GLCD) gdramIndex() int {
	rowBase := 0
	if g.col&0x08 != 0 {
		rowBase = 32
	}
	return (int(g.rowAddr)+rowBase)*BytesPerRow + int(g.col&7)*2 + g.gdramPhase
}

// advance moves the target address after a data byte. Addresses hold two
// bytes and move after the second one.
func (g *GLCD) advance() {
	switch g.target {
	case toGDRAM:
		g.gdramPhase ^= 1
		if g.gdramPhase == 0 {
			g.col = (g.col + 1) & 0x0F
		}
	case toCGRAM:
		g.cgramPhase ^= 1
		if g.cgramPhase == 0 {
			g.cgramAddr = (g.cgramAddr + 1) & 0x3F
		}
	default:
		g.ddramPhase ^= 1
		if g.ddramPhase == 0 {
			g.ddramAddr = step(g.ddramAddr, g.increment)
			if g.entryShift {
				if g.increment {
					g.textShift++
				} else {
					g.textShift--
				}
			}
		}
	}
}

func (g *GLCD) WriteData(v uint8) {
	switch g.target {
	case toGDRAM:
		g.gdram[g.gdramIndex()] = v
		g.advance()
		g.setBusy(gdramDataTime)
		return
	case toCGRAM:
		g.cgram[int(g.cgramAddr)*2+g.cgramPhase] = v
	default:
		g.ddram[ddramSlot(g.ddramAddr, g.ddramPhase)] = v
	}
	g.advance()
	g.setBusy(opTime)
}

func (g *GLCD) ReadData() uint8 {
	var v uint8
	switch g.target {
	case toGDRAM:
		v = g.gdram[g.gdramIndex()]
	case toCGRAM:
		v = g.cgram[int(g.cgramAddr)*2+g.cgramPhase]
	default:
		v = g.ddram[ddramSlot(g.ddramAddr, g.ddramPhase)]
	}
	g.advance()
	g.setBusy(opTime)
	return v
}

// ReadStatus returns the busy flag with the address counter: the GDRAM row in
// graphics mode, the DDRAM address otherwise.
func (g *GLCD) ReadStatus() uint8 {
	v := g.ddramAddr
	if g.graphics {
		v = g.rowAddr
	}
	if g.Busy() {
		v |= busyFlag
	}
	return v
}

type Snapshot struct {
	Text           [4][]byte
	GDRAM          []byte
	Graphics       bool
	Extended       bool
	DisplayOn      bool
	CursorOn       bool
	CursorBlink    bool
	BlinkVisible   bool
	Cursor         uint8
	ReverseRowMask uint8
	ScrollOffset   uint8
	TextShift      int
}

func (g *GLCD) Snapshot() Snapshot {
	s := Snapshot{
		GDRAM:          append([]byte(nil), g.gdram[:]...),
		Graphics:       g.graphics,
		Extended:       g.extended,
		DisplayOn:      g.displayOn,
		CursorOn:       g.cursorOn,
		CursorBlink:    g.cursorBlink,
		BlinkVisible:   g.blinkVisible,
		Cursor:         g.ddramAddr,
		ReverseRowMask: g.reverseRowMask,
		ScrollOffset:   g.scrollOffset,
		TextShift:      g.textShift,
	}
	for r := range s.Text {
		s.Text[r] = append([]byte(nil), g.ddram[r*16:(r+1)*16]...)
	}
	return s
}

// Pixel reports whether pixel (x, y) of the graphics plane is set.
func (g *GLCD) Pixel(x, y int) bool {
	b := g.gdram[y*BytesPerRow+x/8]
	return b&(0x80>>(x%8)) != 0
}
