// Package lcd emulates an HD44780 character LCD controller as wired on the
// TEC-1G: one instruction port and one data port, 2-line addressing mapped to
// four visible rows.
package lcd

import (
	"debug80/emu/log"
	"debug80/hw/sched"
)

// Timings, in microseconds.
const (
	opTime    = 37
	clearTime = 1520
	blinkTime = 400_000
)

const (
	lineLen  = 40 // characters per DDRAM line
	busyFlag = 0x80
	blank    = 0x20
)

type Config struct {
	Columns         int // 16 or 20
	CyclesPerSecond uint64
}

func (c *Config) Normalize() {
	if c.Columns != 16 {
		c.Columns = 20
	}
	if c.CyclesPerSecond == 0 {
		c.CyclesPerSecond = 4_000_000
	}
}

type LCD struct {
	clk *sched.Clock
	cfg Config

	ddram [2 * lineLen]uint8
	cgram [64]uint8

	addr   uint8 // DDRAM address, 7 bits
	cgaddr uint8 // CGRAM address, 6 bits
	cgMode bool  // data accesses target CGRAM

	displayOn   bool
	cursorOn    bool
	cursorBlink bool
	increment   bool
	entryShift  bool
	function    uint8
	shift       int // display shift, in characters

	busyUntil  uint64
	blinkPhase bool
	blinkEv    sched.EventID
}

func New(clk *sched.Clock, cfg Config) *LCD {
	cfg.Normalize()
	l := &LCD{clk: clk, cfg: cfg}
	l.Reset()
	return l
}

// Reset puts the controller in its power-on state.
func (l *LCD) Reset() {
	for i := range l.ddram {
		l.ddram[i] = blank
	}
	clear(l.cgram[:])
	l.addr, l.cgaddr, l.cgMode = 0, 0, false
	l.displayOn, l.cursorOn, l.cursorBlink = false, false, false
	l.increment, l.entryShift = true, false
	l.function = 0
	l.shift = 0
	l.busyUntil = 0
	l.blinkPhase = true
	l.scheduleBlink()
}

func (l *LCD) scheduleBlink() {
	if l.blinkEv != 0 {
		l.clk.Cancel(l.blinkEv)
	}
	l.blinkEv = l.clk.ScheduleEvery(l.cycles(blinkTime), func() {
		l.blinkPhase = !l.blinkPhase
	})
}

// SetCyclesPerSecond updates timings after a CPU speed change.
func (l *LCD) SetCyclesPerSecond(hz uint64) {
	l.cfg.CyclesPerSecond = hz
	l.scheduleBlink()
}

func (l *LCD) cycles(us uint64) uint64 {
	return l.cfg.CyclesPerSecond * us / 1_000_000
}

func (l *LCD) setBusy(us uint64) {
	now := l.clk.Now()
	if now < l.busyUntil {
		log.ModLCD.DebugZ("access while busy").Uint64("left", l.busyUntil-now).End()
	}
	l.busyUntil = now + l.cycles(us)
}

// Busy reports whether the controller is still executing the last operation.
func (l *LCD) Busy() bool { return l.clk.Now() < l.busyUntil }

// windowStarts returns the first DDRAM address of each visible row.
func (l *LCD) windowStarts() [4]uint8 {
	cols := uint8(l.cfg.Columns)
	return [4]uint8{0x00, 0x40, cols, 0x40 + cols}
}

// next returns the address following addr in the direction of the entry
// mode, wrapping from the end of a row to the start of the next one.
func (l *LCD) next(addr uint8, inc bool) uint8 {
	starts := l.windowStarts()
	cols := uint8(l.cfg.Columns)
	for i, start := range starts {
		end := start + cols - 1
		if inc && addr == end {
			return starts[(i+1)%4]
		}
		if !inc && addr == start {
			return starts[(i+3)%4] + cols - 1
		}
	}
	if inc {
		return (addr + 1) & 0x7F
	}
	return (addr - 1) & 0x7F
}

// ddramIndex maps a DDRAM address to its storage slot. Addresses outside of
// both 40-character lines have no storage.
func ddramIndex(addr uint8) (int, bool) {
	switch {
	case addr < lineLen:
		return int(addr), true
	case addr >= 0x40 && addr < 0x40+lineLen:
		return int(addr-0x40) + lineLen, true
	}
	return 0, false
}

// WriteInstruction handles a write to the instruction register.
func (l *LCD) WriteInstruction(v uint8) {
	log.ModLCD.DebugZ("instruction").Hex8("val", v).End()

	switch {
	case v&0x80 != 0:
		l.addr = v & 0x7F
		l.cgMode = false
	case v&0x40 != 0:
		l.cgaddr = v & 0x3F
		l.cgMode = true
	case v&0x20 != 0:
		l.function = v
	case v&0x10 != 0:
		right := v&0x04 != 0
		if v&0x08 != 0 {
			if right {
				l.shift--
			} else {
				l.shift++
			}
		} else {
			l.addr = l.next(l.addr, right)
		}
	case v&0x08 != 0:
		l.displayOn = v&0x04 != 0
		l.cursorOn = v&0x02 != 0
		l.cursorBlink = v&0x01 != 0
	case v&0x04 != 0:
		l.increment = v&0x02 != 0
		l.entryShift = v&0x01 != 0
	case v&0x02 != 0:
		l.addr = 0
		l.shift = 0
		l.cgMode = false
		l.setBusy(clearTime)
		return
	case v&0x01 != 0:
		for i := range l.ddram {
			l.ddram[i] = blank
		}
		l.addr = 0
		l.shift = 0
		l.increment = true
		l.cgMode = false
		l.setBusy(clearTime)
		return
	}
	l.setBusy(opTime)
}

// WriteData stores v at the current address and moves the address.
func (l *LCD) WriteData(v uint8) {
	if l.cgMode {
		l.cgram[l.cgaddr] = v & 0x1F
		l.cgaddr = l.stepCG(l.cgaddr)
		l.setBusy(opTime)
		return
	}

	if idx, ok := ddramIndex(l.addr); ok {
		l.ddram[idx] = v
	}
	l.addr = l.next(l.addr, l.increment)
	if l.entryShift {
		if l.increment {
			l.shift++
		} else {
			l.shift--
		}
	}
	l.setBusy(opTime)
}

func (l *LCD) stepCG(a uint8) uint8 {
	if l.increment {
		return (a + 1) & 0x3F
	}
	return (a - 1) & 0x3F
}

// ReadStatus returns the busy flag and the current address.
func (l *LCD) ReadStatus() uint8 {
	v := l.addr
	if l.cgMode {
		v = l.cgaddr
	}
	if l.Busy() {
		v |= busyFlag
	}
	return v
}

// ReadData returns the byte at the current address and moves the address.
func (l *LCD) ReadData() uint8 {
	var v uint8
	if l.cgMode {
		v = l.cgram[l.cgaddr]
		l.cgaddr = l.stepCG(l.cgaddr)
	} else {
		if idx, ok := ddramIndex(l.addr); ok {
			v = l.ddram[idx]
		}
		l.addr = l.next(l.addr, l.increment)
	}
	l.setBusy(opTime)
	return v
}

// Snapshot is the visible state of the display.
type Snapshot struct {
	Rows        [4][]byte
	DisplayOn   bool
	CursorOn    bool
	CursorBlink bool
	BlinkPhase  bool
	Cursor      uint8
	CGRAM       [64]uint8
}

func (l *LCD) Snapshot() Snapshot {
	s := Snapshot{
		DisplayOn:   l.displayOn,
		CursorOn:    l.cursorOn,
		CursorBlink: l.cursorBlink,
		BlinkPhase:  l.blinkPhase,
		Cursor:      l.addr,
		CGRAM:       l.cgram,
	}
	cols := l.cfg.Columns
	for r := range s.Rows {
		row := make([]byte, cols)
		base, off := 0, 0
		if r%2 == 1 {
			base = lineLen
		}
		if r >= 2 {
			off = cols
		}
		for c := range row {
			pos := ((off+c+l.shift)%lineLen + lineLen) % lineLen
			row[c] = l.ddram[base+pos]
		}
		s.Rows[r] = row
	}
	return s
}
