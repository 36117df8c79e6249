package cpu

import (
	"debug80/emu/log"
	"debug80/hw/hwio"
)

// Memory is the flat 64K image seen by the CPU. Writes to protected (ROM)
// addresses are dropped, reads always return the stored byte.
type Memory struct {
	data [hwio.NumBits]uint8
	rom  hwio.Bitset
}

func (m *Memory) Get(addr uint16) uint8 {
	return m.data[addr]
}

func (m *Memory) Set(addr uint16, val uint8) {
	if m.rom.Test(addr) {
		log.ModMem.DebugZ("write to rom").
			Hex16("addr", addr).
			Hex8("val", val).
			End()
		return
	}
	m.data[addr] = val
}

// Load copies buf at addr, ignoring write protection. The copy wraps around
// at the end of the address space.
func (m *Memory) Load(addr uint16, buf []byte) {
	for i, b := range buf {
		m.data[addr+uint16(i)] = b
	}
}

// Read copies len(buf) bytes starting at addr into buf, wrapping around.
func (m *Memory) Read(addr uint16, buf []byte) {
	for i := range buf {
		buf[i] = m.data[addr+uint16(i)]
	}
}

// Protect marks the inclusive range [first, last] as read-only.
func (m *Memory) Protect(first, last uint16) {
	log.ModMem.DebugZ("protect").Hex16("first", first).Hex16("last", last).End()
	m.rom.SetRange(first, last)
}

// Unprotect makes the inclusive range [first, last] writable again.
func (m *Memory) Unprotect(first, last uint16) {
	log.ModMem.DebugZ("unprotect").Hex16("first", first).Hex16("last", last).End()
	m.rom.ClearRange(first, last)
}

func (m *Memory) ReadOnly(addr uint16) bool {
	return m.rom.Test(addr)
}

// Ranges returns the read-only ranges, sorted and merged.
func (m *Memory) Ranges() [][2]uint16 {
	return m.rom.Ranges()
}

// Clear zeroes the memory contents, protection is unchanged.
func (m *Memory) Clear() {
	clear(m.data[:])
}
