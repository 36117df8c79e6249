// Package tec1g emulates the TEC-1G: the TEC-1 ports plus a character LCD, a
// graphics LCD, an 8x8 LED matrix, an SD card on a bit-banged SPI port and a
// system control latch.
package tec1g

import (
	"debug80/emu/log"
	"debug80/hw/glcd"
	"debug80/hw/hwio"
	"debug80/hw/lcd"
	"debug80/hw/platform"
	"debug80/hw/sdspi"
	"debug80/hw/tec1"
)

// I/O ports, in addition to the TEC-1 ones.
const (
	PortLCDInst   = 0x04
	PortLCDData   = 0x84
	PortMatrixRow = 0x05
	PortMatrixCol = 0x06
	PortGLCDInst  = 0x07
	PortGLCDData  = 0x87
	PortSD        = 0xFC
	PortSysCtrl   = 0xFF
)

// MON-3 polls the keypad, it does not expect an NMI.
const DefaultKeyNMI = false

// Board is a TEC-1G. It implements platform.Platform.
type Board struct {
	*tec1.Board

	LCD  *lcd.LCD
	GLCD *glcd.GLCD
	SD   *sdspi.Card

	matrixRow uint8
	matrix    [8]uint8

	sysctrl   hwio.Reg8
	onProtect func(bool)
}

func New(cfg platform.Config) *Board {
	b := &Board{Board: tec1.NewBoard("tec1g", cfg)}
	cfg = b.Config()

	b.LCD = lcd.New(b.Clock(), lcd.Config{Columns: cfg.LCDColumns, CyclesPerSecond: b.ClockHz()})
	b.GLCD = glcd.New(b.Clock(), b.ClockHz())
	b.SD = sdspi.New(cfg.SD)

	b.IO.Map(PortLCDInst, &hwio.Port{
		Name:    "LCD_INST",
		ReadCb:  func(uint8) uint8 { return b.LCD.ReadStatus() },
		WriteCb: func(_, val uint8) { b.LCD.WriteInstruction(val) },
	})
	b.IO.Map(PortLCDData, &hwio.Port{
		Name:    "LCD_DATA",
		ReadCb:  func(uint8) uint8 { return b.LCD.ReadData() },
		WriteCb: func(_, val uint8) { b.LCD.WriteData(val) },
	})
	b.IO.Map(PortGLCDInst, &hwio.Port{
		Name:    "GLCD_INST",
		ReadCb:  func(uint8) uint8 { return b.GLCD.ReadStatus() },
		WriteCb: func(_, val uint8) { b.GLCD.WriteInstruction(val) },
	})
	b.IO.Map(PortGLCDData, &hwio.Port{
		Name:    "GLCD_DATA",
		ReadCb:  func(uint8) uint8 { return b.GLCD.ReadData() },
		WriteCb: func(_, val uint8) { b.GLCD.WriteData(val) },
	})
	b.IO.Map(PortMatrixRow, &hwio.Port{
		Name:    "MATRIX_ROW",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: func(_, val uint8) { b.matrixRow = val },
	})
	b.IO.Map(PortMatrixCol, &hwio.Port{
		Name:    "MATRIX_COL",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: b.writeMatrix,
	})
	b.IO.Map(PortSD, b.SD)

	b.sysctrl = hwio.Reg8{
		Name:    "SYSCTRL",
		Flags:   hwio.WriteOnlyFlag,
		WriteCb: b.writeSysCtrl,
	}
	b.IO.Map(PortSysCtrl, &b.sysctrl)

	b.OnSpeed(func(hz uint64) {
		b.LCD.SetCyclesPerSecond(hz)
		b.GLCD.SetCyclesPerSecond(hz)
	})
	b.SetSnapshotSource(b.Snapshot)
	return b
}

func (b *Board) writeMatrix(_, val uint8) {
	for i := range b.matrix {
		if b.matrixRow&(1<<i) != 0 {
			b.matrix[i] = val
		}
	}
}

func (b *Board) writeSysCtrl(old, val uint8) {
	log.ModHwIo.DebugZ("system control").
		Hex8("old", old).
		Hex8("val", val).
		End()

	if (old^val)&platform.SysProtect != 0 && b.onProtect != nil {
		b.onProtect(val&platform.SysProtect != 0)
	}
}

// OnProtect registers fn to be called when the protect bit of the system
// control latch changes.
func (b *Board) OnProtect(fn func(protect bool)) { b.onProtect = fn }

// SetSDImage sets the content of the SD card.
func (b *Board) SetSDImage(img []byte) { b.SD.SetImage(img) }

func (b *Board) SysCtrl() platform.SysCtrl { return platform.DecodeSysCtrl(b.sysctrl.Value) }

func (b *Board) ResetState() {
	b.Board.ResetState()
	b.LCD.Reset()
	b.GLCD.Reset()
	b.SD.Reset()
	b.matrixRow = 0
	clear(b.matrix[:])
	if b.sysctrl.Value&platform.SysProtect != 0 && b.onProtect != nil {
		b.onProtect(false)
	}
	b.sysctrl.Value = 0
}

func (b *Board) Snapshot() platform.Snapshot {
	s := b.BaseSnapshot()
	s.Matrix = b.matrix
	s.SysCtrl = b.SysCtrl()
	ls := b.LCD.Snapshot()
	s.LCD = &ls
	gs := b.GLCD.Snapshot()
	s.GLCD = &gs
	return s
}
