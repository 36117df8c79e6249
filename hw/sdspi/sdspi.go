// Package sdspi emulates an SD card in SPI mode, bit-banged through a single
// I/O port carrying MOSI, CLK and CS.
package sdspi

import (
	"encoding/binary"

	"debug80/emu/log"
	"debug80/hw/hwio"
)

const BlockSize = 512

// SD command indexes.
const (
	cmdGoIdle     = 0
	cmdSendIfCond = 8
	cmdReadSingle = 17
	cmdSendOpCond = 41 // ACMD41
	cmdAppCmd     = 55
	cmdReadOCR    = 58
)

const (
	r1Ready = 0x00
	r1Idle  = 0x01

	// Returned to CMD17 before the card is initialized: idle and illegal
	// command bits.
	r1NotReady = 0x05

	tokenStartBlock = 0xFE

	ocr = 0x00FF8000
)

type Config struct {
	MOSIBit uint8
	CLKBit  uint8
	CSBit   uint8
	MISOBit uint8

	// CSActiveHigh inverts the default active-low chip select.
	CSActiveHigh bool

	// ResponseDelay is the number of byte shifts between the end of a command
	// and its response.
	ResponseDelay int

	// InitAttempts is the number of ACMD41 needed before the card reports
	// ready.
	InitAttempts int
}

func DefaultConfig() Config {
	return Config{
		MOSIBit:       0,
		CLKBit:        1,
		CSBit:         2,
		MISOBit:       7,
		ResponseDelay: 1,
		InitAttempts:  2,
	}
}

func (cfg *Config) normalize() {
	if cfg.ResponseDelay < 0 {
		cfg.ResponseDelay = 0
	}
	if cfg.InitAttempts <= 0 {
		cfg.InitAttempts = 2
	}
}

// Card is an SD card on an SPI bus.
type Card struct {
	cfg   Config
	image []byte

	// transaction state, cleared on CS deassert
	csActive bool
	clk      bool
	shiftIn  uint8
	shiftOut uint8
	nbits    int
	miso     bool
	cmd      []byte
	queue    []byte

	// card state
	appCmd   bool
	attempts int
	ready    bool
}

func New(cfg Config) *Card {
	cfg.normalize()
	c := &Card{cfg: cfg}
	c.Reset()
	return c
}

// SetImage sets the card content. Reads past the end of the image return
// zeroes.
func (c *Card) SetImage(img []byte) { c.image = img }

// Reset returns the card to its power-on state.
func (c *Card) Reset() {
	c.resetTransaction()
	c.clk = false
	c.appCmd = false
	c.attempts = 0
	c.ready = false
}

func (c *Card) Ready() bool { return c.ready }

func (c *Card) resetTransaction() {
	c.shiftIn, c.nbits = 0, 0
	c.shiftOut = 0xFF
	c.miso = true
	c.cmd = c.cmd[:0]
	c.queue = c.queue[:0]
}

// Write8 drives the bus lines from a port write.
func (c *Card) Write8(_, val uint8) {
	cs := hwio.GetBit8(val, uint(c.cfg.CSBit)) == c.cfg.CSActiveHigh
	clk := hwio.GetBit8(val, uint(c.cfg.CLKBit))
	mosi := hwio.GetBit8(val, uint(c.cfg.MOSIBit))

	if !cs {
		if c.csActive {
			log.ModSD.DebugZ("cs deasserted").End()
			c.resetTransaction()
		}
		c.csActive = false
		c.clk = clk
		return
	}
	c.csActive = true

	rising := clk && !c.clk
	c.clk = clk
	if !rising {
		return
	}

	c.miso = c.shiftOut&0x80 != 0
	c.shiftOut = c.shiftOut<<1 | 1
	c.shiftIn <<= 1
	if mosi {
		c.shiftIn |= 1
	}
	c.nbits++
	if c.nbits == 8 {
		b := c.shiftIn
		c.shiftIn, c.nbits = 0, 0
		c.receive(b)
		c.shiftOut = c.next()
	}
}

// Read8 returns the MISO level on its configured bit, other bits read high.
func (c *Card) Read8(uint8) uint8 {
	v := uint8(0xFF)
	hwio.PutBit8(&v, uint(c.cfg.MISOBit), c.miso)
	return v
}

func (c *Card) next() uint8 {
	if len(c.queue) == 0 {
		return 0xFF
	}
	b := c.queue[0]
	c.queue = c.queue[1:]
	return b
}

func (c *Card) receive(b uint8) {
	if len(c.cmd) == 0 && b&0xC0 != 0x40 {
		return
	}
	c.cmd = append(c.cmd, b)
	if len(c.cmd) < 6 {
		return
	}
	index := c.cmd[0] & 0x3F
	arg := binary.BigEndian.Uint32(c.cmd[1:5])
	c.cmd = c.cmd[:0]
	c.command(index, arg)
}

func (c *Card) status() uint8 {
	if c.ready {
		return r1Ready
	}
	return r1Idle
}

func (c *Card) respond(bytes ...uint8) {
	c.queue = c.queue[:0]
	for range c.cfg.ResponseDelay {
		c.queue = append(c.queue, 0xFF)
	}
	c.queue = append(c.queue, bytes...)
}

func (c *Card) command(index uint8, arg uint32) {
	app := c.appCmd
	c.appCmd = false

	log.ModSD.DebugZ("command").
		Int("cmd", int(index)).
		Bool("app", app).
		Uint64("arg", uint64(arg)).
		End()

	switch {
	case index == cmdGoIdle:
		c.ready = false
		c.attempts = 0
		c.respond(r1Idle)
	case index == cmdSendIfCond:
		c.respond(r1Idle, 0x00, 0x00, uint8(arg>>8)&0x0F, uint8(arg))
	case index == cmdAppCmd:
		c.appCmd = true
		c.respond(c.status())
	case index == cmdSendOpCond && app:
		c.attempts++
		if c.attempts >= c.cfg.InitAttempts {
			c.ready = true
		}
		c.respond(c.status())
	case index == cmdReadOCR:
		v := uint32(ocr)
		if c.ready {
			v |= 0xC0 << 24
		}
		c.respond(c.status(), uint8(v>>24), uint8(v>>16), uint8(v>>8), uint8(v))
	case index == cmdReadSingle:
		if !c.ready {
			c.respond(r1NotReady)
			return
		}
		c.respond(c.readBlock(arg)...)
	default:
		c.respond(c.status())
	}
}

// readBlock builds the CMD17 response for block lba: R1, start token, data
// and CRC.
func (c *Card) readBlock(lba uint32) []byte {
	resp := make([]byte, 0, 2+BlockSize+2)
	resp = append(resp, r1Ready, tokenStartBlock)

	var block [BlockSize]byte
	off := uint64(lba) * BlockSize
	if off < uint64(len(c.image)) {
		copy(block[:], c.image[off:])
	}
	resp = append(resp, block[:]...)
	return binary.BigEndian.AppendUint16(resp, crc16(block[:]))
}
