// Package uart decodes and produces bit-banged asynchronous serial frames on
// a single logic line, timed by the machine's cycle clock.
package uart

import (
	"fmt"
	"math"
)

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	}
	return "none"
}

func (p Parity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Parity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "", "none":
		*p = ParityNone
	case "even":
		*p = ParityEven
	case "odd":
		*p = ParityOdd
	default:
		return fmt.Errorf("unknown parity %q", text)
	}
	return nil
}

// Config describes the line format. Call Normalize once before use.
type Config struct {
	Baud            int
	CyclesPerSecond uint64
	DataBits        int
	StopBits        int
	Parity          Parity
	Inverted        bool // line idles low
}

const (
	DefaultBaud     = 4800
	DefaultDataBits = 8
	DefaultStopBits = 1
)

// Normalize replaces zero or out of range values with defaults.
func (c *Config) Normalize() {
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		c.DataBits = DefaultDataBits
	}
	if c.StopBits < 1 || c.StopBits > 2 {
		c.StopBits = DefaultStopBits
	}
	if c.Parity > ParityOdd {
		c.Parity = ParityNone
	}
}

func (c *Config) cyclesPerBit() float64 {
	return float64(c.CyclesPerSecond) / float64(c.Baud)
}

// offset returns the cycle offset of position pos (in bit times) from the
// start of a frame.
func (c *Config) offset(pos float64) uint64 {
	return uint64(math.Round(pos * c.cyclesPerBit()))
}

// parityBit returns the parity bit value that goes with data.
func (c *Config) parityBit(data uint8) bool {
	ones := 0
	for i := range c.DataBits {
		ones += int(data>>i) & 1
	}
	if c.Parity == ParityEven {
		return ones%2 == 1
	}
	return ones%2 == 0
}

// frameBits returns the number of bits following the start bit.
func (c *Config) frameBits() int {
	n := c.DataBits + c.StopBits
	if c.Parity != ParityNone {
		n++
	}
	return n
}
