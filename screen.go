package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"debug80/hw/platform"
	"debug80/hw/uart"
)

const serialTail = 40

// screen redraws the board state in place on a terminal in raw mode.
type screen struct {
	w     io.Writer
	lines int
	buf   bytes.Buffer

	rx []byte // last bytes sent by the firmware
}

func newScreen(w io.Writer) *screen { return &screen{w: w} }

func (s *screen) draw(snap platform.Snapshot) {
	lines := renderSnapshot(snap)
	if len(s.rx) > 0 {
		lines = append(lines, "serial  "+string(s.rx))
	}

	s.buf.Reset()
	if s.lines > 0 {
		fmt.Fprintf(&s.buf, "\x1b[%dA", s.lines)
	}
	for _, l := range lines {
		s.buf.WriteString("\r\x1b[2K")
		s.buf.WriteString(l)
		s.buf.WriteString("\r\n")
	}
	s.lines = len(lines)
	s.w.Write(s.buf.Bytes())
}

func (s *screen) serial(f uart.Frame) {
	c := f.Byte
	if c < 0x20 || c > 0x7E {
		c = '.'
	}
	s.rx = append(s.rx, c)
	if len(s.rx) > serialTail {
		s.rx = s.rx[len(s.rx)-serialTail:]
	}
}

// renderDigits returns the 7-segment digits, leftmost first. Digit 0 is the
// rightmost one.
func renderDigits(digits [platform.NumDigits]uint8) string {
	var sb strings.Builder
	for i := len(digits) - 1; i >= 0; i-- {
		sb.WriteByte(platform.DecodeSegments(digits[i]))
		if digits[i]&platform.SegDot != 0 {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func renderSnapshot(snap platform.Snapshot) []string {
	status := fmt.Sprintf("%-6s [ %s ]  %s", strings.ToUpper(snap.Platform), renderDigits(snap.Digits), snap.Speed)
	if snap.Speaker {
		status += fmt.Sprintf("  speaker %.0f Hz", snap.SpeakerHz)
	}
	lines := []string{status}

	if l := snap.LCD; l != nil && l.DisplayOn {
		for _, row := range l.Rows {
			if row != nil {
				lines = append(lines, "lcd    |"+printable(row)+"|")
			}
		}
	}
	if g := snap.GLCD; g != nil && g.DisplayOn && !g.Graphics {
		for _, row := range g.Text {
			lines = append(lines, "glcd   |"+printable(row)+"|")
		}
	}

	if snap.Matrix != ([8]uint8{}) {
		for _, row := range snap.Matrix {
			var sb strings.Builder
			sb.WriteString("matrix ")
			for bit := 7; bit >= 0; bit-- {
				if row&(1<<bit) != 0 {
					sb.WriteByte('#')
				} else {
					sb.WriteByte('.')
				}
			}
			lines = append(lines, sb.String())
		}
	}

	if sc := snap.SysCtrl; sc.Value != 0 {
		var flags []string
		for _, f := range []struct {
			on   bool
			name string
		}{
			{sc.Shadow, "shadow"},
			{sc.Protect, "protect"},
			{sc.Expand, "expand"},
			{sc.CapsLock, "caps"},
		} {
			if f.on {
				flags = append(flags, f.name)
			}
		}
		flags = append(flags, fmt.Sprintf("bank=%d", sc.Bank))
		lines = append(lines, "sysctl "+strings.Join(flags, " "))
	}
	return lines
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c < 0x20 || c > 0x7E {
			c = ' '
		}
		out[i] = c
	}
	return string(out)
}
