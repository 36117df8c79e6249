package cpu

import (
	"fmt"
	"io"
)

// tracer writes one line per executed instruction:
//
//	PPPP  OP OP OP OP  A:AA F:FF BC:BBCC DE:DDEE HL:HHLL IX:XXXX IY:YYYY SP:SSSS CYC:n
type tracer struct {
	w   io.Writer
	mem *Memory
	buf []byte
}

func hexEncode(dst []byte, v byte) {
	const hextable = "0123456789ABCDEF"
	dst[0] = hextable[v>>4]
	dst[1] = hextable[v&0x0f]
}

func appendHex8(buf []byte, v uint8) []byte {
	var tmp [2]byte
	hexEncode(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendHex16(buf []byte, v uint16) []byte {
	return appendHex8(appendHex8(buf, uint8(v>>8)), uint8(v))
}

func appendReg16(buf []byte, name string, v uint16) []byte {
	buf = append(buf, name...)
	buf = append(buf, ':')
	buf = appendHex16(buf, v)
	return append(buf, ' ')
}

func (t *tracer) write(r Regs, cycles uint64) {
	buf := appendHex16(t.buf[:0], r.PC)
	buf = append(buf, ' ', ' ')

	n := instrLen(t.mem, r.PC)
	for i := range 4 {
		if i < n {
			buf = appendHex8(buf, t.mem.Get(r.PC+uint16(i)))
			buf = append(buf, ' ')
		} else {
			buf = append(buf, ' ', ' ', ' ')
		}
	}
	buf = append(buf, ' ')

	buf = append(buf, "A:"...)
	buf = appendHex8(buf, uint8(r.AF>>8))
	buf = append(buf, " F:"...)
	buf = appendHex8(buf, uint8(r.AF))
	buf = append(buf, ' ')
	buf = appendReg16(buf, "BC", r.BC)
	buf = appendReg16(buf, "DE", r.DE)
	buf = appendReg16(buf, "HL", r.HL)
	buf = appendReg16(buf, "IX", r.IX)
	buf = appendReg16(buf, "IY", r.IY)
	buf = appendReg16(buf, "SP", r.SP)

	buf = fmt.Appendf(buf, "CYC:%d\n", cycles)
	t.buf = buf
	t.w.Write(buf)
}
