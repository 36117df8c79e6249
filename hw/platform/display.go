package platform

// NumDigits is the number of 7-segment digits on the board.
const NumDigits = 6

// Segment bits of a digit latch.
const (
	SegDot = 0x10
)

// segmentFont holds the segment patterns for hex digits 0 to F.
var segmentFont = [16]uint8{
	0xEB, 0x28, 0xCD, 0xAD, 0x2E, 0xA7, 0xE7, 0x29,
	0xEF, 0x2F, 0x6F, 0xE6, 0xC3, 0xEC, 0xC7, 0x47,
}

// Segments returns the segment pattern showing hex digit v.
func Segments(v uint8) uint8 { return segmentFont[v&0x0F] }

// DecodeSegments returns the hex digit shown by pattern seg, ignoring the
// decimal point, or ' ' for a blank and '?' for an unknown pattern.
func DecodeSegments(seg uint8) byte {
	seg &^= SegDot
	if seg == 0 {
		return ' '
	}
	for i, p := range segmentFont {
		if p == seg {
			return "0123456789ABCDEF"[i]
		}
	}
	if seg == 0x04 {
		return '-'
	}
	return '?'
}

// Display is a multiplexed 7-segment display: a digit select latch and a
// segment latch shared by all digits.
type Display struct {
	sel      uint8
	segments uint8
	digits   [NumDigits]uint8
}

// Select writes the digit select latch, bit n enabling digit n.
func (d *Display) Select(mask uint8) {
	d.sel = mask & (1<<NumDigits - 1)
	d.latch()
}

// SetSegments writes the segment latch.
func (d *Display) SetSegments(seg uint8) {
	d.segments = seg
	d.latch()
}

func (d *Display) latch() {
	for i := range d.digits {
		if d.sel&(1<<i) != 0 {
			d.digits[i] = d.segments
		}
	}
}

func (d *Display) Digits() [NumDigits]uint8 { return d.digits }

func (d *Display) Reset() { *d = Display{} }
