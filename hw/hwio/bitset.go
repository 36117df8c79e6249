package hwio

import "fmt"

const (
	NumBits  = 0x10000 // Z80 address space
	wordSize = 64
	numWords = NumBits / wordSize
)

// Bitset holds one bit per address of the 64K address space. The zero value
// is an empty set.
type Bitset struct {
	words [numWords]uint64
}

func (b *Bitset) Set(i uint16) {
	b.words[i/wordSize] |= 1 << (i % wordSize)
}

func (b *Bitset) Clear(i uint16) {
	b.words[i/wordSize] &^= 1 << (i % wordSize)
}

func (b *Bitset) Test(i uint16) bool {
	return b.words[i/wordSize]&(1<<(i%wordSize)) != 0
}

// SetRange sets all bits of the inclusive range [first, last].
func (b *Bitset) SetRange(first, last uint16) {
	b.applyRange(first, last, func(w *uint64, mask uint64) { *w |= mask })
}

// ClearRange clears all bits of the inclusive range [first, last].
func (b *Bitset) ClearRange(first, last uint16) {
	b.applyRange(first, last, func(w *uint64, mask uint64) { *w &^= mask })
}

func (b *Bitset) applyRange(first, last uint16, op func(w *uint64, mask uint64)) {
	if first > last {
		panic(fmt.Sprintf("invalid range [%04X, %04X]", first, last))
	}
	fw, lw := uint(first)/wordSize, uint(last)/wordSize
	fb, lb := uint(first)%wordSize, uint(last)%wordSize

	if fw == lw {
		op(&b.words[fw], lowMask(lb)&(^uint64(0)<<fb))
		return
	}
	op(&b.words[fw], ^uint64(0)<<fb)
	for i := fw + 1; i < lw; i++ {
		op(&b.words[i], ^uint64(0))
	}
	op(&b.words[lw], lowMask(lb))
}

// lowMask returns a mask with bits [0, n] set.
func lowMask(n uint) uint64 {
	if n >= wordSize-1 {
		return ^uint64(0)
	}
	return (uint64(1) << (n + 1)) - 1
}

func (b *Bitset) Reset() {
	clear(b.words[:])
}

func (b *Bitset) SetAll() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
}

// Empty reports whether no bit is set.
func (b *Bitset) Empty() bool {
	for _, w := range b.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Ranges returns the set bits as sorted inclusive [first, last] ranges.
func (b *Bitset) Ranges() [][2]uint16 {
	var ranges [][2]uint16
	inRange := false
	var start uint
	for i := uint(0); i < NumBits; i++ {
		w := b.words[i/wordSize]
		if !inRange && w == 0 {
			i += wordSize - 1 - i%wordSize
			continue
		}
		set := w&(1<<(i%wordSize)) != 0
		switch {
		case set && !inRange:
			inRange, start = true, i
		case !set && inRange:
			inRange = false
			ranges = append(ranges, [2]uint16{uint16(start), uint16(i - 1)})
		}
	}
	if inRange {
		ranges = append(ranges, [2]uint16{uint16(start), NumBits - 1})
	}
	return ranges
}
