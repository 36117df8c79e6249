package platform

import (
	"time"

	"github.com/cespare/xxhash"

	"debug80/emu/log"
)

// Notifier hands snapshots to a callback, at most once per interval and only
// when the visible state changed.
type Notifier struct {
	interval time.Duration
	now      func() time.Time

	fn       func(Snapshot)
	last     time.Time
	digest   uint64
	emitted  bool
	snapshot func() Snapshot
}

func NewNotifier(interval time.Duration, snapshot func() Snapshot) *Notifier {
	return &Notifier{interval: interval, now: time.Now, snapshot: snapshot}
}

func (n *Notifier) SetCallback(fn func(Snapshot)) {
	n.fn = fn
	n.emitted = false
}

// Poll emits a snapshot if the interval elapsed.
func (n *Notifier) Poll() {
	if n.fn == nil {
		return
	}
	if now := n.now(); n.emitted && now.Sub(n.last) < n.interval {
		return
	}
	n.emit()
}

// Flush emits a snapshot regardless of the interval.
func (n *Notifier) Flush() {
	if n.fn == nil {
		return
	}
	n.emit()
}

func (n *Notifier) emit() {
	s := n.snapshot()
	d := s.Digest()
	if n.emitted && d == n.digest {
		return
	}
	n.digest = d
	n.emitted = true
	n.last = n.now()

	log.ModEmu.DebugZ("snapshot").Uint64("digest", d).End()
	n.fn(s)
}

// Digest hashes the visible state of s.
func (s *Snapshot) Digest() uint64 {
	h := xxhash.New()
	buf := make([]byte, 0, 64)
	buf = append(buf, s.Digits[:]...)
	buf = append(buf, s.Matrix[:]...)
	buf = appendBool(buf, s.Speaker)
	buf = appendUint(buf, uint64(s.SpeakerHz))
	buf = append(buf, byte(s.Speed), s.SysCtrl.Value)
	h.Write(buf)

	if l := s.LCD; l != nil {
		buf = buf[:0]
		buf = appendBool(buf, l.DisplayOn)
		buf = appendBool(buf, l.CursorOn && (!l.CursorBlink || l.BlinkPhase))
		buf = append(buf, l.Cursor)
		h.Write(buf)
		for _, row := range l.Rows {
			h.Write(row)
		}
		h.Write(l.CGRAM[:])
	}
	if g := s.GLCD; g != nil {
		buf = buf[:0]
		buf = appendBool(buf, g.DisplayOn)
		buf = appendBool(buf, g.Graphics)
		buf = appendBool(buf, g.CursorOn && (!g.CursorBlink || g.BlinkVisible))
		buf = append(buf, g.Cursor, g.ReverseRowMask, g.ScrollOffset, byte(g.TextShift))
		h.Write(buf)
		for _, row := range g.Text {
			h.Write(row)
		}
		h.Write(g.GDRAM)
	}
	return h.Sum64()
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendUint(buf []byte, v uint64) []byte {
	for range 8 {
		buf = append(buf, byte(v))
		v >>= 8
	}
	return buf
}
