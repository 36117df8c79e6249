// Package speaker estimates the tone a firmware produces by toggling a port
// bit, and optionally synthesizes it into PCM samples.
package speaker

import (
	"github.com/arl/blip"

	"debug80/emu/log"
	"debug80/hw/sched"
)

// Silence is reported after this long without an edge, in microseconds.
const silenceTimeout = 50_000

const (
	framesPerSecond = 60
	amplitude       = 8000
)

type Speaker struct {
	clk *sched.Clock
	hz  uint64

	level    bool
	lastEdge uint64
	hasEdge  bool
	on       bool
	freq     float64
	timeout  sched.EventID

	synth *synth
}

func New(clk *sched.Clock, cyclesPerSecond uint64) *Speaker {
	if cyclesPerSecond == 0 {
		cyclesPerSecond = 4_000_000
	}
	return &Speaker{clk: clk, hz: cyclesPerSecond}
}

func (s *Speaker) cycles(us uint64) uint64 { return s.hz * us / 1_000_000 }

// SetLevel records the speaker line level. Each edge gives a half period.
func (s *Speaker) SetLevel(level bool) {
	if level == s.level {
		return
	}
	s.level = level
	now := s.clk.Now()

	if s.hasEdge && now > s.lastEdge {
		s.freq = float64(s.hz) / float64(2*(now-s.lastEdge))
		s.on = true
	}
	s.lastEdge = now
	s.hasEdge = true

	if s.timeout != 0 {
		s.clk.Cancel(s.timeout)
	}
	s.timeout = s.clk.ScheduleIn(s.cycles(silenceTimeout), s.expire)

	if s.synth != nil {
		s.synth.edge(now, level)
	}
}

func (s *Speaker) expire() {
	s.timeout = 0
	s.on = false
	s.freq = 0
	s.hasEdge = false
}

func (s *Speaker) On() bool           { return s.on }
func (s *Speaker) Frequency() float64 { return s.freq }

// Silence forces the speaker off until the next edges.
func (s *Speaker) Silence() {
	if s.timeout != 0 {
		s.clk.Cancel(s.timeout)
	}
	s.expire()
	if s.synth != nil && s.level {
		s.synth.edge(s.clk.Now(), false)
	}
	s.level = false
}

func (s *Speaker) Reset() {
	s.Silence()
	s.lastEdge = 0
	if s.synth != nil {
		s.synth.reset(s.clk.Now())
	}
}

func (s *Speaker) SetCyclesPerSecond(hz uint64) {
	s.hz = hz
	s.hasEdge = false
	if s.synth != nil {
		s.synth.setRate(hz)
	}
}

// EnableAudio turns on PCM synthesis. Mono samples at sampleRate are passed
// to sink once per frame; the slice is reused across calls.
func (s *Speaker) EnableAudio(sampleRate int, sink func([]int16)) {
	if s.synth != nil {
		s.clk.Cancel(s.synth.frameEv)
	}
	s.synth = newSynth(s.clk, s.hz, sampleRate, sink)
	log.ModSound.InfoZ("audio enabled").
		Int("rate", sampleRate).
		End()
}

type synth struct {
	clk        *sched.Clock
	buf        *blip.Buffer
	out        []int16
	sink       func([]int16)
	sampleRate int
	hz         uint64
	frameStart uint64
	frameEv    sched.EventID
	prev       int32
}

func newSynth(clk *sched.Clock, hz uint64, sampleRate int, sink func([]int16)) *synth {
	n := sampleRate / framesPerSecond * 2
	sy := &synth{
		clk:        clk,
		buf:        blip.NewBuffer(n),
		out:        make([]int16, n),
		sink:       sink,
		sampleRate: sampleRate,
	}
	sy.setRate(hz)
	return sy
}

func (sy *synth) setRate(hz uint64) {
	sy.hz = hz
	sy.buf.SetRates(float64(hz), float64(sy.sampleRate))
	sy.reset(sy.clk.Now())
}

func (sy *synth) reset(now uint64) {
	sy.buf.Clear()
	sy.prev = 0
	sy.frameStart = now
	if sy.frameEv != 0 {
		sy.clk.Cancel(sy.frameEv)
	}
	sy.frameEv = sy.clk.ScheduleEvery(sy.hz/framesPerSecond, sy.endFrame)
}

func (sy *synth) edge(now uint64, level bool) {
	out := int32(-amplitude)
	if level {
		out = amplitude
	}
	sy.buf.AddDelta(now-sy.frameStart, out-sy.prev)
	sy.prev = out
}

func (sy *synth) endFrame() {
	now := sy.clk.Now()
	sy.buf.EndFrame(int(now - sy.frameStart))
	sy.frameStart = now

	n := sy.buf.ReadSamples(sy.out, len(sy.out), blip.Mono)
	if n > 0 && sy.sink != nil {
		sy.sink(sy.out[:n])
	}
}
