package debugger

import (
	"context"
	"runtime"
	"time"
)

// maxLag is how far behind real time emulation may fall before the pacer
// gives up catching up.
const maxLag = 100 * time.Millisecond

// Pacer slows emulation down to the emulated clock rate, measuring the
// cycles retired against wall-clock time.
type Pacer struct {
	minYield time.Duration

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	cycles func() uint64

	start       time.Time
	startCycles uint64
	hz          uint64
}

// NewPacer returns a pacer sleeping at least minYield when it sleeps.
func NewPacer(minYield time.Duration) *Pacer {
	return &Pacer{
		minYield: minYield,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// SetCycleCounter sets the function returning the total cycles retired.
func (p *Pacer) SetCycleCounter(fn func() uint64) { p.cycles = fn }

// Start begins a new pacing period at hz.
func (p *Pacer) Start(hz uint64) {
	p.hz = hz
	p.start = p.now()
	if p.cycles != nil {
		p.startCycles = p.cycles()
	}
}

// Wait sleeps for the time emulation is ahead of real time, or just yields
// when there is no clock target.
func (p *Pacer) Wait(ctx context.Context, hz uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if hz != p.hz {
		p.Start(hz)
		return nil
	}
	if hz == 0 || p.cycles == nil {
		runtime.Gosched()
		return nil
	}

	done := p.cycles() - p.startCycles
	target := time.Duration(done/hz)*time.Second + time.Duration(done%hz*uint64(time.Second)/hz)
	elapsed := p.now().Sub(p.start)

	switch ahead := target - elapsed; {
	case ahead > 0:
		return p.sleep(ctx, max(ahead, p.minYield))
	case -ahead > maxLag:
		p.Start(hz)
	}
	runtime.Gosched()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
