package platform

import (
	"debug80/emu/log"
	"debug80/hw/input"
	"debug80/hw/sched"
)

// Keypad latches the code of the last key pressed and releases it after a
// hold time.
type Keypad struct {
	clk  *sched.Clock
	hold uint64

	code    input.Key
	down    bool
	release sched.EventID
}

func NewKeypad(clk *sched.Clock, hold uint64) *Keypad {
	return &Keypad{clk: clk, hold: hold}
}

func (kp *Keypad) SetHold(hold uint64) { kp.hold = hold }

func (kp *Keypad) Press(k input.Key) {
	log.ModInput.DebugZ("key down").Stringer("key", k).End()

	kp.code = k
	kp.down = true
	if kp.release != 0 {
		kp.clk.Cancel(kp.release)
	}
	kp.release = kp.clk.ScheduleIn(kp.hold, kp.Release)
}

func (kp *Keypad) Release() {
	if kp.release != 0 {
		kp.clk.Cancel(kp.release)
		kp.release = 0
	}
	kp.down = false
}

// Code returns the latched key code. It survives the release, like the
// encoder latch on the board.
func (kp *Keypad) Code() uint8 { return uint8(kp.code) }

func (kp *Keypad) Down() bool { return kp.down }

func (kp *Keypad) Reset() {
	kp.Release()
	kp.code = 0
}
