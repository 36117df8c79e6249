package platform

import (
	"debug80/hw/glcd"
	"debug80/hw/lcd"
)

// Snapshot is the state of everything visible or audible on a board.
type Snapshot struct {
	Platform string
	Digits   [NumDigits]uint8
	Matrix   [8]uint8

	Speaker   bool
	SpeakerHz float64
	Speed     Speed

	SysCtrl SysCtrl

	LCD  *lcd.Snapshot
	GLCD *glcd.Snapshot
}

// SysCtrl is the decoded system control latch.
type SysCtrl struct {
	Value    uint8
	Shadow   bool
	Protect  bool
	Expand   bool
	Bank     uint8
	CapsLock bool
}

// System control latch bits.
const (
	SysShadow   = 0x01
	SysProtect  = 0x02
	SysExpand   = 0x04
	SysBankMask = 0x18
	SysCapsLock = 0x20
)

func DecodeSysCtrl(v uint8) SysCtrl {
	return SysCtrl{
		Value:    v,
		Shadow:   v&SysShadow != 0,
		Protect:  v&SysProtect != 0,
		Expand:   v&SysExpand != 0,
		Bank:     (v & SysBankMask) >> 3,
		CapsLock: v&SysCapsLock != 0,
	}
}
