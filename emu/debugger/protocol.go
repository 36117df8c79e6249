package debugger

import (
	"fmt"

	"github.com/go-faster/jx"

	"debug80/hw/cpu"
	"debug80/hw/input"
	"debug80/hw/platform"
	"debug80/hw/uart"
)

// Front ends and the emulator talk over a websocket connection with JSON
// messages of the form {"event": name, "data": payload}.
//
// On connection the emulator sends its current state. Requests are handled
// in order. The emulator pushes "state" events whenever execution stops or
// resumes, "snapshot" events when the board display changes and "serial"
// events for each byte the firmware sends.

// Request events.
const (
	evSetCPUState = "set-cpu-state"
	evKey         = "key"
	evSerial      = "serial"
	evSpeed       = "speed"
	evReset       = "reset"
	evBreakpoints = "breakpoints"
	evMemory      = "memory"
)

// Pushed events.
const (
	evState    = "state"
	evSnapshot = "snapshot"
	evError    = "error"
)

// Request is a decoded front end request.
type Request struct {
	Event string

	CPUState    string
	Key         input.Key
	Data        []byte
	Speed       platform.Speed
	Breakpoints []uint16
	Memory      MemRequest
}

type MemRequest struct {
	Selector Selector
	Addr     uint16
	Size     int
}

// State is the execution state sent to front ends.
type State struct {
	Running bool
	Stop    Stop
	Depth   int
	Stack   []Frame
	Regs    cpu.Regs
}

func (s State) Status() string {
	if s.Running {
		return "running"
	}
	return "paused"
}

func DecodeRequest(buf []byte) (Request, error) {
	var (
		req  Request
		data jx.Raw
	)
	err := jx.DecodeBytes(buf).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "event":
			req.Event, err = d.Str()
		case "data":
			data, err = d.Raw()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return req, fmt.Errorf("malformed request: %w", err)
	}
	if err := req.decodeData(data); err != nil {
		return req, fmt.Errorf("%s: %w", req.Event, err)
	}
	return req, nil
}

func (req *Request) decodeData(data jx.Raw) error {
	d := jx.DecodeBytes(data)
	switch req.Event {
	case evSetCPUState:
		s, err := d.Str()
		if err != nil {
			return err
		}
		switch s {
		case "run", "pause", "step", "step-over", "step-out":
			req.CPUState = s
		default:
			return fmt.Errorf("unexpected cpu state: %s", s)
		}

	case evKey:
		s, err := d.Str()
		if err != nil {
			return err
		}
		req.Key, err = input.ParseKey(s)
		return err

	case evSerial:
		s, err := d.Str()
		if err != nil {
			return err
		}
		req.Data = []byte(s)

	case evSpeed:
		s, err := d.Str()
		if err != nil {
			return err
		}
		return req.Speed.UnmarshalText([]byte(s))

	case evReset:
		return nil

	case evBreakpoints:
		req.Breakpoints = []uint16{}
		return d.Arr(func(d *jx.Decoder) error {
			v, err := d.Int()
			if err != nil {
				return err
			}
			if v < 0 || v > 0xFFFF {
				return fmt.Errorf("breakpoint address out of range: %d", v)
			}
			req.Breakpoints = append(req.Breakpoints, uint16(v))
			return nil
		})

	case evMemory:
		req.Memory = MemRequest{Size: 64}
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "selector":
				s, err := d.Str()
				if err != nil {
					return err
				}
				req.Memory.Selector, err = ParseSelector(s)
				return err
			case "addr":
				v, err := d.Int()
				if err != nil {
					return err
				}
				req.Memory.Addr = uint16(v)
			case "size":
				v, err := d.Int()
				if err != nil {
					return err
				}
				req.Memory.Size = v
			default:
				return d.Skip()
			}
			return nil
		})

	default:
		return fmt.Errorf("unknown event")
	}
	return nil
}

// message encodes an event with the payload written by data.
func message(event string, data func(e *jx.Encoder)) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("event")
	e.Str(event)
	e.FieldStart("data")
	if data == nil {
		e.Null()
	} else {
		data(&e)
	}
	e.ObjEnd()
	return e.Bytes()
}

func StateMessage(s State) []byte {
	return message(evState, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("status")
		e.Str(s.Status())
		e.FieldStart("reason")
		e.Str(s.Stop.Reason.String())
		e.FieldStart("pc")
		e.Int(int(s.Stop.PC))
		if s.Stop.Message != "" {
			e.FieldStart("message")
			e.Str(s.Stop.Message)
		}
		e.FieldStart("depth")
		e.Int(s.Depth)

		e.FieldStart("stack")
		e.ArrStart()
		for _, f := range s.Stack {
			e.ObjStart()
			e.FieldStart("entry")
			e.Str(f.Entry)
			e.FieldStart("loc")
			e.Str(f.Loc)
			e.ObjEnd()
		}
		e.ArrEnd()

		e.FieldStart("regs")
		encodeRegs(e, s.Regs)
		e.ObjEnd()
	})
}

func encodeRegs(e *jx.Encoder, r cpu.Regs) {
	e.ObjStart()
	for _, reg := range []struct {
		name string
		val  uint16
	}{
		{"af", r.AF}, {"bc", r.BC}, {"de", r.DE}, {"hl", r.HL},
		{"ix", r.IX}, {"iy", r.IY}, {"sp", r.SP}, {"pc", r.PC},
	} {
		e.FieldStart(reg.name)
		e.Int(int(reg.val))
	}
	e.FieldStart("i")
	e.Int(int(r.I))
	e.FieldStart("iff1")
	e.Bool(r.IFF1)
	e.FieldStart("iff2")
	e.Bool(r.IFF2)
	e.FieldStart("im")
	e.Int(r.IM)
	e.FieldStart("halted")
	e.Bool(r.Halted)
	e.ObjEnd()
}

func SnapshotMessage(s platform.Snapshot) []byte {
	return message(evSnapshot, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("platform")
		e.Str(s.Platform)
		e.FieldStart("digits")
		encodeBytes(e, s.Digits[:])
		e.FieldStart("matrix")
		encodeBytes(e, s.Matrix[:])
		e.FieldStart("speaker")
		e.Bool(s.Speaker)
		e.FieldStart("speakerHz")
		e.Float64(s.SpeakerHz)
		e.FieldStart("speed")
		e.Str(s.Speed.String())

		e.FieldStart("sysctrl")
		e.ObjStart()
		e.FieldStart("value")
		e.Int(int(s.SysCtrl.Value))
		e.FieldStart("shadow")
		e.Bool(s.SysCtrl.Shadow)
		e.FieldStart("protect")
		e.Bool(s.SysCtrl.Protect)
		e.FieldStart("expand")
		e.Bool(s.SysCtrl.Expand)
		e.FieldStart("bank")
		e.Int(int(s.SysCtrl.Bank))
		e.FieldStart("capsLock")
		e.Bool(s.SysCtrl.CapsLock)
		e.ObjEnd()

		if l := s.LCD; l != nil {
			e.FieldStart("lcd")
			e.ObjStart()
			e.FieldStart("rows")
			e.ArrStart()
			for _, row := range l.Rows {
				e.Str(string(row))
			}
			e.ArrEnd()
			e.FieldStart("displayOn")
			e.Bool(l.DisplayOn)
			e.FieldStart("cursorOn")
			e.Bool(l.CursorOn)
			e.FieldStart("cursorBlink")
			e.Bool(l.CursorBlink)
			e.FieldStart("blinkPhase")
			e.Bool(l.BlinkPhase)
			e.FieldStart("cursor")
			e.Int(int(l.Cursor))
			e.FieldStart("cgram")
			e.Base64(l.CGRAM[:])
			e.ObjEnd()
		}
		if g := s.GLCD; g != nil {
			e.FieldStart("glcd")
			e.ObjStart()
			e.FieldStart("text")
			e.ArrStart()
			for _, row := range g.Text {
				e.Str(string(row))
			}
			e.ArrEnd()
			e.FieldStart("gdram")
			e.Base64(g.GDRAM)
			e.FieldStart("graphics")
			e.Bool(g.Graphics)
			e.FieldStart("displayOn")
			e.Bool(g.DisplayOn)
			e.FieldStart("cursorOn")
			e.Bool(g.CursorOn)
			e.FieldStart("blinkVisible")
			e.Bool(g.BlinkVisible)
			e.FieldStart("cursor")
			e.Int(int(g.Cursor))
			e.FieldStart("reverse")
			e.Int(int(g.ReverseRowMask))
			e.FieldStart("scroll")
			e.Int(int(g.ScrollOffset))
			e.FieldStart("shift")
			e.Int(g.TextShift)
			e.ObjEnd()
		}
		e.ObjEnd()
	})
}

func encodeBytes(e *jx.Encoder, b []byte) {
	e.ArrStart()
	for _, v := range b {
		e.Int(int(v))
	}
	e.ArrEnd()
}

func SerialMessage(f uart.Frame) []byte {
	return message(evSerial, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("byte")
		e.Int(int(f.Byte))
		e.FieldStart("parityOk")
		e.Bool(f.ParityOK)
		e.FieldStart("framingOk")
		e.Bool(f.FramingOK)
		e.ObjEnd()
	})
}

func MemoryMessage(v MemView) []byte {
	return message(evMemory, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("base")
		e.Int(int(v.Base))
		e.FieldStart("focus")
		e.Int(v.Focus)
		e.FieldStart("bytes")
		e.Base64(v.Bytes)
		e.FieldStart("readonly")
		e.ArrStart()
		for _, ro := range v.ReadOnly {
			e.Bool(ro)
		}
		e.ArrEnd()
		e.ObjEnd()
	})
}

func ErrorMessage(err error) []byte {
	return message(evError, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("message")
		e.Str(err.Error())
		e.ObjEnd()
	})
}
