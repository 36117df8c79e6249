package debugger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"debug80/hw/cpu"
	"debug80/hw/input"
	"debug80/hw/lcd"
	"debug80/hw/platform"
	"debug80/hw/uart"
)

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		msg  string
		want Request
	}{
		{`{"event":"set-cpu-state","data":"step-out"}`, Request{Event: evSetCPUState, CPUState: "step-out"}},
		{`{"data":"GO","event":"key"}`, Request{Event: evKey, Key: input.KeyGo}},
		{`{"event":"serial","data":"hi\r"}`, Request{Event: evSerial, Data: []byte("hi\r")}},
		{`{"event":"speed","data":"slow"}`, Request{Event: evSpeed, Speed: platform.SpeedSlow}},
		{`{"event":"reset","data":null}`, Request{Event: evReset}},
		{`{"event":"breakpoints","data":[8192, 16]}`, Request{Event: evBreakpoints, Breakpoints: []uint16{0x2000, 0x10}}},
		{`{"event":"breakpoints","data":[]}`, Request{Event: evBreakpoints, Breakpoints: []uint16{}}},
		{`{"event":"memory","data":{"selector":"hl","size":128,"extra":1}}`, Request{Event: evMemory, Memory: MemRequest{Selector: SelHL, Size: 128}}},
		{`{"event":"memory","data":{"selector":"absolute","addr":4096}}`, Request{Event: evMemory, Memory: MemRequest{Selector: SelAbsolute, Addr: 0x1000, Size: 64}}},
	}
	for _, tt := range tests {
		got, err := DecodeRequest([]byte(tt.msg))
		if err != nil {
			t.Errorf("DecodeRequest(%s): %v", tt.msg, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("DecodeRequest(%s) mismatch (-want +got):\n%s", tt.msg, diff)
		}
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	for _, msg := range []string{
		`not json`,
		`{"event":"set-cpu-state","data":"fly"}`,
		`{"event":"key","data":"Q"}`,
		`{"event":"speed","data":"warp"}`,
		`{"event":"breakpoints","data":[70000]}`,
		`{"event":"memory","data":{"selector":"af"}}`,
		`{"event":"dance","data":null}`,
	} {
		if _, err := DecodeRequest([]byte(msg)); err == nil {
			t.Errorf("DecodeRequest(%s) succeeded", msg)
		}
	}
}

// decode unmarshals an encoded message into generic JSON values.
func decode(t *testing.T, msg []byte) (string, map[string]any) {
	t.Helper()
	var m struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("invalid message %s: %v", msg, err)
	}
	return m.Event, m.Data
}

func TestStateMessage(t *testing.T) {
	st := State{
		Stop:  Stop{Reason: ReasonBreakpoint, PC: 0x2000},
		Depth: 1,
		Stack: []Frame{{Entry: "2000", Loc: "$2000"}, {Entry: "[bottom of stack]", Loc: "$0005"}},
		Regs:  cpu.Regs{PC: 0x2000, SP: 0xFFFD, AF: 0x1234, IM: 1},
	}
	ev, data := decode(t, StateMessage(st))
	if ev != "state" {
		t.Fatalf("event = %q", ev)
	}
	if data["status"] != "paused" || data["reason"] != "breakpoint" || data["pc"] != float64(0x2000) {
		t.Fatalf("unexpected state %v", data)
	}
	if _, ok := data["message"]; ok {
		t.Fatalf("empty message encoded")
	}
	stack := data["stack"].([]any)
	if len(stack) != 2 || stack[1].(map[string]any)["loc"] != "$0005" {
		t.Fatalf("unexpected stack %v", stack)
	}
	regs := data["regs"].(map[string]any)
	if regs["af"] != float64(0x1234) || regs["im"] != float64(1) || regs["iff1"] != false {
		t.Fatalf("unexpected regs %v", regs)
	}
}

func TestSnapshotMessage(t *testing.T) {
	snap := platform.Snapshot{
		Platform:  "tec1g",
		Digits:    [platform.NumDigits]uint8{0xEB, 0x28},
		SpeakerHz: 440,
		Speaker:   true,
		LCD:       &lcd.Snapshot{Rows: [4][]byte{[]byte("HELLO")}},
	}
	ev, data := decode(t, SnapshotMessage(snap))
	if ev != "snapshot" {
		t.Fatalf("event = %q", ev)
	}
	digits := data["digits"].([]any)
	if len(digits) != platform.NumDigits || digits[0] != float64(0xEB) {
		t.Fatalf("digits = %v", digits)
	}
	rows := data["lcd"].(map[string]any)["rows"].([]any)
	if rows[0] != "HELLO" {
		t.Fatalf("lcd rows = %v", rows)
	}
	if _, ok := data["glcd"]; ok {
		t.Fatal("absent GLCD encoded")
	}
	if data["speakerHz"] != float64(440) {
		t.Fatalf("speakerHz = %v", data["speakerHz"])
	}
}

func TestSmallMessages(t *testing.T) {
	ev, data := decode(t, SerialMessage(uart.Frame{Byte: 'A', ParityOK: true}))
	if ev != "serial" || data["byte"] != float64('A') || data["framingOk"] != false {
		t.Fatalf("serial: %s %v", ev, data)
	}

	ev, data = decode(t, MemoryMessage(MemView{Base: 0x10, Focus: 2, Bytes: []byte{1, 2, 3}, ReadOnly: []bool{true, false, false}}))
	if ev != "memory" || data["bytes"] != "AQID" || data["focus"] != float64(2) {
		t.Fatalf("memory: %s %v", ev, data)
	}

	ev, data = decode(t, ErrorMessage(errors.New("boom")))
	if ev != "error" || data["message"] != "boom" {
		t.Fatalf("error: %s %v", ev, data)
	}
}
