package debugger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCallStack(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		var cstack callStack
		cstack.push(0x07C2, 0x07E7, 0x07C5, frameCall)
		cstack.push(0x0801, 0x0BAE, 0x0804, frameCall)

		fi := cstack.build(0x0099)
		want := []Frame{
			{"0BAE", "$0099", 0x0804},
			{"07E7", "$0801", 0x07C5},
			{"[bottom of stack]", "$07C2", 0},
		}
		if diff := cmp.Diff(want, fi); diff != "" {
			t.Fatalf("callstack differs (-want +got):\n%s", diff)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var cstack callStack
		fi := cstack.build(0x0099)
		want := []Frame{
			{"[bottom of stack]", "$0099", 0},
		}
		if diff := cmp.Diff(want, fi); diff != "" {
			t.Fatalf("callstack differs (-want +got):\n%s", diff)
		}
	})

	t.Run("nmi", func(t *testing.T) {
		var cstack callStack
		cstack.push(0x0100, 0x0066, 0x0100, frameNMI)
		cstack.pop()
		cstack.pop()
		cstack.push(0x0200, 0x0066, 0x0200, frameNMI)

		fi := cstack.build(0x0068)
		if fi[0].Entry != "[nmi] $0066" || len(fi) != 2 {
			t.Fatalf("unexpected frames %+v", fi)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		var cstack callStack
		for i := range maxFrames + 10 {
			cstack.push(uint16(i), 0x1000, uint16(i+3), frameCall)
		}
		if cstack.len() != maxFrames {
			t.Fatalf("len = %d, want %d", cstack.len(), maxFrames)
		}
		if cstack[0].src != 10 {
			t.Fatalf("oldest frame src = %d, want 10", cstack[0].src)
		}
	})
}
