package debugger

import (
	"fmt"
	"slices"
)

type frameFlag uint8

const (
	frameCall frameFlag = iota
	frameNMI
	frameIRQ
)

type stackFrame struct {
	src    uint16
	target uint16
	ret    uint16
	flag   frameFlag
}

// maxFrames bounds the call stack of firmware that never returns from some
// calls; the oldest frames are dropped.
const maxFrames = 256

type callStack []stackFrame

func (cs *callStack) push(src, dst, ret uint16, flag frameFlag) {
	if cs.len() == maxFrames {
		*cs = slices.Delete(*cs, 0, 1)
	}
	*cs = append(*cs, stackFrame{
		src:    src,
		target: dst,
		ret:    ret,
		flag:   flag,
	})
}

func (cs *callStack) len() int {
	return len(*cs)
}

func (cs *callStack) pop() {
	if cs.len() == 0 {
		return
	}
	*cs = (*cs)[:cs.len()-1]
}

func (cs *callStack) reset() {
	*cs = (*cs)[:0]
}

// Frame describes a call stack frame: the routine entry point and the
// current location in it.
type Frame struct {
	Entry string
	Loc   string
	Ret   uint16
}

// build returns the frames, innermost first.
func (cs *callStack) build(pc uint16) []Frame {
	frames := make([]Frame, 0, cs.len()+1)

	// Current frame
	var cur *stackFrame
	if cs.len() > 0 {
		cur = &((*cs)[cs.len()-1])
	}
	frames = append(frames, Frame{Entry: entryPoint(cur), Loc: fmt.Sprintf("$%04X", pc)})
	if cur != nil {
		frames[0].Ret = cur.ret
	}

	for i := cs.len() - 1; i >= 0; i-- {
		f := (*cs)[i]
		var caller *stackFrame
		if i > 0 {
			caller = &((*cs)[i-1])
		}
		fr := Frame{Entry: entryPoint(caller), Loc: fmt.Sprintf("$%04X", f.src)}
		if caller != nil {
			fr.Ret = caller.ret
		}
		frames = append(frames, fr)
	}
	return frames
}

func entryPoint(f *stackFrame) string {
	if f == nil {
		return "[bottom of stack]"
	}

	str := fmt.Sprintf("%04X", f.target)
	switch f.flag {
	case frameNMI:
		return "[nmi] $" + str
	case frameIRQ:
		return "[irq] $" + str
	default:
		return str
	}
}
