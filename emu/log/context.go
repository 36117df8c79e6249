package log

import "sync"

// A LogContext adds fields to every emitted entry, for instance the current
// program counter.
type LogContext interface {
	AddLogContext(z *EntryZ)
}

var (
	ctxmu    sync.RWMutex
	contexts []LogContext
)

// AddContext registers ctx. It returns a function removing it.
func AddContext(ctx LogContext) (remove func()) {
	ctxmu.Lock()
	contexts = append(contexts, ctx)
	ctxmu.Unlock()

	return func() {
		ctxmu.Lock()
		defer ctxmu.Unlock()
		for i, c := range contexts {
			if c == ctx {
				contexts = append(contexts[:i], contexts[i+1:]...)
				return
			}
		}
	}
}

func addContexts(z *EntryZ) {
	ctxmu.RLock()
	defer ctxmu.RUnlock()
	for _, c := range contexts {
		c.AddLogContext(z)
	}
}
