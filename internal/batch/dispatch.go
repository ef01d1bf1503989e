package batch

import "sync"

// Dispatcher hands a completion callback to the context it must run on.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatchFunc) Dispatch(fn func()) { f(fn) }

// Inline runs callbacks directly on the burst goroutine.
var Inline Dispatcher = DispatchFunc(func(fn func()) { fn() })

// MainLoop queues callbacks until the owning goroutine runs them, the way a
// UI thread drains its message queue.
type MainLoop struct {
	queue chan func()
	once  sync.Once
}

// NewMainLoop returns a loop with room for size pending callbacks before
// Dispatch blocks.
func NewMainLoop(size int) *MainLoop {
	return &MainLoop{queue: make(chan func(), max(size, 0))}
}

// Dispatch queues fn.
func (l *MainLoop) Dispatch(fn func()) { l.queue <- fn }

// RunOne blocks until a callback is queued and runs it on the calling
// goroutine. It returns false once the loop is closed and drained.
func (l *MainLoop) RunOne() bool {
	fn, ok := <-l.queue
	if !ok {
		return false
	}
	fn()
	return true
}

// Close stops the loop. Dispatching after Close panics.
func (l *MainLoop) Close() {
	l.once.Do(func() { close(l.queue) })
}
