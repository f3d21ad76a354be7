package sandbox

import (
	"context"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
)

// environment is one goja runtime and the event loop that serializes
// every entry into it
type environment struct {
	loop   *eventloop.EventLoop
	vm     *goja.Runtime // touch only on the loop, except Interrupt
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	nextID  uint64
	pending map[uint64]func(error)
}

func newEnvironment() *environment {
	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	loop.Start()

	vmCh := make(chan *goja.Runtime, 1)
	loop.RunOnLoop(func(vm *goja.Runtime) {
		vmCh <- vm
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &environment{
		loop:    loop,
		vm:      <-vmCh,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]func(error)),
	}
}

// schedule queues fn on the loop unless the environment is closed
func (e *environment) schedule(fn func(*goja.Runtime)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.loop.RunOnLoop(fn)
	return true
}

// track registers fail to be called if the environment closes before the
// returned release runs
func (e *environment) track(fail func(error)) (release func(), ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, false
	}
	key := e.nextID
	e.nextID++
	e.pending[key] = fail
	return func() {
		e.mu.Lock()
		delete(e.pending, key)
		e.mu.Unlock()
	}, true
}

// interrupt aborts whatever guest code is running on the loop
func (e *environment) interrupt(reason string) {
	e.vm.Interrupt(reason)
}

// close stops the loop and fails every unsettled call. Guest code still
// running is interrupted.
func (e *environment) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()

	e.cancel()
	e.vm.Interrupt("environment closed")
	e.loop.StopNoWait()

	for _, fail := range pending {
		fail(ErrContextUnavailable)
	}
}
