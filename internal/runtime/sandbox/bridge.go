package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

// Callback receives the single outcome of a guest call
type Callback func(Value, error)

// CallAsync invokes the global function name with args and delivers
// exactly one outcome to cb. cb may run on the environment's loop and
// must not block. A guest that never settles its promise never calls cb
// unless the environment is discarded, which fails the call with
// ErrContextUnavailable.
func (c *Context) CallAsync(name string, args []interface{}, cb Callback) {
	var (
		once    sync.Once
		mu      sync.Mutex
		release func()
	)
	deliver := func(v Value, err error) {
		once.Do(func() {
			mu.Lock()
			r := release
			mu.Unlock()
			if r != nil {
				r()
			}
			cb(v, err)
		})
	}

	env, ok := c.ready()
	if !ok {
		deliver(Null(), ErrContextUnavailable)
		return
	}

	r, tracked := env.track(func(err error) { deliver(Null(), err) })
	if !tracked {
		deliver(Null(), ErrContextUnavailable)
		return
	}
	mu.Lock()
	release = r
	mu.Unlock()

	scheduled := env.schedule(func(vm *goja.Runtime) {
		c.invoke(vm, name, args, deliver)
	})
	if !scheduled {
		deliver(Null(), ErrContextUnavailable)
	}
}

// Call is the blocking form of CallAsync. It returns ctx.Err() if ctx ends
// first; the guest call itself is not stopped.
func (c *Context) Call(ctx context.Context, name string, args ...interface{}) (Value, error) {
	type outcome struct {
		v   Value
		err error
	}
	ch := make(chan outcome, 1)
	c.CallAsync(name, args, func(v Value, err error) {
		ch <- outcome{v, err}
	})

	select {
	case out := <-ch:
		return out.v, out.err
	case <-ctx.Done():
		return Null(), ctx.Err()
	}
}

// invoke runs on the loop
func (c *Context) invoke(vm *goja.Runtime, name string, args []interface{}, deliver Callback) {
	defer func() {
		if r := recover(); r != nil {
			deliver(Null(), fmt.Errorf("%w: %s: %v", ErrInvocationFailed, name, r))
		}
	}()

	fn, ok := goja.AssertFunction(vm.Get(name))
	if !ok {
		deliver(Null(), fmt.Errorf("%w: %s", ErrFunctionNotFound, name))
		return
	}

	jsArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		jsArgs[i] = toJS(vm, arg)
	}

	ret, err := fn(goja.Undefined(), jsArgs...)
	if err != nil {
		deliver(Null(), fmt.Errorf("%w: %s: %s", ErrInvocationFailed, name, exceptionMessage(err)))
		return
	}
	if ret == nil || goja.IsUndefined(ret) || goja.IsNull(ret) {
		deliver(Null(), fmt.Errorf("%w: %s returned no value", ErrInvocationFailed, name))
		return
	}

	settle(vm, ret, deliver)
}

// settle subscribes to a thenable exactly once. Anything else resolves
// immediately.
func settle(vm *goja.Runtime, ret goja.Value, deliver Callback) {
	obj, isObject := ret.(*goja.Object)
	if isObject {
		if then, ok := goja.AssertFunction(obj.Get("then")); ok {
			onResolve := vm.ToValue(func(call goja.FunctionCall) goja.Value {
				deliver(Convert(call.Argument(0).Export()))
				return goja.Undefined()
			})
			onReject := vm.ToValue(func(call goja.FunctionCall) goja.Value {
				deliver(Null(), &RejectedError{Message: call.Argument(0).String()})
				return goja.Undefined()
			})
			if _, err := then(obj, onResolve, onReject); err != nil {
				deliver(Null(), fmt.Errorf("%w: then: %s", ErrInvocationFailed, exceptionMessage(err)))
			}
			return
		}
	}
	deliver(Convert(ret.Export()))
}

// toJS converts a host argument. Values are unwrapped to plain Go data.
func toJS(vm *goja.Runtime, arg interface{}) goja.Value {
	if v, ok := arg.(Value); ok {
		arg = v.Interface()
	}
	return vm.ToValue(arg)
}
