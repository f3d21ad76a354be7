package sandbox

import (
	"math"
	"time"

	"github.com/dop251/goja"
)

// maxTimerDelay caps setTimeout delays, in milliseconds, so the duration
// cannot overflow.
const maxTimerDelay = math.MaxInt32

// makeSetTimeout builds the one-shot setTimeout capability. The callback
// runs on the environment's loop; an exception it throws lands in the
// last-exception slot.
func (c *Context) makeSetTimeout(env *environment, vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("setTimeout: callback is not a function"))
		}

		delay := call.Argument(1).ToInteger()
		if delay < 0 {
			delay = 0
		}
		if delay > maxTimerDelay {
			delay = maxTimerDelay
		}

		var extra []goja.Value
		if len(call.Arguments) > 2 {
			extra = append(extra, call.Arguments[2:]...)
		}

		env.loop.SetTimeout(func(*goja.Runtime) {
			if _, err := fn(goja.Undefined(), extra...); err != nil {
				c.recordException(env, exceptionMessage(err))
			}
		}, time.Duration(delay)*time.Millisecond)

		return goja.Undefined()
	}
}
