package sandbox

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// blockedGlobals are removed from every environment. The event loop
// installs its own timer family; only setTimeout is re-exposed.
var blockedGlobals = []string{
	"require",
	"process",
	"module",
	"exports",
	"clearTimeout",
	"setInterval",
	"clearInterval",
	"setImmediate",
	"clearImmediate",
}

// installHostAPI injects the capability allowlist. Runs on the loop.
func (c *Context) installHostAPI(env *environment, vm *goja.Runtime) {
	for _, name := range blockedGlobals {
		vm.Set(name, goja.Undefined())
	}

	console := vm.NewObject()
	console.Set("log", c.consoleLog)
	console.Set("print", c.consolePrint)
	vm.Set("console", console)

	vm.Set("fetch", c.makeFetch(env, vm))
	vm.Set("setTimeout", c.makeSetTimeout(env, vm))
}

// consoleLog routes a guest line to the host logger at debug level
func (c *Context) consoleLog(call goja.FunctionCall) goja.Value {
	c.logger.Debug("Guest log", zap.String("message", joinArgs(call)))
	return goja.Undefined()
}

// consolePrint writes a guest line to the raw output channel
func (c *Context) consolePrint(call goja.FunctionCall) goja.Value {
	fmt.Fprintln(c.config.Output, joinArgs(call))
	return goja.Undefined()
}

func joinArgs(call goja.FunctionCall) string {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
