package sandbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Context owns the current execution environment of one module
type Context struct {
	config Config
	logger *zap.Logger

	mu            sync.RWMutex
	env           *environment
	state         State
	lastException string
}

// New creates an execution context with no environment
func New(config Config) *Context {
	config = config.withDefaults()
	return &Context{
		config: config,
		logger: config.Logger.Module(config.Name),
		state:  StateUninitialized,
	}
}

// Name returns the module name the context was created for
func (c *Context) Name() string {
	return c.config.Name
}

// State returns the state of the current environment
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastException returns the last uncaught exception message captured since
// the most recent Load, including exceptions thrown by timer callbacks
func (c *Context) LastException() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastException
}

// Load discards any previous environment, builds a fresh one, evaluates the
// support bundle and then script. It fails with *ScriptLoadError when
// evaluation leaves an exception, times out or ctx is cancelled.
func (c *Context) Load(ctx context.Context, script string) error {
	env := newEnvironment()

	c.mu.Lock()
	old := c.env
	c.env = env
	c.state = StateUninitialized
	c.lastException = ""
	c.mu.Unlock()

	if old != nil {
		old.close()
	}

	var (
		evalMu      sync.Mutex
		evalDone    bool
		interrupted bool
	)
	result := make(chan error, 1)
	finish := func(vm *goja.Runtime, err error) {
		evalMu.Lock()
		evalDone = true
		if interrupted && err == nil {
			// evaluation beat the interrupt; the flag is sticky and would
			// abort the first guest call
			vm.ClearInterrupt()
		}
		evalMu.Unlock()
		result <- err
	}
	stop := func(reason string) {
		evalMu.Lock()
		defer evalMu.Unlock()
		if !evalDone {
			interrupted = true
			env.interrupt(reason)
		}
	}

	env.schedule(func(vm *goja.Runtime) {
		c.installHostAPI(env, vm)
		c.transition(env, StateInjected)

		if _, err := vm.RunString(c.config.Bundle); err != nil {
			var interruptedErr *goja.InterruptedError
			if errors.As(err, &interruptedErr) {
				c.transition(env, StateEvaluated)
				finish(vm, err)
				return
			}
			c.logger.Warn("Support bundle failed to load", zap.String("error", exceptionMessage(err)))
		}

		_, err := vm.RunScript(c.scriptName(), script)
		c.transition(env, StateEvaluated)
		finish(vm, err)
	})

	timer := time.NewTimer(c.config.LoadTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-result:
	case <-timer.C:
		stop("script load timed out")
		err = <-result
	case <-ctx.Done():
		stop("script load cancelled")
		err = <-result
	}

	if err != nil {
		msg := exceptionMessage(err)
		c.mu.Lock()
		if c.env == env {
			c.state = StateLoadFailed
			c.lastException = msg
		}
		c.mu.Unlock()
		env.close()
		c.record(false)
		c.logger.Warn("Script load failed", zap.String("error", msg))
		return &ScriptLoadError{Message: msg}
	}

	c.mu.Lock()
	if c.env != env {
		// Superseded by a concurrent Load or Close
		c.mu.Unlock()
		env.close()
		return &ScriptLoadError{Message: "environment replaced during load"}
	}
	c.state = StateReady
	c.mu.Unlock()

	c.record(true)
	c.logger.Debug("Script loaded")
	return nil
}

// Close discards the current environment. Unsettled calls fail with
// ErrContextUnavailable.
func (c *Context) Close() error {
	c.mu.Lock()
	env := c.env
	c.env = nil
	c.state = StateUninitialized
	c.mu.Unlock()

	if env != nil {
		env.close()
	}
	return nil
}

// ready returns the current environment if it accepts calls
func (c *Context) ready() (*environment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.env == nil || c.state != StateReady {
		return nil, false
	}
	return c.env, true
}

func (c *Context) transition(env *environment, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.env == env {
		c.state = state
	}
}

// recordException stores msg in the last-exception slot if env is still
// the current environment
func (c *Context) recordException(env *environment, msg string) {
	c.mu.Lock()
	current := c.env == env
	if current {
		c.lastException = msg
	}
	c.mu.Unlock()

	if current {
		c.logger.Warn("Uncaught exception in guest callback", zap.String("error", msg))
	}
}

func (c *Context) scriptName() string {
	if c.config.Name == "" {
		return "module.js"
	}
	return c.config.Name + ".js"
}

func (c *Context) record(ok bool) {
	if c.config.Metrics != nil {
		c.config.Metrics.RecordScriptLoad(ok)
	}
}

// exceptionMessage extracts the thrown value's string form
func exceptionMessage(err error) string {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		if v := exc.Value(); v != nil {
			return v.String()
		}
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if s, ok := interrupted.Value().(string); ok {
			return s
		}
	}
	return err.Error()
}
