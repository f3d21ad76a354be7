/*
Package sandbox hosts extension module scripts in isolated goja runtimes.

# Overview

A Context owns at most one execution environment at a time. Every Load
discards the previous environment and builds a fresh one: a goja runtime
driven by its own event loop, with only the host capabilities below
injected into global scope.

  - fetch(url, options): HTTP through the shared network client, resolved
    as a promise on the environment's loop
  - console.log(message): debug-level line on the host logger
  - console.print(message): raw line on the configured output writer
  - setTimeout(callback, delayMs): one-shot deferred callback, no handle

A support bundle is evaluated before the module script. A bundle failure
is logged and does not fail the load.

# Lifecycle

	Uninitialized -> Injected -> Evaluated -> Ready
	                                       \-> LoadFailed

Only a Ready environment accepts calls. Load is interrupted when its
context is cancelled or the load timeout elapses.

# Serialization

All guest code runs on the environment's event loop goroutine. Calls,
fetch completions and timer callbacks are queued onto that loop, so
guest code is never entered concurrently.

# Calls

CallAsync invokes a named guest function and delivers exactly one
outcome. A thenable return value is settled through its then method; any
other value resolves immediately. Call is the blocking form.

	ctx := sandbox.New(sandbox.Config{Name: "reader", Logger: logging.NewNop(), Fetcher: httpClient})
	if err := ctx.Load(context.Background(), script); err != nil { ... }
	v, err := ctx.Call(context.Background(), "search", "naruto", 0)
*/
package sandbox
