// Package runner exposes the typed module contract over a sandbox
// execution context.
//
// Each entry point calls one guest function through the async bridge and
// coerces the resolved value into the expected shape. Bridge failures,
// timeouts and shape mismatches all return ok == false; the cause goes to
// the logger, never to the caller.
//
//	r := runner.New(ctx, runner.Options{Logger: logger, CallTimeout: 30 * time.Second})
//	results, ok := r.Search(reqCtx, "naruto", 0)
package runner
