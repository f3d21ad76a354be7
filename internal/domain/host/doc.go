// Package host keeps the active module loaded and serves its runner.
//
// Activation revalidates the module's cached script, loads it into a fresh
// execution context and marks the record active in the registry. A runner
// timeout discards the environment; the next Runner call reloads it.
// Registry events keep the host in step: removing the active module
// unloads it, and refreshing its script schedules a reload.
package host
