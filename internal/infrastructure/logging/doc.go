// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Guest script output is routed here too: console.log lines from an
// extension module arrive at Debug level tagged with the module name, and
// bridge failures downgraded by the runner arrive at Warn.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Level: "info"})
//	logger.Component("registry").Info("Registry initialized", zap.Int("modules", n))
//	logger.Module("manga").Warn("Revalidation failed", zap.Error(err))
package logging
