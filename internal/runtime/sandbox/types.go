package sandbox

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/providers/http/client"
)

// State is the lifecycle state of the current execution environment
type State int

const (
	// StateUninitialized - no environment, or one being built
	StateUninitialized State = iota

	// StateInjected - host capabilities are installed
	StateInjected

	// StateEvaluated - bundle and script have been evaluated
	StateEvaluated

	// StateReady - script loaded without exception; calls are accepted
	StateReady

	// StateLoadFailed - script evaluation raised or was interrupted
	StateLoadFailed
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInjected:
		return "injected"
	case StateEvaluated:
		return "evaluated"
	case StateReady:
		return "ready"
	case StateLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Fetcher performs HTTP requests on behalf of guest fetch calls
type Fetcher interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

// Config defines execution context configuration
type Config struct {
	Name        string              // Module name used to tag guest log lines
	Logger      *logging.Logger     // Host logger; guest console.log goes here
	Output      io.Writer           // console.print target
	Fetcher     Fetcher             // Network stack for fetch
	Metrics     *monitoring.Metrics // Optional
	LoadTimeout time.Duration       // Bound on bundle and script evaluation
	Bundle      string              // Support library source; empty uses the embedded one
}

// DefaultConfig returns a configuration with no network access
func DefaultConfig() Config {
	return Config{
		Logger:      logging.NewNop(),
		Output:      os.Stdout,
		LoadTimeout: 10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Logger == nil {
		c.Logger = def.Logger
	}
	if c.Output == nil {
		c.Output = def.Output
	}
	if c.LoadTimeout <= 0 {
		c.LoadTimeout = def.LoadTimeout
	}
	if c.Bundle == "" {
		c.Bundle = supportBundle
	}
	return c
}
