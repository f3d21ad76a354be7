package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/modhost/internal/domain/module"
	"github.com/GriffinCanCode/modhost/internal/domain/registry"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/runtime/runner"
	"github.com/GriffinCanCode/modhost/internal/runtime/sandbox"
	"github.com/GriffinCanCode/modhost/internal/shared/id"
	"go.uber.org/zap"
)

// ErrNoActiveModule is returned when no module has been activated
var ErrNoActiveModule = errors.New("no active module")

// Catalog is the registry surface the host needs
type Catalog interface {
	Get(moduleID id.ModuleID) (module.Record, error)
	RevalidateSync(ctx context.Context, moduleID id.ModuleID) error
	ScriptBody(moduleID id.ModuleID) (string, error)
	SetActive(moduleID id.ModuleID) (module.Record, error)
	Active() (module.Record, bool)
	Subscribe(fn func(registry.Event)) func()
}

// Config configures execution contexts created by the host
type Config struct {
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
	Fetcher     sandbox.Fetcher
	Output      io.Writer
	LoadTimeout time.Duration
	CallTimeout time.Duration
	Bundle      string
}

// Host owns the execution context of the active module
type Host struct {
	catalog     Catalog
	config      Config
	logger      *logging.Logger
	unsubscribe func()

	reloadMu sync.Mutex // one reload at a time; waiters reuse its result

	mu     sync.Mutex
	record module.Record
	active bool
	sctx   *sandbox.Context
	runner *runner.Runner
	stale  bool
}

// New creates a host and subscribes it to catalog events
func New(catalog Catalog, config Config) *Host {
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	h := &Host{
		catalog: catalog,
		config:  config,
		logger:  config.Logger,
	}
	h.unsubscribe = catalog.Subscribe(h.onEvent)
	return h
}

// Restore activates the record the catalog marks active, if any
func (h *Host) Restore(ctx context.Context) error {
	rec, ok := h.catalog.Active()
	if !ok {
		return nil
	}
	_, err := h.Activate(ctx, rec.ID)
	return err
}

// Activate loads the module's script into a fresh context and makes it the
// active module. The previous module stays active if loading fails.
func (h *Host) Activate(ctx context.Context, moduleID id.ModuleID) (module.Record, error) {
	rec, err := h.catalog.Get(moduleID)
	if err != nil {
		return module.Record{}, err
	}

	sctx, err := h.load(ctx, rec)
	if err != nil {
		return module.Record{}, err
	}

	rec, err = h.catalog.SetActive(moduleID)
	if err != nil {
		_ = sctx.Close()
		return module.Record{}, err
	}

	r := runner.New(sctx, runner.Options{
		Logger:      h.logger.Module(rec.Descriptor.Name),
		Metrics:     h.config.Metrics,
		CallTimeout: h.config.CallTimeout,
		OnTimeout:   func(string) { h.discard(rec.ID) },
	})

	h.mu.Lock()
	old := h.sctx
	h.record = rec
	h.active = true
	h.sctx = sctx
	h.runner = r
	h.stale = false
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	h.logger.Info("Module activated",
		zap.String("module", rec.Descriptor.Name),
		zap.String("id", rec.ID.String()))
	return rec, nil
}

// Runner returns the active module's runner, reloading a discarded
// environment first
func (h *Host) Runner(ctx context.Context) (*runner.Runner, module.Record, error) {
	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return nil, module.Record{}, ErrNoActiveModule
	}
	rec, r, stale := h.record, h.runner, h.stale
	h.mu.Unlock()

	if stale {
		return h.reloadOnce(ctx)
	}
	return r, rec, nil
}

// reloadOnce reloads a stale environment. Callers that queued behind an
// earlier reload find it fresh and return without loading again.
func (h *Host) reloadOnce(ctx context.Context) (*runner.Runner, module.Record, error) {
	h.reloadMu.Lock()
	defer h.reloadMu.Unlock()

	h.mu.Lock()
	if !h.active {
		h.mu.Unlock()
		return nil, module.Record{}, ErrNoActiveModule
	}
	rec, sctx, r, stale := h.record, h.sctx, h.runner, h.stale
	h.mu.Unlock()

	if stale {
		if err := h.reload(ctx, rec, sctx); err != nil {
			return nil, rec, err
		}
	}
	return r, rec, nil
}

// Current returns the active record
func (h *Host) Current() (module.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.record, h.active
}

// State returns the active context's state
func (h *Host) State() sandbox.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sctx == nil {
		return sandbox.StateUninitialized
	}
	return h.sctx.State()
}

// Deactivate unloads the active module
func (h *Host) Deactivate() {
	h.mu.Lock()
	old := h.sctx
	h.record = module.Record{}
	h.active = false
	h.sctx = nil
	h.runner = nil
	h.stale = false
	h.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
}

// Close unsubscribes from the catalog and unloads the active module
func (h *Host) Close() error {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.Deactivate()
	return nil
}

func (h *Host) load(ctx context.Context, rec module.Record) (*sandbox.Context, error) {
	if err := h.catalog.RevalidateSync(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("revalidate %s: %w", rec.Descriptor.Name, err)
	}
	body, err := h.catalog.ScriptBody(rec.ID)
	if err != nil {
		return nil, err
	}

	sctx := sandbox.New(sandbox.Config{
		Name:        rec.Descriptor.Name,
		Logger:      h.logger,
		Output:      h.config.Output,
		Fetcher:     h.config.Fetcher,
		Metrics:     h.config.Metrics,
		LoadTimeout: h.config.LoadTimeout,
		Bundle:      h.config.Bundle,
	})
	if err := sctx.Load(ctx, body); err != nil {
		_ = sctx.Close()
		return nil, err
	}
	return sctx, nil
}

// reload evaluates the script again into the existing context, so the
// runner bound to it stays valid
func (h *Host) reload(ctx context.Context, rec module.Record, sctx *sandbox.Context) error {
	if err := h.catalog.RevalidateSync(ctx, rec.ID); err != nil {
		return fmt.Errorf("revalidate %s: %w", rec.Descriptor.Name, err)
	}
	body, err := h.catalog.ScriptBody(rec.ID)
	if err != nil {
		return err
	}
	if err := sctx.Load(ctx, body); err != nil {
		return err
	}

	h.mu.Lock()
	if h.sctx == sctx {
		h.stale = false
	}
	h.mu.Unlock()

	h.logger.Info("Module reloaded", zap.String("module", rec.Descriptor.Name))
	return nil
}

// discard drops the environment of moduleID after a call timeout
func (h *Host) discard(moduleID id.ModuleID) {
	h.mu.Lock()
	if !h.active || h.record.ID != moduleID {
		h.mu.Unlock()
		return
	}
	sctx := h.sctx
	h.stale = true
	h.mu.Unlock()

	h.logger.Warn("Discarding module environment after timeout", zap.String("id", moduleID.String()))
	_ = sctx.Close()
}

func (h *Host) onEvent(ev registry.Event) {
	h.mu.Lock()
	matches := h.active && h.record.ID == ev.Record.ID
	h.mu.Unlock()
	if !matches {
		return
	}

	switch ev.Type {
	case registry.EventRemoved:
		h.logger.Info("Active module removed, unloading", zap.String("id", ev.Record.ID.String()))
		h.Deactivate()
	case registry.EventUpdated:
		h.mu.Lock()
		h.stale = true
		h.record = ev.Record
		h.mu.Unlock()
	}
}
