package runner

import (
	"context"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/modhost/internal/runtime/sandbox"
	"go.uber.org/zap"
)

// Guest function names of the module contract
const (
	FuncSearch        = "search"
	FuncChapters      = "getChapters"
	FuncContent       = "getContentData"
	FuncChapterImages = "getChapterImages"
)

// Call outcomes recorded in metrics
const (
	outcomeOK        = "ok"
	outcomeError     = "error"
	outcomeTimeout   = "timeout"
	outcomeCancelled = "cancelled"
)

// Caller is the async bridge a Runner drives
type Caller interface {
	CallAsync(name string, args []interface{}, cb sandbox.Callback)
}

// Options configures a Runner
type Options struct {
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
	CallTimeout time.Duration // <= 0 waits until the request context ends

	// OnTimeout runs after a call misses CallTimeout. The guest call keeps
	// running; the usual reaction is discarding the environment.
	OnTimeout func(function string)
}

// Runner is the typed module contract
type Runner struct {
	caller Caller
	opts   Options
	logger *zap.Logger
}

// New creates a runner over caller
func New(caller Caller, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		caller: caller,
		opts:   opts,
		logger: logger,
	}
}

// Search calls search(query, page) and expects a list of result mappings
func (r *Runner) Search(ctx context.Context, query string, page int) ([]map[string]interface{}, bool) {
	v, ok := r.call(ctx, FuncSearch, query, page)
	if !ok {
		return nil, false
	}
	results, err := AsSequenceOfMappings(v)
	if err != nil {
		return nil, r.shapeMismatch(FuncSearch, err)
	}
	return results, true
}

// ListChapters calls getChapters(params) and expects a mapping
func (r *Runner) ListChapters(ctx context.Context, params interface{}) (map[string]interface{}, bool) {
	return r.mapping(ctx, FuncChapters, params)
}

// FetchContent calls getContentData(params) and expects a mapping
func (r *Runner) FetchContent(ctx context.Context, params interface{}) (map[string]interface{}, bool) {
	return r.mapping(ctx, FuncContent, params)
}

// ListChapterImages calls getChapterImages(params) and expects image URLs
func (r *Runner) ListChapterImages(ctx context.Context, params interface{}) ([]string, bool) {
	v, ok := r.call(ctx, FuncChapterImages, params)
	if !ok {
		return nil, false
	}
	images, err := AsSequenceOfStrings(v)
	if err != nil {
		return nil, r.shapeMismatch(FuncChapterImages, err)
	}
	return images, true
}

func (r *Runner) mapping(ctx context.Context, function string, params interface{}) (map[string]interface{}, bool) {
	v, ok := r.call(ctx, function, params)
	if !ok {
		return nil, false
	}
	m, err := AsMapping(v)
	if err != nil {
		return nil, r.shapeMismatch(function, err)
	}
	return m, true
}

type outcome struct {
	v   sandbox.Value
	err error
}

// call drives one bridge call and races it against the call timeout and ctx
func (r *Runner) call(ctx context.Context, function string, args ...interface{}) (sandbox.Value, bool) {
	timer := monitoring.NewTimer(r.opts.Metrics, function)

	ch := make(chan outcome, 1)
	r.caller.CallAsync(function, args, func(v sandbox.Value, err error) {
		ch <- outcome{v: v, err: err}
	})

	var deadline <-chan time.Time
	if r.opts.CallTimeout > 0 {
		t := time.NewTimer(r.opts.CallTimeout)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case out := <-ch:
		if out.err != nil {
			timer.Stop(outcomeError)
			r.logger.Warn("Guest call failed",
				zap.String("function", function),
				zap.String("error", out.err.Error()))
			return sandbox.Null(), false
		}
		timer.Stop(outcomeOK)
		return out.v, true

	case <-deadline:
		timer.Stop(outcomeTimeout)
		r.logger.Warn("Guest call timed out",
			zap.String("function", function),
			zap.Duration("timeout", r.opts.CallTimeout))
		if r.opts.OnTimeout != nil {
			r.opts.OnTimeout(function)
		}
		return sandbox.Null(), false

	case <-ctx.Done():
		timer.Stop(outcomeCancelled)
		r.logger.Debug("Guest call abandoned",
			zap.String("function", function),
			zap.Error(ctx.Err()))
		return sandbox.Null(), false
	}
}

func (r *Runner) shapeMismatch(function string, err error) bool {
	r.logger.Warn("Guest result has unexpected shape",
		zap.String("function", function),
		zap.String("error", err.Error()))
	return false
}
