package sandbox

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/logging"
	"github.com/GriffinCanCode/modhost/internal/infrastructure/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestContext(t *testing.T, cfg Config) *Context {
	t.Helper()
	if cfg.Name == "" {
		cfg.Name = "test"
	}
	c := New(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func load(t *testing.T, c *Context, script string) {
	t.Helper()
	require.NoError(t, c.Load(context.Background(), script))
	require.Equal(t, StateReady, c.State())
}

func TestLoadReady(t *testing.T) {
	c := newTestContext(t, Config{})
	assert.Equal(t, StateUninitialized, c.State())

	load(t, c, `function search(q, page) { return Promise.resolve([]); }`)
	assert.Empty(t, c.LastException())
}

func TestLoadSyntaxError(t *testing.T) {
	c := newTestContext(t, Config{})

	err := c.Load(context.Background(), `function search( {`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScriptLoad)

	var loadErr *ScriptLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Message, "SyntaxError")
	assert.Equal(t, StateLoadFailed, c.State())
	assert.NotEmpty(t, c.LastException())

	_, err = c.Call(context.Background(), "search", "x", 0)
	assert.ErrorIs(t, err, ErrContextUnavailable)
}

func TestLoadThrowingScript(t *testing.T) {
	c := newTestContext(t, Config{})
	err := c.Load(context.Background(), `throw new Error("boom")`)

	var loadErr *ScriptLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "Error: boom", loadErr.Message)
	assert.Equal(t, StateLoadFailed, c.State())
}

func TestBundleFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	c := newTestContext(t, Config{Logger: logging.Wrap(zap.New(core)), Bundle: `throw new Error("bundle broken")`})

	load(t, c, `var loaded = true; function search() { return loaded; }`)
	assert.Equal(t, 1, logs.FilterMessage("Support bundle failed to load").Len())

	v, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	b, ok := v.Bool()
	assert.True(t, ok)
	assert.True(t, b)
}

func TestEmbeddedBundleHelpers(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function search() {
			return Promise.resolve([
				modhost.stripTags("<b>Tom &amp; Jerry</b>"),
				modhost.absoluteUrl("https://a.example/x/y.html", "/img/1.png"),
				modhost.absoluteUrl("https://a.example/x/y.html", "2.png")
			]);
		}`)

	v, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		"Tom & Jerry",
		"https://a.example/img/1.png",
		"https://a.example/x/2.png",
	}, v.Interface())
}

func TestLoadTimeoutInterrupts(t *testing.T) {
	c := newTestContext(t, Config{LoadTimeout: 100 * time.Millisecond})

	start := time.Now()
	err := c.Load(context.Background(), `while (true) {}`)
	assert.ErrorIs(t, err, ErrScriptLoad)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, StateLoadFailed, c.State())
}

func TestLoadCancelled(t *testing.T) {
	c := newTestContext(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := c.Load(ctx, `while (true) {}`)
	var loadErr *ScriptLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, loadErr.Message, "cancelled")
}

func TestReloadReplacesEnvironment(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `var counter = 0; function search() { counter++; return counter; }`)

	_, err := c.Call(context.Background(), "search")
	require.NoError(t, err)

	load(t, c, `var counter = 0; function search() { counter++; return counter; }`)
	v, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	n, _ := v.Number()
	assert.Equal(t, 1.0, n)
}

func TestBlockedGlobals(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function search() {
			return [typeof require, typeof process, typeof setInterval,
			        typeof clearTimeout, typeof setImmediate, typeof setTimeout,
			        typeof fetch, typeof console.log, typeof console.print];
		}`)

	v, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{
		"undefined", "undefined", "undefined",
		"undefined", "undefined", "function",
		"function", "function", "function",
	}, v.Interface())
}

func TestConsoleLogAndPrint(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	var out bytes.Buffer
	c := newTestContext(t, Config{Name: "reader", Logger: logging.Wrap(zap.New(core)), Output: &out})

	load(t, c, `console.log("hello", 42); console.print("raw line");`)

	entries := logs.FilterMessage("Guest log").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "hello 42", entries[0].ContextMap()["message"])
	assert.Equal(t, "reader", entries[0].ContextMap()["module"])
	assert.Equal(t, "raw line\n", out.String())
}

func TestSetTimeoutFires(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function search(q) {
			return new Promise(function (resolve) {
				setTimeout(function (v) { resolve(q + v); }, 20, "-later");
			});
		}`)

	v, err := c.Call(context.Background(), "search", "now")
	require.NoError(t, err)
	s, _ := v.Str()
	assert.Equal(t, "now-later", s)
}

func TestSetTimeoutExceptionCaptured(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function search() {
			setTimeout(function () { throw new Error("late failure"); }, 0);
			return new Promise(function (resolve) { setTimeout(function () { resolve(1); }, 30); });
		}`)

	_, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return c.LastException() == "Error: late failure"
	}, 2*time.Second, 10*time.Millisecond)

	// The slot survives calls and resets on load
	_, err = c.Call(context.Background(), "search")
	require.NoError(t, err)
	load(t, c, `function search() { return 1; }`)
	assert.Empty(t, c.LastException())
}

func TestSetTimeoutHugeDelayDoesNotFire(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		var fired = [];
		function arm() {
			setTimeout(function () { fired.push("huge"); }, 1e20);
			setTimeout(function () { fired.push("inf"); }, Infinity);
			return 1;
		}
		function count() { return fired.length; }`)

	_, err := c.Call(context.Background(), "arm")
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	v, err := c.Call(context.Background(), "count")
	require.NoError(t, err)
	n, _ := v.Number()
	assert.Equal(t, 0.0, n)
}

func TestCancelRacingLoadLeavesUsableRuntime(t *testing.T) {
	c := newTestContext(t, Config{})

	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := c.Load(ctx, `function search() { return "ok"; }`)
		if err != nil {
			assert.ErrorIs(t, err, ErrScriptLoad)
			continue
		}
		require.Equal(t, StateReady, c.State())
		v, err := c.Call(context.Background(), "search")
		require.NoError(t, err, "round %d", i)
		s, _ := v.Str()
		assert.Equal(t, "ok", s)
	}
}

func TestCloseFailsPendingCalls(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `function search() { return new Promise(function () {}); }`)

	done := make(chan error, 1)
	c.CallAsync("search", nil, func(_ Value, err error) { done <- err })

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrContextUnavailable)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not failed on close")
	}
	assert.Equal(t, StateUninitialized, c.State())
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		var inside = 0;
		var overlaps = 0;
		function enter() {
			inside++;
			if (inside > 1) overlaps++;
			var x = 0;
			for (var i = 0; i < 20000; i++) { x += i; }
			inside--;
			return overlaps;
		}
		function search() { return enter(); }
		function getChapters() { return enter(); }`)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		for _, name := range []string{"search", "getChapters"} {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				v, err := c.Call(context.Background(), name)
				if err != nil {
					errs <- err
					return
				}
				if n, _ := v.Number(); n != 0 {
					errs <- errors.New("calls overlapped")
				}
			}(name)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestScriptLoadMetrics(t *testing.T) {
	metrics := monitoring.NewMetrics()
	c := newTestContext(t, Config{Metrics: metrics})
	load(t, c, `var a = 1;`)
	_ = c.Load(context.Background(), `}`)

	families, err := metrics.Registry().Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "modhost_script_loads_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				counts[l.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["ok"])
	assert.Equal(t, 1.0, counts["error"])
}
