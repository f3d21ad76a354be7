package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/runtime/sandbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// stubCaller answers every call with a fixed outcome, or never
type stubCaller struct {
	v      sandbox.Value
	err    error
	silent bool
	calls  []string
	args   [][]interface{}
}

func (s *stubCaller) CallAsync(name string, args []interface{}, cb sandbox.Callback) {
	s.calls = append(s.calls, name)
	s.args = append(s.args, args)
	if s.silent {
		return
	}
	cb(s.v, s.err)
}

func loadedContext(t *testing.T, script string) *sandbox.Context {
	t.Helper()
	c := sandbox.New(sandbox.Config{Name: "test"})
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Load(context.Background(), script))
	return c
}

func TestSearchReturnsStructuredResults(t *testing.T) {
	c := loadedContext(t, `
		async function search(query, page) {
			return [
				{ title: "First", href: "https://a.example/1", image: "https://a.example/1.jpg" },
				{ title: "Second", href: "https://a.example/2", image: "https://a.example/2.jpg" }
			];
		}`)

	results, ok := New(c, Options{}).Search(context.Background(), "x", 0)
	require.True(t, ok)
	require.Len(t, results, 2)
	assert.Equal(t, map[string]interface{}{
		"title": "First", "href": "https://a.example/1", "image": "https://a.example/1.jpg",
	}, results[0])
	assert.Equal(t, "Second", results[1]["title"])
}

func TestRejectionIsAbsentAndLogged(t *testing.T) {
	c := loadedContext(t, `
		function getChapters(params) {
			return new Promise(function (_, reject) { reject(new Error("rate limited")); });
		}`)

	core, logs := observer.New(zap.WarnLevel)
	r := New(c, Options{Logger: zap.New(core)})

	chapters, ok := r.ListChapters(context.Background(), map[string]interface{}{"href": "/x"})
	assert.False(t, ok)
	assert.Nil(t, chapters)

	entries := logs.FilterMessage("Guest call failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, FuncChapters, entries[0].ContextMap()["function"])
	assert.Contains(t, entries[0].ContextMap()["error"], "rate limited")
}

func TestShapeMismatchIsAbsent(t *testing.T) {
	c := loadedContext(t, `
		async function getChapters() { return ["not", "a", "mapping"]; }
		async function getChapterImages() { return [{ url: "x" }]; }
		async function search() { return { results: [] }; }
		async function getContentData() { return { body: "text" }; }`)

	core, logs := observer.New(zap.WarnLevel)
	r := New(c, Options{Logger: zap.New(core)})
	ctx := context.Background()

	_, ok := r.ListChapters(ctx, nil)
	assert.False(t, ok)
	_, ok = r.ListChapterImages(ctx, nil)
	assert.False(t, ok)
	_, ok = r.Search(ctx, "q", 1)
	assert.False(t, ok)

	content, ok := r.FetchContent(ctx, nil)
	assert.True(t, ok)
	assert.Equal(t, map[string]interface{}{"body": "text"}, content)

	assert.Equal(t, 3, logs.FilterMessage("Guest result has unexpected shape").Len())
}

func TestListChapterImages(t *testing.T) {
	c := loadedContext(t, `
		async function getChapterImages(params) {
			return [params.base + "/1.png", params.base + "/2.png"];
		}`)

	images, ok := New(c, Options{}).ListChapterImages(context.Background(), map[string]interface{}{"base": "https://cdn.example"})
	require.True(t, ok)
	assert.Equal(t, []string{"https://cdn.example/1.png", "https://cdn.example/2.png"}, images)
}

func TestSearchPassesArguments(t *testing.T) {
	stub := &stubCaller{v: sandbox.Sequence()}
	results, ok := New(stub, Options{}).Search(context.Background(), "one piece", 3)
	require.True(t, ok)
	assert.Empty(t, results)
	assert.Equal(t, []string{FuncSearch}, stub.calls)
	assert.Equal(t, []interface{}{"one piece", 3}, stub.args[0])
}

func TestBridgeErrorsAreAbsent(t *testing.T) {
	for _, err := range []error{
		sandbox.ErrContextUnavailable,
		sandbox.ErrFunctionNotFound,
		sandbox.ErrInvocationFailed,
		&sandbox.RejectedError{Message: "nope"},
	} {
		stub := &stubCaller{err: err}
		_, ok := New(stub, Options{}).FetchContent(context.Background(), nil)
		assert.False(t, ok, err.Error())
	}
}

func TestTimeoutInvokesHook(t *testing.T) {
	var fired atomic.Value
	stub := &stubCaller{silent: true}
	r := New(stub, Options{
		CallTimeout: 30 * time.Millisecond,
		OnTimeout:   func(function string) { fired.Store(function) },
	})

	start := time.Now()
	_, ok := r.ListChapters(context.Background(), nil)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, FuncChapters, fired.Load())
}

func TestContextCancelIsAbsent(t *testing.T) {
	stub := &stubCaller{silent: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := New(stub, Options{}).Search(ctx, "q", 0)
	assert.False(t, ok)
}

func TestCoercions(t *testing.T) {
	_, err := AsMapping(sandbox.String("x"))
	assert.True(t, errors.Is(err, sandbox.ErrInvalidReturnShape))

	strs, err := AsSequenceOfStrings(sandbox.Sequence(sandbox.String("a"), sandbox.Number(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "2"}, strs)

	_, err = AsSequenceOfStrings(sandbox.Sequence(sandbox.String("a"), sandbox.Null()))
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, 1, shapeErr.At)

	maps, err := AsSequenceOfMappings(sandbox.FromGo([]interface{}{map[string]interface{}{"a": 1.0}}))
	require.NoError(t, err)
	assert.Equal(t, []map[string]interface{}{{"a": 1.0}}, maps)
}
