package sandbox

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/providers/http/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallResolvesStructuredResults(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		async function search(query, page) {
			return [
				{ title: query + " one", href: "/a", image: "a.png", page: page },
				{ title: query + " two", href: "/b", image: "b.png", page: page }
			];
		}`)

	v, err := c.Call(context.Background(), "search", "x", 0)
	require.NoError(t, err)

	items, ok := v.Seq()
	require.True(t, ok)
	require.Len(t, items, 2)
	assert.Equal(t, map[string]interface{}{
		"title": "x one", "href": "/a", "image": "a.png", "page": 0.0,
	}, items[0].Interface())
	assert.Equal(t, map[string]interface{}{
		"title": "x two", "href": "/b", "image": "b.png", "page": 0.0,
	}, items[1].Interface())
}

func TestCallRejected(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function getChapters(params) { return Promise.reject(new Error("rate limited")); }
		function getContentData() { return Promise.reject("plain reason"); }`)

	_, err := c.Call(context.Background(), "getChapters", map[string]interface{}{"id": 1})
	require.ErrorIs(t, err, ErrRejectedByScript)
	var rejected *RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Message, "rate limited")

	_, err = c.Call(context.Background(), "getContentData")
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "plain reason", rejected.Message)
}

func TestCallErrors(t *testing.T) {
	c := newTestContext(t, Config{})

	_, err := c.Call(context.Background(), "search")
	assert.ErrorIs(t, err, ErrContextUnavailable)

	load(t, c, `
		var notAFunction = 1;
		function throws() { throw new TypeError("bad input"); }
		function nothing() {}`)

	_, err = c.Call(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = c.Call(context.Background(), "notAFunction")
	assert.ErrorIs(t, err, ErrFunctionNotFound)

	_, err = c.Call(context.Background(), "throws")
	assert.ErrorIs(t, err, ErrInvocationFailed)
	assert.Contains(t, err.Error(), "bad input")

	_, err = c.Call(context.Background(), "nothing")
	assert.ErrorIs(t, err, ErrInvocationFailed)
}

func TestCallNonThenableResolvesImmediately(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `function getChapterImages() { return ["1.png", "2.png"]; }`)

	v, err := c.Call(context.Background(), "getChapterImages")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"1.png", "2.png"}, v.Interface())
}

func TestCallCustomThenable(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		function search() {
			return { then: function (ok, fail) { ok("first"); fail("second"); ok("third"); } };
		}`)

	v, err := c.Call(context.Background(), "search")
	require.NoError(t, err)
	s, _ := v.Str()
	assert.Equal(t, "first", s)
}

func TestCallSelfReferencingResultFails(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `
		async function search() { var o = { title: "x" }; o.self = o; return [o]; }
		function getChapters() { var a = []; a.push(a); return a; }
		async function getContentData() {
			var root = {}, cur = root;
			for (var i = 0; i < 200; i++) { cur.next = {}; cur = cur.next; }
			return root;
		}
		async function getChapterImages() {
			var n = { v: 1 };
			for (var i = 0; i < 40; i++) { n = { a: n, b: n }; }
			return n;
		}`)

	for _, fn := range []string{"search", "getChapters", "getContentData", "getChapterImages"} {
		t.Run(fn, func(t *testing.T) {
			_, err := c.Call(context.Background(), fn, "q", 0)
			assert.ErrorIs(t, err, ErrInvalidReturnShape)
		})
	}

	// the environment stays usable
	assert.Equal(t, StateReady, c.State())
	_, err := c.Call(context.Background(), "search")
	assert.ErrorIs(t, err, ErrInvalidReturnShape)
}

func TestCallContextDeadline(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `function search() { return new Promise(function () {}); }`)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Call(ctx, "search")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func newFetchContext(t *testing.T) *Context {
	opts := client.DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 5 * time.Second
	return newTestContext(t, Config{Fetcher: client.NewClient(opts)})
}

func TestFetchPostWithBody(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Requested-With")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"A"}]}`))
	}))
	defer srv.Close()

	c := newFetchContext(t)
	load(t, c, `var BASE = "`+srv.URL+`";
		async function search(q) {
			const res = await fetch(BASE + "/search", {
				method: "POST",
				headers: { "X-Requested-With": "XMLHttpRequest" },
				body: "q=" + q
			});
			const data = await res.json();
			return { status: res.status, ok: res.ok, title: data.results[0].title };
		}`)

	v, err := c.Call(context.Background(), "search", "naruto")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"status": 200.0, "ok": true, "title": "A"}, v.Interface())
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "q=naruto", gotBody)
	assert.Equal(t, "XMLHttpRequest", gotHeader)
}

func TestFetchNotFoundResolves(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such chapter"))
	}))
	defer srv.Close()

	c := newFetchContext(t)
	load(t, c, `
		async function getChapters() {
			const res = await fetch("`+srv.URL+`/missing");
			return { status: res.status, ok: res.ok, text: res.text(), again: res.text(), b64: res.base64,
			         size: res.bytes.byteLength };
		}`)

	v, err := c.Call(context.Background(), "getChapters")
	require.NoError(t, err)
	m := v.Interface().(map[string]interface{})
	assert.Equal(t, 404.0, m["status"])
	assert.Equal(t, false, m["ok"])
	assert.Equal(t, "no such chapter", m["text"])
	assert.Equal(t, m["text"], m["again"])
	assert.Equal(t, "bm8gc3VjaCBjaGFwdGVy", m["b64"])
	assert.Equal(t, 15.0, m["size"])
}

func TestFetchRejections(t *testing.T) {
	c := newFetchContext(t)
	load(t, c, `
		function search(url) { return fetch(url); }
		function getChapters() { return fetch(); }`)

	_, err := c.Call(context.Background(), "search", "not a url")
	require.ErrorIs(t, err, ErrRejectedByScript)
	assert.Contains(t, err.Error(), "invalid url")

	_, err = c.Call(context.Background(), "getChapters")
	assert.ErrorIs(t, err, ErrRejectedByScript)

	// Transport error: nothing listens on port 1
	_, err = c.Call(context.Background(), "search", "http://127.0.0.1:1/")
	assert.ErrorIs(t, err, ErrRejectedByScript)
}

func TestFetchWithoutFetcherRejects(t *testing.T) {
	c := newTestContext(t, Config{})
	load(t, c, `function search() { return fetch("https://example.com"); }`)

	_, err := c.Call(context.Background(), "search")
	assert.ErrorIs(t, err, ErrRejectedByScript)
}
