package client

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	opts := DefaultOptions()
	opts.Retries = 0
	opts.Timeout = 5 * time.Second
	return NewClient(opts)
}

func TestDoSendsMethodHeadersAndBody(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Token")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := testClient().Do(context.Background(), Request{
		Method:  "post",
		URL:     srv.URL + "/api",
		Headers: map[string]string{"X-Token": "abc"},
		Body:    []byte("q=naruto"),
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "q=naruto", gotBody)
	assert.Equal(t, "abc", gotHeader)
	assert.True(t, resp.OK())
	assert.Equal(t, "application/json", resp.Headers()["content-type"])

	parsed, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"ok": true}, parsed)
}

func TestDoDefaultsToGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Method))
	}))
	defer srv.Close()

	resp, err := testClient().Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "GET", resp.Text())
}

func TestDoNotFoundIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing chapter", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := testClient().Do(context.Background(), Request{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.Status)
	assert.False(t, resp.OK())
	assert.Contains(t, resp.Text(), "missing chapter")
}

func TestDoRejectsMalformedURL(t *testing.T) {
	for _, raw := range []string{"", "::not-a-url", "file:///etc/passwd"} {
		_, err := testClient().Do(context.Background(), Request{URL: raw})
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestDoTransportError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = testClient().Do(context.Background(), Request{URL: "http://" + addr})
	assert.Error(t, err)
}

func TestServerErrorsTripHostBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient()
	for i := 0; i < 8; i++ {
		resp, err := c.Do(context.Background(), Request{URL: srv.URL})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.Status)
	}

	_, err := c.Do(context.Background(), Request{URL: srv.URL})
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
}

func TestDownloadRequiresSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok.js" {
			_, _ = w.Write([]byte("function search() {}"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient()

	body, err := c.Download(context.Background(), srv.URL+"/ok.js")
	require.NoError(t, err)
	assert.Equal(t, "function search() {}", string(body))

	_, err = c.Download(context.Background(), srv.URL+"/gone.js")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestRateLimitHonorsContext(t *testing.T) {
	c := testClient()
	c.SetRateLimit(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Do(ctx, Request{URL: "http://127.0.0.1:1"})
	assert.ErrorContains(t, err, "rate limit")
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name        string
		body        []byte
		contentType string
		want        string
	}{
		{name: "utf8 no header", body: []byte("café"), want: "café"},
		{name: "declared latin1", body: []byte("caf\xe9"), contentType: "text/html; charset=ISO-8859-1", want: "café"},
		{name: "unknown label falls back", body: []byte("plain"), contentType: "text/plain; charset=bogus", want: "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeText(tt.body, tt.contentType))
		})
	}
}

func TestBase64(t *testing.T) {
	r := &Response{Body: []byte{0x00, 0xff}}
	assert.Equal(t, "AP8=", r.Base64())
}
