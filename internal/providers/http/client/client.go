package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/modhost/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/modhost/internal/shared/utils"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

var (
	// ErrInvalidURL is returned for malformed or non-http(s) URLs
	ErrInvalidURL = errors.New("invalid url")
	// ErrNoResponse is returned when the transport produced no HTTP response
	ErrNoResponse = errors.New("no http response")
)

// StatusError reports a non-2xx response where one was required
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Status)
}

// Options configures a Client
type Options struct {
	Timeout   time.Duration
	Retries   int
	RPS       float64 // <= 0 means unlimited
	UserAgent string
}

// DefaultOptions returns production defaults
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		Retries:   2,
		UserAgent: "Mozilla/5.0 (compatible; modhost/1.0)",
	}
}

// Request describes one outbound request
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// Client wraps resty with rate limiting and per-host circuit breakers
type Client struct {
	Resty    *resty.Client
	Limiter  *rate.Limiter
	Breakers *resilience.Set
	mu       sync.RWMutex
}

// NewClient creates a production-ready HTTP client
func NewClient(opts Options) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetTransport(retryClient.HTTPClient.Transport)
	if opts.UserAgent != "" {
		restyClient.SetHeader("User-Agent", opts.UserAgent)
	}

	breakers := resilience.NewSet(resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			// remote sources are flaky by nature; only trip on a clear outage
			return counts.ConsecutiveFailures >= 8 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	})

	c := &Client{
		Resty:    restyClient,
		Breakers: breakers,
	}
	c.SetRateLimit(opts.RPS)
	return c
}

// SetRateLimit configures client-wide requests per second
func (c *Client) SetRateLimit(rps float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rps <= 0 {
		c.Limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// Do performs req. Any HTTP status is a successful round trip; errors are
// reserved for bad URLs, transport failures, an open breaker, or a missing
// response object.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := utils.ValidateRemoteURL(req.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}

	c.mu.RLock()
	limiter := c.Limiter
	c.mu.RUnlock()
	if err := limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit error: %w", err)
	}

	var resp *resty.Response
	err = c.Breakers.Get(u.Host).Execute(func() error {
		r := c.Resty.R().SetContext(ctx)
		if len(req.Headers) > 0 {
			r.SetHeaders(req.Headers)
		}
		if req.Body != nil {
			r.SetBody(req.Body)
		}

		var execErr error
		resp, execErr = r.Execute(method, u.String())
		if execErr != nil {
			return execErr
		}
		if resp != nil && resp.StatusCode() >= http.StatusInternalServerError {
			// counts against the host; the response itself is still delivered
			return errServerStatus
		}
		return nil
	})
	if err != nil && !errors.Is(err, errServerStatus) {
		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, fmt.Errorf("%s unavailable: %w", u.Host, err)
		}
		return nil, err
	}
	if resp == nil || resp.RawResponse == nil {
		return nil, ErrNoResponse
	}

	return newResponse(resp), nil
}

var errServerStatus = errors.New("server error status")

// Download fetches url and requires a 2xx status
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: url})
	if err != nil {
		return nil, err
	}
	if resp.Status < 200 || resp.Status >= 300 {
		return nil, &StatusError{URL: url, Status: resp.Status}
	}
	return resp.Body, nil
}
