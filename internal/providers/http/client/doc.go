// Package client is the outbound network stack shared by the guest fetch
// capability and the module registry's downloads.
//
// Built on go-resty/resty with a pooled retryablehttp transport:
//   - Automatic retries with backoff on transport errors
//   - Optional client-wide rate limiting (x/time/rate)
//   - One circuit breaker per remote host, so a dead source fails fast
//     without affecting other sources
//   - Context-based cancellation
//
// Non-2xx statuses are not errors at this layer: a 404 is a perfectly
// good response for a guest script to inspect. Download is the exception,
// since a module body behind a 404 is never valid.
//
// Example Usage:
//
//	c := client.NewClient(client.DefaultOptions())
//	resp, err := c.Do(ctx, client.Request{Method: "GET", URL: u})
//	text := resp.Text()
package client
