package sandbox

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/GriffinCanCode/modhost/internal/providers/http/client"
	"github.com/GriffinCanCode/modhost/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var errFetchUnavailable = errors.New("fetch is not available in this environment")

// makeFetch builds the fetch capability. The request runs on its own
// goroutine; settlement is queued back onto the loop.
func (c *Context) makeFetch(env *environment, vm *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		req, err := fetchRequest(vm, call)
		if err == nil && c.config.Fetcher == nil {
			err = errFetchUnavailable
		}
		if err != nil {
			reject(vm.NewGoError(err))
			return vm.ToValue(promise)
		}

		go func() {
			resp, err := c.config.Fetcher.Do(env.ctx, req)
			c.recordFetch(req.Method, resp, err)

			env.schedule(func(vm *goja.Runtime) {
				switch {
				case err != nil:
					reject(vm.NewGoError(fmt.Errorf("fetch %s: %w", req.URL, err)))
				case resp == nil:
					reject(vm.NewGoError(fmt.Errorf("fetch %s: %w", req.URL, client.ErrNoResponse)))
				default:
					resolve(newResponseObject(vm, resp))
				}
			})
		}()

		return vm.ToValue(promise)
	}
}

// fetchRequest reads fetch(url, {method, headers, body})
func fetchRequest(vm *goja.Runtime, call goja.FunctionCall) (client.Request, error) {
	raw := call.Argument(0)
	if goja.IsUndefined(raw) || goja.IsNull(raw) {
		return client.Request{}, fmt.Errorf("%w: missing url", client.ErrInvalidURL)
	}

	req := client.Request{Method: http.MethodGet, URL: raw.String()}
	if _, err := utils.ValidateRemoteURL(req.URL); err != nil {
		return req, fmt.Errorf("%w: %v", client.ErrInvalidURL, err)
	}

	opts := call.Argument(1)
	if goja.IsUndefined(opts) || goja.IsNull(opts) {
		return req, nil
	}
	o := opts.ToObject(vm)

	if m := o.Get("method"); m != nil && !goja.IsUndefined(m) && !goja.IsNull(m) {
		req.Method = strings.ToUpper(m.String())
	}

	if h := o.Get("headers"); h != nil && !goja.IsUndefined(h) && !goja.IsNull(h) {
		headers := h.ToObject(vm)
		req.Headers = make(map[string]string)
		for _, key := range headers.Keys() {
			req.Headers[key] = headers.Get(key).String()
		}
	}

	if b := o.Get("body"); b != nil && !goja.IsUndefined(b) && !goja.IsNull(b) {
		switch body := b.Export().(type) {
		case string:
			req.Body = []byte(body)
		case goja.ArrayBuffer:
			req.Body = body.Bytes()
		case []byte:
			req.Body = body
		default:
			data, err := sonic.Marshal(body)
			if err != nil {
				return req, fmt.Errorf("fetch body: %w", err)
			}
			req.Body = data
		}
	}

	return req, nil
}

// newResponseObject exposes a host response to the guest. text() decodes
// once and memoizes; json() parses the body on each call.
func newResponseObject(vm *goja.Runtime, resp *client.Response) *goja.Object {
	obj := vm.NewObject()
	obj.Set("status", resp.Status)
	obj.Set("ok", resp.OK())
	obj.Set("statusText", resp.StatusText)
	obj.Set("url", resp.URL)
	obj.Set("headers", resp.Headers())
	obj.Set("base64", resp.Base64())
	obj.Set("bytes", vm.NewArrayBuffer(resp.Body))

	var once sync.Once
	var text string
	obj.Set("text", func(goja.FunctionCall) goja.Value {
		once.Do(func() { text = resp.Text() })
		return vm.ToValue(text)
	})

	obj.Set("json", func(goja.FunctionCall) goja.Value {
		parsed, err := resp.JSON()
		if err != nil {
			panic(vm.NewGoError(fmt.Errorf("response json: %w", err)))
		}
		return vm.ToValue(parsed)
	})

	return obj
}

func (c *Context) recordFetch(method string, resp *client.Response, err error) {
	status := 0
	if err == nil && resp != nil {
		status = resp.Status
	}
	if err != nil {
		c.logger.Debug("Guest fetch failed", zap.String("method", method), zap.Error(err))
	}
	if c.config.Metrics != nil {
		c.config.Metrics.RecordGuestFetch(method, status)
	}
}
