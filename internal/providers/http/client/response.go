package client

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// Response is a fully-read HTTP response
type Response struct {
	Status     int
	StatusText string
	URL        string
	Header     http.Header
	Body       []byte
}

func newResponse(r *resty.Response) *Response {
	url := ""
	if r.Request != nil {
		url = r.Request.URL
	}
	if r.RawResponse != nil && r.RawResponse.Request != nil && r.RawResponse.Request.URL != nil {
		// final URL after redirects
		url = r.RawResponse.Request.URL.String()
	}
	return &Response{
		Status:     r.StatusCode(),
		StatusText: http.StatusText(r.StatusCode()),
		URL:        url,
		Header:     r.Header(),
		Body:       r.Body(),
	}
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Headers flattens the header map to first values, lower-cased keys
func (r *Response) Headers() map[string]string {
	out := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			out[strings.ToLower(k)] = v[0]
		}
	}
	return out
}

// Base64 returns the raw body base64-encoded
func (r *Response) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Body)
}

// Text decodes the body to a string honoring the declared or detected charset
func (r *Response) Text() string {
	return DecodeText(r.Body, r.Header.Get("Content-Type"))
}

// JSON parses the body into loosely-typed Go values
func (r *Response) JSON() (interface{}, error) {
	var v interface{}
	if err := sonic.Unmarshal(r.Body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeText converts body to UTF-8. The Content-Type charset wins; without
// one, valid UTF-8 is returned as is and anything else goes through charset
// detection.
func DecodeText(body []byte, contentType string) string {
	label := ""
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			label = params["charset"]
		}
	}

	if label == "" {
		if utf8.Valid(body) {
			return string(body)
		}
		label = DetectCharset(body)
	}

	reader, err := charset.NewReaderLabel(label, bytes.NewReader(body))
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

// DetectCharset guesses the charset of data, defaulting to utf-8
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
