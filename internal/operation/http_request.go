package operation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/phrazzld/scry-queue/internal/task"
)

// TypeHTTPRequest is the registry name of the HTTP request operation.
const TypeHTTPRequest = "http_request"

// maxResponseBody caps how much of a response body is kept in the result
const maxResponseBody = 1 << 20

// ErrUnexpectedStatus is returned when the response status is 400 or above.
var ErrUnexpectedStatus = errors.New("unexpected response status")

// StatusError carries the status of a failed response. It matches
// ErrUnexpectedStatus with errors.Is.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d from %s", ErrUnexpectedStatus, e.Code, e.URL)
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// Retryable reports whether the same request may succeed later: server
// errors, 408 and 429.
func (e *StatusError) Retryable() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	default:
		return e.Code >= http.StatusInternalServerError
	}
}

// HTTPRequestPayload configures an outbound request.
type HTTPRequestPayload struct {
	Method    string            `json:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD"`
	URL       string            `json:"url" validate:"required,url"`
	Headers   map[string]string `json:"headers"`
	Body      string            `json:"body"`
	TimeoutMS int               `json:"timeout_ms" validate:"gte=0,lte=300000"`
}

// HTTPResponse is the value produced by a successful request.
type HTTPResponse struct {
	Status int    `json:"status"`
	Body   string `json:"body"`
}

// HTTPRequestFactory returns the Factory for TypeHTTPRequest using client.
// A nil client uses cleanhttp.DefaultPooledClient.
func HTTPRequestFactory(client *http.Client) Factory {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	return func(payload json.RawMessage) (task.Operation, error) {
		var p HTTPRequestPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		return HTTPRequest(client, p), nil
	}
}

// HTTPRequest returns an operation that performs the request described by p.
func HTTPRequest(client *http.Client, p HTTPRequestPayload) task.Operation {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
	}
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}

	return func(ctx context.Context, args ...any) (any, error) {
		if p.TimeoutMS > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(p.TimeoutMS)*time.Millisecond)
			defer cancel()
		}

		var body io.Reader
		if p.Body != "" {
			body = strings.NewReader(p.Body)
		}

		req, err := http.NewRequestWithContext(ctx, method, p.URL, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		for k, v := range p.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request to %s failed: %w", p.URL, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &StatusError{Code: resp.StatusCode, URL: p.URL}
		}

		return HTTPResponse{Status: resp.StatusCode, Body: string(data)}, nil
	}
}
