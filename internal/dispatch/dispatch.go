// Package dispatch builds outgoing requests that carry the current bearer
// credential. It does not send requests, retry, or read responses.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	bearerPrefix       = "Bearer "
	defaultContentType = "application/json"
)

// TokenSource yields the current credential, if any.
type TokenSource interface {
	Get() (string, bool)
}

// Dispatcher attaches credentials and default headers to requests.
type Dispatcher struct {
	tokens TokenSource
}

// New creates a dispatcher reading tokens from tokens.
func New(tokens TokenSource) *Dispatcher {
	return &Dispatcher{tokens: tokens}
}

// Header returns a copy of h with Authorization set when a token is stored
// and Content-Type defaulted to JSON. h itself is never modified.
func (d *Dispatcher) Header(h http.Header) http.Header {
	out := h.Clone()
	if out == nil {
		out = make(http.Header)
	}

	if d.tokens != nil {
		if token, ok := d.tokens.Get(); ok {
			out.Set("Authorization", bearerPrefix+token)
		}
	}

	if out.Get("Content-Type") == "" {
		out.Set("Content-Type", defaultContentType)
	}

	return out
}

// Prepare returns a clone of req carrying the dispatcher's headers. The
// caller's request and its header map are left untouched.
func (d *Dispatcher) Prepare(req *http.Request) *http.Request {
	out := req.Clone(req.Context())
	out.Header = d.Header(req.Header)
	return out
}

// NewRequest builds a request for target with the caller's extra headers and
// the dispatcher's credential headers.
func (d *Dispatcher) NewRequest(ctx context.Context, method, target string, body io.Reader, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = d.Header(header)
	return req, nil
}
