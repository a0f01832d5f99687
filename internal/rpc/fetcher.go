// Package rpc calls named procedures on the clinic platform. A call is a
// single request with a single result: no retries, no backoff. The only
// way to abandon a call is to cancel its context.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Args are the named arguments of a procedure call.
type Args map[string]any

// Fetcher invokes a remote procedure by name and returns its raw result.
type Fetcher interface {
	Invoke(ctx context.Context, procedure string, args Args) (json.RawMessage, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, procedure string, args Args) (json.RawMessage, error)

func (f FetcherFunc) Invoke(ctx context.Context, procedure string, args Args) (json.RawMessage, error) {
	return f(ctx, procedure, args)
}

// RemoteError is a failure reported by the platform. Message is the
// user-facing text from the error payload and may be empty.
type RemoteError struct {
	Procedure string
	Code      int
	Message   string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rpc %s: remote error (code %d)", e.Procedure, e.Code)
	}
	return fmt.Sprintf("rpc %s: %s", e.Procedure, e.Message)
}

type tokenKey struct{}

// WithToken attaches the caller's platform session token to ctx.
// Transports forward it as a bearer credential.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFrom(ctx context.Context) string {
	tok, _ := ctx.Value(tokenKey{}).(string)
	return tok
}
