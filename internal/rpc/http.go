package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPFetcher calls procedures through the platform's method endpoint:
// POST {base}/api/method/{procedure} with JSON arguments. Results come
// back wrapped as {"message": ...}.
type HTTPFetcher struct {
	base   string
	client *http.Client
}

func NewHTTPFetcher(baseURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// envelope covers both the success and the exception shapes.
type envelope struct {
	Message        json.RawMessage `json:"message"`
	Exc            string          `json:"exc"`
	ExcType        string          `json:"exc_type"`
	Exception      string          `json:"exception"`
	ServerMessages string          `json:"_server_messages"`
}

func (f *HTTPFetcher) Invoke(ctx context.Context, procedure string, args Args) (json.RawMessage, error) {
	if args == nil {
		args = Args{}
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: encode args: %w", procedure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.base+"/api/method/"+procedure, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", procedure, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if tok := TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", procedure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("rpc %s: read body: %w", procedure, err)
	}

	var env envelope
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 300 {
				return nil, &RemoteError{Procedure: procedure, Code: resp.StatusCode}
			}
			return nil, fmt.Errorf("rpc %s: decode response: %w", procedure, err)
		}
	}

	if resp.StatusCode >= 300 || env.Exc != "" || env.ExcType != "" {
		return nil, &RemoteError{
			Procedure: procedure,
			Code:      resp.StatusCode,
			Message:   errorMessage(env),
		}
	}
	return env.Message, nil
}

// errorMessage picks the user-facing text out of an exception payload.
// _server_messages is a JSON list of JSON-encoded {"message": ...} objects.
func errorMessage(env envelope) string {
	if env.ServerMessages != "" {
		var list []string
		if json.Unmarshal([]byte(env.ServerMessages), &list) == nil {
			for _, item := range list {
				var m struct {
					Message string `json:"message"`
				}
				if json.Unmarshal([]byte(item), &m) == nil && m.Message != "" {
					return m.Message
				}
			}
		}
	}
	if env.Exception != "" {
		// "frappe.exceptions.ValidationError: Doctor not found"
		if i := strings.Index(env.Exception, ": "); i >= 0 {
			return env.Exception[i+2:]
		}
		return env.Exception
	}
	var msg string
	if json.Unmarshal(env.Message, &msg) == nil {
		return msg
	}
	return ""
}
