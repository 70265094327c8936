package threadpool

import (
	"context"
	"fmt"
	"io/fs"
	"time"
)

// A Handler produces the response for a request.
//
// ServeRequest runs on a pool worker. A returned error is logged and
// recorded in the journal; nothing is written back to the client.
type Handler interface {
	ServeRequest(context.Context, *Request) (*Response, error)
}

// The HandlerFunc type is an adapter to allow the use of
// ordinary functions as a Handler. If f is a function
// with the appropriate signature, HandlerFunc(f) is a
// Handler that calls f.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// ServeRequest calls fn(ctx, req)
func (fn HandlerFunc) ServeRequest(ctx context.Context, req *Request) (*Response, error) {
	return fn(ctx, req)
}

// FileHandler answers every request with status and the contents of name.
// The file is read on each request.
func FileHandler(fsys fs.FS, status, name string) Handler {
	return HandlerFunc(func(_ context.Context, _ *Request) (*Response, error) {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		return &Response{StatusLine: status, Body: body}, nil
	})
}

// SleepHandler holds the worker for delay before handing over to next.
func SleepHandler(delay time.Duration, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		return next.ServeRequest(ctx, req)
	})
}
