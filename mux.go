package threadpool

import (
	"context"
	"io/fs"
	"sync"
	"time"
)

const (
	RouteIndex = "GET / HTTP/1.1"
	RouteSleep = "GET /sleep HTTP/1.1"
)

type Mux struct {
	entries  map[string]muxEntry
	notFound Handler
	mu       *sync.RWMutex
}

type muxEntry struct {
	h    Handler
	line string
}

func NewMux() *Mux {
	return &Mux{
		entries: make(map[string]muxEntry),
		mu:      &sync.RWMutex{},
	}
}

// NewRoutes returns the server's default routes: the index page, the same
// page after a delay, and a 404 page for everything else.
func NewRoutes(fsys fs.FS, sleepDelay time.Duration) *Mux {
	m := NewMux()
	index := FileHandler(fsys, StatusOK, "hello.html")

	m.Handle(RouteIndex, index)
	m.Handle(RouteSleep, SleepHandler(sleepDelay, index))
	m.HandleNotFound(FileHandler(fsys, StatusNotFound, "404.html"))

	return m
}

// Handle is used to register a handler for an exact request line
func (m *Mux) Handle(line string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[line] = muxEntry{
		h:    h,
		line: line,
	}
}

// HandleFunc registers fn for an exact request line
func (m *Mux) HandleFunc(line string, fn func(context.Context, *Request) (*Response, error)) {
	m.Handle(line, HandlerFunc(fn))
}

// HandleNotFound replaces the handler used when no request line matches.
func (m *Mux) HandleNotFound(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notFound = h
}

// match finds a handler in entries given a request line.
func (m *Mux) match(line string) (h Handler) {
	// only check for exact match for now.
	v, ok := m.entries[line]
	if ok {
		return v.h
	}

	return nil
}

// ServeRequest dispatches the request to the handler registered for its
// request line.
func (m *Mux) ServeRequest(ctx context.Context, req *Request) (*Response, error) {
	h := m.Handler(req)
	return h.ServeRequest(ctx, req)
}

// Handler returns the handler to use for the given request.
// It always returns a non-nil handler.
//
// If there is no registered handler that applies to the request,
// handler returns the not found handler, or a bare 404 if none was set.
func (m *Mux) Handler(req *Request) (h Handler) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h = m.match(req.Line())
	if h == nil {
		h = m.notFound
	}
	if h == nil {
		h = NotFoundHandler()
	}

	return h
}

// NotFound answers with a 404 status line and an empty body.
func NotFound(_ context.Context, _ *Request) (*Response, error) {
	return &Response{StatusLine: StatusNotFound}, nil
}

// NotFoundHandler returns a simple handler that answers “not found“.
func NotFoundHandler() Handler { return HandlerFunc(NotFound) }
