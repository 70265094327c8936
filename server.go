package threadpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jirevwe/threadpool/journal"
	"github.com/jirevwe/threadpool/journal/sqlite"
	"github.com/jirevwe/threadpool/pool"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	journalRetries    = 3
	journalRetryDelay = 50 * time.Millisecond
)

// Server accepts connections and hands each one to the worker pool as a job.
type Server struct {
	cfg        *Config
	mux        *Mux
	logger     *slog.Logger
	workerPool pool.Pool

	// journal is nil when no journal path is configured
	journal journal.Journal

	registry *prometheus.Registry

	stop sync.Once
}

func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.logger()

	mux := cfg.Mux
	if mux == nil {
		fsys, err := pages(cfg.Root)
		if err != nil {
			return nil, err
		}
		mux = NewRoutes(fsys, cfg.SleepDelay)
	}

	var j journal.Journal
	if cfg.JournalPath != "" {
		s, err := sqlite.NewSqlite(cfg.JournalPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		j = s
	}

	registry := prometheus.NewRegistry()
	workerPool, err := pool.NewWorkerPool(cfg.Workers,
		pool.WithLogger(logger),
		pool.WithMetrics(pool.NewMetrics(registry, "webserver")),
		pool.WithPanicHandler(func(workerID int, rec any) {
			logger.Error("request handler panicked", "worker", workerID, "panic", fmt.Sprint(rec))
		}),
	)
	if err != nil {
		if j != nil {
			_ = j.Close()
		}
		return nil, err
	}

	return &Server{
		cfg:        cfg,
		mux:        mux,
		logger:     logger,
		workerPool: workerPool,
		journal:    j,
		registry:   registry,
	}, nil
}

// Registry holds the pool metrics of this server.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// Serve accepts connections from ln until MaxConnections have been accepted,
// ctx is cancelled or ln is closed. After submitting each connection it
// waits for the pool to report that a worker has picked it up. It returns
// the pool's job count. ln is closed when Serve returns.
func (s *Server) Serve(ctx context.Context, ln net.Listener) (uint64, error) {
	defer ln.Close()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()

	s.logger.Info(fmt.Sprintf("listening on %s", ln.Addr()))

	accepted := 0
	for s.cfg.MaxConnections == 0 || accepted < s.cfg.MaxConnections {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			return s.workerPool.JobCount(), fmt.Errorf("accept failed: %w", err)
		}
		accepted++

		if err = s.dispatch(ctx, conn); err != nil {
			_ = conn.Close()
			return s.workerPool.JobCount(), err
		}

		if _, err = s.workerPool.UpdatedJobCountContext(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("failed to update job count", "error", err.Error())
		}
	}

	count := s.workerPool.JobCount()
	s.logger.Info(fmt.Sprintf("final job count %d", count))

	return count, nil
}

// dispatch records the connection in the journal and submits it to the pool.
func (s *Server) dispatch(ctx context.Context, conn net.Conn) error {
	id := ulid.Make().String()
	remoteAddr := conn.RemoteAddr().String()

	s.record(ctx, &journal.Entry{Id: id, RemoteAddr: remoteAddr})

	// accepted requests are served to the end even after Serve is cancelled,
	// Close waits for them through the pool
	jobCtx := context.WithoutCancel(ctx)

	err := s.workerPool.Execute(func() {
		s.handle(jobCtx, conn, id, remoteAddr)
	})
	if err != nil {
		s.updateStatus(ctx, id, journal.StatusFailed)
		return err
	}

	return nil
}

// handle runs on a pool worker: read the request, route it, write the response.
func (s *Server) handle(ctx context.Context, conn net.Conn, id, remoteAddr string) {
	defer func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("failed to close connection", "id", id, "error", err.Error())
		}
	}()

	req, err := ReadRequest(conn, id, remoteAddr)
	if err != nil {
		s.logger.Error("failed to read request", "id", id, "error", err.Error())
		s.updateStatus(ctx, id, journal.StatusFailed)
		return
	}

	s.logger.Info("request", "id", id, "remote_addr", remoteAddr, "lines", req.Lines())
	s.attach(ctx, req)
	s.updateStatus(ctx, id, journal.StatusServing)

	if req.Empty() {
		s.updateStatus(ctx, id, journal.StatusServed)
		return
	}

	resp, err := s.mux.ServeRequest(ctx, req)
	if err != nil {
		s.logger.Error("failed to serve request", "id", id, "line", req.Line(), "error", err.Error())
		s.updateStatus(ctx, id, journal.StatusFailed)
		return
	}

	if _, err = resp.WriteTo(conn); err != nil {
		s.logger.Error("failed to write response", "id", id, "error", err.Error())
		s.updateStatus(ctx, id, journal.StatusFailed)
		return
	}

	s.updateStatus(ctx, id, journal.StatusServed)
}

func (s *Server) record(ctx context.Context, entry *journal.Entry) {
	if s.journal == nil {
		return
	}

	// journal writes outlive a cancelled Serve so queued requests are still recorded
	ctx = context.WithoutCancel(ctx)

	err := NewRetry(journalRetries, journalRetryDelay, func() error {
		return s.journal.Record(ctx, entry)
	}).Do()
	if err != nil {
		s.logger.Error("failed to record request", "id", entry.Id, "error", err.Error())
	}
}

func (s *Server) attach(ctx context.Context, req *Request) {
	if s.journal == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	payload, err := req.Payload()
	if err != nil {
		s.logger.Error("failed to encode request", "id", req.Id(), "error", err.Error())
		return
	}

	err = NewRetry(journalRetries, journalRetryDelay, func() error {
		return s.journal.Attach(ctx, req.Id(), req.Line(), payload)
	}).Do()
	if err != nil {
		s.logger.Error("failed to attach request", "id", req.Id(), "error", err.Error())
	}
}

func (s *Server) updateStatus(ctx context.Context, id string, status journal.Status) {
	if s.journal == nil {
		return
	}

	ctx = context.WithoutCancel(ctx)

	err := NewRetry(journalRetries, journalRetryDelay, func() error {
		_, updateErr := s.journal.UpdateStatus(ctx, id, status)
		return updateErr
	}).Do()
	if err != nil {
		s.logger.Error("failed to update request status", "id", id, "status", string(status), "error", err.Error())
	}
}

// ServeMetrics exposes the pool metrics on addr until ctx is cancelled.
func (s *Server) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info(fmt.Sprintf("serving metrics on http://%s/metrics", addr))

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close tears down the worker pool, waiting for in-flight requests, then
// closes the journal. It is safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.stop.Do(func() {
		s.logger.Info("shutting down server")

		err = s.workerPool.Stop()

		if s.journal != nil {
			err = errors.Join(err, s.journal.Close())
		}
	})
	return err
}
