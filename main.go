package threadpool

import (
	"context"
	"fmt"
	"net"
)

// Run serves cfg.Addr until cfg.MaxConnections connections were accepted or
// ctx is cancelled, then waits for the pool to finish every accepted
// request. It returns the final job count.
func Run(ctx context.Context, cfg *Config) (uint64, error) {
	srv, err := NewServer(cfg)
	if err != nil {
		return 0, err
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer srv.Close()

	ln, err := net.Listen("tcp", srv.cfg.Addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", srv.cfg.Addr, err)
	}

	if srv.cfg.MetricsAddr != "" {
		go func() {
			if metricsErr := srv.ServeMetrics(serveCtx, srv.cfg.MetricsAddr); metricsErr != nil {
				srv.logger.Error("metrics server stopped", "error", metricsErr.Error())
			}
		}()
	}

	return srv.Serve(serveCtx, ln)
}
