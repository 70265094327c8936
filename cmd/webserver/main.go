// Package main is the entry point for the thread pool web server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jirevwe/threadpool"
)

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		cfg.Logger.Error("server error", "error", err.Error())
		os.Exit(1)
	}
}

// loadConfig parses args, reads the config file when -config is given and
// applies every flag set on the command line on top of it.
func loadConfig(args []string, output io.Writer) (*threadpool.Config, error) {
	fs := flag.NewFlagSet("webserver", flag.ContinueOnError)
	fs.SetOutput(output)

	var (
		configFile  = fs.String("config", "", "path to a YAML config file")
		addr        = fs.String("addr", threadpool.DefaultAddr, "address to listen on")
		workers     = fs.Uint("workers", threadpool.DefaultWorkers, "number of pool workers")
		connections = fs.Int("connections", 0, "stop after this many connections, 0 serves until interrupted")
		root        = fs.String("root", "", "directory holding hello.html and 404.html, empty uses the embedded pages")
		journalPath = fs.String("journal", "", "sqlite file recording every request, empty disables the journal")
		metricsAddr = fs.String("metrics-addr", "", "address serving /metrics, empty disables it")
		logLevel    = fs.String("log-level", "info", "debug, info, warn or error")
		sleepDelay  = fs.Duration("sleep", threadpool.DefaultSleepDelay, "delay of the /sleep route")
	)

	fs.Usage = func() {
		fmt.Fprintf(output, `webserver - a tiny HTTP server backed by a fixed size worker pool

Usage:
  webserver [options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(output, `
Examples:
  # serve six connections with four workers, then shut down
  webserver --connections 6

  # record requests and expose metrics
  webserver --journal requests.db --metrics-addr 127.0.0.1:9090
`)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := threadpool.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = threadpool.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
	}

	// flags given on the command line win over the config file
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "workers":
			cfg.Workers = *workers
		case "connections":
			cfg.MaxConnections = *connections
		case "root":
			cfg.Root = *root
		case "journal":
			cfg.JournalPath = *journalPath
		case "metrics-addr":
			cfg.MetricsAddr = *metricsAddr
		case "sleep":
			cfg.SleepDelay = *sleepDelay
		case "log-level":
			level, err := threadpool.ParseLogLevel(*logLevel)
			if err != nil {
				flagErr = err
				return
			}
			cfg.LogLevel = level
		}
	})
	if flagErr != nil {
		return nil, flagErr
	}

	return cfg, nil
}

func run(cfg *threadpool.Config) error {
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			cfg.Logger.Info("received signal, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	count, err := threadpool.Run(ctx, cfg)
	if err != nil {
		return err
	}

	cfg.Logger.Info(fmt.Sprintf("served %d connections in %s", count, time.Since(start).Round(time.Millisecond)))
	return nil
}
