// Command soa-server runs a pysoa service with a few example actions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arareko/pysoa"
	"github.com/arareko/pysoa/action"
	"github.com/arareko/pysoa/audit"
	"github.com/arareko/pysoa/observability"
	"github.com/arareko/pysoa/server"
	"github.com/arareko/pysoa/transport"
)

var (
	version = "dev"
	commit  = ""
)

type squareIn struct {
	N float64 `json:"n"`
}

type squareOut struct {
	Square float64 `json:"square"`
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (optional)")
	logLevel := flag.String("log-level", "info", "Log level: debug | info | warn | error")
	auditLog := flag.Bool("audit", false, "Write an audit trail of jobs to the log")
	flag.Parse()
	if *showVersion {
		fmt.Printf("soa-server version=%s commit=%s\n", version, commit)
		return
	}

	if err := run(*configPath, *logLevel, *auditLog); err != nil {
		fmt.Fprintf(os.Stderr, "soa-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, logLevel string, auditLog bool) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := pysoa.LoadConfig(configPath)
	if err != nil {
		return err
	}

	metrics, err := observability.NewMetricsExtension()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	opts := []server.Option{
		server.WithConfig(cfg),
		server.WithLogger(logger),
		server.WithExtension(metrics),
	}
	if auditLog {
		opts = append(opts, server.WithExtension(audit.New(audit.LogRecorder(logger), audit.WithLogger(logger))))
	}

	srv, err := server.New(registry(), opts...)
	if err != nil {
		return err
	}

	tr := transport.NewServer(srv,
		transport.WithConfig(cfg),
		transport.WithLogger(logger),
		transport.WithRoute("GET /metrics", promhttp.Handler()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("soa-server starting",
		slog.String("service", cfg.ServiceName),
		slog.String("version", version),
	)
	runErr := tr.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", slog.String("error", err.Error()))
	}
	logger.Info("soa-server stopped")
	return runErr
}

func registry() *action.Registry {
	r := action.NewRegistry()
	r.RegisterFunc("echo", func(_ context.Context, body map[string]any) (map[string]any, error) {
		return body, nil
	})
	action.RegisterDefinition(r, action.NewDefinition("square", func(_ context.Context, in squareIn) (squareOut, error) {
		return squareOut{Square: in.N * in.N}, nil
	}))
	r.Register(action.StatusName, action.Status(version, commit))
	return r
}
