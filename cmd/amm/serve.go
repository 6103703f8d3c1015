package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammEngine/internal/api"
	"ammEngine/internal/pool"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool HTTP API and Prometheus metrics",
		RunE:  runServe,
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := pool.NewMetrics(registry)
	if err != nil {
		return err
	}

	server := api.NewServer(a.service(pool.WithMetrics(metrics)), registry, a.logger, a.cfg.Listen)

	a.logger.Info("serve start",
		zap.String("listen", a.cfg.Listen),
		zap.String("store", a.cfg.Store),
		zap.String("pg_dsn", redactDSN(a.cfg.PGDSN)),
	)

	g, ctx := errgroup.WithContext(a.ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Stop(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("serve stopped")
	return nil
}
