package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/aggregate"
	"ammEngine/internal/config"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Aggregate ledger operations into pool window metrics",
		RunE:  runAggregate,
	}
	cmd.Flags().String("window", "5m", "aggregation window (e.g. 1m, 5m, 1h)")
	cmd.Flags().Int("batch-size", 1000, "batch size for DB writes")
	cmd.Flags().String("aggregate-state", "", "optional local state file for progress tracking")
	cmd.Flags().String("state-name", "", "progress row name in aggregator_state (default aggregator:<window seconds>)")
	cmd.Flags().String("recompute-from", "", "recompute from timestamp (unix seconds or RFC3339)")
	return cmd
}

func runAggregate(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadAggregate(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}
	recomputeFrom, err := config.ParseTimestamp(cfg.RecomputeFrom)
	if err != nil {
		return fmt.Errorf("parse recompute-from: %w", err)
	}

	a, err := setupWith(cmd, cfg.Config)
	if err != nil {
		return err
	}
	defer a.close()

	sink := a.pg
	if sink == nil {
		pg, err := postgres.NewStore(a.ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
		if err := pg.Migrate(a.ctx); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
		sink = pg
	}

	var source storage.OperationSource = sink
	input := "postgres"
	if cfg.Store == config.StoreFile {
		source = storage.NewJsonlLedger(cfg.Ledger)
		input = cfg.Ledger
	}

	var stateStore aggregate.StateStore
	if cfg.AggregateState != "" {
		stateStore = &aggregate.FileStateStore{Path: cfg.AggregateState}
	} else {
		name := cfg.StateName
		if name == "" {
			name = fmt.Sprintf("aggregator:%d", windowSeconds)
		}
		stateStore = &aggregate.DBStateStore{Backend: sink, Name: name}
	}

	agg := aggregate.NewAggregator(aggregate.Config{
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		RecomputeFrom: recomputeFrom,
		StateStore:    stateStore,
	}, source, sink, a.logger)

	a.logger.Info("aggregate start",
		zap.String("input", input),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Int("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", recomputeFrom),
	)

	return agg.Run(a.ctx)
}
