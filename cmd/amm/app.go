package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/config"
	"ammEngine/internal/pool"
	"ammEngine/internal/storage"
	"ammEngine/internal/storage/postgres"
)

// app is what every subcommand needs: config, logger, a signal-aware
// context and an opened store.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	ctx    context.Context
	store  storage.PoolStore
	pg     *postgres.Store
	close  func()
}

func setup(cmd *cobra.Command) (*app, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	return setupWith(cmd, cfg)
}

func setupWith(cmd *cobra.Command, cfg config.Config) (*app, error) {
	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	a := &app{cfg: cfg, logger: logger, ctx: ctx}

	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			stop()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			stop()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		a.store, a.pg = pg, pg
		a.close = func() {
			pg.Close()
			stop()
			_ = logger.Sync()
		}
		logger.Debug("store opened", zap.String("store", cfg.Store), zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	default:
		fs, err := storage.OpenFileStore(cfg.StateFile, storage.NewJsonlLedger(cfg.Ledger))
		if err != nil {
			stop()
			return nil, fmt.Errorf("open state file: %w", err)
		}
		a.store = fs
		a.close = func() {
			stop()
			_ = logger.Sync()
		}
		logger.Debug("store opened",
			zap.String("store", cfg.Store),
			zap.String("state_file", cfg.StateFile),
			zap.String("ledger", cfg.Ledger),
		)
	}
	return a, nil
}

func (a *app) service(opts ...pool.Option) *pool.Service {
	opts = append([]pool.Option{
		pool.WithLogger(a.logger),
		pool.WithPrecisionDigits(a.cfg.PrecisionDigits),
	}, opts...)
	return pool.NewService(a.store, opts...)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s must be a hex address, got %q", name, value)
	}
	return common.HexToAddress(value), nil
}

// optionalAddress parses value when set. An empty value yields the zero
// address.
func optionalAddress(name, value string) (common.Address, error) {
	if value == "" {
		return common.Address{}, nil
	}
	return parseAddress(name, value)
}
