package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	root := &cobra.Command{
		Use:          "amm",
		Short:        "Constant-product pool engine",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path")
	pf.String("store", "file", "pool store backend (file, postgres)")
	pf.String("state-file", "./data/pools.json", "pool state file for the file store")
	pf.String("ledger", "./data/operations.jsonl", "operation ledger JSONL for the file store")
	pf.String("pg-dsn", "", "Postgres DSN")
	pf.Uint8("precision-digits", 6, "decimal digits of precision for new pools")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-file", "", "also write logs to this file, rotated")

	root.AddCommand(
		newInitCmd(),
		newDepositCmd(),
		newWithdrawCmd(),
		newSwapCmd(),
		newQuoteCmd(),
		newLockCmd(true),
		newLockCmd(false),
		newShowCmd(),
		newListCmd(),
		newServeCmd(),
		newReconcileCmd(),
		newAggregateCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, file string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if file == "" {
		return cfg.Build()
	}

	rotated := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}),
		cfg.Level,
	)
	return cfg.Build(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, rotated)
	}))
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
