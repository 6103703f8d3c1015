package aggregate

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"go.uber.org/zap"

	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	StateStore    StateStore
}

// MetricsSink receives finished windows. Upserts must be idempotent on
// (pool, window size, window start).
type MetricsSink interface {
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator rolls ledger operations up into pool window metrics.
type Aggregator struct {
	cfg          Config
	source       storage.OperationSource
	sink         MetricsSink
	logger       *zap.Logger
	accumulators map[string]*Accumulator
}

func NewAggregator(cfg Config, source storage.OperationSource, sink MetricsSink, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Aggregator{
		cfg:          cfg,
		source:       source,
		sink:         sink,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
	}
}

// Run aggregates every ledger operation after the saved state. Windows still
// open at the end are written too, but the saved state stops before them so
// the next run recomputes them in full.
func (a *Aggregator) Run(ctx context.Context) error {
	if a.source == nil {
		return fmt.Errorf("operation source is nil")
	}
	if a.sink == nil {
		return fmt.Errorf("metrics sink is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	ops, err := a.source.ReadOperations(ctx, startTs+1, math.MaxUint64)
	if err != nil {
		return fmt.Errorf("read operations: %w", err)
	}

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	maxTs := startTs
	var total, windows, failed int

	for _, op := range ops {
		total++

		windowStart := windowStart(op.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		accKey := poolKey(op)
		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(op, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			batch = append(batch, a.finish(acc))
			windows++
			acc = NewAccumulator(op, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		}

		if err := acc.AddOperation(op); err != nil {
			failed++
			a.logger.Warn("aggregate operation", zap.Error(err), zap.String("pool", acc.PoolAddress), zap.String("kind", string(op.Kind)))
			continue
		}

		if op.Timestamp > maxTs {
			maxTs = op.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]

			if err := a.saveState(ctx, maxTs); err != nil {
				return err
			}
		}
	}

	for _, acc := range a.accumulators {
		batch = append(batch, a.finish(acc))
		windows++
	}
	if len(batch) > 0 {
		if err := a.sink.UpsertWindowMetrics(ctx, batch); err != nil {
			return err
		}
	}

	if err := a.saveState(ctx, maxTs); err != nil {
		return err
	}
	a.accumulators = make(map[string]*Accumulator)

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", windows),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := a.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last, nil
}

// saveState records the newest timestamp whose windows are all closed.
func (a *Aggregator) saveState(ctx context.Context, maxTs uint64) error {
	if a.cfg.StateStore == nil {
		return nil
	}
	safeTs := maxTs
	if open := minOpenWindowStart(a.accumulators); open > 0 {
		safeTs = open - 1
	}
	return a.cfg.StateStore.Save(ctx, safeTs)
}

func (a *Aggregator) finish(acc *Accumulator) model.PoolWindowMetrics {
	reserveX := new(big.Int).SetUint64(acc.ReserveX)
	reserveY := new(big.Int).SetUint64(acc.ReserveY)
	feeRateX, feeRateY := computeFeeRates(acc.FeeX, acc.FeeY, reserveX, reserveY)

	return model.PoolWindowMetrics{
		PoolAddress:    acc.PoolAddress,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeX:        acc.VolumeX.String(),
		VolumeY:        acc.VolumeY.String(),
		FeeX:           acc.FeeX.String(),
		FeeY:           acc.FeeY.String(),
		FeeRateX:       feeRateX,
		FeeRateY:       feeRateY,
		ReserveX:       reserveX.String(),
		ReserveY:       reserveY.String(),
		TotalShares:    new(big.Int).SetUint64(acc.TotalShares).String(),
		APR:            computeAPR(feeRateX, feeRateY, a.cfg.WindowSeconds),
	}
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(op model.Operation) string {
	return op.Pool.Hex()
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}
