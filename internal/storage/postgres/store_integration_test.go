package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"testing"
	"time"

	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// openTestStore connects to AMM_TEST_PG_DSN and skips the test when it is
// unset. Every test works on its own pool address and timestamps, so the
// database does not need to be empty.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("AMM_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AMM_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func uniqueSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

func TestStorePoolLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := uniqueSeed()
	now := time.Now().UTC().Truncate(time.Microsecond)
	authority := model.PoolAddress(seed + 1)
	p := model.Pool{
		Address:         model.PoolAddress(seed),
		Seed:            seed,
		Authority:       &authority,
		MintX:           model.PoolAddress(seed + 2),
		MintY:           model.PoolAddress(seed + 3),
		MintLP:          model.PoolAddress(seed + 4),
		FeeBps:          30,
		PrecisionDigits: 6,
		BalanceX:        math.MaxUint64,
		BalanceY:        30,
		TotalShares:     math.MaxUint64 - 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ts := seed

	if err := s.Create(ctx, p, model.Operation{Pool: p.Address, Kind: model.OpInitialize, Actor: authority, Timestamp: ts}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.Create(ctx, p, model.Operation{Pool: p.Address, Kind: model.OpInitialize, Timestamp: ts}); !errors.Is(err, storage.ErrPoolExists) {
		t.Fatalf("expected ErrPoolExists, got %v", err)
	}

	got, err := s.Get(ctx, p.Address)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !storage.SameState(got, p) || got.Seed != seed || got.MintLP != p.MintLP || got.FeeBps != 30 || got.PrecisionDigits != 6 {
		t.Fatalf("unexpected pool: %+v", got)
	}

	next := got
	next.BalanceX, next.BalanceY = math.MaxUint64-5, 31
	next.UpdatedAt = now.Add(time.Second)
	swap := model.Operation{
		Pool:        p.Address,
		Kind:        model.OpSwap,
		AssetIn:     "y",
		AmountIn:    1,
		AmountOut:   5,
		BalanceX:    next.BalanceX,
		BalanceY:    next.BalanceY,
		TotalShares: next.TotalShares,
		Timestamp:   ts + 1,
	}
	if err := s.Save(ctx, got, next, swap); err != nil {
		t.Fatalf("save: %v", err)
	}

	// got is stale now
	if err := s.Save(ctx, got, next, swap); !errors.Is(err, storage.ErrPoolConflict) {
		t.Fatalf("expected ErrPoolConflict, got %v", err)
	}
	missing := model.Pool{Address: model.PoolAddress(seed + 99)}
	if err := s.Save(ctx, missing, missing, model.Operation{Pool: missing.Address}); !errors.Is(err, storage.ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}

	got, err = s.Get(ctx, p.Address)
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if got.BalanceX != math.MaxUint64-5 || got.BalanceY != 31 {
		t.Fatalf("unexpected balances after save: (%d, %d)", got.BalanceX, got.BalanceY)
	}

	ops, err := s.ReadOperations(ctx, ts, ts+2)
	if err != nil {
		t.Fatalf("read operations: %v", err)
	}
	var mine []model.Operation
	for _, op := range ops {
		if op.Pool == p.Address {
			mine = append(mine, op)
		}
	}
	if len(mine) != 2 {
		t.Fatalf("expected 2 ledger records, got %d", len(mine))
	}
	if mine[0].Kind != model.OpInitialize || mine[0].Actor != authority {
		t.Fatalf("unexpected initialize record: %+v", mine[0])
	}
	if mine[1].Kind != model.OpSwap || mine[1].AssetIn != "y" || mine[1].BalanceX != math.MaxUint64-5 || mine[1].AmountOut != 5 {
		t.Fatalf("unexpected swap record: %+v", mine[1])
	}
}

func TestStoreWindowMetricsUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	addr := model.PoolAddress(uniqueSeed()).Hex()
	start := time.Unix(1_700_000_100, 0).UTC()
	apr := "0.125"
	m := model.PoolWindowMetrics{
		PoolAddress:    addr,
		WindowSizeSecs: 300,
		WindowStart:    start,
		WindowEnd:      start.Add(5 * time.Minute),
		SwapCount:      1,
		VolumeX:        "5",
		VolumeY:        "0",
		FeeX:           "1",
		FeeY:           "0",
		ReserveX:       "18446744073709551615",
		ReserveY:       "25",
		TotalShares:    "30",
		APR:            &apr,
	}
	if err := s.UpsertWindowMetrics(ctx, []model.PoolWindowMetrics{m}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	m.SwapCount = 2
	m.VolumeX = "12"
	if err := s.UpsertWindowMetrics(ctx, []model.PoolWindowMetrics{m}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var (
		swaps            int64
		volumeX, reserve string
		gotAPR           *string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT swap_count, volume_x::text, reserve_x::text, apr::text
		FROM pool_window_metrics
		WHERE pool_address=$1 AND window_size_seconds=$2 AND window_start_ts=$3
	`, addr, int64(300), start)
	if err := row.Scan(&swaps, &volumeX, &reserve, &gotAPR); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if swaps != 2 || volumeX != "12" || reserve != "18446744073709551615" {
		t.Fatalf("unexpected row: swaps=%d volume_x=%s reserve_x=%s", swaps, volumeX, reserve)
	}
	if gotAPR == nil || *gotAPR != apr {
		t.Fatalf("unexpected apr: %v", gotAPR)
	}
}

func TestStoreAggregatorState(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	name := fmt.Sprintf("test:%d", uniqueSeed())

	if _, ok, err := s.LoadState(ctx, name); err != nil || ok {
		t.Fatalf("expected no state, got ok=%v err=%v", ok, err)
	}
	if err := s.SaveState(ctx, name, 600); err != nil {
		t.Fatalf("save state: %v", err)
	}
	if err := s.SaveState(ctx, name, 900); err != nil {
		t.Fatalf("update state: %v", err)
	}
	ts, ok, err := s.LoadState(ctx, name)
	if err != nil || !ok || ts != 900 {
		t.Fatalf("unexpected state: ts=%d ok=%v err=%v", ts, ok, err)
	}
}
