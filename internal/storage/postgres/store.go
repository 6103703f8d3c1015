package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// Store provides Postgres persistence for pools, the operation ledger and
// window metrics. Reserve amounts are kept in NUMERIC columns and moved as
// decimal strings so the full uint64 range survives.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store needs.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

const poolColumns = `pool_address, seed::text, authority, mint_x, mint_y, mint_lp, fee_bps, precision_digits,
	locked, balance_x::text, balance_y::text, total_shares::text, created_at, updated_at`

func (s *Store) Get(ctx context.Context, addr common.Address) (model.Pool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE pool_address=$1`, addr.Hex())
	p, err := scanPool(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pool{}, fmt.Errorf("%s: %w", addr.Hex(), storage.ErrPoolNotFound)
		}
		return model.Pool{}, err
	}
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+poolColumns+` FROM pools ORDER BY seed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Pool
	for rows.Next() {
		p, err := scanPool(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Create inserts a new pool and its initialize record in one transaction.
func (s *Store) Create(ctx context.Context, p model.Pool, op model.Operation) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO pools (
				pool_address, seed, authority, mint_x, mint_y, mint_lp, fee_bps, precision_digits,
				locked, balance_x, balance_y, total_shares, created_at, updated_at
			) VALUES ($1, $2::numeric, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12::numeric, $13, $14)
			ON CONFLICT (pool_address) DO NOTHING
		`,
			p.Address.Hex(),
			formatUint(p.Seed),
			authorityHex(p.Authority),
			p.MintX.Hex(),
			p.MintY.Hex(),
			p.MintLP.Hex(),
			int32(p.FeeBps),
			int32(p.PrecisionDigits),
			p.Locked,
			formatUint(p.BalanceX),
			formatUint(p.BalanceY),
			formatUint(p.TotalShares),
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s: %w", p.Address.Hex(), storage.ErrPoolExists)
		}
		return insertOperation(ctx, tx, op)
	})
}

// Save updates reserves, supply and flags of an existing pool and appends op.
// The row is locked for the transaction and must still match prev.
func (s *Store) Save(ctx context.Context, prev, next model.Pool, op model.Operation) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+poolColumns+` FROM pools WHERE pool_address=$1 FOR UPDATE`, next.Address.Hex())
		cur, err := scanPool(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s: %w", next.Address.Hex(), storage.ErrPoolNotFound)
			}
			return err
		}
		if !storage.SameState(cur, prev) {
			return fmt.Errorf("%s: %w", next.Address.Hex(), storage.ErrPoolConflict)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE pools SET
				authority = $2,
				locked = $3,
				balance_x = $4::numeric,
				balance_y = $5::numeric,
				total_shares = $6::numeric,
				updated_at = $7
			WHERE pool_address = $1
		`,
			next.Address.Hex(),
			authorityHex(next.Authority),
			next.Locked,
			formatUint(next.BalanceX),
			formatUint(next.BalanceY),
			formatUint(next.TotalShares),
			next.UpdatedAt,
		); err != nil {
			return err
		}
		return insertOperation(ctx, tx, op)
	})
}

// Append inserts ledger records outside of a pool update.
func (s *Store) Append(ctx context.Context, ops []model.Operation) error {
	if len(ops) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, op := range ops {
		queueOperation(batch, op)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range ops {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ReadOperations returns ledger records with fromTs <= ts < toTs.
func (s *Store) ReadOperations(ctx context.Context, fromTs, toTs uint64) ([]model.Operation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pool_address, kind, actor, asset_in,
			amount_in::text, amount_out::text, fee::text, amount_x::text, amount_y::text, shares::text,
			balance_x::text, balance_y::text, total_shares::text, ts, recorded_at
		FROM pool_operations
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts, id
	`, clampInt64(fromTs), clampInt64(toTs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Operation
	for rows.Next() {
		var (
			pool, kind, actor string
			assetIn           *string
			nums              [9]string
			ts                int64
			recordedAt        time.Time
		)
		if err := rows.Scan(&pool, &kind, &actor, &assetIn,
			&nums[0], &nums[1], &nums[2], &nums[3], &nums[4], &nums[5], &nums[6], &nums[7], &nums[8],
			&ts, &recordedAt); err != nil {
			return nil, err
		}
		var vals [9]uint64
		for i, n := range nums {
			v, err := strconv.ParseUint(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse operation amount %q: %w", n, err)
			}
			vals[i] = v
		}
		op := model.Operation{
			Pool:        common.HexToAddress(pool),
			Kind:        model.OperationKind(kind),
			Actor:       common.HexToAddress(actor),
			AmountIn:    vals[0],
			AmountOut:   vals[1],
			Fee:         vals[2],
			AmountX:     vals[3],
			AmountY:     vals[4],
			Shares:      vals[5],
			BalanceX:    vals[6],
			BalanceY:    vals[7],
			TotalShares: vals[8],
			Timestamp:   uint64(ts),
			RecordedAt:  recordedAt.UTC().Format(time.RFC3339Nano),
		}
		if assetIn != nil {
			op.AssetIn = *assetIn
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume_x, volume_y, fee_x, fee_y,
				fee_rate_x, fee_rate_y, reserve_x, reserve_y, total_shares, apr, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				total_shares = EXCLUDED.total_shares,
				apr = EXCLUDED.apr,
				updated_at = now()
		`,
			m.PoolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.FeeRateX,
			m.FeeRateY,
			m.ReserveX,
			m.ReserveY,
			m.TotalShares,
			m.APR,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, clampInt64(ts))
	return err
}

func insertOperation(ctx context.Context, tx pgx.Tx, op model.Operation) error {
	batch := &pgx.Batch{}
	queueOperation(batch, op)
	br := tx.SendBatch(ctx, batch)
	defer br.Close()
	_, err := br.Exec()
	return err
}

func queueOperation(batch *pgx.Batch, op model.Operation) {
	var assetIn *string
	if op.AssetIn != "" {
		a := op.AssetIn
		assetIn = &a
	}
	recordedAt := time.Now().UTC()
	if op.RecordedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, op.RecordedAt); err == nil {
			recordedAt = t
		}
	}
	batch.Queue(`
		INSERT INTO pool_operations (
			pool_address, kind, actor, asset_in, amount_in, amount_out, fee, amount_x, amount_y, shares,
			balance_x, balance_y, total_shares, ts, recorded_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10::numeric,
			$11::numeric, $12::numeric, $13::numeric, $14, $15)
	`,
		op.Pool.Hex(),
		string(op.Kind),
		op.Actor.Hex(),
		assetIn,
		formatUint(op.AmountIn),
		formatUint(op.AmountOut),
		formatUint(op.Fee),
		formatUint(op.AmountX),
		formatUint(op.AmountY),
		formatUint(op.Shares),
		formatUint(op.BalanceX),
		formatUint(op.BalanceY),
		formatUint(op.TotalShares),
		clampInt64(op.Timestamp),
		recordedAt,
	)
}

func scanPool(row pgx.Row) (model.Pool, error) {
	var (
		p                          model.Pool
		addr, mintX, mintY, mintLP string
		authority                  *string
		seed, bx, by, shares       string
		fee, digits                int32
	)
	if err := row.Scan(&addr, &seed, &authority, &mintX, &mintY, &mintLP, &fee, &digits,
		&p.Locked, &bx, &by, &shares, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return model.Pool{}, err
	}

	var err error
	if p.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return model.Pool{}, fmt.Errorf("parse seed: %w", err)
	}
	if p.BalanceX, err = strconv.ParseUint(bx, 10, 64); err != nil {
		return model.Pool{}, fmt.Errorf("parse balance_x: %w", err)
	}
	if p.BalanceY, err = strconv.ParseUint(by, 10, 64); err != nil {
		return model.Pool{}, fmt.Errorf("parse balance_y: %w", err)
	}
	if p.TotalShares, err = strconv.ParseUint(shares, 10, 64); err != nil {
		return model.Pool{}, fmt.Errorf("parse total_shares: %w", err)
	}

	p.Address = common.HexToAddress(addr)
	p.MintX = common.HexToAddress(mintX)
	p.MintY = common.HexToAddress(mintY)
	p.MintLP = common.HexToAddress(mintLP)
	p.FeeBps = uint16(fee)
	p.PrecisionDigits = uint8(digits)
	if authority != nil {
		a := common.HexToAddress(*authority)
		p.Authority = &a
	}
	return p, nil
}

func authorityHex(a *common.Address) *string {
	if a == nil {
		return nil
	}
	h := a.Hex()
	return &h
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
