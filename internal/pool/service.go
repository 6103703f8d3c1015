// Package pool hosts curve engines: it loads pool reserves from a store,
// applies the admin guards, runs one engine operation under a per-pool lock,
// and persists the new reserves together with a ledger record.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

// InitializeRequest creates an empty pool.
type InitializeRequest struct {
	Seed      uint64
	FeeBps    uint16
	Authority *common.Address
	MintX     common.Address
	MintY     common.Address
	Actor     common.Address
}

type DepositRequest struct {
	Pool       common.Address
	Actor      common.Address
	Shares     uint64
	MaxX       uint64
	MaxY       uint64
	Expiration int64
}

type WithdrawRequest struct {
	Pool       common.Address
	Actor      common.Address
	Shares     uint64
	MinX       uint64
	MinY       uint64
	Expiration int64
}

type SwapRequest struct {
	Pool         common.Address
	Actor        common.Address
	In           curve.Asset
	AmountIn     uint64
	MinAmountOut uint64
	Expiration   int64
}

// View is a pool record with its derived prices. Prices are nil while the
// pool is empty.
type View struct {
	model.Pool
	Invariant  *string `json:"invariant,omitempty"`
	SpotPriceX *string `json:"spot_price_x,omitempty"`
	SpotPriceY *string `json:"spot_price_y,omitempty"`
	Precision  uint32  `json:"precision"`
}

// Service runs pool operations.
type Service struct {
	store           storage.PoolStore
	logger          *zap.Logger
	metrics         *Metrics
	now             func() time.Time
	precisionDigits uint8
	locks           *lockmap
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides time.Now, used for expiration checks and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPrecisionDigits sets the precision given to pools created by this service.
func WithPrecisionDigits(digits uint8) Option {
	return func(s *Service) { s.precisionDigits = digits }
}

func NewService(store storage.PoolStore, opts ...Option) *Service {
	s := &Service{
		store:           store,
		logger:          zap.NewNop(),
		now:             time.Now,
		precisionDigits: curve.DefaultPrecisionDigits,
		locks:           newLockmap(16),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates an empty pool at the address derived from the seed.
func (s *Service) Initialize(ctx context.Context, req InitializeRequest) (model.Pool, error) {
	start := s.now()
	p, err := s.initialize(ctx, req, start)
	s.metrics.observe(model.OpInitialize, time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Warn("initialize rejected", zap.Uint64("seed", req.Seed), zap.Error(err))
		return model.Pool{}, err
	}
	s.logger.Info("pool initialized",
		zap.String("pool", p.Address.Hex()),
		zap.Uint64("seed", p.Seed),
		zap.Uint16("fee_bps", p.FeeBps),
	)
	return p, nil
}

func (s *Service) initialize(ctx context.Context, req InitializeRequest, now time.Time) (model.Pool, error) {
	if req.FeeBps > curve.MaxFeeBps {
		return model.Pool{}, fmt.Errorf("%w: %d bps", curve.ErrInvalidFeeAmount, req.FeeBps)
	}
	if req.MintX == req.MintY {
		return model.Pool{}, ErrIdenticalMints
	}
	if _, err := curve.Pow10(s.precisionDigits); err != nil {
		return model.Pool{}, err
	}

	addr := model.PoolAddress(req.Seed)
	key := addr.Hex()
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	p := model.Pool{
		Address:         addr,
		Seed:            req.Seed,
		Authority:       req.Authority,
		MintX:           req.MintX,
		MintY:           req.MintY,
		MintLP:          model.LPMintAddress(addr),
		FeeBps:          req.FeeBps,
		PrecisionDigits: s.precisionDigits,
		CreatedAt:       now.UTC(),
		UpdatedAt:       now.UTC(),
	}
	op := s.operation(p, model.OpInitialize, req.Actor, now)
	if err := s.store.Create(ctx, p, op); err != nil {
		return model.Pool{}, err
	}
	s.metrics.record(p, op)
	return p, nil
}

// Deposit mints shares against proportional reserves. An empty pool accepts
// MaxX and MaxY as-is and seeds its supply with the requested shares.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (curve.DepositResult, model.Pool, error) {
	var res curve.DepositResult
	p, err := s.apply(ctx, req.Pool, model.OpDeposit, req.Actor, func(p *model.Pool, op *model.Operation, now time.Time) error {
		if err := AssertNotLocked(p.Locked); err != nil {
			return err
		}
		if err := AssertNotExpired(now, req.Expiration); err != nil {
			return err
		}
		if err := AssertNonZero(req.Shares, req.MaxX, req.MaxY); err != nil {
			return err
		}

		var state curve.State
		if p.Empty() {
			eng, err := curve.New(req.MaxX, req.MaxY, req.Shares, p.FeeBps, curve.WithPrecisionDigits(p.PrecisionDigits))
			if err != nil {
				return err
			}
			res = curve.DepositResult{DepositedX: req.MaxX, DepositedY: req.MaxY, MintedShares: req.Shares}
			state = eng.State()
		} else {
			eng, err := engineFor(*p)
			if err != nil {
				return err
			}
			if res, err = eng.Deposit(req.Shares, req.MaxX, req.MaxY); err != nil {
				return err
			}
			state = eng.State()
		}

		applyState(p, state)
		op.AmountX, op.AmountY, op.Shares = res.DepositedX, res.DepositedY, res.MintedShares
		return nil
	})
	return res, p, err
}

// Withdraw burns shares for the proportional reserves.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (curve.WithdrawResult, model.Pool, error) {
	var res curve.WithdrawResult
	p, err := s.apply(ctx, req.Pool, model.OpWithdraw, req.Actor, func(p *model.Pool, op *model.Operation, now time.Time) error {
		if err := AssertNotLocked(p.Locked); err != nil {
			return err
		}
		if err := AssertNotExpired(now, req.Expiration); err != nil {
			return err
		}
		if err := AssertNonZero(req.Shares); err != nil {
			return err
		}

		eng, err := engineFor(*p)
		if err != nil {
			return err
		}
		if res, err = eng.Withdraw(req.Shares, req.MinX, req.MinY); err != nil {
			return err
		}

		applyState(p, eng.State())
		op.AmountX, op.AmountY, op.Shares = res.WithdrawnX, res.WithdrawnY, res.BurnedShares
		return nil
	})
	return res, p, err
}

// Swap trades AmountIn of one asset for the other. Both legs of the trade
// must be non-zero.
func (s *Service) Swap(ctx context.Context, req SwapRequest) (curve.SwapResult, model.Pool, error) {
	var res curve.SwapResult
	p, err := s.apply(ctx, req.Pool, model.OpSwap, req.Actor, func(p *model.Pool, op *model.Operation, now time.Time) error {
		if err := AssertNonZero(req.AmountIn); err != nil {
			return err
		}
		if err := AssertNotLocked(p.Locked); err != nil {
			return err
		}
		if err := AssertNotExpired(now, req.Expiration); err != nil {
			return err
		}

		eng, err := engineFor(*p)
		if err != nil {
			return err
		}
		if res, err = eng.Swap(req.In, req.AmountIn, req.MinAmountOut); err != nil {
			return err
		}
		if err := AssertNonZero(res.Deposited, res.Withdrawn); err != nil {
			return err
		}

		applyState(p, eng.State())
		op.AssetIn = req.In.String()
		op.AmountIn, op.AmountOut, op.Fee = res.Deposited, res.Withdrawn, res.Fee
		return nil
	})
	return res, p, err
}

// Lock stops deposits, withdrawals and swaps until Unlock.
func (s *Service) Lock(ctx context.Context, addr, actor common.Address) (model.Pool, error) {
	return s.setLocked(ctx, addr, actor, true)
}

func (s *Service) Unlock(ctx context.Context, addr, actor common.Address) (model.Pool, error) {
	return s.setLocked(ctx, addr, actor, false)
}

func (s *Service) setLocked(ctx context.Context, addr, actor common.Address, locked bool) (model.Pool, error) {
	kind := model.OpUnlock
	if locked {
		kind = model.OpLock
	}
	return s.apply(ctx, addr, kind, actor, func(p *model.Pool, _ *model.Operation, _ time.Time) error {
		if err := HasUpdateAuthority(*p, actor); err != nil {
			return err
		}
		p.Locked = locked
		return nil
	})
}

// QuoteSwap prices a swap against the stored reserves without changing them.
func (s *Service) QuoteSwap(ctx context.Context, addr common.Address, in curve.Asset, amountIn uint64) (curve.SwapResult, curve.State, error) {
	p, err := s.store.Get(ctx, addr)
	if err != nil {
		return curve.SwapResult{}, curve.State{}, err
	}
	if err := AssertNonZero(amountIn); err != nil {
		return curve.SwapResult{}, curve.State{}, err
	}
	eng, err := engineFor(p)
	if err != nil {
		return curve.SwapResult{}, curve.State{}, err
	}
	return eng.QuoteSwap(in, amountIn, 0)
}

// QuoteDeposit returns the amounts a deposit of shares would take.
func (s *Service) QuoteDeposit(ctx context.Context, addr common.Address, shares uint64) (curve.DepositResult, curve.State, error) {
	p, err := s.store.Get(ctx, addr)
	if err != nil {
		return curve.DepositResult{}, curve.State{}, err
	}
	eng, err := engineFor(p)
	if err != nil {
		return curve.DepositResult{}, curve.State{}, err
	}
	return eng.QuoteDeposit(shares, ^uint64(0), ^uint64(0))
}

// QuoteWithdraw returns the amounts burning shares would release.
func (s *Service) QuoteWithdraw(ctx context.Context, addr common.Address, shares uint64) (curve.WithdrawResult, curve.State, error) {
	p, err := s.store.Get(ctx, addr)
	if err != nil {
		return curve.WithdrawResult{}, curve.State{}, err
	}
	eng, err := engineFor(p)
	if err != nil {
		return curve.WithdrawResult{}, curve.State{}, err
	}
	return eng.QuoteWithdraw(shares, 0, 0)
}

func (s *Service) Get(ctx context.Context, addr common.Address) (View, error) {
	p, err := s.store.Get(ctx, addr)
	if err != nil {
		return View{}, err
	}
	return viewOf(p)
}

func (s *Service) List(ctx context.Context) ([]model.Pool, error) {
	return s.store.List(ctx)
}

// apply loads the pool under its lock, runs fn and saves the result with
// the ledger record fn filled in. Nothing is saved when fn fails.
func (s *Service) apply(
	ctx context.Context,
	addr common.Address,
	kind model.OperationKind,
	actor common.Address,
	fn func(p *model.Pool, op *model.Operation, now time.Time) error,
) (model.Pool, error) {
	start := s.now()
	key := addr.Hex()

	s.locks.Lock(key)
	p, err := s.applyLocked(ctx, addr, kind, actor, start, fn)
	s.locks.Unlock(key)

	s.metrics.observe(kind, time.Since(start).Seconds(), err)
	if err != nil {
		s.logger.Warn("operation rejected",
			zap.String("pool", key),
			zap.String("kind", string(kind)),
			zap.String("actor", actor.Hex()),
			zap.Error(err),
		)
		return model.Pool{}, err
	}
	s.logger.Debug("operation applied",
		zap.String("pool", key),
		zap.String("kind", string(kind)),
		zap.Uint64("balance_x", p.BalanceX),
		zap.Uint64("balance_y", p.BalanceY),
		zap.Uint64("total_shares", p.TotalShares),
	)
	return p, nil
}

// maxSaveAttempts bounds how often an operation is rerun after another
// writer changed the pool between read and save.
const maxSaveAttempts = 3

func (s *Service) applyLocked(
	ctx context.Context,
	addr common.Address,
	kind model.OperationKind,
	actor common.Address,
	now time.Time,
	fn func(p *model.Pool, op *model.Operation, now time.Time) error,
) (model.Pool, error) {
	for attempt := 1; ; attempt++ {
		prev, err := s.store.Get(ctx, addr)
		if err != nil {
			return model.Pool{}, err
		}

		p := prev
		var op model.Operation
		if err := fn(&p, &op, now); err != nil {
			return model.Pool{}, fmt.Errorf("%s %s: %w", kind, addr.Hex(), err)
		}

		p.UpdatedAt = now.UTC()
		full := s.operation(p, kind, actor, now)
		full.AssetIn, full.AmountIn, full.AmountOut, full.Fee = op.AssetIn, op.AmountIn, op.AmountOut, op.Fee
		full.AmountX, full.AmountY, full.Shares = op.AmountX, op.AmountY, op.Shares

		err = s.store.Save(ctx, prev, p, full)
		if errors.Is(err, storage.ErrPoolConflict) && attempt < maxSaveAttempts {
			s.logger.Debug("pool changed underneath, retrying",
				zap.String("pool", addr.Hex()),
				zap.String("kind", string(kind)),
				zap.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return model.Pool{}, fmt.Errorf("save pool: %w", err)
		}
		s.metrics.record(p, full)
		return p, nil
	}
}

func (s *Service) operation(p model.Pool, kind model.OperationKind, actor common.Address, now time.Time) model.Operation {
	return model.Operation{
		Pool:        p.Address,
		Kind:        kind,
		Actor:       actor,
		BalanceX:    p.BalanceX,
		BalanceY:    p.BalanceY,
		TotalShares: p.TotalShares,
		Timestamp:   uint64(now.Unix()),
		RecordedAt:  now.UTC().Format(time.RFC3339Nano),
	}
}

func engineFor(p model.Pool) (*curve.Engine, error) {
	return curve.New(p.BalanceX, p.BalanceY, p.TotalShares, p.FeeBps, curve.WithPrecisionDigits(p.PrecisionDigits))
}

func applyState(p *model.Pool, st curve.State) {
	p.BalanceX, p.BalanceY, p.TotalShares = st.BalanceX, st.BalanceY, st.TotalShares
}

func viewOf(p model.Pool) (View, error) {
	v := View{Pool: p}
	precision, err := curve.Pow10(p.PrecisionDigits)
	if err != nil {
		return View{}, err
	}
	v.Precision = precision
	if p.BalanceX == 0 || p.BalanceY == 0 {
		return v, nil
	}

	eng, err := engineFor(p)
	if err != nil {
		return View{}, err
	}
	k, err := eng.Invariant()
	if err != nil {
		return View{}, err
	}
	px, err := eng.SpotPriceX()
	if err != nil {
		return View{}, err
	}
	py, err := eng.SpotPriceY()
	if err != nil {
		return View{}, err
	}
	ks, pxs, pys := k.Dec(), px.Amount.Dec(), py.Amount.Dec()
	v.Invariant, v.SpotPriceX, v.SpotPriceY = &ks, &pxs, &pys
	return v, nil
}
