package pool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ammEngine/internal/curve"
	"ammEngine/internal/model"
	"ammEngine/internal/storage"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	mintX = common.HexToAddress("0x0000000000000000000000000000000000001001")
	mintY = common.HexToAddress("0x0000000000000000000000000000000000001002")
)

type recordingLedger struct {
	mu  sync.Mutex
	ops []model.Operation
}

func (l *recordingLedger) Append(_ context.Context, ops []model.Operation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ops = append(l.ops, ops...)
	return nil
}

func (l *recordingLedger) kinds() []model.OperationKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.OperationKind, 0, len(l.ops))
	for _, op := range l.ops {
		out = append(out, op.Kind)
	}
	return out
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func newTestService(t *testing.T, opts ...Option) (*Service, *recordingLedger) {
	t.Helper()
	ledger := &recordingLedger{}
	opts = append([]Option{WithClock(fixedClock(1_700_000_000))}, opts...)
	return NewService(storage.NewMemoryStore(ledger), opts...), ledger
}

// seeded creates a pool holding 20 X, 30 Y and 30 shares.
func seeded(t *testing.T, s *Service, fee uint16, authority *common.Address) model.Pool {
	t.Helper()
	ctx := context.Background()
	p, err := s.Initialize(ctx, InitializeRequest{Seed: 1, FeeBps: fee, Authority: authority, MintX: mintX, MintY: mintY, Actor: alice})
	require.NoError(t, err)
	_, p, err = s.Deposit(ctx, DepositRequest{Pool: p.Address, Actor: alice, Shares: 30, MaxX: 20, MaxY: 30})
	require.NoError(t, err)
	return p
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)

	p, err := s.Initialize(ctx, InitializeRequest{Seed: 7, FeeBps: 30, MintX: mintX, MintY: mintY, Actor: alice})
	require.NoError(t, err)
	assert.Equal(t, model.PoolAddress(7), p.Address)
	assert.Equal(t, model.LPMintAddress(p.Address), p.MintLP)
	assert.True(t, p.Empty())
	assert.Equal(t, uint8(curve.DefaultPrecisionDigits), p.PrecisionDigits)

	_, err = s.Initialize(ctx, InitializeRequest{Seed: 7, FeeBps: 30, MintX: mintX, MintY: mintY})
	require.ErrorIs(t, err, ErrPoolExists)

	_, err = s.Initialize(ctx, InitializeRequest{Seed: 8, FeeBps: 10_001, MintX: mintX, MintY: mintY})
	require.ErrorIs(t, err, curve.ErrInvalidFeeAmount)

	_, err = s.Initialize(ctx, InitializeRequest{Seed: 9, MintX: mintX, MintY: mintX})
	require.ErrorIs(t, err, ErrIdenticalMints)

	assert.Equal(t, []model.OperationKind{model.OpInitialize}, ledger.kinds())
}

func TestInitializeRejectsBadPrecision(t *testing.T) {
	s, _ := newTestService(t, WithPrecisionDigits(10))
	_, err := s.Initialize(context.Background(), InitializeRequest{Seed: 1, MintX: mintX, MintY: mintY})
	require.ErrorIs(t, err, curve.ErrInvalidPrecision)
}

func TestDepositBootstrapAndProportional(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	p := seeded(t, s, 0, nil)

	assert.Equal(t, uint64(20), p.BalanceX)
	assert.Equal(t, uint64(30), p.BalanceY)
	assert.Equal(t, uint64(30), p.TotalShares)

	res, p, err := s.Deposit(ctx, DepositRequest{Pool: p.Address, Actor: bob, Shares: 30, MaxX: 20, MaxY: 30})
	require.NoError(t, err)
	assert.Equal(t, curve.DepositResult{DepositedX: 20, DepositedY: 30, MintedShares: 30}, res)
	assert.Equal(t, uint64(40), p.BalanceX)
	assert.Equal(t, uint64(60), p.BalanceY)
	assert.Equal(t, uint64(60), p.TotalShares)

	_, _, err = s.Deposit(ctx, DepositRequest{Pool: p.Address, Shares: 0, MaxX: 1, MaxY: 1})
	require.ErrorIs(t, err, curve.ErrZeroAmount)
}

func TestSwapScenario(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	p := seeded(t, s, 1000, nil)

	res, p, err := s.Swap(ctx, SwapRequest{Pool: p.Address, Actor: bob, In: curve.AssetX, AmountIn: 5, MinAmountOut: 5})
	require.NoError(t, err)
	assert.Equal(t, curve.SwapResult{Deposited: 5, Withdrawn: 5, Fee: 1}, res)
	assert.Equal(t, uint64(24), p.BalanceX)
	assert.Equal(t, uint64(25), p.BalanceY)

	got, err := s.Get(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(24), got.BalanceX)
	require.NotNil(t, got.Invariant)
	assert.Equal(t, "600", *got.Invariant)

	ledger.mu.Lock()
	last := ledger.ops[len(ledger.ops)-1]
	ledger.mu.Unlock()
	assert.Equal(t, model.OpSwap, last.Kind)
	assert.Equal(t, "x", last.AssetIn)
	assert.Equal(t, uint64(1), last.Fee)
	assert.Equal(t, uint64(24), last.BalanceX)
	assert.Equal(t, uint64(1_700_000_000), last.Timestamp)
}

func TestSwapRejectedLeavesPoolUntouched(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	p := seeded(t, s, 0, nil)
	before := len(ledger.kinds())

	_, _, err := s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5, MinAmountOut: 7})
	require.ErrorIs(t, err, curve.ErrSlippageLimitExceeded)

	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 0})
	require.ErrorIs(t, err, curve.ErrZeroAmount)

	got, err := s.Get(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.BalanceX)
	assert.Equal(t, uint64(30), got.BalanceY)
	assert.Len(t, ledger.kinds(), before)
}

func TestSwapMustMoveBothLegs(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	p := seeded(t, s, 1000, nil)

	// a 10% fee floors 1 Y down to nothing, so no X leaves the pool
	_, _, err := s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetY, AmountIn: 1})
	require.ErrorIs(t, err, curve.ErrZeroAmount)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	p := seeded(t, s, 0, nil)

	res, p, err := s.Withdraw(ctx, WithdrawRequest{Pool: p.Address, Actor: alice, Shares: 15, MinX: 10, MinY: 15})
	require.NoError(t, err)
	assert.Equal(t, curve.WithdrawResult{WithdrawnX: 10, WithdrawnY: 15, BurnedShares: 15}, res)
	assert.Equal(t, uint64(10), p.BalanceX)
	assert.Equal(t, uint64(15), p.BalanceY)
	assert.Equal(t, uint64(15), p.TotalShares)

	_, _, err = s.Withdraw(ctx, WithdrawRequest{Pool: p.Address, Shares: 16})
	require.ErrorIs(t, err, curve.ErrUnderflow)
}

func TestLockRequiresAuthority(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	auth := alice
	p := seeded(t, s, 0, &auth)

	_, err := s.Lock(ctx, p.Address, bob)
	require.ErrorIs(t, err, ErrInvalidAuthority)

	p, err = s.Lock(ctx, p.Address, alice)
	require.NoError(t, err)
	assert.True(t, p.Locked)

	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.ErrorIs(t, err, ErrPoolLocked)
	_, _, err = s.Deposit(ctx, DepositRequest{Pool: p.Address, Shares: 1, MaxX: 10, MaxY: 10})
	require.ErrorIs(t, err, ErrPoolLocked)
	_, _, err = s.Withdraw(ctx, WithdrawRequest{Pool: p.Address, Shares: 1})
	require.ErrorIs(t, err, ErrPoolLocked)

	p, err = s.Unlock(ctx, p.Address, alice)
	require.NoError(t, err)
	assert.False(t, p.Locked)

	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.NoError(t, err)
}

func TestLockWithoutAuthority(t *testing.T) {
	s, _ := newTestService(t)
	p := seeded(t, s, 0, nil)
	_, err := s.Lock(context.Background(), p.Address, alice)
	require.ErrorIs(t, err, ErrNoAuthoritySet)
}

func TestExpiration(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	p := seeded(t, s, 0, nil)

	_, _, err := s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5, Expiration: 1_699_999_999})
	require.ErrorIs(t, err, ErrOfferExpired)

	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5, Expiration: 1_700_000_000})
	require.NoError(t, err)
}

func TestUnknownPool(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	_, _, err := s.Swap(ctx, SwapRequest{Pool: model.PoolAddress(99), In: curve.AssetX, AmountIn: 5})
	require.ErrorIs(t, err, ErrPoolNotFound)
	_, err = s.Get(ctx, model.PoolAddress(99))
	require.ErrorIs(t, err, ErrPoolNotFound)
}

func TestOperationsOnEmptyPool(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(t)
	p, err := s.Initialize(ctx, InitializeRequest{Seed: 3, MintX: mintX, MintY: mintY})
	require.NoError(t, err)

	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.ErrorIs(t, err, curve.ErrZeroBalance)

	v, err := s.Get(ctx, p.Address)
	require.NoError(t, err)
	assert.Nil(t, v.SpotPriceX)
	assert.Equal(t, uint32(1_000_000), v.Precision)
}

func TestQuotesDoNotMutate(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	p := seeded(t, s, 1000, nil)
	before := len(ledger.kinds())

	res, st, err := s.QuoteSwap(ctx, p.Address, curve.AssetX, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), res.Withdrawn)
	assert.Equal(t, uint64(24), st.BalanceX)

	dep, _, err := s.QuoteDeposit(ctx, p.Address, 30)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), dep.DepositedX)

	wd, _, err := s.QuoteWithdraw(ctx, p.Address, 15)
	require.NoError(t, err)
	assert.Equal(t, uint64(15), wd.WithdrawnY)

	got, err := s.Get(ctx, p.Address)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), got.BalanceX)
	assert.Len(t, ledger.kinds(), before)
}

func TestConcurrentSwapsSerialise(t *testing.T) {
	ctx := context.Background()
	s, ledger := newTestService(t)
	p, err := s.Initialize(ctx, InitializeRequest{Seed: 1, MintX: mintX, MintY: mintY})
	require.NoError(t, err)
	_, _, err = s.Deposit(ctx, DepositRequest{Pool: p.Address, Shares: 1_000_000, MaxX: 1_000_000, MaxY: 1_000_000})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := curve.AssetX
			if i%2 == 1 {
				in = curve.AssetY
			}
			_, _, err := s.Swap(ctx, SwapRequest{Pool: p.Address, In: in, AmountIn: 1_000})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// every ledger record must continue from the reserves of the one before
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	require.Len(t, ledger.ops, 34)
	for i := 2; i < len(ledger.ops); i++ {
		prev, cur := ledger.ops[i-1], ledger.ops[i]
		if cur.AssetIn == "x" {
			assert.Equal(t, prev.BalanceX+cur.AmountIn, cur.BalanceX)
			assert.Equal(t, prev.BalanceY-cur.AmountOut, cur.BalanceY)
		} else {
			assert.Equal(t, prev.BalanceY+cur.AmountIn, cur.BalanceY)
			assert.Equal(t, prev.BalanceX-cur.AmountOut, cur.BalanceX)
		}
	}
	assert.Equal(t, 0, s.locks.Len())
}

func TestMetricsRecorded(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	s, _ := newTestService(t, WithMetrics(m))
	p := seeded(t, s, 1000, nil)
	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.NoError(t, err)
	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 0})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("swap", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("swap", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.swapFees.WithLabelValues(p.Address.Hex(), "x")))
	assert.Equal(t, 24.0, testutil.ToFloat64(m.reserves.WithLabelValues(p.Address.Hex(), "x")))

	_, err = NewMetrics(reg)
	require.Error(t, err)
}

// racingStore lets another writer grow the pool right before each of the
// next races saves.
type racingStore struct {
	*storage.FileStore
	races int
}

func (r *racingStore) Save(ctx context.Context, prev, next model.Pool, op model.Operation) error {
	if r.races > 0 {
		r.races--
		cur, err := r.FileStore.Get(ctx, prev.Address)
		if err != nil {
			return err
		}
		grown := cur
		grown.BalanceX += 10
		grown.BalanceY += 15
		grown.TotalShares += 15
		if err := r.FileStore.Save(ctx, cur, grown, model.Operation{Pool: cur.Address, Kind: model.OpDeposit}); err != nil {
			return err
		}
	}
	return r.FileStore.Save(ctx, prev, next, op)
}

func TestSwapRetriesAfterConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{FileStore: storage.NewMemoryStore(nil)}
	s := NewService(store, WithClock(fixedClock(1_700_000_000)))
	p := seeded(t, s, 0, nil)

	// the first attempt sees (20, 30) but the pool is (30, 45) by save time;
	// the rerun prices 5 X against the new reserves: 1350 / 35 = 38
	store.races = 1
	res, p, err := s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Withdrawn)
	assert.Equal(t, uint64(35), p.BalanceX)
	assert.Equal(t, uint64(38), p.BalanceY)
	assert.Equal(t, uint64(45), p.TotalShares)

	store.races = maxSaveAttempts
	_, _, err = s.Swap(ctx, SwapRequest{Pool: p.Address, In: curve.AssetX, AmountIn: 5})
	require.ErrorIs(t, err, ErrPoolConflict)
}
