// Package curve implements constant-product (x * y = k) pool arithmetic over
// integer reserves. It performs no I/O: callers load reserves, run a single
// operation, and persist the resulting state only when the operation succeeds.
package curve

import (
	"fmt"

	"github.com/holiman/uint256"
)

const (
	// MaxFeeBps is 100% expressed in basis points.
	MaxFeeBps = 10_000
	// DefaultPrecisionDigits gives a precision of 1,000,000.
	DefaultPrecisionDigits = 6
)

// Asset identifies the side of the pool an amount is paid into.
type Asset uint8

const (
	AssetX Asset = iota + 1
	AssetY
)

func (a Asset) String() string {
	switch a {
	case AssetX:
		return "x"
	case AssetY:
		return "y"
	default:
		return fmt.Sprintf("asset(%d)", uint8(a))
	}
}

// ParseAsset accepts "x" or "y".
func ParseAsset(s string) (Asset, error) {
	switch s {
	case "x", "X":
		return AssetX, nil
	case "y", "Y":
		return AssetY, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAsset, s)
	}
}

// TokenAmounts pairs an X amount with a Y amount.
type TokenAmounts struct {
	TokenX uint64 `json:"token_x"`
	TokenY uint64 `json:"token_y"`
}

// SpotPrice is the price of one asset in the other, scaled by Precision.
type SpotPrice struct {
	Amount    *uint256.Int `json:"amount"`
	Precision uint32       `json:"precision"`
}

type SwapResult struct {
	Deposited uint64 `json:"deposited"`
	Withdrawn uint64 `json:"withdrawn"`
	Fee       uint64 `json:"fee"`
}

type DepositResult struct {
	DepositedX   uint64 `json:"deposited_x"`
	DepositedY   uint64 `json:"deposited_y"`
	MintedShares uint64 `json:"minted_shares"`
}

type WithdrawResult struct {
	WithdrawnX   uint64 `json:"withdrawn_x"`
	WithdrawnY   uint64 `json:"withdrawn_y"`
	BurnedShares uint64 `json:"burned_shares"`
}

// State is a snapshot of the numbers an Engine holds.
type State struct {
	BalanceX    uint64 `json:"balance_x"`
	BalanceY    uint64 `json:"balance_y"`
	TotalShares uint64 `json:"total_shares"`
	FeeBps      uint16 `json:"fee_bps"`
	Precision   uint32 `json:"precision"`
}

// Engine holds the state of one pool for the duration of one operation.
// It is not safe for concurrent use.
type Engine struct {
	balanceX    uint64
	balanceY    uint64
	totalShares uint64
	feeBps      uint16
	precision   uint32
}

type options struct {
	precisionDigits uint8
}

// Option configures New.
type Option func(*options)

// WithPrecisionDigits sets the precision to 10^digits.
func WithPrecisionDigits(digits uint8) Option {
	return func(o *options) {
		o.precisionDigits = digits
	}
}

// New builds an Engine from persisted reserves. When existingShares is zero
// the share supply is seeded with the larger of the two balances.
func New(balanceX, balanceY, existingShares uint64, feeBps uint16, opts ...Option) (*Engine, error) {
	if balanceX == 0 || balanceY == 0 {
		return nil, ErrZeroBalance
	}
	if feeBps > MaxFeeBps {
		return nil, fmt.Errorf("%w: %d bps", ErrInvalidFeeAmount, feeBps)
	}

	o := options{precisionDigits: DefaultPrecisionDigits}
	for _, opt := range opts {
		opt(&o)
	}
	precision, err := Pow10(o.precisionDigits)
	if err != nil {
		return nil, err
	}

	totalShares := existingShares
	if totalShares == 0 {
		totalShares = max(balanceX, balanceY)
	}

	return &Engine{
		balanceX:    balanceX,
		balanceY:    balanceY,
		totalShares: totalShares,
		feeBps:      feeBps,
		precision:   precision,
	}, nil
}

// Pow10 returns 10^digits as a uint32.
func Pow10(digits uint8) (uint32, error) {
	result := uint64(1)
	for i := uint8(0); i < digits; i++ {
		result *= 10
		if result > 1<<32-1 {
			return 0, fmt.Errorf("%w: 10^%d", ErrInvalidPrecision, digits)
		}
	}
	return uint32(result), nil
}

func (e *Engine) State() State {
	return State{
		BalanceX:    e.balanceX,
		BalanceY:    e.balanceY,
		TotalShares: e.totalShares,
		FeeBps:      e.feeBps,
		Precision:   e.precision,
	}
}

func (e *Engine) Invariant() (*uint256.Int, error) {
	return Invariant(e.balanceX, e.balanceY)
}

func (e *Engine) SpotPriceX() (SpotPrice, error) {
	return SpotPriceX(e.balanceX, e.balanceY, e.precision)
}

func (e *Engine) SpotPriceY() (SpotPrice, error) {
	return SpotPriceY(e.balanceX, e.balanceY, e.precision)
}

// clone returns an independent copy used by quotes.
func (e *Engine) clone() *Engine {
	c := *e
	return &c
}
