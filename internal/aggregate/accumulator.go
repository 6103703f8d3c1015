package aggregate

import (
	"fmt"
	"math/big"

	"ammEngine/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolAddress   string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeX       *big.Int
	VolumeY       *big.Int
	FeeX          *big.Int
	FeeY          *big.Int
	ReserveX      uint64
	ReserveY      uint64
	TotalShares   uint64
	LastTS        uint64
}

func NewAccumulator(op model.Operation, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolAddress: op.Pool.Hex(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
	}
}

// AddOperation folds op into the window. Reserves track the latest
// operation seen.
func (a *Accumulator) AddOperation(op model.Operation) error {
	if op.Timestamp >= a.LastTS {
		a.LastTS = op.Timestamp
		a.ReserveX = op.BalanceX
		a.ReserveY = op.BalanceY
		a.TotalShares = op.TotalShares
	}

	switch op.Kind {
	case model.OpSwap:
		return a.applySwap(op)
	case model.OpDeposit:
		a.DepositCount++
	case model.OpWithdraw:
		a.WithdrawCount++
	case model.OpInitialize, model.OpLock, model.OpUnlock:
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
	return nil
}

func (a *Accumulator) applySwap(op model.Operation) error {
	in := new(big.Int).SetUint64(op.AmountIn)
	out := new(big.Int).SetUint64(op.AmountOut)
	fee := new(big.Int).SetUint64(op.Fee)

	switch op.AssetIn {
	case "x":
		a.VolumeX.Add(a.VolumeX, in)
		a.VolumeY.Add(a.VolumeY, out)
		a.FeeX.Add(a.FeeX, fee)
	case "y":
		a.VolumeY.Add(a.VolumeY, in)
		a.VolumeX.Add(a.VolumeX, out)
		a.FeeY.Add(a.FeeY, fee)
	default:
		return fmt.Errorf("swap with unknown input asset %q", op.AssetIn)
	}

	a.SwapCount++
	return nil
}
