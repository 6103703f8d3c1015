package aggregate

import (
	"math/big"
	"time"
)

const ratioScale = 18

func computeFeeRates(feeX *big.Int, feeY *big.Int, reserveX *big.Int, reserveY *big.Int) (*string, *string) {
	var feeRateX *string
	var feeRateY *string

	if rate := computeRateFromInt(feeX, reserveX); rate != "" {
		feeRateX = &rate
	}
	if rate := computeRateFromInt(feeY, reserveY); rate != "" {
		feeRateY = &rate
	}
	return feeRateX, feeRateY
}

func computeRateFromInt(fee *big.Int, reserve *big.Int) string {
	if fee == nil || fee.Sign() == 0 || reserve == nil || reserve.Sign() == 0 {
		return ""
	}
	rat := new(big.Rat).SetFrac(fee, reserve)
	return rat.FloatString(ratioScale)
}

// computeAPR annualises the window yield. A constant-product pool holds equal
// value on both sides, so the yield on the whole pool is the mean of the two
// per-side fee rates.
func computeAPR(feeRateX *string, feeRateY *string, windowSeconds uint64) *string {
	if windowSeconds == 0 || (feeRateX == nil && feeRateY == nil) {
		return nil
	}

	sum := new(big.Rat)
	for _, rate := range []*string{feeRateX, feeRateY} {
		if rate == nil {
			continue
		}
		r, ok := new(big.Rat).SetString(*rate)
		if !ok {
			return nil
		}
		sum.Add(sum, r)
	}

	yearSeconds := big.NewRat(int64(365*24*time.Hour/time.Second), 1)
	window := big.NewRat(2*int64(windowSeconds), 1)
	apr := new(big.Rat).Mul(sum, yearSeconds)
	apr.Quo(apr, window)
	val := apr.FloatString(ratioScale)
	return &val
}
