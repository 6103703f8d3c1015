package curve

import "github.com/holiman/uint256"

// Invariant returns K = x * y.
func Invariant(balanceX, balanceY uint64) (*uint256.Int, error) {
	if balanceX == 0 || balanceY == 0 {
		return nil, ErrZeroBalance
	}
	return wideMul(wide(balanceX), wide(balanceY))
}

// SpotPriceX returns the price of X in terms of Y scaled by precision.
func SpotPriceX(balanceX, balanceY uint64, precision uint32) (SpotPrice, error) {
	if balanceX == 0 || balanceY == 0 {
		return SpotPrice{}, ErrZeroBalance
	}
	scaled, err := wideMul(wide(balanceX), wide(uint64(precision)))
	if err != nil {
		return SpotPrice{}, err
	}
	amount, err := wideDiv(scaled, wide(balanceY))
	if err != nil {
		return SpotPrice{}, err
	}
	return SpotPrice{Amount: amount, Precision: precision}, nil
}

// SpotPriceY returns the price of Y in terms of X scaled by precision.
func SpotPriceY(balanceX, balanceY uint64, precision uint32) (SpotPrice, error) {
	return SpotPriceX(balanceY, balanceX, precision)
}

// DepositAmounts returns the X and Y a depositor must add to mint sharesToMint
// new shares while keeping both reserves proportional to the share supply.
func DepositAmounts(balanceX, balanceY, totalShares, sharesToMint uint64, precision uint32) (TokenAmounts, error) {
	p := wide(uint64(precision))

	grown, err := wideAdd(wide(totalShares), wide(sharesToMint))
	if err != nil {
		return TokenAmounts{}, err
	}
	ratio, err := scaleRatio(grown, totalShares, p)
	if err != nil {
		return TokenAmounts{}, err
	}

	x, err := depositLeg(balanceX, ratio, p)
	if err != nil {
		return TokenAmounts{}, err
	}
	y, err := depositLeg(balanceY, ratio, p)
	if err != nil {
		return TokenAmounts{}, err
	}
	return TokenAmounts{TokenX: x, TokenY: y}, nil
}

// WithdrawAmounts returns the X and Y released by burning sharesToBurn shares.
func WithdrawAmounts(balanceX, balanceY, totalShares, sharesToBurn uint64, precision uint32) (TokenAmounts, error) {
	p := wide(uint64(precision))

	remaining, err := wideSub(wide(totalShares), wide(sharesToBurn))
	if err != nil {
		return TokenAmounts{}, err
	}
	ratio, err := scaleRatio(remaining, totalShares, p)
	if err != nil {
		return TokenAmounts{}, err
	}

	x, err := withdrawLeg(balanceX, ratio, p)
	if err != nil {
		return TokenAmounts{}, err
	}
	y, err := withdrawLeg(balanceY, ratio, p)
	if err != nil {
		return TokenAmounts{}, err
	}
	return TokenAmounts{TokenX: x, TokenY: y}, nil
}

// NewBalanceAfterSwap returns the balance on the paying side once amountIn has
// been added to balanceIn: K / (balanceIn + amountIn), floored.
func NewBalanceAfterSwap(balanceIn, balanceOut, amountIn uint64) (uint64, error) {
	k, err := Invariant(balanceIn, balanceOut)
	if err != nil {
		return 0, err
	}
	grown, err := wideAdd(wide(balanceIn), wide(amountIn))
	if err != nil {
		return 0, err
	}
	next, err := wideDiv(k, grown)
	if err != nil {
		return 0, err
	}
	return narrow(next)
}

// SwapDelta returns how much of the paying side leaves the pool when amountIn
// is added to balanceIn.
func SwapDelta(balanceIn, balanceOut, amountIn uint64) (uint64, error) {
	next, err := NewBalanceAfterSwap(balanceIn, balanceOut, amountIn)
	if err != nil {
		return 0, err
	}
	return sub64(balanceOut, next)
}

// scaleRatio returns numerator * precision / totalShares.
func scaleRatio(numerator *uint256.Int, totalShares uint64, precision *uint256.Int) (*uint256.Int, error) {
	scaled, err := wideMul(numerator, precision)
	if err != nil {
		return nil, err
	}
	return wideDiv(scaled, wide(totalShares))
}

// depositLeg returns balance * ratio / precision - balance.
func depositLeg(balance uint64, ratio, precision *uint256.Int) (uint64, error) {
	b := wide(balance)
	scaled, err := wideMul(b, ratio)
	if err != nil {
		return 0, err
	}
	target, err := wideDiv(scaled, precision)
	if err != nil {
		return 0, err
	}
	need, err := wideSub(target, b)
	if err != nil {
		return 0, err
	}
	return narrow(need)
}

// withdrawLeg returns balance - balance * ratio / precision.
func withdrawLeg(balance uint64, ratio, precision *uint256.Int) (uint64, error) {
	b := wide(balance)
	scaled, err := wideMul(b, ratio)
	if err != nil {
		return 0, err
	}
	kept, err := wideDiv(scaled, precision)
	if err != nil {
		return 0, err
	}
	out, err := wideSub(b, kept)
	if err != nil {
		return 0, err
	}
	return narrow(out)
}
