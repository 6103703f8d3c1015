package curve

// Deposit mints sharesToMint shares, taking the proportional X and Y from the
// depositor. It fails when either required amount exceeds maxX or maxY.
func (e *Engine) Deposit(sharesToMint, maxX, maxY uint64) (DepositResult, error) {
	if sharesToMint == 0 {
		return DepositResult{}, ErrZeroAmount
	}
	amounts, err := DepositAmounts(e.balanceX, e.balanceY, e.totalShares, sharesToMint, e.precision)
	if err != nil {
		return DepositResult{}, err
	}
	if amounts.TokenX == 0 || amounts.TokenY == 0 {
		return DepositResult{}, ErrZeroAmount
	}
	if amounts.TokenX > maxX || amounts.TokenY > maxY {
		return DepositResult{}, ErrSlippageLimitExceeded
	}
	return e.DepositUnchecked(amounts.TokenX, amounts.TokenY, sharesToMint)
}

// DepositUnchecked adds the given amounts and shares without consulting the
// ratio calculator or any slippage bound. Callers must have validated them.
func (e *Engine) DepositUnchecked(amountX, amountY, sharesToMint uint64) (DepositResult, error) {
	x, err := add64(e.balanceX, amountX)
	if err != nil {
		return DepositResult{}, err
	}
	y, err := add64(e.balanceY, amountY)
	if err != nil {
		return DepositResult{}, err
	}
	shares, err := add64(e.totalShares, sharesToMint)
	if err != nil {
		return DepositResult{}, err
	}

	e.balanceX, e.balanceY, e.totalShares = x, y, shares
	return DepositResult{
		DepositedX:   amountX,
		DepositedY:   amountY,
		MintedShares: sharesToMint,
	}, nil
}

// Withdraw burns sharesToBurn shares and releases the proportional X and Y.
// It fails when either released amount is below minX or minY.
func (e *Engine) Withdraw(sharesToBurn, minX, minY uint64) (WithdrawResult, error) {
	if sharesToBurn == 0 {
		return WithdrawResult{}, ErrZeroAmount
	}
	amounts, err := WithdrawAmounts(e.balanceX, e.balanceY, e.totalShares, sharesToBurn, e.precision)
	if err != nil {
		return WithdrawResult{}, err
	}
	if amounts.TokenX < minX || amounts.TokenY < minY {
		return WithdrawResult{}, ErrSlippageLimitExceeded
	}
	return e.WithdrawUnchecked(amounts.TokenX, amounts.TokenY, sharesToBurn)
}

// WithdrawUnchecked removes the given amounts and shares without any slippage
// bound.
func (e *Engine) WithdrawUnchecked(amountX, amountY, sharesToBurn uint64) (WithdrawResult, error) {
	if amountX > e.balanceX || amountY > e.balanceY {
		return WithdrawResult{}, ErrInsufficientBalance
	}
	x, err := sub64(e.balanceX, amountX)
	if err != nil {
		return WithdrawResult{}, err
	}
	y, err := sub64(e.balanceY, amountY)
	if err != nil {
		return WithdrawResult{}, err
	}
	shares, err := sub64(e.totalShares, sharesToBurn)
	if err != nil {
		return WithdrawResult{}, err
	}

	e.balanceX, e.balanceY, e.totalShares = x, y, shares
	return WithdrawResult{
		WithdrawnX:   amountX,
		WithdrawnY:   amountY,
		BurnedShares: sharesToBurn,
	}, nil
}

// Swap pays amountIn of the given asset into the pool and returns the amount of
// the other asset paid out. The fee is taken from amountIn before pricing, and
// the swap fails when the payout is below minAmountOut.
func (e *Engine) Swap(in Asset, amountIn, minAmountOut uint64) (SwapResult, error) {
	plan, err := e.planSwap(in, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if plan.result.Withdrawn < minAmountOut {
		return SwapResult{}, ErrSlippageLimitExceeded
	}
	e.balanceX, e.balanceY = plan.balanceX, plan.balanceY
	return plan.result, nil
}

// SwapUnchecked is Swap without the minimum-output bound.
func (e *Engine) SwapUnchecked(in Asset, amountIn uint64) (SwapResult, error) {
	plan, err := e.planSwap(in, amountIn)
	if err != nil {
		return SwapResult{}, err
	}
	e.balanceX, e.balanceY = plan.balanceX, plan.balanceY
	return plan.result, nil
}

// QuoteSwap reports what Swap would do without changing the engine.
func (e *Engine) QuoteSwap(in Asset, amountIn, minAmountOut uint64) (SwapResult, State, error) {
	c := e.clone()
	res, err := c.Swap(in, amountIn, minAmountOut)
	if err != nil {
		return SwapResult{}, State{}, err
	}
	return res, c.State(), nil
}

// QuoteDeposit reports what Deposit would do without changing the engine.
func (e *Engine) QuoteDeposit(sharesToMint, maxX, maxY uint64) (DepositResult, State, error) {
	c := e.clone()
	res, err := c.Deposit(sharesToMint, maxX, maxY)
	if err != nil {
		return DepositResult{}, State{}, err
	}
	return res, c.State(), nil
}

// QuoteWithdraw reports what Withdraw would do without changing the engine.
func (e *Engine) QuoteWithdraw(sharesToBurn, minX, minY uint64) (WithdrawResult, State, error) {
	c := e.clone()
	res, err := c.Withdraw(sharesToBurn, minX, minY)
	if err != nil {
		return WithdrawResult{}, State{}, err
	}
	return res, c.State(), nil
}

type swapPlan struct {
	balanceX uint64
	balanceY uint64
	result   SwapResult
}

func (e *Engine) planSwap(in Asset, amountIn uint64) (swapPlan, error) {
	if amountIn == 0 {
		return swapPlan{}, ErrZeroAmount
	}

	effective, err := e.afterFee(amountIn)
	if err != nil {
		return swapPlan{}, err
	}

	var plan swapPlan
	switch in {
	case AssetX:
		if plan.balanceX, err = add64(e.balanceX, effective); err != nil {
			return swapPlan{}, err
		}
		if plan.balanceY, err = NewBalanceAfterSwap(e.balanceX, e.balanceY, effective); err != nil {
			return swapPlan{}, err
		}
		if plan.result.Withdrawn, err = SwapDelta(e.balanceX, e.balanceY, effective); err != nil {
			return swapPlan{}, err
		}
	case AssetY:
		if plan.balanceY, err = add64(e.balanceY, effective); err != nil {
			return swapPlan{}, err
		}
		if plan.balanceX, err = NewBalanceAfterSwap(e.balanceY, e.balanceX, effective); err != nil {
			return swapPlan{}, err
		}
		if plan.result.Withdrawn, err = SwapDelta(e.balanceY, e.balanceX, effective); err != nil {
			return swapPlan{}, err
		}
	default:
		return swapPlan{}, ErrUnknownAsset
	}

	fee, err := sub64(amountIn, effective)
	if err != nil {
		return swapPlan{}, err
	}
	plan.result.Deposited = amountIn
	plan.result.Fee = fee
	return plan, nil
}

// afterFee returns amountIn * (10000 - fee) / 10000.
func (e *Engine) afterFee(amountIn uint64) (uint64, error) {
	keep, err := sub64(MaxFeeBps, uint64(e.feeBps))
	if err != nil {
		return 0, ErrInvalidFeeAmount
	}
	scaled, err := wideMul(wide(amountIn), wide(keep))
	if err != nil {
		return 0, err
	}
	effective, err := wideDiv(scaled, wide(MaxFeeBps))
	if err != nil {
		return 0, err
	}
	return narrow(effective)
}
