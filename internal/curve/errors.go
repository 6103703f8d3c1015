package curve

import "errors"

var (
	// ErrZeroBalance is returned when a reserve is zero where a priced pool is required.
	ErrZeroBalance = errors.New("zero balance")
	// ErrZeroAmount is returned when an operation is asked to move nothing.
	ErrZeroAmount = errors.New("zero amount")
	// ErrInvalidPrecision is returned when 10^digits does not fit the precision width.
	ErrInvalidPrecision = errors.New("invalid precision")
	ErrOverflow         = errors.New("arithmetic overflow")
	ErrUnderflow        = errors.New("arithmetic underflow")
	// ErrInvalidFeeAmount is returned for fee rates above 10000 basis points.
	ErrInvalidFeeAmount = errors.New("invalid fee amount")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the held reserve.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrSlippageLimitExceeded is returned when a computed amount violates the caller's bound.
	ErrSlippageLimitExceeded = errors.New("slippage limit exceeded")
	ErrUnknownAsset          = errors.New("unknown asset")
)
