package model

import "time"

// PoolWindowMetrics stores aggregated ledger activity for a pool window.
type PoolWindowMetrics struct {
	PoolAddress    string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	DepositCount   uint64
	WithdrawCount  uint64
	VolumeX        string
	VolumeY        string
	FeeX           string
	FeeY           string
	FeeRateX       *string
	FeeRateY       *string
	ReserveX       string
	ReserveY       string
	TotalShares    string
	APR            *string
}
