package model

import "time"

// PoolWindowMetrics stores aggregated activity for one pool window.
type PoolWindowMetrics struct {
	ChainID         uint64
	PoolAddress     string
	WindowSizeSecs  int64
	WindowStart     time.Time
	WindowEnd       time.Time
	SwapCount       uint64
	VolumeA         string
	VolumeB         string
	DepositCount    uint64
	WithdrawCount   uint64
	LiquidityMinted string
	LiquidityBurned string
	ReserveA        *string
	ReserveB        *string
	PriceAB         *string
	FirstSequence   uint64
	LastSequence    uint64
}
