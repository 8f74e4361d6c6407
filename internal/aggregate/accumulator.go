package aggregate

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"soulsdex/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	ChainID         uint64
	PoolAddress     string
	PoolMeta        model.PoolMeta
	WindowStart     uint64
	WindowEnd       uint64
	SwapCount       uint64
	VolumeA         *big.Int
	VolumeB         *big.Int
	DepositCount    uint64
	WithdrawCount   uint64
	LiquidityMinted *big.Int
	LiquidityBurned *big.Int
	ReserveA        *big.Int
	ReserveB        *big.Int
	FirstSeq        uint64
	LastSeq         uint64
	LastTS          uint64
}

func NewAccumulator(record model.TypedEventRecord, windowStart, windowEnd uint64) *Accumulator {
	acc := &Accumulator{
		ChainID:         record.ChainID,
		PoolAddress:     record.Address,
		WindowStart:     windowStart,
		WindowEnd:       windowEnd,
		VolumeA:         big.NewInt(0),
		VolumeB:         big.NewInt(0),
		LiquidityMinted: big.NewInt(0),
		LiquidityBurned: big.NewInt(0),
		FirstSeq:        record.Sequence,
		LastSeq:         record.Sequence,
		LastTS:          record.Timestamp,
	}
	if record.PoolMeta != nil {
		acc.PoolMeta = *record.PoolMeta
	}
	return acc
}

func (a *Accumulator) AddEvent(record model.TypedEventRecord) error {
	if record.Timestamp >= a.LastTS {
		a.LastTS = record.Timestamp
	}
	if record.Sequence > a.LastSeq {
		a.LastSeq = record.Sequence
	}
	if record.Sequence < a.FirstSeq {
		a.FirstSeq = record.Sequence
	}

	switch strings.ToLower(record.EventName) {
	case "swap":
		var swap model.SwapEventData
		if err := json.Unmarshal(record.Decoded, &swap); err != nil {
			return fmt.Errorf("decode swap: %w", err)
		}
		return a.applySwap(swap)
	case "liquidityadded", "liquidityremoved":
		var liq model.LiquidityEventData
		if err := json.Unmarshal(record.Decoded, &liq); err != nil {
			return fmt.Errorf("decode liquidity: %w", err)
		}
		return a.applyLiquidity(strings.ToLower(record.EventName) == "liquidityadded", liq)
	case "sync":
		var sync model.SyncEventData
		if err := json.Unmarshal(record.Decoded, &sync); err != nil {
			return fmt.Errorf("decode sync: %w", err)
		}
		return a.applySync(sync)
	default:
		return nil
	}
}

func (a *Accumulator) applySwap(swap model.SwapEventData) error {
	amountIn, err := parseBigInt(swap.AmountIn)
	if err != nil {
		return err
	}
	switch {
	case strings.EqualFold(swap.TokenIn, a.PoolMeta.TokenA):
		a.VolumeA.Add(a.VolumeA, amountIn)
	case strings.EqualFold(swap.TokenIn, a.PoolMeta.TokenB):
		a.VolumeB.Add(a.VolumeB, amountIn)
	default:
		return fmt.Errorf("swap token %s not in pool %s", swap.TokenIn, a.PoolAddress)
	}
	a.SwapCount++
	return nil
}

func (a *Accumulator) applyLiquidity(added bool, liq model.LiquidityEventData) error {
	units, err := parseBigInt(liq.Liquidity)
	if err != nil {
		return err
	}
	if added {
		a.DepositCount++
		a.LiquidityMinted.Add(a.LiquidityMinted, units)
		return nil
	}
	a.WithdrawCount++
	a.LiquidityBurned.Add(a.LiquidityBurned, units)
	return nil
}

// applySync keeps the latest reserves seen in the window.
func (a *Accumulator) applySync(sync model.SyncEventData) error {
	reserveA, err := parseBigInt(sync.ReserveA)
	if err != nil {
		return err
	}
	reserveB, err := parseBigInt(sync.ReserveB)
	if err != nil {
		return err
	}
	a.ReserveA = reserveA
	a.ReserveB = reserveB
	return nil
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	return parsed, nil
}
