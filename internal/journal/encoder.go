package journal

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"soulsdex/internal/dex"
	"soulsdex/internal/model"
	"soulsdex/internal/token"
)

// Encoder turns core events into log records carrying ABI topics and data.
// Sequencing fields are left for the Recorder.
type Encoder struct {
	abi abi.ABI
}

func NewEncoder() (*Encoder, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, fmt.Errorf("parse events abi: %w", err)
	}
	return &Encoder{abi: parsed}, nil
}

// EncodeToken encodes a ledger Transfer or Approval.
func (e *Encoder) EncodeToken(ev token.Event) (model.LogRecord, error) {
	switch ev.Kind {
	case token.EventTransfer:
		return e.encode(ev.Token, "Transfer", []common.Address{ev.From, ev.To}, ev.Amount)
	case token.EventApproval:
		return e.encode(ev.Token, "Approval", []common.Address{ev.From, ev.To}, ev.Amount)
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported token event: %s", ev.Kind)
	}
}

// EncodePool encodes a pool event.
func (e *Encoder) EncodePool(ev dex.Event) (model.LogRecord, error) {
	switch ev.Kind {
	case dex.EventLiquidityAdded:
		return e.encode(ev.Pool, "LiquidityAdded", []common.Address{ev.Account}, ev.AmountA, ev.AmountB, ev.Liquidity)
	case dex.EventLiquidityRemoved:
		return e.encode(ev.Pool, "LiquidityRemoved", []common.Address{ev.Account}, ev.AmountA, ev.AmountB, ev.Liquidity)
	case dex.EventSwap:
		return e.encode(ev.Pool, "Swap", []common.Address{ev.Account, ev.TokenIn}, ev.AmountIn, ev.AmountOut)
	case dex.EventSync:
		return e.encode(ev.Pool, "Sync", nil, ev.ReserveA, ev.ReserveB)
	default:
		return model.LogRecord{}, fmt.Errorf("unsupported pool event: %s", ev.Kind)
	}
}

func (e *Encoder) encode(emitter common.Address, name string, indexed []common.Address, values ...*uint256.Int) (model.LogRecord, error) {
	event, ok := e.abi.Events[name]
	if !ok {
		return model.LogRecord{}, fmt.Errorf("event %s not in abi", name)
	}

	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		if v == nil {
			args = append(args, new(big.Int))
			continue
		}
		args = append(args, v.ToBig())
	}
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return model.LogRecord{}, fmt.Errorf("pack %s: %w", name, err)
	}

	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, event.ID.Hex())
	for _, addr := range indexed {
		topics = append(topics, common.BytesToHash(addr.Bytes()).Hex())
	}

	return model.LogRecord{
		Address: emitter.Hex(),
		Topics:  topics,
		Data:    hexutil.Encode(data),
	}, nil
}
