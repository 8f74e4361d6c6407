package journal

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"soulsdex/internal/model"
)

var eventNames = []string{"Transfer", "Approval", "LiquidityAdded", "LiquidityRemoved", "Swap", "Sync"}

// EventDecoder decodes journaled token and pool events.
type EventDecoder struct {
	eventsABI   abi.ABI
	topicToName map[string]string
}

// NewEventDecoder builds a decoder for every journaled event.
func NewEventDecoder() (*EventDecoder, error) {
	parsed, err := EventsABI()
	if err != nil {
		return nil, err
	}

	topicToName := make(map[string]string, len(eventNames))
	for _, name := range eventNames {
		topicToName[strings.ToLower(parsed.Events[name].ID.Hex())] = name
	}

	return &EventDecoder{
		eventsABI:   parsed,
		topicToName: topicToName,
	}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.topicToName[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a TypedEvent.
func (d *EventDecoder) Decode(log model.LogRecord, ctx DecodeContext) (*model.TypedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}
	name, ok := d.topicToName[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, fmt.Errorf("unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, fmt.Errorf("invalid emitter address: %s", log.Address)
	}
	emitter := common.HexToAddress(log.Address)

	var meta *model.PoolMeta
	if ctx.PoolMetaCache != nil {
		if m, ok := ctx.PoolMetaCache.Get(emitter); ok {
			meta = &m
		}
	}

	var (
		decoded interface{}
		err     error
	)
	switch name {
	case "Transfer":
		decoded, err = d.decodeTransfer(log)
	case "Approval":
		decoded, err = d.decodeApproval(log)
	case "LiquidityAdded", "LiquidityRemoved":
		decoded, err = d.decodeLiquidity(name, log)
	case "Swap":
		var swap model.SwapEventData
		swap, err = d.decodeSwap(log)
		if err == nil && meta != nil {
			swap.TokenOut = otherToken(*meta, swap.TokenIn)
		}
		decoded = swap
	case "Sync":
		decoded, err = d.decodeSync(log)
	default:
		return nil, fmt.Errorf("unsupported event name: %s", name)
	}
	if err != nil {
		return nil, err
	}
	return buildTypedEvent(log, name, decoded, meta), nil
}

func buildTypedEvent(log model.LogRecord, name string, decoded interface{}, meta *model.PoolMeta) *model.TypedEvent {
	raw := &model.RawLogRef{Topic0: log.Topics[0], Data: log.Data}
	return &model.TypedEvent{
		ChainID:   log.ChainID,
		Sequence:  log.Sequence,
		OpID:      log.OpID,
		LogIndex:  log.LogIndex,
		Address:   log.Address,
		EventName: name,
		Timestamp: log.Timestamp,
		Decoded:   decoded,
		PoolMeta:  meta,
		Raw:       raw,
	}
}

func (d *EventDecoder) decodeTransfer(log model.LogRecord) (model.TransferEventData, error) {
	from, to, value, err := d.decodePair("Transfer", log)
	if err != nil {
		return model.TransferEventData{}, err
	}
	return model.TransferEventData{From: from.Hex(), To: to.Hex(), Value: value.String()}, nil
}

func (d *EventDecoder) decodeApproval(log model.LogRecord) (model.ApprovalEventData, error) {
	owner, spender, value, err := d.decodePair("Approval", log)
	if err != nil {
		return model.ApprovalEventData{}, err
	}
	return model.ApprovalEventData{Owner: owner.Hex(), Spender: spender.Hex(), Value: value.String()}, nil
}

// decodePair handles the ERC-20 shape: two indexed addresses and one value.
func (d *EventDecoder) decodePair(name string, log model.LogRecord) (common.Address, common.Address, *big.Int, error) {
	event := d.eventsABI.Events[name]
	indexed, err := parseIndexedAddresses(event, log.Topics)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	if len(values) != 1 {
		return common.Address{}, common.Address{}, nil, fmt.Errorf("unexpected %s values: %d", strings.ToLower(name), len(values))
	}
	value, err := asBigInt(values[0])
	if err != nil {
		return common.Address{}, common.Address{}, nil, err
	}
	return indexed[0], indexed[1], value, nil
}

func (d *EventDecoder) decodeLiquidity(name string, log model.LogRecord) (model.LiquidityEventData, error) {
	event := d.eventsABI.Events[name]
	indexed, err := parseIndexedAddresses(event, log.Topics)
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	if len(values) != 3 {
		return model.LiquidityEventData{}, fmt.Errorf("unexpected liquidity values: %d", len(values))
	}
	amounts, err := asBigInts(values)
	if err != nil {
		return model.LiquidityEventData{}, err
	}
	return model.LiquidityEventData{
		Provider:  indexed[0].Hex(),
		AmountA:   amounts[0].String(),
		AmountB:   amounts[1].String(),
		Liquidity: amounts[2].String(),
	}, nil
}

func (d *EventDecoder) decodeSwap(log model.LogRecord) (model.SwapEventData, error) {
	event := d.eventsABI.Events["Swap"]
	indexed, err := parseIndexedAddresses(event, log.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 2 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}
	amounts, err := asBigInts(values)
	if err != nil {
		return model.SwapEventData{}, err
	}
	return model.SwapEventData{
		Trader:    indexed[0].Hex(),
		TokenIn:   indexed[1].Hex(),
		AmountIn:  amounts[0].String(),
		AmountOut: amounts[1].String(),
	}, nil
}

func (d *EventDecoder) decodeSync(log model.LogRecord) (model.SyncEventData, error) {
	event := d.eventsABI.Events["Sync"]
	if len(log.Topics) != 1 {
		return model.SyncEventData{}, fmt.Errorf("expected 1 topic, got %d", len(log.Topics))
	}
	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return model.SyncEventData{}, err
	}
	if len(values) != 2 {
		return model.SyncEventData{}, fmt.Errorf("unexpected sync values: %d", len(values))
	}
	reserves, err := asBigInts(values)
	if err != nil {
		return model.SyncEventData{}, err
	}
	return model.SyncEventData{ReserveA: reserves[0].String(), ReserveB: reserves[1].String()}, nil
}

func otherToken(meta model.PoolMeta, tokenIn string) string {
	switch {
	case strings.EqualFold(tokenIn, meta.TokenA):
		return meta.TokenB
	case strings.EqualFold(tokenIn, meta.TokenB):
		return meta.TokenA
	default:
		return ""
	}
}

func parseIndexedAddresses(event abi.Event, topics []string) ([]common.Address, error) {
	hashes, err := parseIndexedTopics(event, topics)
	if err != nil {
		return nil, err
	}
	out := make([]common.Address, 0, len(hashes))
	for _, h := range hashes {
		out = append(out, common.BytesToAddress(h.Bytes()))
	}
	return out, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, v := range values {
		n, err := asBigInt(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}
