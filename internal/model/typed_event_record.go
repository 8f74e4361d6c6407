package model

import "encoding/json"

// TypedEventRecord is the JSON representation used for aggregation.
type TypedEventRecord struct {
	ChainID   uint64          `json:"chain_id"`
	Sequence  uint64          `json:"sequence"`
	OpID      string          `json:"op_id"`
	LogIndex  uint64          `json:"log_index"`
	Address   string          `json:"address"`
	EventName string          `json:"event_name"`
	Timestamp uint64          `json:"timestamp"`
	Decoded   json.RawMessage `json:"decoded"`
	PoolMeta  *PoolMeta       `json:"pool_meta,omitempty"`
	Raw       *RawLogRef      `json:"raw,omitempty"`
}
