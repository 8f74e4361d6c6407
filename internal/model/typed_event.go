package model

// TypedEvent is a decoded journal event.
type TypedEvent struct {
	ChainID   uint64      `json:"chain_id"`
	Sequence  uint64      `json:"sequence"`
	OpID      string      `json:"op_id"`
	LogIndex  uint64      `json:"log_index"`
	Address   string      `json:"address"`
	EventName string      `json:"event_name"`
	Timestamp uint64      `json:"timestamp"`
	Decoded   interface{} `json:"decoded"`
	PoolMeta  *PoolMeta   `json:"pool_meta,omitempty"`
	Raw       *RawLogRef  `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}
