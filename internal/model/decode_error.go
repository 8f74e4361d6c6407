package model

// DecodeError records a decode failure for a journal line.
type DecodeError struct {
	ChainID  uint64 `json:"chain_id"`
	Sequence uint64 `json:"sequence"`
	OpID     string `json:"op_id"`
	LogIndex uint64 `json:"log_index"`
	Address  string `json:"address"`
	Topic0   string `json:"topic0"`
	Error    string `json:"error"`
}
