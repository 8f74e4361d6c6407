package model

// Pool is the stored pool record.
type Pool struct {
	ChainID      uint64 `json:"chain_id"`
	Address      string `json:"address"`
	TokenA       string `json:"token_a"`
	TokenB       string `json:"token_b"`
	FirstSeenSeq uint64 `json:"first_seen_seq"`
}
