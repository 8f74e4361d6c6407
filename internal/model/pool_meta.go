package model

// PoolMeta identifies the two tokens a pool trades.
type PoolMeta struct {
	TokenA  string `json:"token_a"`
	TokenB  string `json:"token_b"`
	SymbolA string `json:"symbol_a,omitempty"`
	SymbolB string `json:"symbol_b,omitempty"`
}
