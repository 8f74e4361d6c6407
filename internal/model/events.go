package model

// TransferEventData is the decoded ERC-20 Transfer payload.
type TransferEventData struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

// ApprovalEventData is the decoded ERC-20 Approval payload.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// LiquidityEventData is the decoded LiquidityAdded / LiquidityRemoved payload.
type LiquidityEventData struct {
	Provider  string `json:"provider"`
	AmountA   string `json:"amount_a"`
	AmountB   string `json:"amount_b"`
	Liquidity string `json:"liquidity"`
}

// SwapEventData is the decoded Swap payload.
type SwapEventData struct {
	Trader    string `json:"trader"`
	TokenIn   string `json:"token_in"`
	TokenOut  string `json:"token_out,omitempty"`
	AmountIn  string `json:"amount_in"`
	AmountOut string `json:"amount_out"`
}

// SyncEventData carries pool reserves after a mutation.
type SyncEventData struct {
	ReserveA string `json:"reserve_a"`
	ReserveB string `json:"reserve_b"`
}
