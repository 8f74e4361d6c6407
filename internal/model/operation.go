package model

// Operation is one line of an operations file. Which fields are read
// depends on Op.
type Operation struct {
	Op        string `json:"op"`
	Caller    string `json:"caller,omitempty"`
	Token     string `json:"token,omitempty"`
	Account   string `json:"account,omitempty"`
	Owner     string `json:"owner,omitempty"`
	Spender   string `json:"spender,omitempty"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Provider  string `json:"provider,omitempty"`
	TokenIn   string `json:"token_in,omitempty"`
	Amount    string `json:"amount,omitempty"`
	AmountA   string `json:"amount_a,omitempty"`
	AmountB   string `json:"amount_b,omitempty"`
	AmountIn  string `json:"amount_in,omitempty"`
	Liquidity string `json:"liquidity,omitempty"`
	Timestamp uint64 `json:"ts,omitempty"`
}

// OpResult is the outcome of applying one Operation.
type OpResult struct {
	Sequence  uint64            `json:"sequence"`
	OpID      string            `json:"op_id"`
	Op        string            `json:"op"`
	Caller    string            `json:"caller,omitempty"`
	OK        bool              `json:"ok"`
	Error     string            `json:"error,omitempty"`
	ErrorKind string            `json:"error_kind,omitempty"`
	Outputs   map[string]string `json:"outputs,omitempty"`
	Timestamp uint64            `json:"timestamp"`
}
