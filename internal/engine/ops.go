package engine

import (
	"context"
	"fmt"

	"soulsdex/internal/model"
)

type handler func(e *Engine, ctx context.Context, op model.Operation) (map[string]string, error)

type opSpec struct {
	run    handler
	mutate bool
}

var handlers = map[string]opSpec{
	"balanceof":         {run: (*Engine).balanceOf},
	"allowance":         {run: (*Engine).allowance},
	"totalsupply":       {run: (*Engine).totalSupply},
	"transfer":          {run: (*Engine).transfer, mutate: true},
	"approve":           {run: (*Engine).approve, mutate: true},
	"transferfrom":      {run: (*Engine).transferFrom, mutate: true},
	"mintto":            {run: (*Engine).mintTo, mutate: true},
	"transferownership": {run: (*Engine).transferOwnership, mutate: true},
	"addliquidity":      {run: (*Engine).addLiquidity, mutate: true},
	"removeliquidity":   {run: (*Engine).removeLiquidity, mutate: true},
	"swap":              {run: (*Engine).swap, mutate: true},
	"getreserves":       {run: (*Engine).getReserves},
	"getliquidity":      {run: (*Engine).getLiquidity},
	"quote":             {run: (*Engine).quote},
}

func (e *Engine) dispatch(ctx context.Context, op model.Operation) (map[string]string, bool, error) {
	h, ok := handlers[normalizeOp(op.Op)]
	if !ok {
		return nil, false, fmt.Errorf("unknown op %q: %w", op.Op, ErrBadRequest)
	}
	outputs, err := h.run(e, ctx, op)
	return outputs, h.mutate, err
}

func (e *Engine) balanceOf(_ context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	account, err := e.address("account", op.Account)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": ledger.BalanceOf(account).Dec()}, nil
}

func (e *Engine) allowance(_ context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	owner, err := e.address("owner", op.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := e.address("spender", op.Spender)
	if err != nil {
		return nil, err
	}
	return map[string]string{"allowance": ledger.Allowance(owner, spender).Dec()}, nil
}

func (e *Engine) totalSupply(_ context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	return map[string]string{"total_supply": ledger.TotalSupply().Dec()}, nil
}

func (e *Engine) transfer(ctx context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	to, err := e.address("to", op.To)
	if err != nil {
		return nil, err
	}
	amt, err := amount("amount", op.Amount)
	if err != nil {
		return nil, err
	}
	return nil, ledger.Transfer(ctx, caller, to, amt)
}

func (e *Engine) approve(ctx context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	spender, err := e.address("spender", op.Spender)
	if err != nil {
		return nil, err
	}
	amt, err := amount("amount", op.Amount)
	if err != nil {
		return nil, err
	}
	return nil, ledger.Approve(ctx, caller, spender, amt)
}

func (e *Engine) transferFrom(ctx context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	from, err := e.signer("from", op.From)
	if err != nil {
		return nil, err
	}
	to, err := e.address("to", op.To)
	if err != nil {
		return nil, err
	}
	amt, err := amount("amount", op.Amount)
	if err != nil {
		return nil, err
	}
	return nil, ledger.TransferFrom(ctx, caller, from, to, amt)
}

func (e *Engine) mintTo(ctx context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	to, err := e.address("to", op.To)
	if err != nil {
		return nil, err
	}
	amt, err := amount("amount", op.Amount)
	if err != nil {
		return nil, err
	}
	return nil, ledger.Mint(ctx, caller, to, amt)
}

func (e *Engine) transferOwnership(ctx context.Context, op model.Operation) (map[string]string, error) {
	ledger, err := e.ledger(op.Token)
	if err != nil {
		return nil, err
	}
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	to, err := e.address("to", op.To)
	if err != nil {
		return nil, err
	}
	if err := ledger.TransferOwnership(ctx, caller, to); err != nil {
		return nil, err
	}
	return map[string]string{"owner": ledger.Owner().Hex()}, nil
}

func (e *Engine) addLiquidity(ctx context.Context, op model.Operation) (map[string]string, error) {
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	amountA, err := amount("amount_a", op.AmountA)
	if err != nil {
		return nil, err
	}
	amountB, err := amount("amount_b", op.AmountB)
	if err != nil {
		return nil, err
	}
	minted, err := e.pool.AddLiquidity(ctx, caller, amountA, amountB)
	if err != nil {
		return nil, err
	}
	return map[string]string{"liquidity": minted.Dec()}, nil
}

func (e *Engine) removeLiquidity(ctx context.Context, op model.Operation) (map[string]string, error) {
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	liquidity, err := amount("liquidity", op.Liquidity)
	if err != nil {
		return nil, err
	}
	amountA, amountB, err := e.pool.RemoveLiquidity(ctx, caller, liquidity)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount_a": amountA.Dec(), "amount_b": amountB.Dec()}, nil
}

func (e *Engine) swap(ctx context.Context, op model.Operation) (map[string]string, error) {
	caller, err := e.signer("caller", op.Caller)
	if err != nil {
		return nil, err
	}
	tokenIn, err := e.address("token_in", op.TokenIn)
	if err != nil {
		return nil, err
	}
	amountIn, err := amount("amount_in", op.AmountIn)
	if err != nil {
		return nil, err
	}
	out, err := e.pool.Swap(ctx, caller, tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount_out": out.Dec()}, nil
}

func (e *Engine) getReserves(_ context.Context, _ model.Operation) (map[string]string, error) {
	reserveA, reserveB := e.pool.GetReserves()
	return map[string]string{"reserve_a": reserveA.Dec(), "reserve_b": reserveB.Dec()}, nil
}

func (e *Engine) getLiquidity(_ context.Context, op model.Operation) (map[string]string, error) {
	field, value := "provider", op.Provider
	if value == "" && op.Account != "" {
		field, value = "account", op.Account
	}
	provider, err := e.address(field, value)
	if err != nil {
		return nil, err
	}
	return map[string]string{"liquidity": e.pool.GetLiquidity(provider).Dec()}, nil
}

func (e *Engine) quote(_ context.Context, op model.Operation) (map[string]string, error) {
	tokenIn, err := e.address("token_in", op.TokenIn)
	if err != nil {
		return nil, err
	}
	amountIn, err := amount("amount_in", op.AmountIn)
	if err != nil {
		return nil, err
	}
	out, err := e.pool.Quote(tokenIn, amountIn)
	if err != nil {
		return nil, err
	}
	return map[string]string{"amount_out": out.Dec()}, nil
}
