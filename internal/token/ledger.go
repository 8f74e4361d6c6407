package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Config describes a ledger at creation time.
type Config struct {
	Address       common.Address
	Name          string
	Symbol        string
	Decimals      uint8
	Owner         common.Address
	InitialHolder common.Address
	InitialSupply *uint256.Int
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger is a fungible token: balances, allowances and an owner that may mint.
type Ledger struct {
	mu sync.RWMutex

	address  common.Address
	name     string
	symbol   string
	decimals uint8
	owner    common.Address

	balances    map[common.Address]uint256.Int
	allowances  map[allowanceKey]uint256.Int
	totalSupply uint256.Int

	listeners []Listener
	logger    *zap.Logger
}

// New creates a ledger and credits the initial supply to the initial holder
// (the owner when unset).
func New(cfg Config, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Address == (common.Address{}) {
		return nil, fmt.Errorf("token address is required")
	}
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("token owner is required")
	}
	l := &Ledger{
		address:    cfg.Address,
		name:       cfg.Name,
		symbol:     cfg.Symbol,
		decimals:   cfg.Decimals,
		owner:      cfg.Owner,
		balances:   make(map[common.Address]uint256.Int),
		allowances: make(map[allowanceKey]uint256.Int),
		logger:     logger.With(zap.String("token", cfg.Symbol)),
	}
	if cfg.InitialSupply != nil && !cfg.InitialSupply.IsZero() {
		holder := cfg.InitialHolder
		if holder == (common.Address{}) {
			holder = cfg.Owner
		}
		l.balances[holder] = *cfg.InitialSupply
		l.totalSupply = *cfg.InitialSupply
	}
	return l, nil
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Name() string            { return l.name }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

// BalanceOf returns a copy of the account balance. Unknown accounts hold 0.
func (l *Ledger) BalanceOf(account common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal := l.balances[account]
	return new(uint256.Int).Set(&bal)
}

func (l *Ledger) Allowance(owner, spender common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	amt := l.allowances[allowanceKey{owner: owner, spender: spender}]
	return new(uint256.Int).Set(&amt)
}

func (l *Ledger) TotalSupply() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(uint256.Int).Set(&l.totalSupply)
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	err := l.move(from, to, amount)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	l.logger.Debug("transfer",
		zap.String("from", from.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()),
	)
	l.emit(ctx, Event{Kind: EventTransfer, Token: l.address, From: from, To: to, Amount: amount.Clone()})
	return nil
}

// Approve sets the spender's allowance over owner's balance. The previous
// value is replaced, not added to.
func (l *Ledger) Approve(ctx context.Context, owner, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return fmt.Errorf("nil approval: %w", ErrInvalidAmount)
	}
	if owner == (common.Address{}) || spender == (common.Address{}) {
		return fmt.Errorf("approve with zero address: %w", ErrInvalidAmount)
	}

	l.mu.Lock()
	key := allowanceKey{owner: owner, spender: spender}
	if amount.IsZero() {
		delete(l.allowances, key)
	} else {
		l.allowances[key] = *amount
	}
	l.mu.Unlock()

	l.logger.Debug("approve",
		zap.String("owner", owner.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("amount", amount.Dec()),
	)
	l.emit(ctx, Event{Kind: EventApproval, Token: l.address, From: owner, To: spender, Amount: amount.Clone()})
	return nil
}

// TransferFrom lets spender move amount out of owner's balance against
// the allowance owner granted it.
func (l *Ledger) TransferFrom(ctx context.Context, spender, owner, to common.Address, amount *uint256.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}

	l.mu.Lock()
	key := allowanceKey{owner: owner, spender: spender}
	allowed := l.allowances[key]
	if allowed.Lt(amount) {
		l.mu.Unlock()
		return fmt.Errorf("allowance %s < %s: %w", allowed.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}
	if err := l.move(owner, to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	allowed.Sub(&allowed, amount)
	if allowed.IsZero() {
		delete(l.allowances, key)
	} else {
		l.allowances[key] = allowed
	}
	l.mu.Unlock()

	l.logger.Debug("transfer from",
		zap.String("spender", spender.Hex()),
		zap.String("from", owner.Hex()),
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()),
	)
	l.emit(ctx, Event{Kind: EventTransfer, Token: l.address, From: owner, To: to, Amount: amount.Clone()})
	return nil
}

// CheckTransferFrom reports the error TransferFrom would return right now,
// without changing anything.
func (l *Ledger) CheckTransferFrom(spender, owner common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("zero transfer: %w", ErrInvalidAmount)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	allowed := l.allowances[allowanceKey{owner: owner, spender: spender}]
	if allowed.Lt(amount) {
		return fmt.Errorf("allowance %s < %s: %w", allowed.Dec(), amount.Dec(), ErrInsufficientAllowance)
	}
	bal := l.balances[owner]
	if bal.Lt(amount) {
		return fmt.Errorf("balance %s < %s: %w", bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	return nil
}

// UndoTransferFrom reverses a completed TransferFrom: amount goes back from
// `from` to owner and spender's allowance is restored.
func (l *Ledger) UndoTransferFrom(ctx context.Context, spender, owner, from common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	if err := l.move(from, owner, amount); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("undo transfer from: %w", err)
	}
	key := allowanceKey{owner: owner, spender: spender}
	allowed := l.allowances[key]
	if _, overflow := allowed.AddOverflow(&allowed, amount); overflow {
		allowed.SetAllOne()
	}
	l.allowances[key] = allowed
	l.mu.Unlock()

	l.logger.Debug("undo transfer from",
		zap.String("spender", spender.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("amount", amount.Dec()),
	)
	l.emit(ctx, Event{Kind: EventTransfer, Token: l.address, From: from, To: owner, Amount: amount.Clone()})
	return nil
}

// Mint creates amount new tokens for `to`. Only the owner may mint.
func (l *Ledger) Mint(ctx context.Context, caller, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	if err := l.requireOwnerLocked(caller); err != nil {
		l.mu.Unlock()
		return err
	}
	if err := checkTransfer(to, amount); err != nil {
		l.mu.Unlock()
		return err
	}
	var supply uint256.Int
	if _, overflow := supply.AddOverflow(&l.totalSupply, amount); overflow {
		l.mu.Unlock()
		return fmt.Errorf("mint %s overflows supply: %w", amount.Dec(), ErrInvalidAmount)
	}
	bal := l.balances[to]
	bal.Add(&bal, amount)
	l.balances[to] = bal
	l.totalSupply = supply
	l.mu.Unlock()

	l.logger.Debug("mint",
		zap.String("to", to.Hex()),
		zap.String("amount", amount.Dec()),
	)
	l.emit(ctx, Event{Kind: EventTransfer, Token: l.address, From: common.Address{}, To: to, Amount: amount.Clone()})
	return nil
}

// CheckSupply verifies that total supply equals the sum of all balances.
func (l *Ledger) CheckSupply() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var sum uint256.Int
	for _, bal := range l.balances {
		if _, overflow := sum.AddOverflow(&sum, &bal); overflow {
			return fmt.Errorf("%s balances overflow: %w", l.symbol, ErrSupplyMismatch)
		}
	}
	if !sum.Eq(&l.totalSupply) {
		return fmt.Errorf("%s supply %s, balances %s: %w", l.symbol, l.totalSupply.Dec(), sum.Dec(), ErrSupplyMismatch)
	}
	return nil
}

// move must be called with mu held.
func (l *Ledger) move(from, to common.Address, amount *uint256.Int) error {
	bal := l.balances[from]
	if bal.Lt(amount) {
		return fmt.Errorf("balance %s < %s: %w", bal.Dec(), amount.Dec(), ErrInsufficientBalance)
	}
	bal.Sub(&bal, amount)
	l.setBalance(from, bal)

	dst := l.balances[to]
	dst.Add(&dst, amount)
	l.setBalance(to, dst)
	return nil
}

func (l *Ledger) setBalance(account common.Address, bal uint256.Int) {
	if bal.IsZero() {
		delete(l.balances, account)
		return
	}
	l.balances[account] = bal
}

func checkTransfer(to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return fmt.Errorf("zero transfer: %w", ErrInvalidAmount)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("transfer to zero address: %w", ErrInvalidAmount)
	}
	return nil
}
