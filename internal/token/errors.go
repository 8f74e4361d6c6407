package token

import "errors"

var (
	ErrInvalidAmount         = errors.New("token: invalid amount")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrUnauthorized          = errors.New("token: unauthorized")
	ErrSupplyMismatch        = errors.New("token: total supply does not match balances")
)
