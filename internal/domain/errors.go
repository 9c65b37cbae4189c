package domain

import "errors"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrInvalidSession    = errors.New("invalid session")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInvalidOperation  = errors.New("invalid operation")
	ErrOperationPending  = errors.New("operation result pending")
	ErrLoginRejected     = errors.New("login rejected")
	ErrUnknownUser       = errors.New("unknown user")
)
