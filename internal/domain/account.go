package domain

import (
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

type AccountID string

// WithdrawEpsilon is the smallest balance a withdrawal may leave behind.
var WithdrawEpsilon = decimal.New(1, -8)

var nextRank atomic.Uint64

// Account holds a balance. Its methods are not synchronized: callers take the
// account lock first, and transfers take both locks in rank order.
type Account struct {
	mu      sync.Mutex
	id      AccountID
	rank    uint64
	balance decimal.Decimal
}

func NewAccount(id AccountID) *Account {
	return &Account{id: id, rank: nextRank.Add(1)}
}

func (a *Account) ID() AccountID {
	return a.id
}

// Rank is unique per Account and fixed at construction. Lock order is
// derived from it alone.
func (a *Account) Rank() uint64 {
	return a.rank
}

func (a *Account) Lock() {
	a.mu.Lock()
}

func (a *Account) TryLock() bool {
	return a.mu.TryLock()
}

func (a *Account) Unlock() {
	a.mu.Unlock()
}

func (a *Account) Increase(delta decimal.Decimal) {
	a.balance = a.balance.Add(delta)
}

func (a *Account) Withdraw(delta decimal.Decimal) error {
	if !a.balance.Sub(delta).GreaterThan(WithdrawEpsilon) {
		return ErrInsufficientFunds
	}

	a.balance = a.balance.Sub(delta)
	return nil
}

func (a *Account) TransferTo(to *Account, delta decimal.Decimal) error {
	if !a.balance.GreaterThan(delta) {
		return ErrInsufficientFunds
	}

	to.balance = to.balance.Add(delta)
	a.balance = a.balance.Sub(delta)
	return nil
}

func (a *Account) Balance() decimal.Decimal {
	return a.balance
}
