package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/shopspring/decimal"
)

const lockPollInterval = 100 * time.Microsecond

// selfTransferMu is only taken when a transfer names the same account twice.
var selfTransferMu sync.Mutex

// Transaction executes one Operation. Account locks are always taken in
// descending rank order, so two transactions over the same pair of accounts
// cannot deadlock whichever side initiates.
type Transaction struct {
	op       *domain.Operation
	accounts ports.AccountDirectory
	callback ports.ResultCallback
	lockWait time.Duration

	// validate runs while the locks are held. Only set by tests.
	validate func(op *domain.Operation, attempt int) error
}

func NewTransaction(op *domain.Operation, accounts ports.AccountDirectory, callback ports.ResultCallback) *Transaction {
	return &Transaction{op: op, accounts: accounts, callback: callback}
}

func (t *Transaction) Operation() *domain.Operation {
	return t.op
}

// Execute runs a single attempt. Accounts are resolved from the directory on
// every attempt and no lock outlives the call.
func (t *Transaction) Execute(ctx context.Context, attempt int) (decimal.Decimal, error) {
	a1, a2, err := t.resolve()
	if err != nil {
		return decimal.Zero, err
	}

	release, err := t.lock(ctx, a1, a2)
	if err != nil {
		return decimal.Zero, err
	}
	defer release()

	if t.validate != nil {
		if err := t.validate(t.op, attempt); err != nil {
			return decimal.Zero, err
		}
	}

	return t.apply(a1, a2)
}

// Finish stores the outcome and notifies the callback. It has no effect once
// the operation already holds a result.
func (t *Transaction) Finish(value decimal.Decimal, err error) bool {
	if !t.op.Complete(value, err) {
		return false
	}

	if t.callback != nil {
		t.callback.OnOperationResult(t.op)
	}

	return true
}

func (t *Transaction) resolve() (*domain.Account, *domain.Account, error) {
	a1, err := t.lookup(t.op.Primary())
	if err != nil {
		return nil, nil, err
	}

	if t.op.Kind() != domain.OperationTransferTo {
		return a1, nil, nil
	}

	a2, err := t.lookup(t.op.Secondary())
	if err != nil {
		return nil, nil, err
	}

	return a1, a2, nil
}

func (t *Transaction) lookup(session *domain.Session) (*domain.Account, error) {
	id := session.Account().ID()

	account, err := t.accounts.LookupAccount(id)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, permanentError(t.op.Kind(), fmt.Errorf("%w: account %q is gone", domain.ErrInvalidSession, id))
		}
		return nil, permanentError(t.op.Kind(), fmt.Errorf("resolve account %q: %w", id, err))
	}

	return account, nil
}

func (t *Transaction) lock(ctx context.Context, a1, a2 *domain.Account) (func(), error) {
	if a2 == nil {
		if err := t.acquire(ctx, a1); err != nil {
			return nil, err
		}
		return a1.Unlock, nil
	}

	switch {
	case a1.Rank() > a2.Rank():
		return t.acquirePair(ctx, a1, a2)
	case a1.Rank() < a2.Rank():
		return t.acquirePair(ctx, a2, a1)
	default:
		selfTransferMu.Lock()
		if err := t.acquire(ctx, a1); err != nil {
			selfTransferMu.Unlock()
			return nil, err
		}
		return func() {
			a1.Unlock()
			selfTransferMu.Unlock()
		}, nil
	}
}

func (t *Transaction) acquirePair(ctx context.Context, first, second *domain.Account) (func(), error) {
	if err := t.acquire(ctx, first); err != nil {
		return nil, err
	}

	if err := t.acquire(ctx, second); err != nil {
		first.Unlock()
		return nil, err
	}

	return func() {
		second.Unlock()
		first.Unlock()
	}, nil
}

// acquire blocks until the account lock is held. With a lock wait bound, a
// lock that stays busy past the bound is reported as temporary contention.
func (t *Transaction) acquire(ctx context.Context, account *domain.Account) error {
	if t.lockWait <= 0 {
		account.Lock()
		return nil
	}

	if account.TryLock() {
		return nil
	}

	deadline := time.NewTimer(t.lockWait)
	defer deadline.Stop()
	poll := time.NewTicker(lockPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return permanentError(t.op.Kind(), ctx.Err())
		case <-deadline.C:
			return temporaryError(t.op.Kind(), fmt.Errorf("%w: account %q", ErrLockContention, account.ID()))
		case <-poll.C:
			if account.TryLock() {
				return nil
			}
		}
	}
}

func (t *Transaction) apply(a1, a2 *domain.Account) (decimal.Decimal, error) {
	switch t.op.Kind() {
	case domain.OperationIncrease:
		a1.Increase(t.op.Amount())
	case domain.OperationWithdraw:
		if err := a1.Withdraw(t.op.Amount()); err != nil {
			return decimal.Zero, permanentError(t.op.Kind(), fmt.Errorf("withdraw from %q: %w", a1.ID(), err))
		}
	case domain.OperationTransferTo:
		if err := a1.TransferTo(a2, t.op.Amount()); err != nil {
			return decimal.Zero, permanentError(t.op.Kind(), fmt.Errorf("transfer from %q to %q: %w", a1.ID(), a2.ID(), err))
		}
	case domain.OperationGetValue:
		return a1.Balance(), nil
	default:
		return decimal.Zero, permanentError(t.op.Kind(), domain.ErrInvalidOperation)
	}

	return decimal.Zero, nil
}
