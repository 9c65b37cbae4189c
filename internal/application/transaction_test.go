package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/atm-server/internal/adapters/storage/memory"
	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fundedSession(t *testing.T, storage *memory.Storage, id domain.SessionID, userID string, amount int64) *domain.Session {
	t.Helper()

	session := storage.CreateSessionByID(id, userID, domain.Route(fmt.Sprintf("route-%d", id)), nil)
	if amount > 0 {
		account := session.Account()
		account.Lock()
		account.Increase(decimal.NewFromInt(amount))
		account.Unlock()
	}

	return session
}

func balanceOf(account *domain.Account) decimal.Decimal {
	account.Lock()
	defer account.Unlock()
	return account.Balance()
}

func newOperation(t *testing.T, kind domain.OperationKind, primary, secondary *domain.Session, amount int64) *domain.Operation {
	t.Helper()

	op, err := domain.NewOperation(kind, primary, secondary, decimal.NewFromInt(amount))
	require.NoError(t, err)
	return op
}

func waitAll(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("transactions did not finish, possible deadlock")
	}
}

func TestTransactionExecuteAppliesOperations(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	b := fundedSession(t, storage, 2, "bob", 0)

	transfer := NewTransaction(newOperation(t, domain.OperationTransferTo, a, storage.LookupSessionProxyForAccount("bob"), 40), storage, nil)
	_, err := transfer.Execute(context.Background(), 1)
	require.NoError(t, err)

	withdraw := NewTransaction(newOperation(t, domain.OperationWithdraw, a, nil, 61), storage, nil)
	_, err = withdraw.Execute(context.Background(), 1)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.False(t, IsTemporary(err))

	get := NewTransaction(newOperation(t, domain.OperationGetValue, a, nil, 0), storage, nil)
	value, err := get.Execute(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(60).Equal(value))
	assert.True(t, decimal.NewFromInt(40).Equal(balanceOf(b.Account())))
}

func TestTransactionWithdrawExactBalanceFails(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)

	txn := NewTransaction(newOperation(t, domain.OperationWithdraw, a, nil, 100), storage, nil)
	_, err := txn.Execute(context.Background(), 1)

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, decimal.NewFromInt(100).Equal(balanceOf(a.Account())))
}

func TestTransactionOppositeTransfersConserveTotal(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 1000)
	b := fundedSession(t, storage, 2, "bob", 1000)
	toB := storage.LookupSessionProxyForAccount("bob")
	toA := storage.LookupSessionProxyForAccount("alice")

	const rounds = 500
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		from, to := a, toB
		if i%2 == 1 {
			from, to = b, toA
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				txn := NewTransaction(newOperation(t, domain.OperationTransferTo, from, to, 1), storage, nil)
				_, _ = txn.Execute(context.Background(), 1)
			}
		}()
	}
	waitAll(t, &wg)

	total := balanceOf(a.Account()).Add(balanceOf(b.Account()))
	assert.True(t, decimal.NewFromInt(2000).Equal(total), "total = %s", total)
}

func TestTransactionSelfTransferAlongsidePairTransfers(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 500)
	b := fundedSession(t, storage, 2, "bob", 500)
	self := storage.LookupSessionProxyForAccount("alice")
	toB := storage.LookupSessionProxyForAccount("bob")
	toA := storage.LookupSessionProxyForAccount("alice")

	var wg sync.WaitGroup
	run := func(from, to *domain.Session) {
		defer wg.Done()
		for j := 0; j < 300; j++ {
			txn := NewTransaction(newOperation(t, domain.OperationTransferTo, from, to, 3), storage, nil)
			_, _ = txn.Execute(context.Background(), 1)
		}
	}
	wg.Add(3)
	go run(a, self)
	go run(a, toB)
	go run(b, toA)
	waitAll(t, &wg)

	total := balanceOf(a.Account()).Add(balanceOf(b.Account()))
	assert.True(t, decimal.NewFromInt(1000).Equal(total), "total = %s", total)
	assert.False(t, balanceOf(a.Account()).IsNegative())
}

func TestTransactionLockWaitReportsTemporaryContention(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	b := fundedSession(t, storage, 2, "bob", 100)

	// Hold the lower ranked account so the first lock is taken and released.
	lower, higher := a.Account(), b.Account()
	if lower.Rank() > higher.Rank() {
		lower, higher = higher, lower
	}
	lower.Lock()

	txn := NewTransaction(newOperation(t, domain.OperationTransferTo, a, storage.LookupSessionProxyForAccount("bob"), 10), storage, nil)
	txn.lockWait = 5 * time.Millisecond

	_, err := txn.Execute(context.Background(), 1)
	require.ErrorIs(t, err, ErrLockContention)
	assert.True(t, IsTemporary(err))

	require.True(t, higher.TryLock(), "first lock must be released on failure")
	higher.Unlock()
	lower.Unlock()

	assert.True(t, decimal.NewFromInt(100).Equal(balanceOf(a.Account())))
}

type vanishingAccounts struct {
	*memory.Storage
	lookups atomic.Int32
}

func (v *vanishingAccounts) LookupAccount(id domain.AccountID) (*domain.Account, error) {
	v.lookups.Add(1)
	return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
}

var _ ports.Storage = (*vanishingAccounts)(nil)

func TestTransactionResolveMissFailsClosed(t *testing.T) {
	t.Parallel()

	storage := &vanishingAccounts{Storage: memory.NewStorage()}
	a := fundedSession(t, storage.Storage, 1, "alice", 100)

	txn := NewTransaction(newOperation(t, domain.OperationIncrease, a, nil, 10), storage, nil)
	_, err := txn.Execute(context.Background(), 1)

	require.ErrorIs(t, err, domain.ErrInvalidSession)
	assert.False(t, IsTemporary(err))
}

func TestTransactionValidationRunsUnderLock(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)

	injected := errors.New("injected")
	txn := NewTransaction(newOperation(t, domain.OperationIncrease, a, nil, 10), storage, nil)
	txn.validate = func(op *domain.Operation, attempt int) error {
		assert.False(t, op.Primary().Account().TryLock())
		return temporaryError(op.Kind(), injected)
	}

	_, err := txn.Execute(context.Background(), 1)
	require.ErrorIs(t, err, injected)
	assert.True(t, IsTemporary(err))
	assert.True(t, decimal.NewFromInt(100).Equal(balanceOf(a.Account())))
}

func TestTransactionFinishDeliversOnce(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 0)

	var calls atomic.Int32
	callback := ports.ResultCallbackFunc(func(*domain.Operation) { calls.Add(1) })
	txn := NewTransaction(newOperation(t, domain.OperationGetValue, a, nil, 0), storage, callback)

	assert.True(t, txn.Finish(decimal.NewFromInt(5), nil))
	assert.False(t, txn.Finish(decimal.Zero, errors.New("late")))
	assert.Equal(t, int32(1), calls.Load())

	value, err := txn.Operation().Result()
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5).Equal(value))
}

func TestTransactionErrorMessage(t *testing.T) {
	t.Parallel()

	err := temporaryError(domain.OperationWithdraw, ErrLockContention)
	assert.Equal(t, "withdraw transaction: account lock contention", err.Error())
	assert.False(t, IsTemporary(errors.New("plain")))
}
