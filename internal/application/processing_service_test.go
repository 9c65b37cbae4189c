package application

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bnema/atm-server/internal/adapters/storage/memory"
	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/bnema/atm-server/internal/ports/mocks"
	"github.com/bnema/atm-server/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type deliveries struct {
	count atomic.Int32
}

func (d *deliveries) OnOperationResult(*domain.Operation) {
	d.count.Add(1)
}

func startService(t *testing.T, cfg ProcessingConfig, storage ports.Storage, callback ports.ResultCallback, opts ...ProcessingOption) *ProcessingService {
	t.Helper()

	opts = append([]ProcessingOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	service := NewProcessingService(cfg, storage, nil, callback, opts...)
	service.Start(context.Background())
	t.Cleanup(func() { service.Stop(context.Background()) })

	return service
}

func awaitResult(t *testing.T, op *domain.Operation) (decimal.Decimal, error) {
	t.Helper()

	select {
	case <-op.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("%s operation was never answered", op.Kind())
	}

	return op.Result()
}

func TestProcessingServiceUserLoginIssuesIncreasingIDs(t *testing.T) {
	t.Parallel()

	service := NewProcessingService(DefaultProcessingConfig(), memory.NewStorage(), nil, nil)

	first, err := service.UserLogin(context.Background(), domain.Credentials{UserID: "alice"})
	require.NoError(t, err)
	second, err := service.UserLogin(context.Background(), domain.Credentials{UserID: "bob"})
	require.NoError(t, err)

	assert.Equal(t, domain.SessionID(1), first)
	assert.Equal(t, domain.SessionID(2), second)
}

func TestProcessingServiceUserLoginRejected(t *testing.T) {
	t.Parallel()

	repo := mocks.NewMockCredentialRepository(t)
	repo.EXPECT().GetHash(context.Background(), "alice").Return([]byte("stored"), nil)
	service := NewProcessingService(DefaultProcessingConfig(), memory.NewStorage(), NewHashPolicy(repo), nil)

	id, err := service.UserLogin(context.Background(), domain.Credentials{UserID: "alice", Hash: []byte("other")})

	require.ErrorIs(t, err, domain.ErrLoginRejected)
	assert.Equal(t, domain.InvalidSessionID, id)

	next, err := service.UserLogin(context.Background(), domain.Credentials{})
	require.ErrorIs(t, err, domain.ErrLoginRejected)
	assert.Equal(t, domain.InvalidSessionID, next)
}

func TestProcessingServiceExampleScenario(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	b := fundedSession(t, storage, 2, "bob", 0)
	results := &deliveries{}
	service := startService(t, DefaultProcessingConfig(), storage, results)

	transfer := newOperation(t, domain.OperationTransferTo, a, storage.LookupSessionProxyForAccount("bob"), 40)
	require.NoError(t, service.ProcessOperation(a.ID(), transfer))
	_, err := awaitResult(t, transfer)
	require.NoError(t, err)

	withdraw := newOperation(t, domain.OperationWithdraw, a, nil, 61)
	require.NoError(t, service.ProcessOperation(a.ID(), withdraw))
	_, err = awaitResult(t, withdraw)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	get := newOperation(t, domain.OperationGetValue, a, nil, 0)
	require.NoError(t, service.ProcessOperation(a.ID(), get))
	value, err := awaitResult(t, get)
	require.NoError(t, err)

	assert.Equal(t, "60", value.String())
	assert.True(t, decimal.NewFromInt(40).Equal(balanceOf(b.Account())))
	assert.Equal(t, int32(3), results.count.Load())
}

func TestProcessingServiceRetriesTemporaryFailureOnce(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	results := &deliveries{}
	metrics := mocks.NewMockMetrics(t)
	metrics.EXPECT().AttemptRetried(domain.OperationIncrease).Return().Once()
	metrics.EXPECT().OperationCompleted(domain.OperationIncrease, ports.OutcomeSuccess).Return().Once()

	service := NewProcessingService(DefaultProcessingConfig(), storage, nil, results,
		WithLogger(zaptest.NewLogger(t)), WithMetrics(metrics))
	var attempts atomic.Int32
	service.validate = func(op *domain.Operation, attempt int) error {
		attempts.Add(1)
		if attempt == 1 {
			return temporaryError(op.Kind(), ErrLockContention)
		}
		return nil
	}
	service.Start(context.Background())

	op := newOperation(t, domain.OperationIncrease, a, nil, 25)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)
	service.Stop(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, int32(1), results.count.Load())
	assert.True(t, decimal.NewFromInt(125).Equal(balanceOf(a.Account())))
}

func TestProcessingServiceExhaustsAttempts(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	results := &deliveries{}
	metrics := mocks.NewMockMetrics(t)
	metrics.EXPECT().AttemptRetried(domain.OperationWithdraw).Return().Times(2)
	metrics.EXPECT().OperationCompleted(domain.OperationWithdraw, ports.OutcomeFailed).Return().Once()

	core, logs := observer.New(zapcore.WarnLevel)
	service := NewProcessingService(DefaultProcessingConfig(), storage, nil, results,
		WithLogger(zap.New(core)), WithMetrics(metrics))
	var attempts atomic.Int32
	service.validate = func(op *domain.Operation, _ int) error {
		attempts.Add(1)
		return temporaryError(op.Kind(), ErrLockContention)
	}
	service.Start(context.Background())

	op := newOperation(t, domain.OperationWithdraw, a, nil, 10)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)
	service.Stop(context.Background())

	require.ErrorIs(t, err, ErrLockContention)
	assert.True(t, IsTemporary(err))
	assert.Equal(t, int32(DefaultAttempts), attempts.Load())
	assert.Equal(t, int32(1), results.count.Load())
	assert.True(t, decimal.NewFromInt(100).Equal(balanceOf(a.Account())))
	assert.Equal(t, 1, logs.FilterMessage("transaction attempts exhausted").Len())
}

func TestProcessingServiceDoesNotRetryBusinessRejection(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	service := NewProcessingService(DefaultProcessingConfig(), storage, nil, nil, WithLogger(zaptest.NewLogger(t)))
	var attempts atomic.Int32
	service.validate = func(*domain.Operation, int) error {
		attempts.Add(1)
		return nil
	}
	service.Start(context.Background())
	t.Cleanup(func() { service.Stop(context.Background()) })

	op := newOperation(t, domain.OperationWithdraw, a, nil, 100)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestProcessingServiceRecoversPanics(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	results := &deliveries{}

	core, logs := observer.New(zapcore.ErrorLevel)
	service := NewProcessingService(DefaultProcessingConfig(), storage, nil, results, WithLogger(zap.New(core)))
	service.validate = func(*domain.Operation, int) error {
		panic("boom")
	}
	service.Start(context.Background())
	t.Cleanup(func() { service.Stop(context.Background()) })

	op := newOperation(t, domain.OperationIncrease, a, nil, 10)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.False(t, IsTemporary(err))
	assert.Equal(t, int32(1), results.count.Load())
	assert.Equal(t, 1, logs.FilterMessage("transaction failed").Len())

	require.True(t, a.Account().TryLock(), "account lock must be released after a panic")
	a.Account().Unlock()
}

func TestProcessingServiceRejectsInvalidSessions(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	b := fundedSession(t, storage, 2, "bob", 100)
	service := startService(t, DefaultProcessingConfig(), storage, nil)

	op := newOperation(t, domain.OperationIncrease, a, nil, 10)

	err := service.ProcessOperation(99, op)
	require.ErrorIs(t, err, domain.ErrInvalidSession)

	err = service.ProcessOperation(b.ID(), op)
	require.ErrorIs(t, err, domain.ErrInvalidSession)

	storage.CleanUpSession(a.ID())
	err = service.ProcessOperation(a.ID(), op)
	require.ErrorIs(t, err, domain.ErrInvalidSession)

	require.ErrorIs(t, service.ProcessOperation(b.ID(), nil), domain.ErrInvalidOperation)

	_, err = op.Result()
	assert.ErrorIs(t, err, domain.ErrOperationPending)
}

func TestProcessingServiceQueueFullAndDrainOnStop(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 0)
	results := &deliveries{}
	cfg := DefaultProcessingConfig()
	cfg.Workers = 1
	cfg.QueueSize = 1
	service := NewProcessingService(cfg, storage, nil, results, WithLogger(zaptest.NewLogger(t)))

	queued := newOperation(t, domain.OperationIncrease, a, nil, 5)
	require.NoError(t, service.ProcessOperation(a.ID(), queued))

	overflow := newOperation(t, domain.OperationIncrease, a, nil, 5)
	require.ErrorIs(t, service.ProcessOperation(a.ID(), overflow), worker.ErrQueueFull)

	service.Stop(context.Background())

	_, err := queued.Result()
	require.NoError(t, err)
	assert.Equal(t, int32(1), results.count.Load())
	assert.True(t, decimal.NewFromInt(5).Equal(balanceOf(a.Account())))

	late := newOperation(t, domain.OperationIncrease, a, nil, 5)
	require.ErrorIs(t, service.ProcessOperation(a.ID(), late), worker.ErrPoolStopped)
}

func TestProcessingServiceLockWaitContention(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 100)
	cfg := DefaultProcessingConfig()
	cfg.LockWait = 2 * time.Millisecond
	service := startService(t, cfg, storage, nil)

	a.Account().Lock()
	op := newOperation(t, domain.OperationWithdraw, a, nil, 10)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)
	a.Account().Unlock()

	require.ErrorIs(t, err, ErrLockContention)
	assert.True(t, decimal.NewFromInt(100).Equal(balanceOf(a.Account())))
}

func TestProcessingServiceAccountVanishedFailsClosed(t *testing.T) {
	t.Parallel()

	storage := &vanishingAccounts{Storage: memory.NewStorage()}
	a := fundedSession(t, storage.Storage, 1, "alice", 100)
	service := startService(t, DefaultProcessingConfig(), storage, nil)

	op := newOperation(t, domain.OperationGetValue, a, nil, 0)
	require.NoError(t, service.ProcessOperation(a.ID(), op))
	_, err := awaitResult(t, op)

	require.ErrorIs(t, err, domain.ErrInvalidSession)
	assert.Equal(t, int32(1), storage.lookups.Load())
}

func TestProcessingServiceConcurrentTransfersConserveTotal(t *testing.T) {
	t.Parallel()

	storage := memory.NewStorage()
	a := fundedSession(t, storage, 1, "alice", 1000)
	b := fundedSession(t, storage, 2, "bob", 1000)
	cfg := DefaultProcessingConfig()
	cfg.QueueSize = 4096
	service := startService(t, cfg, storage, nil)

	ops := make([]*domain.Operation, 0, 2000)
	for i := 0; i < 1000; i++ {
		ab := newOperation(t, domain.OperationTransferTo, a, storage.LookupSessionProxyForAccount("bob"), 7)
		ba := newOperation(t, domain.OperationTransferTo, b, storage.LookupSessionProxyForAccount("alice"), 7)
		require.NoError(t, service.ProcessOperation(a.ID(), ab))
		require.NoError(t, service.ProcessOperation(b.ID(), ba))
		ops = append(ops, ab, ba)
	}
	for _, op := range ops {
		_, err := awaitResult(t, op)
		if err != nil {
			require.True(t, errors.Is(err, domain.ErrInsufficientFunds), "unexpected error: %v", err)
		}
	}

	total := TotalBalance(SnapshotBalances(storage))
	assert.True(t, decimal.NewFromInt(2000).Equal(total), "total = %s", total)
}
