package application

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/bnema/atm-server/internal/worker"
	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

const DefaultAttempts = 3

type ProcessingConfig struct {
	Workers       int
	QueueSize     int
	Attempts      int
	RetryInterval time.Duration
	LockWait      time.Duration
}

func DefaultProcessingConfig() ProcessingConfig {
	return ProcessingConfig{
		Workers:   worker.DefaultSize,
		QueueSize: worker.DefaultCapacity,
		Attempts:  DefaultAttempts,
	}
}

type ProcessingOption func(*ProcessingService)

func WithLogger(logger *zap.Logger) ProcessingOption {
	return func(s *ProcessingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(metrics ports.Metrics) ProcessingOption {
	return func(s *ProcessingService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// ProcessingService validates sessions, runs operations on a worker pool and
// delivers exactly one result per accepted operation to the callback.
type ProcessingService struct {
	cfg        ProcessingConfig
	storage    ports.Storage
	policy     ports.CredentialPolicy
	callback   ports.ResultCallback
	metrics    ports.Metrics
	logger     *zap.Logger
	pool       *worker.Pool
	sessionIDs atomic.Int64

	validate func(op *domain.Operation, attempt int) error
}

func NewProcessingService(cfg ProcessingConfig, storage ports.Storage, policy ports.CredentialPolicy, callback ports.ResultCallback, opts ...ProcessingOption) *ProcessingService {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if policy == nil {
		policy = AllowAllPolicy{}
	}

	s := &ProcessingService{
		cfg:      cfg,
		storage:  storage,
		policy:   policy,
		callback: callback,
		metrics:  ports.NopMetrics{},
		logger:   zap.NewNop(),
		pool:     worker.NewPool("transactions", cfg.Workers, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *ProcessingService) Start(ctx context.Context) {
	s.pool.Start(ctx)
	s.logger.Info("processing service started",
		zap.Int("workers", s.pool.Size()),
		zap.Int("attempts", s.cfg.Attempts),
	)
}

// Stop rejects new operations and returns once every accepted one has been
// answered.
func (s *ProcessingService) Stop(ctx context.Context) {
	s.pool.Stop(ctx)
	s.logger.Info("processing service stopped")
}

// UserLogin asks the credential policy and issues a fresh session id.
// Rejected logins get domain.InvalidSessionID.
func (s *ProcessingService) UserLogin(ctx context.Context, credentials domain.Credentials) (domain.SessionID, error) {
	if err := s.policy.Validate(ctx, credentials); err != nil {
		s.logger.Info("login rejected", zap.String("user_id", credentials.UserID), zap.Error(err))
		if !errors.Is(err, domain.ErrLoginRejected) {
			err = fmt.Errorf("%w: %w", domain.ErrLoginRejected, err)
		}
		return domain.InvalidSessionID, err
	}

	id := domain.SessionID(s.sessionIDs.Add(1))
	s.logger.Debug("login accepted", zap.String("user_id", credentials.UserID), zap.Int64("session_id", int64(id)))

	return id, nil
}

// ProcessOperation queues op for execution and returns without waiting for
// the result. The session must be live and own op's primary session.
func (s *ProcessingService) ProcessOperation(sessionID domain.SessionID, op *domain.Operation) error {
	if op == nil {
		return domain.ErrInvalidOperation
	}

	session, err := s.storage.LookupSession(sessionID)
	if err != nil {
		return fmt.Errorf("%w: session %d: %w", domain.ErrInvalidSession, sessionID, err)
	}
	if op.Primary().ID() != session.ID() {
		return fmt.Errorf("%w: session %d does not own the operation", domain.ErrInvalidSession, sessionID)
	}

	txn := NewTransaction(op, s.storage, s.callback)
	txn.lockWait = s.cfg.LockWait
	txn.validate = s.validate

	if err := s.pool.Submit(func(ctx context.Context) {
		s.processTransaction(ctx, txn)
	}); err != nil {
		return fmt.Errorf("submit %s transaction: %w", op.Kind(), err)
	}

	return nil
}

func (s *ProcessingService) processTransaction(ctx context.Context, txn *Transaction) {
	op := txn.Operation()
	logger := s.logger.With(
		zap.Stringer("kind", op.Kind()),
		zap.Int64("session_id", int64(op.Primary().ID())),
	)

	var (
		value   decimal.Decimal
		attempt int
	)
	err := backoff.RetryNotify(func() error {
		attempt++
		v, err := s.attempt(ctx, txn, attempt)
		if err != nil {
			if IsTemporary(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		value = v
		return nil
	}, s.retryPolicy(ctx), func(err error, next time.Duration) {
		s.metrics.AttemptRetried(op.Kind())
		logger.Debug("retrying transaction",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	})

	s.report(logger, op, attempt, err)
	txn.Finish(value, err)
}

// attempt runs one Execute call and turns a panic into a permanent error.
func (s *ProcessingService) attempt(ctx context.Context, txn *Transaction, attempt int) (value decimal.Decimal, err error) {
	var catcher panics.Catcher
	catcher.Try(func() {
		value, err = txn.Execute(ctx, attempt)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return decimal.Zero, permanentError(txn.Operation().Kind(), recovered.AsError())
	}

	return value, err
}

func (s *ProcessingService) retryPolicy(ctx context.Context) backoff.BackOff {
	var policy backoff.BackOff = &backoff.ZeroBackOff{}
	if s.cfg.RetryInterval > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = s.cfg.RetryInterval
		exp.MaxElapsedTime = 0
		policy = exp
	}

	return backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.cfg.Attempts-1)), ctx)
}

func (s *ProcessingService) report(logger *zap.Logger, op *domain.Operation, attempts int, err error) {
	switch {
	case err == nil:
		s.metrics.OperationCompleted(op.Kind(), ports.OutcomeSuccess)
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInvalidSession):
		s.metrics.OperationCompleted(op.Kind(), ports.OutcomeRejected)
		logger.Debug("transaction rejected", zap.Error(err))
	case IsTemporary(err):
		s.metrics.OperationCompleted(op.Kind(), ports.OutcomeFailed)
		logger.Warn("transaction attempts exhausted", zap.Int("attempts", attempts), zap.Error(err))
	default:
		s.metrics.OperationCompleted(op.Kind(), ports.OutcomeFailed)
		logger.Error("transaction failed", zap.Int("attempts", attempts), zap.Error(err))
	}
}
