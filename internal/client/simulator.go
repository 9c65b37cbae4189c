package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/bnema/atm-server/internal/adapters/transport/inprocess"
	"github.com/bnema/atm-server/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

type SimulationConfig struct {
	Clients    int
	Operations int
	Deposit    decimal.Decimal
	MaxAmount  int64
	UserPrefix string
	Password   string
	Seed       uint64
}

func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		Clients:    8,
		Operations: 200,
		Deposit:    decimal.NewFromInt(1000),
		MaxAmount:  100,
		UserPrefix: "user",
		Password:   "atm",
		Seed:       1,
	}
}

// SimulationReport counts what the clients saw. Only acknowledged deposits
// and withdrawals move money in or out, so ExpectedTotal is what the server
// must hold once every client is done.
type SimulationReport struct {
	Users     []domain.AccountID
	Succeeded int64
	Rejected  int64
	Deposited decimal.Decimal
	Withdrawn decimal.Decimal
}

func (r SimulationReport) ExpectedTotal() decimal.Decimal {
	return r.Deposited.Sub(r.Withdrawn)
}

type tally struct {
	succeeded atomic.Int64
	rejected  atomic.Int64

	mu        sync.Mutex
	deposited decimal.Decimal
	withdrawn decimal.Decimal
}

func (t *tally) deposit(amount decimal.Decimal) {
	t.mu.Lock()
	t.deposited = t.deposited.Add(amount)
	t.mu.Unlock()
}

func (t *tally) withdraw(amount decimal.Decimal) {
	t.mu.Lock()
	t.withdrawn = t.withdrawn.Add(amount)
	t.mu.Unlock()
}

// Simulator drives concurrent ATM clients with random operations.
type Simulator struct {
	hub    *inprocess.Hub
	cfg    SimulationConfig
	logger *zap.Logger
}

func NewSimulator(hub *inprocess.Hub, cfg SimulationConfig, logger *zap.Logger) *Simulator {
	defaults := DefaultSimulationConfig()
	if cfg.Clients <= 0 {
		cfg.Clients = defaults.Clients
	}
	if cfg.MaxAmount <= 0 {
		cfg.MaxAmount = defaults.MaxAmount
	}
	if cfg.UserPrefix == "" {
		cfg.UserPrefix = defaults.UserPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Simulator{hub: hub, cfg: cfg, logger: logger}
}

func (s *Simulator) Users() []domain.AccountID {
	users := make([]domain.AccountID, s.cfg.Clients)
	for i := range users {
		users[i] = domain.AccountID(fmt.Sprintf("%s-%03d", s.cfg.UserPrefix, i))
	}
	return users
}

func (s *Simulator) Run(ctx context.Context) (SimulationReport, error) {
	users := s.Users()
	counts := &tally{deposited: decimal.Zero, withdrawn: decimal.Zero}

	p := pool.New().WithContext(ctx).WithCancelOnError()
	for i := range users {
		p.Go(func(ctx context.Context) error {
			return s.runClient(ctx, i, users, counts)
		})
	}
	err := p.Wait()

	report := SimulationReport{
		Users:     users,
		Succeeded: counts.succeeded.Load(),
		Rejected:  counts.rejected.Load(),
		Deposited: counts.deposited,
		Withdrawn: counts.withdrawn,
	}
	if err != nil {
		return report, fmt.Errorf("run simulation: %w", err)
	}

	s.logger.Info("simulation finished",
		zap.Int("clients", len(users)),
		zap.Int64("succeeded", report.Succeeded),
		zap.Int64("rejected", report.Rejected),
	)

	return report, nil
}

func (s *Simulator) runClient(ctx context.Context, index int, users []domain.AccountID, counts *tally) error {
	conn := s.hub.Connect()
	defer conn.Disconnect()

	atm := NewATM(conn)
	userID := string(users[index])
	if _, err := atm.Login(ctx, userID, s.cfg.Password); err != nil {
		return err
	}
	defer func() {
		if err := atm.Logout(); err != nil {
			s.logger.Debug("logout", zap.String("user_id", userID), zap.Error(err))
		}
	}()

	if s.cfg.Deposit.IsPositive() {
		err := atm.Increase(ctx, s.cfg.Deposit)
		if err == nil {
			counts.deposit(s.cfg.Deposit)
		}
		if err := s.record(counts, err); err != nil {
			return err
		}
	}

	rng := rand.New(rand.NewPCG(s.cfg.Seed, uint64(index)))
	for n := 0; n < s.cfg.Operations; n++ {
		amount := decimal.NewFromInt(rng.Int64N(s.cfg.MaxAmount) + 1)

		switch rng.IntN(4) {
		case 0:
			err := atm.Increase(ctx, amount)
			if err == nil {
				counts.deposit(amount)
			}
			if err := s.record(counts, err); err != nil {
				return err
			}
		case 1:
			err := atm.Withdraw(ctx, amount)
			if err == nil {
				counts.withdraw(amount)
			}
			if err := s.record(counts, err); err != nil {
				return err
			}
		case 2:
			to := users[rng.IntN(len(users))]
			if err := s.record(counts, atm.TransferTo(ctx, to, amount)); err != nil {
				return err
			}
		default:
			_, err := atm.GetValue(ctx)
			if err := s.record(counts, err); err != nil {
				return err
			}
		}
	}

	return nil
}

// record counts an outcome; only transport level failures stop the client.
func (s *Simulator) record(counts *tally, err error) error {
	switch {
	case err == nil:
		counts.succeeded.Add(1)
		return nil
	case errors.Is(err, ErrRequestRejected):
		counts.rejected.Add(1)
		return nil
	default:
		return err
	}
}
