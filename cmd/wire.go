package cmd

import (
	"context"
	"fmt"

	"github.com/bnema/atm-server/internal/adapters/metrics"
	balancesadapter "github.com/bnema/atm-server/internal/adapters/render/balances"
	tomlrepo "github.com/bnema/atm-server/internal/adapters/repo/toml"
	"github.com/bnema/atm-server/internal/adapters/storage/memory"
	"github.com/bnema/atm-server/internal/adapters/transport"
	"github.com/bnema/atm-server/internal/adapters/transport/inprocess"
	"github.com/bnema/atm-server/internal/application"
	"github.com/bnema/atm-server/internal/config"
	"github.com/bnema/atm-server/internal/logging"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type app struct {
	cfg             config.Config
	logger          *zap.Logger
	credentials     *tomlrepo.Repository
	balanceRenderer func([]application.AccountBalance, balancesadapter.RenderOptions) (string, error)
}

func wireApp() (*app, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	repo, err := tomlrepo.NewRepository(v)
	if err != nil {
		return nil, fmt.Errorf("wire credentials repository: %w", err)
	}

	return &app{
		cfg:             cfg,
		logger:          logger,
		credentials:     repo,
		balanceRenderer: balancesadapter.Render,
	}, nil
}

// server is one in-process account server: storage, transport and the
// processing service wired together.
type server struct {
	storage  *memory.Storage
	hub      *inprocess.Hub
	service  *application.ProcessingService
	recorder *metrics.Recorder
}

func (a *app) startServer(ctx context.Context) (*server, error) {
	policy, err := a.credentialPolicy()
	if err != nil {
		return nil, err
	}

	recorder, err := metrics.NewRecorder(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("wire metrics: %w", err)
	}

	storage := memory.NewStorage()
	hub := inprocess.NewHub()
	dispatcher := transport.NewDispatcher(hub, storage, a.logger.Named("dispatcher"))
	service := application.NewProcessingService(application.ProcessingConfig{
		Workers:       a.cfg.Processing.Workers,
		QueueSize:     a.cfg.Processing.QueueSize,
		Attempts:      a.cfg.Processing.Attempts,
		RetryInterval: a.cfg.Processing.RetryInterval,
		LockWait:      a.cfg.Processing.LockWait,
	}, storage, policy, dispatcher,
		application.WithLogger(a.logger.Named("processing")),
		application.WithMetrics(recorder),
	)
	dispatcher.Attach(service)
	service.Start(ctx)

	return &server{storage: storage, hub: hub, service: service, recorder: recorder}, nil
}

// credentialPolicy checks hashes once a credentials file exists and accepts
// every named user before that.
func (a *app) credentialPolicy() (ports.CredentialPolicy, error) {
	exists, err := a.credentials.Exists()
	if err != nil {
		return nil, err
	}
	if !exists {
		a.logger.Info("no credentials file, accepting every login", zap.String("path", a.credentials.Path()))
		return application.AllowAllPolicy{}, nil
	}

	return application.NewHashPolicy(a.credentials), nil
}
