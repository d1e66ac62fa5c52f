package commands

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vsinha/relief/pkg/application/services/allocation"
	"github.com/vsinha/relief/pkg/application/services/capacity"
	"github.com/vsinha/relief/pkg/application/services/dashboard"
	"github.com/vsinha/relief/pkg/application/services/intake"
	"github.com/vsinha/relief/pkg/application/services/recommendation"
	"github.com/vsinha/relief/pkg/domain/repositories"
	"github.com/vsinha/relief/pkg/infrastructure/config"
	"github.com/vsinha/relief/pkg/infrastructure/events"
	"github.com/vsinha/relief/pkg/infrastructure/metrics"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/relief/pkg/infrastructure/repositories/sqlstore"
)

// App wires every service to one store
type App struct {
	Config    *config.Config
	Logger    logr.Logger
	Store     repositories.Store
	Registry  *prometheus.Registry
	Events    *events.InMemoryEventStore
	Ledger    *capacity.Ledger
	Engine    *recommendation.Engine
	Executor  *allocation.Executor
	Intake    *intake.Service
	Dashboard *dashboard.Service

	close func() error
}

// NewApp opens the configured store and builds the services on top of it
func NewApp(ctx context.Context, cfg *config.Config, logger logr.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
		close:    func() error { return nil },
	}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		app.Store = memory.NewStore()
	case config.DriverSQLite, config.DriverPostgres:
		store, err := sqlstore.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
		}
		app.Store = store
		app.close = store.Close
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}

	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewRecorder(app.Registry)

	app.Events = events.NewInMemoryEventStore(logger.WithName("events"))
	publisher := events.NewPublisher(app.Events, logger.WithName("events"))
	if err := events.NewAuditHandler(recorder, logger.WithName("audit")).Subscribe(app.Events); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to subscribe audit handler: %w", err)
	}

	app.Ledger = capacity.NewLedger(app.Store, capacity.Config{
		Thresholds: cfg.Capacity.Thresholds(),
		Logger:     logger.WithName("capacity"),
		Metrics:    recorder,
	})
	app.Engine = recommendation.NewEngine(app.Store, recommendation.Config{
		Weights: cfg.Scoring.Weights(),
		Logger:  logger.WithName("recommendation"),
		Metrics: recorder,
	})
	app.Executor = allocation.NewExecutor(app.Store, app.Ledger, allocation.Config{
		Logger:    logger.WithName("allocation"),
		Metrics:   recorder,
		Publisher: publisher,
	})
	app.Intake = intake.NewService(app.Store, app.Ledger, intake.Config{
		Logger:    logger.WithName("intake"),
		Publisher: publisher,
	})
	app.Dashboard = dashboard.NewService(app.Store, app.Engine, app.Executor, logger.WithName("dashboard"))

	return app, nil
}

// Close releases the store
func (a *App) Close() error {
	return a.close()
}
