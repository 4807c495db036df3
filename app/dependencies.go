package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/modelrelay/modelrelay/config"
	"github.com/modelrelay/modelrelay/services/failover"
	"github.com/modelrelay/modelrelay/services/gateway"
	"github.com/modelrelay/modelrelay/services/providers"
	"github.com/modelrelay/modelrelay/services/quota"
	"github.com/modelrelay/modelrelay/services/routing"
	"github.com/modelrelay/modelrelay/services/usage"
	"go.uber.org/zap"
)

// Dependencies holds every shared component of the gateway. It is constructed
// once at startup and handed to the route setup.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// DB is nil when no usage database is configured
	DB *sql.DB

	Registry     *providers.Registry
	QuotaTracker *quota.Tracker
	Routing      *routing.Service
	Executor     *providers.Executor
	Failover     *failover.Controller
	UsageStore   *usage.Store
	Gateway      *gateway.Service
}

// NewDependencies wires the provider catalog, quota tracker, routing service,
// executor, fallback controller and optional usage store together
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	catalog := providers.ApplyOverrides(providers.DefaultCatalog(), os.LookupEnv)

	registry, err := providers.NewRegistry(catalog, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	tracker := quota.NewTracker(catalog, logger)

	routingSvc := routing.NewService(registry, tracker, routing.Config{
		SpeedProviderID: cfg.Gateway.SpeedProviderID,
	}, logger)

	executor := providers.NewExecutor(registry, tracker, logger,
		providers.WithCallTimeout(cfg.Gateway.ProviderCallTimeout))

	controller := failover.NewController(executor, logger,
		failover.WithMaxAttempts(cfg.Gateway.MaxFallbackAttempts+1))

	deps := &Dependencies{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		QuotaTracker: tracker,
		Routing:      routingSvc,
		Executor:     executor,
		Failover:     controller,
	}

	var usageStore gateway.UsageStore
	if cfg.Database.Enabled() {
		db, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		deps.DB = db
		deps.UsageStore = usage.NewStore(db, logger)
		usageStore = deps.UsageStore

		logger.Info("usage store enabled", zap.String("database", cfg.Database.LogString()))
	} else {
		logger.Info("no database configured, usage persistence disabled")
	}

	// the goal string was validated at config load
	defaultGoal, _ := routing.ParseGoal(cfg.Gateway.DefaultGoal)

	deps.Gateway = gateway.NewService(routingSvc, controller, usageStore, gateway.Config{
		RequestTimeout:      cfg.Gateway.RequestTimeout,
		DefaultGoal:         defaultGoal,
		DefaultSystemPrompt: cfg.Gateway.DefaultSystemPrompt,
	}, logger)

	return deps, nil
}

// StartWorkers launches background workers. They stop when ctx is cancelled.
func (d *Dependencies) StartWorkers(ctx context.Context) {
	if d.UsageStore != nil {
		go d.UsageStore.StartCleanupWorker(ctx, 24*time.Hour, d.Config.Gateway.UsageRetention)
	}
}

// Close releases held resources
func (d *Dependencies) Close() error {
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
