package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"price-watch/internal/alerting"
	"price-watch/internal/alerts"
	"price-watch/internal/catalog"
	"price-watch/internal/config"
	"price-watch/internal/cooldown"
	"price-watch/internal/history"
	"price-watch/internal/service"
	"price-watch/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newCatalog() *catalog.Client {
	return catalog.NewClient(catalog.Options{
		BaseURL:   a.Config.Catalog.BaseURL,
		APIKey:    a.Config.Catalog.APIKey,
		Timeout:   a.Config.Catalog.RequestTimeout,
		UserAgent: a.Config.Catalog.UserAgent,
	}, a.Logger)
}

func (a *App) newDispatcher() alerting.Dispatcher {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramDispatcher(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openRedis() (*redis.Client, func()) {
	client := redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	return client, func() { _ = client.Close() }
}

func (a *App) epsilon() decimal.Decimal {
	return decimal.NewFromFloat(a.Config.Monitor.Epsilon)
}

func (a *App) newHistory(store *storage.Store) *history.Service {
	return history.NewService(store, store, a.epsilon(), a.Logger)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, closeRedis := a.openRedis()
	defer closeRedis()

	recorder := a.newHistory(store)
	gate := cooldown.NewRedisGate(redisClient, a.Config.Alerting.Cooldown, a.Logger)

	evaluator := alerts.NewEvaluator(store, recorder, a.newCatalog(), gate, a.newDispatcher(), alerts.Options{
		Epsilon:      a.epsilon(),
		BatchSize:    a.Config.Monitor.BatchSize,
		PriceTimeout: a.Config.Monitor.PriceTimeout,
	}, a.Logger)
	compactor := history.NewCompactor(store, store, a.Logger)

	svc := service.New(evaluator, compactor, store, a.Config.Scheduler, a.Config.Compaction, a.Logger)

	a.Logger.Info().Msg("starting price monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("price monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	ProductID string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	ProductID string
	Limit     int
}

// StatsOptions configure the stats command.
type StatsOptions struct {
	ProductID  string
	WindowDays int
}

// PredictOptions configure the predict command.
type PredictOptions struct {
	ProductID string
	DaysAhead int
}

// SimulateOptions configure the simulate command.
type SimulateOptions struct {
	AlertID int64
	Price   decimal.Decimal
}
