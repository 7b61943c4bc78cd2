// Package app is the composition root: it builds the dispatcher, cache, job
// store, transport, and queue consumers from configuration and hands the
// outer request-handling layer a ready-to-use core. There is no ambient
// global state; every dependency is constructed here and passed down.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/fwt/identity-core/internal/bus"
	"github.com/fwt/identity-core/internal/cache"
	"github.com/fwt/identity-core/internal/chats"
	"github.com/fwt/identity-core/internal/config"
	"github.com/fwt/identity-core/internal/cqrs"
	"github.com/fwt/identity-core/internal/domain"
	"github.com/fwt/identity-core/internal/events"
	"github.com/fwt/identity-core/internal/jobs"
	"github.com/fwt/identity-core/internal/observability"
	"github.com/fwt/identity-core/internal/repo"
	"github.com/fwt/identity-core/internal/sysutil"
	"github.com/fwt/identity-core/internal/telegram"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// App owns the wired request core and its background consumers.
type App struct {
	Log        zerolog.Logger
	DB         *gorm.DB
	Dispatcher *cqrs.Dispatcher
	Transport  bus.Transport
	Sessions   *repo.SessionStore

	consumers    []*jobs.Consumer
	shutdownOTel func(context.Context) error
}

// New wires the core from cfg. The upstream client is injected by the caller
// because the Telegram wire protocol lives outside this module.
func New(ctx context.Context, cfg config.Config, client telegram.Client) (*App, error) {
	sysutil.SetLogLevel(cfg.LogLevel)
	log := sysutil.NewLogger(cfg.LogPretty)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, Version)
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = cache.NewRedisStore(rdb, cfg.CacheTTL)
	} else {
		log.Warn().Msg("REDIS_ADDR not set, using in-memory cache")
		store = cache.NewMemoryStore(cfg.CacheTTL)
	}

	var transport bus.Transport
	if cfg.AMQPURL != "" {
		amqpBus, err := bus.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			return nil, fmt.Errorf("amqp: %w", err)
		}
		transport = amqpBus
	} else {
		log.Warn().Msg("AMQP_URL not set, using in-process bus")
		transport = bus.NewMemoryBus()
	}

	sessions := repo.NewSessionStore(db)
	dispatcher := cqrs.NewDispatcher(log)

	getUserChats := chats.NewGetUserChatsHandler(sessions, client, log)
	dispatcher.MustRegister(
		chats.QueryNameGetUserChats,
		cqrs.NewCachedQueryHandler[[]domain.UserChat](getUserChats, store, log),
	)
	dispatcher.MustRegister(
		jobs.CommandNameStartDialogsFetch,
		jobs.NewStartFetchHandler(db, log),
	)

	eventDispatcher := events.NewDispatcher(transport, log)
	machine := jobs.NewStateMachine(db, eventDispatcher, log)

	consumerQueues := []string{
		events.NameMessagesFetched,
		events.NameMessagesProcessed,
		events.NameFetchFailed,
	}
	consumers := make([]*jobs.Consumer, 0, len(consumerQueues))
	for _, q := range consumerQueues {
		consumers = append(consumers, jobs.NewConsumer(
			transport, machine, q,
			cfg.Consumer.MaxRetries, cfg.Consumer.RetryBackoff, log,
		))
	}

	return &App{
		Log:          log,
		DB:           db,
		Dispatcher:   dispatcher,
		Transport:    transport,
		Sessions:     sessions,
		consumers:    consumers,
		shutdownOTel: shutdownOTel,
	}, nil
}

// Run starts the queue consumers and blocks until ctx is canceled or a
// consumer fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range a.consumers {
		g.Go(func() error { return c.Run(ctx) })
	}
	return g.Wait()
}

// Shutdown flushes observability state. Transports and stores owned by
// external processes are left to their own lifecycles.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.shutdownOTel(ctx)
}
