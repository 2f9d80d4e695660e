package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclebandit/contractor-followups/internal/cache"
	"github.com/unclebandit/contractor-followups/internal/channel"
	"github.com/unclebandit/contractor-followups/internal/config"
	"github.com/unclebandit/contractor-followups/internal/controller"
	"github.com/unclebandit/contractor-followups/internal/db"
	"github.com/unclebandit/contractor-followups/internal/handler"
	"github.com/unclebandit/contractor-followups/internal/queue"
	"github.com/unclebandit/contractor-followups/internal/repository"
	"github.com/unclebandit/contractor-followups/internal/service"
)

const ServiceName = "contractor-followups"

// App holds the wired dependencies shared by the server and worker binaries.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	DB         *sql.DB
	Sender     channel.Sender
	Events     queue.Queue
	Dispatcher *service.Dispatcher
	FollowUps  *service.FollowUpService

	closers []func()
}

// New connects to Postgres and the optional AMQP and Redis backends and wires
// the services. Close releases everything New opened.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	sender, err := channel.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Sender = sender

	conn, err := db.Open(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	a.closers = append(a.closers, func() { _ = conn.Close() })

	if err := a.openEvents(); err != nil {
		a.Close()
		return nil, err
	}

	lock, err := a.openLock(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	messages := &repository.FollowUpMessageRepository{DB: conn}

	a.Dispatcher = &service.Dispatcher{
		Store:       messages,
		Sender:      sender,
		Events:      a.Events,
		Tracer:      otel.Tracer(ServiceName),
		Logger:      logger,
		BatchSize:   cfg.DispatchBatchSize,
		Concurrency: cfg.DispatchConcurrency,
		StaleAfter:  cfg.DispatchStaleAfter,
	}
	if lock != nil {
		a.Dispatcher.Lock = lock
	}
	if cfg.DispatchRatePerSecond > 0 {
		a.Dispatcher.Limiter = rate.NewLimiter(rate.Limit(cfg.DispatchRatePerSecond), 1)
	}

	a.FollowUps = &service.FollowUpService{
		Leads:    &repository.LeadRepository{DB: conn},
		Quotes:   &repository.QuoteRepository{DB: conn},
		Projects: &repository.ProjectRepository{DB: conn},
		Clients:  &repository.ClientRepository{DB: conn},
		Messages: messages,
		Tx:       &repository.Transactor{DB: conn},
		Location: cfg.Location,
		Logger:   logger,
	}

	return a, nil
}

func (a *App) openEvents() error {
	if a.Config.AMQPURL != "" {
		q, err := queue.DialAMQP(a.Config.AMQPURL, a.Logger)
		if err != nil {
			return fmt.Errorf("connect to amqp: %w", err)
		}
		a.Events = q
		a.closers = append(a.closers, func() { _ = q.Close() })
	} else {
		q := queue.NewInMemoryQueue(a.Logger)
		a.Events = q
		a.closers = append(a.closers, q.Drain)
	}
	return queue.StartDeliveryLogSubscriber(a.Events, a.Logger)
}

// openLock returns nil when no Redis address is configured.
func (a *App) openLock(ctx context.Context) (*cache.DispatchLock, error) {
	if a.Config.RedisAddr == "" {
		a.Logger.Info("no redis configured, dispatch cycles are not locked across processes")
		return nil, nil
	}
	client, err := cache.NewClient(ctx, a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB, a.Logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	ttl := a.Config.DispatchStaleAfter
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return cache.NewDispatchLock(client, ttl), nil
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() http.Handler {
	return NewRouter(Handlers{
		Dispatch: &controller.DispatchController{
			Dispatcher: a.Dispatcher,
			Sender:     a.Sender,
			Production: a.Config.IsProduction(),
			Logger:     a.Logger,
		},
		FollowUps:  &controller.FollowUpController{Service: a.FollowUps, Location: a.Config.Location},
		Messages:   handler.NewMessageHandler(a.FollowUps, a.Logger),
		CronSecret: a.Config.CronSecret,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
