// Package app assembles the service from configuration: it opens the
// directory store, connects Redis and RabbitMQ, builds the core services and
// serves the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/api"
	"github.com/dentalcare/clinic-visits/internal/api/handler"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
	"github.com/dentalcare/clinic-visits/internal/core/service"
	mongostore "github.com/dentalcare/clinic-visits/internal/infrastructure/db/mongo"
	pgstore "github.com/dentalcare/clinic-visits/internal/infrastructure/db/postgres"
	redisstore "github.com/dentalcare/clinic-visits/internal/infrastructure/db/redis"
	"github.com/dentalcare/clinic-visits/internal/infrastructure/mail"
	"github.com/dentalcare/clinic-visits/internal/infrastructure/messaging/rabbitmq"
	"github.com/dentalcare/clinic-visits/internal/infrastructure/queue"
	"github.com/dentalcare/clinic-visits/internal/pkg/config"
)

const shutdownTimeout = 15 * time.Second

// store is the directory backend selected by STORE_DRIVER.
type store struct {
	driver  string
	users   ports.UserRepository
	visits  ports.VisitRepository
	migrate func(context.Context) error
	ping    func(context.Context) error
	close   func(context.Context) error
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := pgstore.Connect(ctx, pgstore.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, err
		}
		s := pgstore.NewStore(pool)
		return &store{driver: cfg.StoreDriver, users: s.Users, visits: s.Visits, migrate: s.Migrate, ping: s.Ping, close: s.Close}, nil
	default:
		_, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		s := mongostore.NewStore(db)
		return &store{driver: config.StoreMongo, users: s.Users, visits: s.Visits, migrate: s.Migrate, ping: s.Ping, close: s.Close}, nil
	}
}

// newSender picks SMTP when a host is configured and the logging sender
// otherwise.
func newSender(cfg *config.Config, log zerolog.Logger) (ports.MailSender, error) {
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, err
	}
	if cfg.SMTP.Host == "" {
		log.Warn().Msg("SMTP_HOST not set, mails will only be logged")
		return mail.NewLogSender(renderer, log), nil
	}
	return mail.NewSMTPSender(mail.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}, renderer, log), nil
}

func connectRedis(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	return redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// App is the HTTP server with everything it depends on.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	store      *store
	rdb        *goredis.Client
	amqp       *amqp091.Connection
	publisher  *rabbitmq.Publisher
	dispatcher *queue.Dispatcher
	server     *echo.Echo
}

// New connects every dependency and builds the router. Resources opened
// before a failure are released.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	if a.store, err = openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err = a.store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate %s store: %w", a.store.driver, err)
	}
	log.Info().Str("driver", a.store.driver).Msg("directory store ready")

	if a.rdb, err = connectRedis(ctx, cfg); err != nil {
		return nil, err
	}

	sender, err := newSender(cfg, log)
	if err != nil {
		return nil, err
	}

	var mailQueue ports.MailQueue
	switch cfg.Notify.Transport {
	case config.TransportAMQP:
		if a.amqp, err = rabbitmq.Connect(cfg.AMQP.URL); err != nil {
			return nil, err
		}
		if a.publisher, err = rabbitmq.NewPublisher(a.amqp, cfg.AMQP.Queue); err != nil {
			return nil, err
		}
		mailQueue = a.publisher
		log.Info().Str("queue", cfg.AMQP.Queue).Msg("notifications published to rabbitmq")
	default:
		deliverer := queue.NewDeliverer(sender, redisstore.NewMailDedup(a.rdb), log)
		a.dispatcher = queue.NewDispatcher(cfg.Notify.Workers, deliverer, log)
		mailQueue = a.dispatcher
	}

	hasher := service.BcryptHasher{}
	locker := redisstore.NewScheduleLocker(a.rdb, cfg.Lock.TTL, cfg.Lock.Wait, log)
	notifier := service.NewVisitMailer(mailQueue, cfg.Notify.Brand, cfg.Location(), log)

	a.server = api.NewRouter(api.Deps{
		Logger:    log,
		JWTSecret: cfg.JWTSecret,
		Brand:     cfg.Notify.Brand,
		Auth:      service.NewAuthService(a.store.users, hasher, cfg.JWTSecret, cfg.JWTTTL),
		Users:     service.NewUserService(a.store.users, hasher, mailQueue, cfg.Notify.Brand, log),
		Visits:    service.NewVisitService(a.store.users, a.store.visits, locker, notifier, log),
		Mailer:    sender,
		Health:    a.healthChecks(),
	})
	return a, nil
}

func (a *App) healthChecks() map[string]handler.Pinger {
	checks := map[string]handler.Pinger{a.store.driver: handler.PingFunc(a.store.ping)}
	checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
		return redisstore.Ping(ctx, a.rdb, 2*time.Second)
	})
	if a.amqp != nil {
		checks["rabbitmq"] = handler.PingFunc(func(context.Context) error {
			if a.amqp.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		})
	}
	return checks
}

// Run serves HTTP until ctx is cancelled, then drains requests, delivers the
// queued notifications and closes every connection.
func (a *App) Run(ctx context.Context) error {
	if a.dispatcher != nil {
		a.dispatcher.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.cfg.Port).Str("env", a.cfg.Env).Msg("http server listening")
		if err := a.server.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutting down")
	case runErr = <-errCh:
		a.log.Error().Err(runErr).Msg("http server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http shutdown")
	}

	// No request can enqueue after Shutdown returns.
	if a.dispatcher != nil {
		a.dispatcher.Close()
		a.dispatcher.Wait()
		a.log.Info().Msg("notification queue drained")
	}
	a.close(shutdownCtx)
	return runErr
}

func (a *App) close(ctx context.Context) {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close rabbitmq publisher")
		}
	}
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close rabbitmq connection")
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close redis")
		}
	}
	if a.store != nil {
		if err := a.store.close(ctx); err != nil {
			a.log.Warn().Err(err).Msg("close store")
		}
	}
}
