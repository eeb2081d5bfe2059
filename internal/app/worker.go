package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	redisstore "github.com/dentalcare/clinic-visits/internal/infrastructure/db/redis"
	"github.com/dentalcare/clinic-visits/internal/infrastructure/messaging/rabbitmq"
	"github.com/dentalcare/clinic-visits/internal/infrastructure/queue"
	"github.com/dentalcare/clinic-visits/internal/pkg/config"
)

// RunWorker consumes the RabbitMQ mail queue and delivers each message until
// ctx is cancelled.
func RunWorker(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()

	sender, err := newSender(cfg, log)
	if err != nil {
		return err
	}
	deliverer := queue.NewDeliverer(sender, redisstore.NewMailDedup(rdb), log)

	conn, err := rabbitmq.Connect(cfg.AMQP.URL)
	if err != nil {
		return err
	}
	defer conn.Close()

	consumer, err := rabbitmq.NewConsumer(conn, cfg.AMQP.Queue, deliverer.Deliver, log)
	if err != nil {
		return err
	}
	defer consumer.Close()

	if err := consumer.Run(ctx); err != nil {
		return fmt.Errorf("mail worker: %w", err)
	}
	log.Info().Msg("mail worker stopped")
	return nil
}

// Migrate creates the schema or indexes of the configured store.
func Migrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", s.driver, err)
	}
	log.Info().Str("driver", s.driver).Msg("migrations applied")
	return nil
}

// SeedStore migrates the configured store and loads the demo data set.
func SeedStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	if err := s.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", s.driver, err)
	}
	return NewSeeder(s.users, s.visits, log).Run(ctx)
}
