package queue

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/api/metrics"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

// Deduplicator remembers delivered message keys.
type Deduplicator interface {
	IsDuplicate(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Deliverer sends a single message, skipping keys already delivered.
type Deliverer struct {
	sender ports.MailSender
	dedup  Deduplicator
	log    zerolog.Logger
}

// NewDeliverer creates a Deliverer. dedup may be nil.
func NewDeliverer(sender ports.MailSender, dedup Deduplicator, log zerolog.Logger) *Deliverer {
	return &Deliverer{sender: sender, dedup: dedup, log: log}
}

// Deliver sends msg unless its key was already delivered. A failing dedup
// store does not block delivery.
func (d *Deliverer) Deliver(ctx context.Context, msg domain.MailMessage) error {
	if d.dedup != nil && msg.Key != "" {
		dup, err := d.dedup.IsDuplicate(ctx, msg.Key)
		if err != nil {
			d.log.Warn().Err(err).Str("key", msg.Key).Msg("dedup check failed, sending anyway")
		}
		if dup {
			metrics.NotificationsTotal.WithLabelValues(msg.Template, "duplicate").Inc()
			d.log.Debug().Str("key", msg.Key).Msg("duplicate notification skipped")
			return nil
		}
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(msg.Template, "failed").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(msg.Template, "sent").Inc()

	if d.dedup != nil && msg.Key != "" {
		if err := d.dedup.Mark(ctx, msg.Key); err != nil {
			d.log.Warn().Err(err).Str("key", msg.Key).Msg("dedup mark failed")
		}
	}
	return nil
}
