package ports

import (
	"context"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

// MailSender delivers one message synchronously. Failures wrap
// domain.ErrDeliveryUnavailable.
type MailSender interface {
	Send(ctx context.Context, msg domain.MailMessage) error
}

// MailQueue accepts messages for asynchronous delivery. Enqueue must not wait
// for delivery.
type MailQueue interface {
	Enqueue(ctx context.Context, msg domain.MailMessage) error
}

// VisitNotifier turns a visit mutation into deliveries. It never reports
// failure to the caller.
type VisitNotifier interface {
	Notify(ctx context.Context, event domain.VisitEvent, v *domain.Visit)
}
