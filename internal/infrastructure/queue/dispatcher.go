package queue

import (
	"context"
	"errors"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/api/metrics"
	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
	deliverTimeout = 30 * time.Second
)

var (
	// ErrQueueFull is returned by Enqueue when the target worker has no room.
	ErrQueueFull = errors.New("notification queue full")
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("notification queue closed")
)

// Dispatcher routes mail messages to a fixed set of workers using consistent
// hashing on the recipient, so one recipient's mails go out in order.
type Dispatcher struct {
	workers   []chan domain.MailMessage
	deliverer *Deliverer
	log       zerolog.Logger
	wg        sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, deliverer *Deliverer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan domain.MailMessage, numWorkers),
		deliverer: deliverer,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan domain.MailMessage, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers run until Close and drain
// their channel first. Each delivery gets its own timeout and ignores ctx
// cancellation, keeping only its values.
func (d *Dispatcher) Start(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(base, i, ch)
	}
}

// Close stops accepting messages. Workers exit once their backlog is
// delivered. Calling Close more than once is a no-op.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for _, ch := range d.workers {
		close(ch)
	}
}

// Wait blocks until every worker has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue implements ports.MailQueue. It never blocks: a full worker channel
// drops the message and reports ErrQueueFull.
func (d *Dispatcher) Enqueue(_ context.Context, msg domain.MailMessage) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		metrics.NotificationsDroppedTotal.Inc()
		return ErrQueueClosed
	}

	idx := d.shardIndex(msg.To)
	select {
	case d.workers[idx] <- msg:
		metrics.NotificationQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return nil
	default:
		metrics.NotificationsDroppedTotal.Inc()
		return ErrQueueFull
	}
}

// shardIndex maps a recipient deterministically to a worker index.
func (d *Dispatcher) shardIndex(recipient string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan domain.MailMessage) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for msg := range ch {
		metrics.NotificationQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		if err := d.deliver(ctx, msg); err != nil {
			d.log.Error().Err(err).
				Str("to", msg.To).
				Str("template", msg.Template).
				Int("worker_id", id).
				Msg("notification delivery failed")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg domain.MailMessage) error {
	ctx, cancel := context.WithTimeout(ctx, deliverTimeout)
	defer cancel()
	return d.deliverer.Deliver(ctx, msg)
}
