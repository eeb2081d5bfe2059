package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// MailDedup remembers delivered notifications so a redelivered message is not
// mailed twice.
// Key format: dedup:mail:<message key>
type MailDedup struct {
	client *redis.Client
}

// NewMailDedup creates a MailDedup wrapping the given Redis client.
func NewMailDedup(client *redis.Client) *MailDedup {
	return &MailDedup{client: client}
}

// IsDuplicate reports whether the message identified by key was already sent.
func (d *MailDedup) IsDuplicate(ctx context.Context, key string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	return n > 0, nil
}

// Mark records that the message was sent (expires after dedupTTL).
func (d *MailDedup) Mark(ctx context.Context, key string) error {
	return d.client.Set(ctx, d.key(key), "1", dedupTTL).Err()
}

func (d *MailDedup) key(key string) string {
	return "dedup:mail:" + key
}
