package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"tradepost/internal/app/messaging"
)

// Probe answers online checks against the presence keys the platform's
// realtime tier maintains in Redis (`<prefix>:<user_id>` with a TTL).
// Any lookup failure reads as offline; presence is advisory UI state.
type Probe struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewProbe(client *redis.Client, prefix string, logger *slog.Logger) *Probe {
	return &Probe{client: client, prefix: prefix, logger: logger}
}

func (p *Probe) IsOnline(ctx context.Context, userID string) bool {
	key := fmt.Sprintf("%s:%s", p.prefix, userID)
	exists, err := p.client.Exists(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && p.logger != nil {
			p.logger.Debug("presence lookup failed", "error", err, "user_id", userID)
		}
		return false
	}
	return exists > 0
}

var _ messaging.Presence = (*Probe)(nil)
