package cooldown

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Gate decides whether a notification for an alert may fire within the
// current cooldown window.
type Gate interface {
	TryReserve(ctx context.Context, alertID int64, price decimal.Decimal) (bool, error)
}

// Setter is the subset of the redis client the gate needs.
type Setter interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisGate enforces at-most-one reservation per alert per cooldown window.
// SET NX with a TTL is the single atomic check-and-set; concurrent callers
// across processes cannot both succeed for the same alert.
type RedisGate struct {
	client Setter
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisGate constructs a gate backed by a shared redis instance.
func NewRedisGate(client Setter, ttl time.Duration, logger zerolog.Logger) *RedisGate {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisGate{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "cooldown_gate").Logger(),
	}
}

// TryReserve atomically claims the cooldown slot for an alert. It returns true
// when no live mark existed and the caller may notify; false when a mark is
// still live. The stored value is the price at trigger time, for auditing.
func (g *RedisGate) TryReserve(ctx context.Context, alertID int64, price decimal.Decimal) (bool, error) {
	key := markKey(alertID)
	reserved, err := g.client.SetNX(ctx, key, price.String(), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve cooldown %s: %w", key, err)
	}
	if !reserved {
		g.logger.Debug().Int64("alert_id", alertID).Msg("notification suppressed by cooldown")
	}
	return reserved, nil
}

func markKey(alertID int64) string {
	return fmt.Sprintf("cooldown:alert:%d", alertID)
}

var _ Gate = (*RedisGate)(nil)
