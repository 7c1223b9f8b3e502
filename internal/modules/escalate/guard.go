// README: Redis guard for overlapping sweep triggers, keyed per order/track.
package escalate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"fieldops/internal/modules/order"
	"fieldops/internal/types"
)

const (
	sweepLockKey      = "escalate:sweep:lock"
	reminderKeyPrefix = "escalate:order:%s:%s"
)

// Guard fences concurrent sweep execution. The persisted cool-down stamp
// is the correctness backstop; the guard just keeps overlapping triggers
// (client interval + external cron) from doing duplicate work.
type Guard interface {
	// AcquireSweep claims the sweep lock; false means another trigger
	// holds it and this pass should be skipped.
	AcquireSweep(ctx context.Context) (bool, error)
	ReleaseSweep(ctx context.Context) error
	// MarkReminder claims the right to send one reminder for an
	// order/track within the cool-down window.
	MarkReminder(ctx context.Context, orderID types.ID, track order.Track) (bool, error)
}

type RedisGuard struct {
	redis    *redis.Client
	lockTTL  time.Duration
	cooldown time.Duration
}

func NewRedisGuard(client *redis.Client, lockTTL, cooldown time.Duration) *RedisGuard {
	return &RedisGuard{redis: client, lockTTL: lockTTL, cooldown: cooldown}
}

func (g *RedisGuard) AcquireSweep(ctx context.Context) (bool, error) {
	return g.redis.SetNX(ctx, sweepLockKey, "1", g.lockTTL).Result()
}

func (g *RedisGuard) ReleaseSweep(ctx context.Context) error {
	return g.redis.Del(ctx, sweepLockKey).Err()
}

func (g *RedisGuard) MarkReminder(ctx context.Context, orderID types.ID, track order.Track) (bool, error) {
	key := fmt.Sprintf(reminderKeyPrefix, string(orderID), string(track))
	return g.redis.SetNX(ctx, key, "1", g.cooldown).Result()
}
