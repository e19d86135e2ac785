// internal/bookingnum/generator.go
package bookingnum

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Generator hands out unique human-readable booking numbers. Implementations
// must be safe under concurrent creation across server instances.
type Generator interface {
	Next(ctx context.Context) (string, error)
}

// RedisGenerator derives booking numbers from a per-year Redis sequence,
// e.g. PG-2026-000042. INCR is atomic across instances, so two concurrent
// create-booking requests can never draw the same number.
type RedisGenerator struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisGenerator(client *redis.Client) *RedisGenerator {
	return &RedisGenerator{
		client: client,
		prefix: "PG",
		now:    time.Now,
	}
}

func (g *RedisGenerator) Next(ctx context.Context) (string, error) {
	year := g.now().UTC().Year()
	key := fmt.Sprintf("pedalgo:booking_seq:%d", year)

	seq, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("failed to advance booking sequence: %w", err)
	}

	return fmt.Sprintf("%s-%d-%06d", g.prefix, year, seq), nil
}
