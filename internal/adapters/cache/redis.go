package cache

import (
	"context"
	"fmt"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel is the pub/sub channel authoritative nodes listen on
// to drop cached answers.
const InvalidationChannel = "dns:invalidation"

// RedisInvalidator implements ports.RecordInvalidator.
type RedisInvalidator struct {
	client *redis.Client
}

func NewRedisInvalidator(addr string, password string, db int) *RedisInvalidator {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisInvalidator{client: rdb}
}

func (r *RedisInvalidator) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Invalidate publishes "<fqdn>:<type>" to all nodes.
func (r *RedisInvalidator) Invalidate(ctx context.Context, fqdn string, qType domain.RecordType) error {
	msg := fmt.Sprintf("%s:%s", fqdn, string(qType))
	return r.client.Publish(ctx, InvalidationChannel, msg).Err()
}

func (r *RedisInvalidator) Close() error {
	return r.client.Close()
}
