package usedpayments

import (
	"context"
	"errors"
	"time"

	"tollgate/internal/domain"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "usedpay:"

// RedisIndex is the durable used-payment set backed by redis. SET NX
// gives the compare-and-insert: exactly one caller ever observes a
// successful insert for a reference, and the key never expires, so the
// at-most-once-spend guarantee survives process restarts.
type RedisIndex struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisIndex(addr, password string, db int, now func() time.Time) (*RedisIndex, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if now == nil {
		now = time.Now
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisIndex{client: client, now: now}, nil
}

func (r *RedisIndex) MarkUsed(ctx context.Context, ref domain.PaymentReference) (bool, error) {
	if ref == "" {
		return false, errors.New("payment reference is required")
	}
	inserted, err := r.client.SetNX(ctx, keyPrefix+string(ref), r.now().UTC().Format(time.RFC3339Nano), 0).Result()
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (r *RedisIndex) IsUsed(ctx context.Context, ref domain.PaymentReference) (bool, error) {
	n, err := r.client.Exists(ctx, keyPrefix+string(ref)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
