package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deskbot/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStateRepository keeps states as JSON values that expire after ttl.
type RedisStateRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateRepository(client *redis.Client, ttl time.Duration) *RedisStateRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStateRepository{client: client, ttl: ttl}
}

func stateKey(userID int64) string { return fmt.Sprintf("deskbot:state:%d", userID) }

func rateKey(userID int64) string { return fmt.Sprintf("deskbot:rate:%d", userID) }

func (r *RedisStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	raw, err := r.client.Get(ctx, stateKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get state: %w", err)
	}
	var state models.UserState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

func (r *RedisStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	state.UpdatedAt = time.Now()
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := r.client.Set(ctx, stateKey(state.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set state: %w", err)
	}
	return nil
}

func (r *RedisStateRepository) ClearState(ctx context.Context, userID int64) error {
	if err := r.client.Del(ctx, stateKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis clear state: %w", err)
	}
	return nil
}

// CheckRateLimit uses a fixed window counter.
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	key := rateKey(userID)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	if n == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("redis rate limit expire: %w", err)
		}
	}
	return n <= int64(limit), nil
}

// Ping reports whether redis is reachable.
func (r *RedisStateRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
