package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseLock deletes the lock only if it still carries our token, so an
// expired lock taken over by someone else is left alone.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRepository keeps cart sessions as JSON values that expire after ttl
// of inactivity.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisRepository(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl, logger: logger.With("component", "cart_repository")}
}

func (r *RedisRepository) Get(ctx context.Context, id string) (*Cart, error) {
	data, err := r.client.Get(ctx, cartKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	if c.Lines == nil {
		c.Lines = []Line{}
	}
	return &c, nil
}

func (r *RedisRepository) Save(ctx context.Context, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.client.Set(ctx, cartKey(c.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, cartKey(id)).Result()
	if err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RedisRepository) Lock(ctx context.Context, id string) (func(), error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKey(id), token, LockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lock failed: %w", err)
	}
	if !ok {
		return nil, ErrCartBusy
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		n, err := releaseLock.Run(ctx, r.client, []string{lockKey(id)}, token).Int()
		if err != nil {
			r.logger.Error("release cart lock failed", "cart_id", id, "error", err)
			return
		}
		if n == 0 {
			r.logger.Warn("cart lock expired before release", "cart_id", id)
		}
	}, nil
}

func cartKey(id string) string {
	return fmt.Sprintf("cart:%s", id)
}

func lockKey(id string) string {
	return fmt.Sprintf("cart:%s:lock", id)
}
