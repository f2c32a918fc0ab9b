package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"truthguard/pkg/domain"
)

const (
	redisKeyToken = "truthguard:session:token"
	redisKeyUser  = "truthguard:session:user"
	redisKeyUsage = "truthguard:usage_count"

	redisOpTimeout = 3 * time.Second
)

// RedisStore keeps client state in Redis. Useful for kiosk or shared-host
// deployments where several processes present one logical client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a Redis-backed state store.
func NewRedisStore(addr, password string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
	}
}

func (s *RedisStore) SaveToken(token string) error {
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Set(ctx, redisKeyToken, token, 0).Err()
}

func (s *RedisStore) Token() (string, bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	val, err := s.client.Get(ctx, redisKeyToken).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, val != "", nil
}

func (s *RedisStore) SaveUser(user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Set(ctx, redisKeyUser, data, 0).Err()
}

func (s *RedisStore) User() (domain.User, bool, error) {
	ctx, cancel := opCtx()
	defer cancel()
	data, err := s.client.Get(ctx, redisKeyUser).Bytes()
	if err == redis.Nil {
		return domain.User{}, false, nil
	}
	if err != nil {
		return domain.User{}, false, err
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil {
		return domain.User{}, false, err
	}
	return user, true, nil
}

func (s *RedisStore) ClearSession() error {
	ctx, cancel := opCtx()
	defer cancel()
	if err := s.client.Del(ctx, redisKeyToken, redisKeyUser).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (s *RedisStore) UsageCount() (int, error) {
	ctx, cancel := opCtx()
	defer cancel()
	val, err := s.client.Get(ctx, redisKeyUsage).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(val)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func (s *RedisStore) SaveUsageCount(n int) error {
	if n < 0 {
		n = 0
	}
	ctx, cancel := opCtx()
	defer cancel()
	return s.client.Set(ctx, redisKeyUsage, strconv.Itoa(n), 0).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}
