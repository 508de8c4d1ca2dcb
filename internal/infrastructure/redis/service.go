package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/deepgram/chatroom/internal/config"
)

type Service struct {
	client *redis.Client
}

// NewService connects to REDIS_URL. It returns nil when Redis is not
// configured or cannot be reached; callers fall back to another store.
func NewService() *Service {
	url := config.GetRedisURL()

	if url == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: config.GetRedisPassword(),
		DB:       0,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Error().
			Err(err).
			Str("addr", url).
			Msg("Failed to establish Redis connection")
		_ = client.Close()
		return nil
	}

	return &Service{
		client: client,
	}
}

// RPush appends values to the list at key
func (s *Service) RPush(ctx context.Context, key string, values ...interface{}) error {
	if err := s.client.RPush(ctx, key, values...).Err(); err != nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis RPUSH operation failed")
		return err
	}
	return nil
}

// LRange returns the whole list at key, oldest first
func (s *Service) LRange(ctx context.Context, key string) ([]string, error) {
	vals, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil && err != redis.Nil {
		log.Error().
			Err(err).
			Str("key", key).
			Msg("Redis LRANGE operation failed")
		return nil, err
	}
	return vals, nil
}

// HSet sets one field of the hash at key
func (s *Service) HSet(ctx context.Context, key, field, value string) error {
	return s.client.HSet(ctx, key, field, value).Err()
}

// HGetAll returns every field of the hash at key
func (s *Service) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return s.client.HGetAll(ctx, key).Result()
}

// Delete removes keys from Redis
func (s *Service) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Ping checks if Redis is accessible
func (s *Service) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *Service) Close() error {
	return s.client.Close()
}
