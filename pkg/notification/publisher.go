package notification

import (
	"context"
	"fmt"

	"github.com/klokku/sharecal/internal/config"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher delivers notifications over Redis pub/sub. Subscribers that are not
// connected at publish time miss the message.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// LogPublisher writes notifications to the log. Used when Redis is not configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	log.WithField("channel", channel).Info(string(payload))
	return nil
}

// Connect returns a Redis client for cfg, or nil when no address is configured or the
// server does not answer a ping.
func Connect(ctx context.Context, cfg config.Redis) *redis.Client {
	if cfg.Address == "" {
		log.Info("Redis address not configured, notifications go to the log")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis not available at %s, notifications go to the log: %v", cfg.Address, err)
		_ = client.Close()
		return nil
	}
	log.Infof("Connected to Redis at %s", cfg.Address)
	return client
}
