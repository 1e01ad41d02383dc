package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"riad/internal/config"
	"riad/internal/models"

	"github.com/redis/go-redis/v9"
)

const wizardKeyPrefix = "riad:wizard"

// RedisWizardStore keeps wizard sessions as JSON values with a TTL.
type RedisWizardStore struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:                  cfg.Address,
		Password:              cfg.Password,
		DB:                    cfg.DB,
		PoolSize:              cfg.PoolSize,
		ContextTimeoutEnabled: true,
	})
}

func NewRedisWizardStore(client *redis.Client) *RedisWizardStore {
	return &RedisWizardStore{client: client}
}

func wizardKey(owner, id string) string {
	return fmt.Sprintf("%s:%s:%s", wizardKeyPrefix, owner, id)
}

func (r *RedisWizardStore) GetSession(ctx context.Context, owner, id string) (*models.WizardSession, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, wizardKey(owner, id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wizard session from redis: %w", err)
	}

	var session models.WizardSession
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wizard session: %w", err)
	}
	return &session, nil
}

func (r *RedisWizardStore) SaveSession(ctx context.Context, session *models.WizardSession, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal wizard session: %w", err)
	}

	if err := r.client.Set(ctx, wizardKey(session.Owner, session.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set wizard session in redis: %w", err)
	}
	return nil
}

func (r *RedisWizardStore) DeleteSession(ctx context.Context, owner, id string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, wizardKey(owner, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete wizard session from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
