package redis

// Package redis provides Redis-based adapters for the console session layer.

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/target/mmk-console/internal/ports"
)

var _ ports.KeyValueStore = (*KVStore)(nil)

// KVStore is a Redis-backed durable store. Keys never expire: session lifetime is
// decided by the backend rejecting the token, not by storage TTLs.
type KVStore struct {
	client redis.UniversalClient
	prefix string
}

// NewKVStore creates a Redis store using the default "mmk-console:" key prefix.
func NewKVStore(client redis.UniversalClient) *KVStore {
	return &KVStore{
		client: client,
		prefix: "mmk-console:",
	}
}

// NewKVStoreWithPrefix creates a Redis store with a custom key prefix.
func NewKVStoreWithPrefix(client redis.UniversalClient, prefix string) *KVStore {
	return &KVStore{
		client: client,
		prefix: prefix,
	}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, nil
	}

	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return v, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *KVStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to delete
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w: %w", ports.ErrStorageUnavailable, err)
	}
	return nil
}
