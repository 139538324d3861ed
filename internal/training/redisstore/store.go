// Package redisstore stores the training corpus in Redis as a single JSON
// string under voxcmd:training:<name>.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrWong99/voxcmd/internal/training"
)

// KeyPrefix is prepended to the record name to form the Redis key.
const KeyPrefix = "voxcmd:training:"

// Compile-time interface checks.
var (
	_ training.Store  = (*Store)(nil)
	_ training.Pinger = (*Store)(nil)
)

// Config holds the connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Store is a Redis-backed [training.Store]. It is safe for concurrent use.
type Store struct {
	client redis.UniversalClient
	key    string
	owned  bool
}

// New opens a client for cfg and verifies it with PING.
func New(ctx context.Context, cfg Config, name string) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping %s: %w", cfg.Addr, err)
	}
	s := NewWithClient(client, name)
	s.owned = true
	return s, nil
}

// NewWithClient wraps an existing client. Close does not close it.
func NewWithClient(client redis.UniversalClient, name string) *Store {
	return &Store{client: client, key: KeyPrefix + name}
}

// Key returns the Redis key the store uses.
func (s *Store) Key() string {
	return s.key
}

// Load implements [training.Store.Load].
func (s *Store) Load(ctx context.Context) (*training.Record, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: get %s: %w", s.key, err)
	}
	return training.DecodeRecord(data)
}

// Save implements [training.Store.Save].
func (s *Store) Save(ctx context.Context, rec *training.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis store: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis store: set %s: %w", s.key, err)
	}
	return nil
}

// Ping implements [training.Pinger].
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis store: ping: %w", err)
	}
	return nil
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
