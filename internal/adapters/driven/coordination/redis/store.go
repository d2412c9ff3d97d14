// Package redis provides Redis-backed lock and pulse stores so several
// machines working against copies of one workspace can coordinate
// through a shared server instead of the local database.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stratalabs/strata/internal/core/ports/driven"
)

// Key layout. Each lock gets its own hash so the acquire and release
// scripts stay single-key; all pulses share one hash keyed by instance.
const (
	lockKeyPrefix = "strata:lock:"
	pulsesKey     = "strata:pulses"
)

// Store bundles the Redis-backed coordination stores behind one client.
type Store struct {
	client *redis.Client
}

// NewStore connects to the Redis server at addr and verifies the
// connection with a ping.
func NewStore(addr string) (*Store, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks that the Redis server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// LockStore returns the Redis-backed lock store.
func (s *Store) LockStore() driven.LockStore {
	return &lockStore{client: s.client}
}

// PulseStore returns the Redis-backed pulse store.
func (s *Store) PulseStore() driven.PulseStore {
	return &pulseStore{client: s.client}
}
