/*
Package redis provides a Redis-backed generic.Store.

LAYOUT:
  One string key per user: "<prefix><user id>" holding the encoded
  snapshot (generic/codec.go). SET replaces the value atomically, so a
  reader never sees half a snapshot.

CONTRACT (see generic/store.go):
  Load: redis.Nil -> (nil, nil). Undecodable value -> (nil, nil) and the
        OnCorrupt callback fires. Connection errors are returned.
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/warp/prayer-ledger/generic"
)

// DefaultPrefix namespaces ledger keys.
const DefaultPrefix = "prayer-ledger:"

// Options configures the connection made by Dial.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Store implements generic.Store on a Redis client.
type Store struct {
	client goredis.UniversalClient
	prefix string

	mu        sync.Mutex
	onCorrupt func(generic.UserID, error)
}

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(client goredis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix}
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", opts.Addr, err)
	}
	return New(client, opts.Prefix), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// OnCorrupt registers a callback for values skipped as unreadable.
func (s *Store) OnCorrupt(fn func(generic.UserID, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCorrupt = fn
}

func (s *Store) key(userID generic.UserID) string {
	return s.prefix + string(userID)
}

// Save replaces the user's value.
func (s *Store) Save(ctx context.Context, userID generic.UserID, snap generic.Snapshot) error {
	data, err := generic.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(userID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	return nil
}

// Load returns the user's snapshot, or nil if missing or unreadable.
func (s *Store) Load(ctx context.Context, userID generic.UserID) (*generic.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	snap, err := generic.DecodeSnapshot(data)
	if err != nil {
		s.mu.Lock()
		report := s.onCorrupt
		s.mu.Unlock()
		if report != nil {
			report(userID, err)
		}
		return nil, nil
	}
	return snap, nil
}

// PutRaw stores a value without encoding it.
func (s *Store) PutRaw(ctx context.Context, userID generic.UserID, data []byte) error {
	return s.client.Set(ctx, s.key(userID), data, 0).Err()
}

// Delete removes the user's value.
func (s *Store) Delete(ctx context.Context, userID generic.UserID) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
