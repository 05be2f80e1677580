// Package redis implements ports.Storage on Redis. Every record is a plain
// string key under a namespace, so several courier instances can share
// one Redis database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/bft-labs/courier/internal/domain"
)

// DefaultNamespace prefixes keys when no namespace is given.
const DefaultNamespace = "courier"

const scanBatch = 100

// Storage stores records as Redis strings named "<namespace>:<record>".
type Storage struct {
	client    goredis.UniversalClient
	namespace string
}

// NewStorage wraps client. An empty namespace selects DefaultNamespace.
func NewStorage(client goredis.UniversalClient, namespace string) *Storage {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Storage{client: client, namespace: namespace}
}

// Dial connects to addr and verifies the connection with PING.
func Dial(ctx context.Context, addr, password string, db int, namespace string) (*Storage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewStorage(client, namespace), nil
}

func (s *Storage) key(name string) string {
	return s.namespace + ":" + name
}

// Get returns domain.ErrNotFound for a missing key.
func (s *Storage) Get(ctx context.Context, name string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", name, err)
	}
	return b, nil
}

// Set stores data with no expiry; courier manages its own expiry.
func (s *Storage) Set(ctx context.Context, name string, data []byte) error {
	if err := s.client.Set(ctx, s.key(name), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", name, err)
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", name, err)
	}
	return nil
}

// ListKeys walks the namespace with SCAN, so it never blocks the server
// the way KEYS would.
func (s *Storage) ListKeys(ctx context.Context) ([]string, error) {
	prefix := s.namespace + ":"
	var names []string

	iter := s.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Close releases the client.
func (s *Storage) Close() error {
	return s.client.Close()
}
