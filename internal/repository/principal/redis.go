// Package principal resolves token subjects to principals.
package principal

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/hostdex/internal/db"
	"github.com/kailas-cloud/hostdex/internal/domain"
)

// DefaultKeyPrefix is prepended to the principal ID to build the hash key.
const DefaultKeyPrefix = "hostdex:user:"

const fieldActive = "active"

// RedisStore reads principals stored as hashes (HGETALL <prefix><id>).
type RedisStore struct {
	hashes db.HashStore
	prefix string
}

// NewRedisStore creates a RedisStore. An empty prefix uses DefaultKeyPrefix.
func NewRedisStore(hashes db.HashStore, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{hashes: hashes, prefix: prefix}
}

// Get returns the principal for id, or domain.ErrNotFound when no hash exists.
func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Principal, error) {
	fields, err := s.hashes.HGetAll(ctx, s.prefix+id)
	if err != nil {
		return nil, fmt.Errorf("get principal %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}
	return &domain.Principal{ID: id, Active: parseActive(fields[fieldActive])}, nil
}

// Put stores a principal hash.
func (s *RedisStore) Put(ctx context.Context, p domain.Principal) error {
	v := "0"
	if p.Active {
		v = "1"
	}
	if err := s.hashes.HSet(ctx, s.prefix+p.ID, map[string]string{fieldActive: v}); err != nil {
		return fmt.Errorf("put principal %s: %w", p.ID, err)
	}
	return nil
}

// parseActive accepts 1/0, true/false and yes/no. Anything else is inactive.
func parseActive(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "yes" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
