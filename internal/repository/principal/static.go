package principal

import (
	"context"

	"github.com/kailas-cloud/hostdex/internal/domain"
)

// StaticStore serves principals declared in configuration.
type StaticStore struct {
	users map[string]bool
}

// NewStaticStore creates a StaticStore from an id → active map.
func NewStaticStore(users map[string]bool) *StaticStore {
	m := make(map[string]bool, len(users))
	for id, active := range users {
		m[id] = active
	}
	return &StaticStore{users: m}
}

// Get returns the principal for id, or domain.ErrNotFound.
func (s *StaticStore) Get(_ context.Context, id string) (*domain.Principal, error) {
	active, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &domain.Principal{ID: id, Active: active}, nil
}

// Ping always succeeds.
func (s *StaticStore) Ping(context.Context) error { return nil }
