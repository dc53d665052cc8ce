package auth

import (
	"context"

	"github.com/kailas-cloud/hostdex/internal/domain"
)

// PrincipalStore resolves a token subject to a principal.
// Returns domain.ErrNotFound when the subject is unknown.
type PrincipalStore interface {
	Get(ctx context.Context, id string) (*domain.Principal, error)
}
