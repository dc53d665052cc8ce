package chi

import (
	"context"
	"errors"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hostdex/internal/domain"
	logpkg "github.com/kailas-cloud/hostdex/internal/logger"
)

// TokenVerifier resolves an Authorization header to a principal.
// A nil principal with a nil error means no credential was presented.
type TokenVerifier interface {
	Verify(ctx context.Context, header string) (*domain.Principal, *jwt.Token, error)
}

// authenticate requires a valid bearer token from an active principal.
// Handlers call it after request validation. On failure the response is
// written and ok is false; on success the returned request's logger carries
// the principal.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*http.Request, bool) {
	if s.verifier == nil {
		unauthorized(w, domain.ErrUnauthenticated)
		return nil, false
	}

	p, _, err := s.verifier.Verify(r.Context(), r.Header.Get("Authorization"))
	switch {
	case err == nil && p == nil:
		unauthorized(w, domain.ErrUnauthenticated)
		return nil, false
	case errors.Is(err, domain.ErrTokenInvalid):
		logpkg.FromContext(r.Context()).Debug("token rejected", zap.Error(err))
		unauthorized(w, domain.ErrTokenInvalid)
		return nil, false
	case errors.Is(err, domain.ErrPrincipalInactive):
		unauthorized(w, domain.ErrPrincipalInactive)
		return nil, false
	case err != nil:
		logpkg.FromContext(r.Context()).Error("token verification failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "authentication service unavailable")
		return nil, false
	}

	ctx := logpkg.With(r.Context(), zap.String("principal", p.ID))
	return r.WithContext(ctx), true
}

func unauthorized(w http.ResponseWriter, sentinel error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, sentinel.Error())
}
