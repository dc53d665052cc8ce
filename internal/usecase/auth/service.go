// Package auth verifies bearer tokens and resolves them to principals.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kailas-cloud/hostdex/internal/domain"
)

const bearerScheme = "Bearer"

// Config holds token verification parameters.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Service is the token verifier. It is stateless and safe for concurrent use.
type Service struct {
	principals PrincipalStore
	parser     *jwt.Parser
	cfg        Config
}

// New creates a Service.
func New(cfg Config, principals PrincipalStore) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	if principals == nil {
		return nil, errors.New("principal store is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	return &Service{
		principals: principals,
		parser:     jwt.NewParser(opts...),
		cfg:        cfg,
	}, nil
}

// Verify checks the Authorization header value. It returns (nil, nil, nil) when
// no bearer credential is present; callers decide whether anonymous is allowed.
// A Bearer header with a missing or split token is rejected as invalid.
func (s *Service) Verify(ctx context.Context, header string) (*domain.Principal, *jwt.Token, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return nil, nil, nil
	}
	if raw == "" {
		return nil, nil, fmt.Errorf("%w: malformed bearer credential", domain.ErrTokenInvalid)
	}

	claims := &jwt.RegisteredClaims{}
	token, err := s.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	if claims.Subject == "" {
		return nil, nil, fmt.Errorf("%w: missing subject", domain.ErrTokenInvalid)
	}

	p, err := s.principals.Get(ctx, claims.Subject)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.ErrPrincipalInactive
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve principal: %w", err)
	}
	if !p.Active {
		return nil, nil, domain.ErrPrincipalInactive
	}
	return p, token, nil
}

// Issue signs an HS256 token for subject with the configured issuer and audience.
func (s *Service) Issue(subject string, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// bearerToken splits a "Bearer <token>" header. The scheme is matched
// case-insensitively. ok is false when the header is absent or uses another
// scheme; a Bearer header without exactly one token yields ok and an empty raw.
func bearerToken(header string) (raw string, ok bool) {
	parts := strings.Fields(header)
	if len(parts) == 0 || !strings.EqualFold(parts[0], bearerScheme) {
		return "", false
	}
	if len(parts) != 2 {
		return "", true
	}
	return parts[1], true
}
