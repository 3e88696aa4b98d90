package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/lead-intake-service/internal/auth"
	"github.com/spec-kit/lead-intake-service/internal/config"
	apperrors "github.com/spec-kit/lead-intake-service/pkg/errorutil"
)

const revokedKeyPrefix = "session:revoked:"

// AuthService authenticates the demo credential pair and manages session
// tokens. The configured demo password is bcrypt-hashed once at startup so
// login always goes through a hash comparison.
type AuthService struct {
	tokenMgr     *auth.TokenManager
	demoEmail    string
	demoPassHash string
	redis        *redis.Client
}

// NewAuthService builds the service. redisClient may be nil; logout then
// degrades to a no-op and tokens simply expire.
func NewAuthService(cfg config.AuthConfig, redisClient *redis.Client) (*AuthService, error) {
	hash, err := auth.HashPassword(cfg.DemoPassword, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	return &AuthService{
		tokenMgr:     auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		demoEmail:    strings.ToLower(strings.TrimSpace(cfg.DemoEmail)),
		demoPassHash: hash,
		redis:        redisClient,
	}, nil
}

// TokenManager exposes the manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Login checks the demo credentials and issues a session token.
func (s *AuthService) Login(_ context.Context, email, password string) (string, time.Time, error) {
	if strings.ToLower(strings.TrimSpace(email)) != s.demoEmail {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(s.demoPassHash, password); err != nil {
		return "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(s.demoEmail)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError(err)
	}
	return token, exp, nil
}

// Logout denylists the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, tokenStr string) error {
	claims, err := s.tokenMgr.ParseToken(tokenStr)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	if s.redis == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// IsRevoked implements auth.RevocationChecker via the Redis denylist.
func (s *AuthService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.redis == nil || tokenID == "" {
		return false, nil
	}
	_, err := s.redis.Get(ctx, revokedKeyPrefix+tokenID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		// Redis being down must not lock every caller out.
		return false, nil
	}
	return true, nil
}
