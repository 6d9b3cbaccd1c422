package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fitness-accounts/internal/model"
	"fitness-accounts/internal/session"
)

// TokenClaims is the verified content of an access or refresh token.
type TokenClaims struct {
	UserID   string
	IssuedAt time.Time
}

// TokenService issues and verifies the HS256 token pair. Tokens are
// self-verifying (signature and expiry need no store round-trip) while refresh
// tokens are additionally revocable through the session store, which is what
// makes logout-everywhere possible without an unbounded revocation list.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	sessions      *session.Store
}

func NewTokenService(accessSecret string, refreshSecret string, accessTTL time.Duration, refreshTTL time.Duration, sessions *session.Store) *TokenService {
	return &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		sessions:      sessions,
	}
}

func (s *TokenService) IssueAccessToken(userID string) (string, error) {
	return s.sign(userID, s.accessSecret, s.accessTTL)
}

func (s *TokenService) IssueRefreshToken(userID string) (string, error) {
	return s.sign(userID, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) VerifyAccessToken(tokenString string) (*TokenClaims, error) {
	return s.verify(tokenString, s.accessSecret)
}

func (s *TokenService) VerifyRefreshToken(tokenString string) (*TokenClaims, error) {
	return s.verify(tokenString, s.refreshSecret)
}

// RegisterSession records the refresh token in the user's session list,
// starting the 7-day clock on the first registration.
func (s *TokenService) RegisterSession(ctx context.Context, userID string, refreshToken string) error {
	return s.sessions.Register(ctx, userID, refreshToken)
}

func (s *TokenService) IsSessionActive(ctx context.Context, userID string, refreshToken string) (bool, error) {
	return s.sessions.Contains(ctx, userID, refreshToken)
}

func (s *TokenService) RevokeAllSessions(ctx context.Context, userID string) error {
	return s.sessions.RevokeAll(ctx, userID)
}

func (s *TokenService) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  userID,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenString string, secret []byte) (*TokenClaims, error) {
	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, model.ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, model.ErrInvalidToken
	}

	claimsMap, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, model.ErrInvalidToken
	}

	userID, _ := claimsMap["id"].(string)
	if userID == "" {
		return nil, model.ErrInvalidToken
	}

	issuedAtRaw, _ := claimsMap["iat"].(float64)
	if issuedAtRaw == 0 {
		return nil, model.ErrInvalidToken
	}

	return &TokenClaims{
		UserID:   userID,
		IssuedAt: time.Unix(int64(issuedAtRaw), 0).UTC(),
	}, nil
}
