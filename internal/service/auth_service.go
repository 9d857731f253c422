package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/config"
)

// Common auth errors.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenType distinguishes token audiences.
type TokenType string

const (
	TokenTypeGuest TokenType = "guest"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	PlayerID  uuid.UUID `json:"player_id"`
}

// GuestToken is returned to a newly registered anonymous player.
type GuestToken struct {
	Token     string    `json:"token"`
	PlayerID  uuid.UUID `json:"player_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService issues and validates player JWTs.
type AuthService struct {
	cfg *config.Config
	now func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg, now: time.Now}
}

// IssueGuestToken mints a token for a fresh anonymous player id.
func (s *AuthService) IssueGuestToken() (*GuestToken, error) {
	playerID := uuid.New()
	now := s.now()
	expires := now.Add(s.cfg.JWTExpiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		TokenType: TokenTypeGuest,
		PlayerID:  playerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &GuestToken{Token: signed, PlayerID: playerID, ExpiresAt: expires}, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
// Expired tokens yield ErrTokenExpired, anything else ErrTokenInvalid.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.PlayerID == uuid.Nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
