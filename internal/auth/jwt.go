package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Token roles.
const (
	RoleAdmin = "admin"
	RolePoll  = "poll"
)

// Claims holds the token role and, for poll-access tokens, the unlocked session.
type Claims struct {
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTService handles token generation and validation.
type JWTService struct {
	secret      []byte
	expireHours int
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	if expireHours <= 0 {
		expireHours = 24
	}
	return &JWTService{
		secret:      []byte(secret),
		expireHours: expireHours,
	}
}

// GenerateAdmin creates a token for the admin area.
func (s *JWTService) GenerateAdmin() (string, error) {
	return s.generate(Claims{Role: RoleAdmin})
}

// GeneratePollAccess creates a token that lets a voter submit to one password-protected session.
func (s *JWTService) GeneratePollAccess(sessionID string) (string, error) {
	return s.generate(Claims{Role: RolePoll, SessionID: sessionID})
}

func (s *JWTService) generate(claims Claims) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(now),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses and validates a JWT, returning claims or error.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyPollAccess checks that token unlocks sessionID. Admin tokens unlock every session.
func (s *JWTService) VerifyPollAccess(token, sessionID string) error {
	claims, err := s.Validate(token)
	if err != nil {
		return err
	}
	switch {
	case claims.Role == RoleAdmin:
		return nil
	case claims.Role == RolePoll && claims.SessionID == sessionID:
		return nil
	}
	return ErrInvalidToken
}
