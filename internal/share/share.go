package share

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Share tokens are how a track leaves the chat it was recorded in: the token
// embeds the session key, so a link keeps working without any extra storage.
const defaultTokenTTL = 30 * 24 * time.Hour

var ErrInvalidToken = errors.New("share token invalid")

type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
}

func NewService(secret string) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    defaultTokenTTL,
	}
}

// Issue signs a share token for the given session.
func (s *Service) Issue(sessionID string) (string, error) {
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Resolve verifies a share token and returns the session it points at.
func (s *Service) Resolve(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" {
		return "", ErrInvalidToken
	}
	return claims.SessionID, nil
}
