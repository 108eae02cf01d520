package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/model"
)

// Claims are carried by a session token value.
type Claims struct {
	jwt.RegisteredClaims
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// TokenIssuer mints and verifies session token values (HS256 JWTs).
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. An empty secret makes Mint fail.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL is the lifetime of a minted token.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Mint creates a token for user that expires ttl after now.
func (i *TokenIssuer) Mint(user *model.User, now time.Time) (*model.SessionToken, error) {
	if len(i.secret) == 0 {
		return nil, apperr.New(apperr.CodeConfigMissing, "session.mint", errors.New("missing SESSION_SECRET"))
	}
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: user.Email,
		Role:  user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "session.mint", fmt.Errorf("sign token: %w", err))
	}
	return &model.SessionToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Verify parses a token value and checks its signature and expiry at now.
func (i *TokenIssuer) Verify(value string, now time.Time) (*Claims, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithTimeFunc(func() time.Time { return now }),
		// exp is encoded in whole seconds; the snapshot expiry is the precise one.
		jwt.WithLeeway(time.Second),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.New(apperr.CodeSessionExpired, "session.verify", err)
		}
		return nil, apperr.New(apperr.CodeUnauthenticated, "session.verify", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperr.New(apperr.CodeUnauthenticated, "session.verify", errors.New("invalid token claims"))
	}
	return claims, nil
}
