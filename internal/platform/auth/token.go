package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

const issuerName = "clinic"

type Claims struct {
	jwt.RegisteredClaims
	Role     string `json:"role"`
	Username string `json:"username"`
}

// TokenIssuer signs sessions into HS256 tokens and parses them back.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret []byte, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, ttl: ttl, now: time.Now}
}

// Issue creates a new session for the user and returns it with its token.
func (ti *TokenIssuer) Issue(userID uuid.UUID, username, role string) (string, *Session, error) {
	now := ti.now().UTC().Truncate(time.Second)
	s := &Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Username:  username,
		Role:      NormalizeRole(role),
		IssuedAt:  now,
		ExpiresAt: now.Add(ti.ttl),
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   userID.String(),
			Issuer:    issuerName,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		Role:     s.Role,
		Username: username,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, s, nil
}

// Parse validates the token signature and expiry and returns its session.
func (ti *TokenIssuer) Parse(tokenStr string) (*Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || claims.ID == "" || claims.Role == "" {
		return nil, ErrInvalidToken
	}

	s := &Session{
		ID:        claims.ID,
		UserID:    userID,
		Username:  claims.Username,
		Role:      NormalizeRole(claims.Role),
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		s.IssuedAt = claims.IssuedAt.Time
	}
	return s, nil
}
