package service

//go:generate mockgen -destination=../../mocks/mock_token_generator.go -package=mocks github.com/worksuite/identity-service/internal/identity/service TokenGenerator

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/worksuite/identity-service/internal/identity/domain"
	autherror "github.com/worksuite/identity-service/internal/errors"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

type TokenGenerator interface {
	IssueAccessToken(identity domain.Identity) (string, time.Time, error)
	IssueRefreshToken(identity domain.Identity) (string, time.Time, error)
	Validate(tokenString, expectedType string) (*IdentityClaims, error)
	AccessTokenExpiry() time.Duration
	RefreshTokenExpiry() time.Duration
}

// TokenService is the stateless issuer: it signs and verifies, and never
// touches storage. Only refresh tokens are persisted elsewhere, because they
// are long-lived and must be revocable.
type TokenService struct {
	secret             string
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
}

type IdentityClaims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	IsActive  bool   `json:"is_active"`
	TokenType string `json:"type"`
}

func NewTokenService(secret string, accessMinutes, refreshMinutes int) *TokenService {
	return &TokenService{
		secret:             secret,
		accessTokenExpiry:  time.Duration(accessMinutes) * time.Minute,
		refreshTokenExpiry: time.Duration(refreshMinutes) * time.Minute,
	}
}

func (ts *TokenService) IssueAccessToken(identity domain.Identity) (string, time.Time, error) {
	return ts.issue(identity, TokenTypeAccess, ts.accessTokenExpiry)
}

func (ts *TokenService) IssueRefreshToken(identity domain.Identity) (string, time.Time, error) {
	return ts.issue(identity, TokenTypeRefresh, ts.refreshTokenExpiry)
}

func (ts *TokenService) issue(identity domain.Identity, tokenType string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := IdentityClaims{
		Role:      identity.Role,
		IsActive:  identity.IsActive,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(ts.secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// Validate parses and verifies the given token string and checks that it is of
// the expected type, so an access-token validator rejects a refresh token and
// vice versa.
func (ts *TokenService) Validate(tokenString, expectedType string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, autherror.ErrBadSignature
		}
		return []byte(ts.secret), nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, autherror.ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, autherror.ErrBadSignature):
			return nil, autherror.ErrBadSignature
		default:
			return nil, autherror.ErrMalformedToken
		}
	}

	if !token.Valid {
		return nil, autherror.ErrMalformedToken
	}

	if claims.TokenType != expectedType {
		return nil, autherror.ErrWrongTokenType
	}

	return claims, nil
}

func (ts *TokenService) AccessTokenExpiry() time.Duration {
	return ts.accessTokenExpiry
}

func (ts *TokenService) RefreshTokenExpiry() time.Duration {
	return ts.refreshTokenExpiry
}
