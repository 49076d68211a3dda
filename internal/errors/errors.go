package errors

import (
	"errors"
)

var (
	// ErrInvalidCredentials is deliberately generic: it covers both an unknown
	// username and a wrong password so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("too many failed login attempts")
	ErrAccountDisabled    = errors.New("account disabled")

	// ErrInvalidRefreshToken covers expired, revoked, replayed and unknown
	// refresh tokens alike; a refresh that fails this way requires a fresh login.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	ErrExpiredToken   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("invalid token signature")
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrSessionNotFound is soft: session lookups tolerate stale ids and the
	// handlers never surface it to clients.
	ErrSessionNotFound = errors.New("session not found")
)
