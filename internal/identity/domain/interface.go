package domain

//go:generate mockgen -destination=../../mocks/mock_user_store.go -package=mocks github.com/worksuite/identity-service/internal/identity/domain UserStore
//go:generate mockgen -destination=../../mocks/mock_auth_repository.go -package=mocks github.com/worksuite/identity-service/internal/identity/domain AuthRepository
//go:generate mockgen -destination=../../mocks/mock_session_repository.go -package=mocks github.com/worksuite/identity-service/internal/identity/domain SessionRepository

import (
	"context"
	"time"
)

// UserStore is the external user lookup this core consumes. Profile CRUD lives
// with the HR collaborator, not here.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
}

type AuthRepository interface {
	RecordLoginAttempt(ctx context.Context, attempt *LoginAttempt) error
	CountRecentFailures(ctx context.Context, username, ip string, window time.Duration) (int, error)
	CountRecentFailuresByIP(ctx context.Context, ip string, window time.Duration) (int, error)
	ClearFailures(ctx context.Context, username, ip string) error
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	StoreRefreshToken(ctx context.Context, token *RefreshToken) error
	DeleteActiveRefreshTokens(ctx context.Context, userID string) error
	// RotateRefreshToken atomically consumes oldToken and persists next in one
	// transaction. It reports false when no live row exists for oldToken, which
	// is how a replayed rotation loses the race.
	RotateRefreshToken(ctx context.Context, oldToken string, next *RefreshToken) (bool, error)
	RevokeRefreshToken(ctx context.Context, token string) error
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
}

type SessionRepository interface {
	InsertSession(ctx context.Context, session *UserSession) error
	GetSession(ctx context.Context, id string) (*UserSession, error)
	CountActiveSessions(ctx context.Context, userID string) (int, error)
	// OldestActiveSession orders by last_activity, then created_at, so eviction
	// always picks the least recently active session.
	OldestActiveSession(ctx context.Context, userID string) (*UserSession, error)
	TouchSession(ctx context.Context, id string, at time.Time) error
	DeactivateSession(ctx context.Context, id string) error
	DeactivateAllSessions(ctx context.Context, userID string) (int64, error)
	DeactivateIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error)
	ListActiveSessions(ctx context.Context, userID string) ([]UserSession, error)
}
