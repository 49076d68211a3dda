package domain

import "time"

// User is the row shape the external user store returns. This service never
// creates or mutates users; it only authenticates them.
type User struct {
	ID           string
	Username     string
	Role         string
	IsActive     bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Identity is the resolved principal handed to downstream collaborators.
// It is never persisted.
type Identity struct {
	UserID   string
	Role     string
	IsActive bool
}

// LoginAttempt rows are append-only; they are written on every login call and
// removed only by the retention sweep.
type LoginAttempt struct {
	ID            string
	Username      string
	IPAddress     string
	Successful    bool
	FailureReason string
	AttemptedAt   time.Time
}

type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// UserSession tracks one logged-in device/browser context. A session stays
// valid while it is active and has been touched within the inactivity window;
// token validity is independent of it.
type UserSession struct {
	ID           string
	UserID       string
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}
