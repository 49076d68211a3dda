package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/worksuite/identity-service/internal/identity/domain"
)

// DB is the subset of pgxpool.Pool the repository uses; pgxmock satisfies it
// in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements domain.UserStore, domain.AuthRepository and
// domain.SessionRepository against a single Postgres database.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// --- user store ---

const userColumns = `id, username, role, is_active, password_hash, created_at, updated_at`

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE username = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1
		LIMIT 1;
	`
	return r.scanUser(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Username, &user.Role, &user.IsActive,
		&user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// --- login attempts ---

func (r *PostgresRepository) RecordLoginAttempt(ctx context.Context, attempt *domain.LoginAttempt) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_attempts (id, username, ip_address, successful, failure_reason, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, attempt.ID, attempt.Username, attempt.IPAddress, attempt.Successful,
		attempt.FailureReason, attempt.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CountRecentFailures(ctx context.Context, username, ip string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE username = $1
		  AND ip_address = $2
		  AND successful = false
		  AND attempted_at > $3;
	`
	var count int
	err := r.db.QueryRow(ctx, query, username, ip, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent failures: %w", err)
	}

	return count, nil
}

// CountRecentFailuresByIP is the coarser per-IP counter; it feeds audit
// metadata only and never contributes to blocking.
func (r *PostgresRepository) CountRecentFailuresByIP(ctx context.Context, ip string, window time.Duration) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM login_attempts
		WHERE ip_address = $1
		  AND successful = false
		  AND attempted_at > $2;
	`
	var count int
	err := r.db.QueryRow(ctx, query, ip, time.Now().Add(-window)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent failures by ip: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) ClearFailures(ctx context.Context, username, ip string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM login_attempts
		WHERE username = $1
		  AND ip_address = $2
		  AND successful = false
	`, username, ip)
	if err != nil {
		return fmt.Errorf("failed to clear failed attempts: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM login_attempts WHERE attempted_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune login attempts: %w", err)
	}

	return tag.RowsAffected(), nil
}

// --- refresh tokens ---

func (r *PostgresRepository) StoreRefreshToken(ctx context.Context, rt *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token, ip_address, user_agent, expires_at, created_at, revoked)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query,
		rt.ID, rt.UserID, rt.Token, rt.IPAddress, rt.UserAgent,
		rt.ExpiresAt, rt.CreatedAt, rt.Revoked)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// DeleteActiveRefreshTokens removes any still-valid rows for the user,
// enforcing the single-active-refresh-token-per-user policy at login.
func (r *PostgresRepository) DeleteActiveRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
		  AND revoked = false
		  AND expires_at > now()
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete active refresh tokens: %w", err)
	}

	return nil
}

// RotateRefreshToken consumes oldToken and persists next in one transaction.
// The SELECT ... FOR UPDATE recheck makes the rotation linearizable per
// consumed token: of two concurrent calls with the same old token, exactly one
// finds the row.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, oldToken string, next *domain.RefreshToken) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var oldID string
	err = tx.QueryRow(ctx, `
		SELECT id
		FROM refresh_tokens
		WHERE token = $1
		  AND revoked = false
		  AND expires_at > now()
		FOR UPDATE
	`, oldToken).Scan(&oldID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock refresh token: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, oldID); err != nil {
		return false, fmt.Errorf("failed to delete consumed refresh token: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token, ip_address, user_agent, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, next.ID, next.UserID, next.Token, next.IPAddress, next.UserAgent,
		next.ExpiresAt, next.CreatedAt, next.Revoked); err != nil {
		return false, fmt.Errorf("failed to store rotated refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit rotation: %w", err)
	}

	return true, nil
}

// RevokeRefreshToken is idempotent: revoking an absent or already-revoked
// token affects zero rows and reports success.
func (r *PostgresRepository) RevokeRefreshToken(ctx context.Context, token string) error {
	_, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	return nil
}

func (r *PostgresRepository) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh tokens for user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeleteExpiredRefreshTokens(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < now() OR revoked = true`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	return tag.RowsAffected(), nil
}

// --- sessions ---

const sessionColumns = `id, user_id, ip_address, user_agent, created_at, last_activity, active`

func (r *PostgresRepository) InsertSession(ctx context.Context, s *domain.UserSession) error {
	query := `INSERT INTO user_sessions (` + sessionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.CreatedAt, s.LastActivity, s.Active)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*domain.UserSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE id = $1
		LIMIT 1;
	`
	return r.scanSession(r.db.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) scanSession(row pgx.Row) (*domain.UserSession, error) {
	var s domain.UserSession
	err := row.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastActivity, &s.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &s, nil
}

func (r *PostgresRepository) CountActiveSessions(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM user_sessions WHERE user_id = $1 AND active = true
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) OldestActiveSession(ctx context.Context, userID string) (*domain.UserSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1
		  AND active = true
		ORDER BY last_activity ASC, created_at ASC
		LIMIT 1;
	`
	return r.scanSession(r.db.QueryRow(ctx, query, userID))
}

// TouchSession updates last_activity; an unknown id affects zero rows, which
// keeps touch a silent no-op for stale client session headers.
func (r *PostgresRepository) TouchSession(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE user_sessions SET last_activity = $2 WHERE id = $1 AND active = true
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeactivateSession(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE user_sessions SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}

	return nil
}

func (r *PostgresRepository) DeactivateAllSessions(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_sessions SET active = false WHERE user_id = $1 AND active = true
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate sessions for user: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) DeactivateIdleSessions(ctx context.Context, idleBefore time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_sessions SET active = false WHERE active = true AND last_activity < $1
	`, idleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate idle sessions: %w", err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ListActiveSessions(ctx context.Context, userID string) ([]domain.UserSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM user_sessions
		WHERE user_id = $1
		  AND active = true
		ORDER BY last_activity DESC;
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.UserSession
	for rows.Next() {
		var s domain.UserSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent,
			&s.CreatedAt, &s.LastActivity, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}

	return sessions, nil
}
