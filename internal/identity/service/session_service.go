package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/worksuite/identity-service/internal/audit"
	"github.com/worksuite/identity-service/internal/identity/domain"
)

// SessionService is the concurrent-session registry: one row per logged-in
// device, a soft cap per user enforced by LRU eviction, and inactivity expiry.
type SessionService struct {
	repo          domain.SessionRepository
	events        *audit.Dispatcher
	maxConcurrent int
	inactivity    time.Duration
}

func NewSessionService(repo domain.SessionRepository, events *audit.Dispatcher, maxConcurrent int, inactivity time.Duration) *SessionService {
	return &SessionService{
		repo:          repo,
		events:        events,
		maxConcurrent: maxConcurrent,
		inactivity:    inactivity,
	}
}

// Create registers a new session for the user. At or over the concurrency cap
// it first deactivates least-recently-active sessions until the insert below
// lands at the cap. The cap is soft: two racing creates may transiently exceed
// it by one, and the next create evicts two and self-corrects.
func (s *SessionService) Create(ctx context.Context, userID, ip, userAgent string) (string, error) {
	count, err := s.repo.CountActiveSessions(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to count sessions: %w", err)
	}

	for evictions := count - s.maxConcurrent + 1; evictions > 0; evictions-- {
		oldest, err := s.repo.OldestActiveSession(ctx, userID)
		if err != nil {
			return "", fmt.Errorf("failed to find eviction candidate: %w", err)
		}
		if oldest == nil {
			break
		}
		if err := s.repo.DeactivateSession(ctx, oldest.ID); err != nil {
			return "", fmt.Errorf("failed to evict session: %w", err)
		}
		s.events.Emit(audit.Event{
			Type:      audit.EventSessionEvicted,
			UserID:    userID,
			SessionID: oldest.ID,
			IP:        oldest.IPAddress,
			Success:   true,
		})
	}

	now := time.Now()
	session := &domain.UserSession{
		ID:           uuid.NewString(),
		UserID:       userID,
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
		Active:       true,
	}

	if err := s.repo.InsertSession(ctx, session); err != nil {
		return "", fmt.Errorf("failed to insert session: %w", err)
	}

	return session.ID, nil
}

// Touch refreshes last_activity. Unknown ids are a silent no-op so stale
// client session headers never fail a request.
func (s *SessionService) Touch(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.repo.TouchSession(ctx, sessionID, time.Now())
}

func (s *SessionService) IsValid(ctx context.Context, sessionID string) (bool, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if session == nil || !session.Active {
		return false, nil
	}

	return time.Since(session.LastActivity) < s.inactivity, nil
}

func (s *SessionService) Deactivate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.repo.DeactivateSession(ctx, sessionID)
}

func (s *SessionService) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeactivateAllSessions(ctx, userID)
}

func (s *SessionService) ListForUser(ctx context.Context, userID string) ([]domain.UserSession, error) {
	return s.repo.ListActiveSessions(ctx, userID)
}

// SweepExpired deactivates sessions idle past the inactivity timeout. It runs
// from the maintenance timer, off the request path, and closes the gap between
// passive IsValid checks and rows nobody queries again.
func (s *SessionService) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo.DeactivateIdleSessions(ctx, time.Now().Add(-s.inactivity))
}
