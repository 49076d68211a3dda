package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/worksuite/identity-service/config"
	"github.com/worksuite/identity-service/internal/audit"
	autherror "github.com/worksuite/identity-service/internal/errors"
	"github.com/worksuite/identity-service/internal/identity/domain"
	"github.com/worksuite/identity-service/internal/identity/dto"
)

const (
	failureReasonBadCredentials  = "invalid_credentials"
	failureReasonAccountLocked   = "account_locked"
	failureReasonAccountDisabled = "account_disabled"
)

// AuthService composes the credential verifier, the token issuer and the two
// stores into the login, rotation and logout flows.
type AuthService struct {
	users    domain.UserStore
	repo     domain.AuthRepository
	sessions *SessionService
	tokens   TokenGenerator
	events   *audit.Dispatcher
	cfg      *config.Config
}

func NewAuthService(users domain.UserStore, repo domain.AuthRepository, sessions *SessionService,
	tokens TokenGenerator, events *audit.Dispatcher, cfg *config.Config) *AuthService {
	return &AuthService{
		users:    users,
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		events:   events,
		cfg:      cfg,
	}
}

// Login verifies the credentials, gated by the per-(username, ip) lockout
// window. The lockout check runs before any user lookup or password
// comparison: a locked pair gets the same answer whether or not the password
// is right, so the lock is not a timing oracle, and one abusive IP cannot
// lock a username out for everyone else.
func (s *AuthService) Login(ctx context.Context, input dto.LoginInput) (*dto.TokenResponse, error) {
	failures, err := s.repo.CountRecentFailures(ctx, input.Username, input.IPAddress, s.cfg.LockoutWindow())
	if err != nil {
		return nil, fmt.Errorf("failed to check login attempts: %w", err)
	}
	if failures >= s.cfg.LoginMaxAttempts {
		s.recordAttempt(ctx, input.Username, input.IPAddress, false, failureReasonAccountLocked)
		s.emitLockout(ctx, input.Username, input.IPAddress)
		return nil, autherror.ErrAccountLocked
	}

	user, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		return nil, err
	}

	// Unknown user and wrong password take the same path so the response
	// never reveals which check failed.
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		s.recordAttempt(ctx, input.Username, input.IPAddress, false, failureReasonBadCredentials)
		s.events.Emit(audit.Event{
			Type:     audit.EventLoginFailure,
			Username: input.Username,
			IP:       input.IPAddress,
			Error:    failureReasonBadCredentials,
		})
		return nil, autherror.ErrInvalidCredentials
	}

	if !user.IsActive {
		s.recordAttempt(ctx, input.Username, input.IPAddress, false, failureReasonAccountDisabled)
		s.events.Emit(audit.Event{
			Type:     audit.EventLoginFailure,
			UserID:   user.ID,
			Username: input.Username,
			IP:       input.IPAddress,
			Error:    failureReasonAccountDisabled,
		})
		return nil, autherror.ErrAccountDisabled
	}

	if err := s.repo.ClearFailures(ctx, input.Username, input.IPAddress); err != nil {
		return nil, fmt.Errorf("failed to clear login attempts: %w", err)
	}
	s.recordAttempt(ctx, input.Username, input.IPAddress, true, "")

	identity := domain.Identity{UserID: user.ID, Role: user.Role, IsActive: user.IsActive}

	accessToken, accessExpiry, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, refreshExpiry, err := s.tokens.IssueRefreshToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	// Single active refresh token per user: a new login supersedes any
	// still-valid token from a previous one.
	if err := s.repo.DeleteActiveRefreshTokens(ctx, user.ID); err != nil {
		return nil, err
	}
	if err := s.repo.StoreRefreshToken(ctx, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refreshToken,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		ExpiresAt: refreshExpiry,
		CreatedAt: time.Now(),
		Revoked:   false,
	}); err != nil {
		return nil, err
	}

	sessionID, err := s.sessions.Create(ctx, user.ID, input.IPAddress, input.UserAgent)
	if err != nil {
		return nil, err
	}

	s.events.Emit(audit.Event{
		Type:      audit.EventLoginSuccess,
		UserID:    user.ID,
		Username:  input.Username,
		SessionID: sessionID,
		IP:        input.IPAddress,
		Success:   true,
	})

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		SessionID:    sessionID,
		ExpiresAt:    accessExpiry,
	}, nil
}

// Refresh rotates the presented refresh token: signature and type are checked
// first, then the persisted row is consumed and replaced atomically. A token
// replayed after a successful rotation has no row left and fails, which is the
// replay detection.
func (s *AuthService) Refresh(ctx context.Context, input dto.RefreshInput) (*dto.TokenResponse, error) {
	claims, err := s.tokens.Validate(input.RefreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, autherror.ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, autherror.ErrInvalidRefreshToken
	}
	if !user.IsActive {
		return nil, autherror.ErrAccountDisabled
	}

	identity := domain.Identity{UserID: user.ID, Role: user.Role, IsActive: user.IsActive}

	accessToken, accessExpiry, err := s.tokens.IssueAccessToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	newRefreshToken, refreshExpiry, err := s.tokens.IssueRefreshToken(identity)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	rotated, err := s.repo.RotateRefreshToken(ctx, input.RefreshToken, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     newRefreshToken,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		ExpiresAt: refreshExpiry,
		CreatedAt: time.Now(),
		Revoked:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	if !rotated {
		s.events.Emit(audit.Event{
			Type:   audit.EventTokenReuse,
			UserID: user.ID,
			IP:     input.IPAddress,
			Error:  "refresh token replayed or unknown",
		})
		return nil, autherror.ErrInvalidRefreshToken
	}

	s.events.Emit(audit.Event{
		Type:    audit.EventTokenRotation,
		UserID:  user.ID,
		IP:      input.IPAddress,
		Success: true,
	})

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    accessExpiry,
	}, nil
}

// Logout revokes the presented refresh token and deactivates the session.
// Both halves are idempotent; logging out twice is a success.
func (s *AuthService) Logout(ctx context.Context, input dto.LogoutInput) error {
	if input.RefreshToken != "" {
		if err := s.repo.RevokeRefreshToken(ctx, input.RefreshToken); err != nil {
			return err
		}
	}
	if err := s.sessions.Deactivate(ctx, input.SessionID); err != nil {
		return err
	}

	s.events.Emit(audit.Event{
		Type:      audit.EventLogout,
		SessionID: input.SessionID,
		Success:   true,
	})

	return nil
}

// LogoutAll revokes every refresh token and deactivates every session for the
// user; any prior token or session then fails or no-ops.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllRefreshTokens(ctx, userID); err != nil {
		return err
	}
	deactivated, err := s.sessions.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return err
	}

	s.events.Emit(audit.Event{
		Type:    audit.EventLogoutAll,
		UserID:  userID,
		Success: true,
		Metadata: map[string]string{
			"sessions_closed": strconv.FormatInt(deactivated, 10),
		},
	})

	return nil
}

// recordAttempt appends to the attempt log. The log is best effort on the
// failure paths; the login outcome is already decided when it is written.
func (s *AuthService) recordAttempt(ctx context.Context, username, ip string, success bool, reason string) {
	err := s.repo.RecordLoginAttempt(ctx, &domain.LoginAttempt{
		ID:            uuid.NewString(),
		Username:      username,
		IPAddress:     ip,
		Successful:    success,
		FailureReason: reason,
		AttemptedAt:   time.Now(),
	})
	if err != nil {
		log.Printf("warn: failed to record login attempt for %s: %v", username, err)
	}
}

// emitLockout attaches the coarser per-IP failure count as metadata. That
// counter is audit-only and never blocks.
func (s *AuthService) emitLockout(ctx context.Context, username, ip string) {
	event := audit.Event{
		Type:     audit.EventAccountLockout,
		Username: username,
		IP:       ip,
		Error:    failureReasonAccountLocked,
	}
	if ipFailures, err := s.repo.CountRecentFailuresByIP(ctx, ip, s.cfg.LockoutWindow()); err == nil {
		event.Metadata = map[string]string{"ip_failures": strconv.Itoa(ipFailures)}
	}
	s.events.Emit(event)
}
