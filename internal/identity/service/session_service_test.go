package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksuite/identity-service/internal/identity/domain"
	"github.com/worksuite/identity-service/internal/identity/service"
	"github.com/worksuite/identity-service/internal/mocks"
)

const (
	testMaxSessions = 5
	testInactivity  = 30 * time.Minute
)

func newSessionService(ctrl *gomock.Controller) (*service.SessionService, *mocks.MockSessionRepository) {
	repo := mocks.NewMockSessionRepository(ctrl)
	return service.NewSessionService(repo, nil, testMaxSessions, testInactivity), repo
}

func TestSessionService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newSessionService(ctrl)
	ctx := context.Background()

	t.Run("under the cap just inserts", func(t *testing.T) {
		repo.EXPECT().CountActiveSessions(gomock.Any(), "user-1").Return(2, nil)
		repo.EXPECT().InsertSession(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, s *domain.UserSession) error {
				assert.Equal(t, "user-1", s.UserID)
				assert.Equal(t, "1.2.3.4", s.IPAddress)
				assert.True(t, s.Active)
				assert.Equal(t, s.CreatedAt, s.LastActivity)
				return nil
			})

		id, err := svc.Create(ctx, "user-1", "1.2.3.4", "browser")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("at the cap evicts the least recently active session first", func(t *testing.T) {
		oldest := &domain.UserSession{ID: "stale-session", UserID: "user-1", Active: true}

		gomock.InOrder(
			repo.EXPECT().CountActiveSessions(gomock.Any(), "user-1").Return(testMaxSessions, nil),
			repo.EXPECT().OldestActiveSession(gomock.Any(), "user-1").Return(oldest, nil),
			repo.EXPECT().DeactivateSession(gomock.Any(), "stale-session").Return(nil),
			repo.EXPECT().InsertSession(gomock.Any(), gomock.Any()).Return(nil),
		)

		id, err := svc.Create(ctx, "user-1", "5.6.7.8", "phone")
		require.NoError(t, err)
		assert.NotEmpty(t, id)
		assert.NotEqual(t, "stale-session", id)
	})

	t.Run("an overshoot from racing creates self-corrects by evicting two", func(t *testing.T) {
		// Racing creates can leave the count one over the cap; the next
		// create must evict two so its own insert lands back at the cap.
		stalest := &domain.UserSession{ID: "sess-stalest", UserID: "user-1", Active: true}
		staler := &domain.UserSession{ID: "sess-staler", UserID: "user-1", Active: true}

		gomock.InOrder(
			repo.EXPECT().CountActiveSessions(gomock.Any(), "user-1").Return(testMaxSessions+1, nil),
			repo.EXPECT().OldestActiveSession(gomock.Any(), "user-1").Return(stalest, nil),
			repo.EXPECT().DeactivateSession(gomock.Any(), "sess-stalest").Return(nil),
			repo.EXPECT().OldestActiveSession(gomock.Any(), "user-1").Return(staler, nil),
			repo.EXPECT().DeactivateSession(gomock.Any(), "sess-staler").Return(nil),
			repo.EXPECT().InsertSession(gomock.Any(), gomock.Any()).Return(nil),
		)

		_, err := svc.Create(ctx, "user-1", "1.2.3.4", "browser")
		assert.NoError(t, err)
	})
}

func TestSessionService_Touch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newSessionService(ctrl)
	ctx := context.Background()

	t.Run("touches the repository row", func(t *testing.T) {
		repo.EXPECT().TouchSession(gomock.Any(), "sess-1", gomock.Any()).Return(nil)

		assert.NoError(t, svc.Touch(ctx, "sess-1"))
	})

	t.Run("empty id never reaches the repository", func(t *testing.T) {
		assert.NoError(t, svc.Touch(ctx, ""))
	})
}

func TestSessionService_IsValid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newSessionService(ctrl)
	ctx := context.Background()

	t.Run("active and recently touched", func(t *testing.T) {
		repo.EXPECT().GetSession(gomock.Any(), "sess-1").Return(&domain.UserSession{
			ID: "sess-1", Active: true, LastActivity: time.Now().Add(-time.Minute),
		}, nil)

		valid, err := svc.IsValid(ctx, "sess-1")
		require.NoError(t, err)
		assert.True(t, valid)
	})

	t.Run("idle past the timeout", func(t *testing.T) {
		repo.EXPECT().GetSession(gomock.Any(), "sess-1").Return(&domain.UserSession{
			ID: "sess-1", Active: true, LastActivity: time.Now().Add(-testInactivity - time.Minute),
		}, nil)

		valid, err := svc.IsValid(ctx, "sess-1")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("deactivated", func(t *testing.T) {
		repo.EXPECT().GetSession(gomock.Any(), "sess-1").Return(&domain.UserSession{
			ID: "sess-1", Active: false, LastActivity: time.Now(),
		}, nil)

		valid, err := svc.IsValid(ctx, "sess-1")
		require.NoError(t, err)
		assert.False(t, valid)
	})

	t.Run("unknown session", func(t *testing.T) {
		repo.EXPECT().GetSession(gomock.Any(), "missing").Return(nil, nil)

		valid, err := svc.IsValid(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestSessionService_Deactivate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newSessionService(ctrl)
	ctx := context.Background()

	repo.EXPECT().DeactivateSession(gomock.Any(), "sess-1").Return(nil)
	assert.NoError(t, svc.Deactivate(ctx, "sess-1"))

	// Empty id is a no-op, matching the tolerance in Touch.
	assert.NoError(t, svc.Deactivate(ctx, ""))

	repo.EXPECT().DeactivateAllSessions(gomock.Any(), "user-1").Return(int64(4), nil)
	n, err := svc.DeactivateAllForUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestSessionService_SweepExpired(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc, repo := newSessionService(ctrl)

	repo.EXPECT().DeactivateIdleSessions(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, idleBefore time.Time) (int64, error) {
			// The cutoff is the inactivity timeout measured back from now.
			expected := time.Now().Add(-testInactivity)
			assert.WithinDuration(t, expected, idleBefore, 5*time.Second)
			return int64(7), nil
		})

	n, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
