package integrations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

type stubIntegrationRepo struct {
	row          *models.Integration
	tokenUpdates int
	syncDisabled bool
}

func (r *stubIntegrationRepo) Create(integration *models.Integration) error { return nil }

func (r *stubIntegrationRepo) GetByID(id uint) (*models.Integration, error) {
	if r.row == nil || r.row.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *r.row
	return &clone, nil
}

func (r *stubIntegrationRepo) GetByIDForUser(id, userID uint) (*models.Integration, error) {
	return r.GetByID(id)
}

func (r *stubIntegrationRepo) GetByUserAndProvider(userID uint, provider string) (*models.Integration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubIntegrationRepo) GetByProviderAccount(userID uint, provider, accountEmail string) (*models.Integration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubIntegrationRepo) GetByWatchChannelID(channelID string) (*models.Integration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubIntegrationRepo) GetByAccountEmail(provider, accountEmail string) (*models.Integration, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *stubIntegrationRepo) ListByUser(userID uint) ([]models.Integration, error) {
	return nil, nil
}

func (r *stubIntegrationRepo) ListSyncEnabled(userID uint, provider string) ([]models.Integration, error) {
	return nil, nil
}

func (r *stubIntegrationRepo) ListWatchExpiring(before time.Time) ([]models.Integration, error) {
	return nil, nil
}

func (r *stubIntegrationRepo) Update(integration *models.Integration) error { return nil }

func (r *stubIntegrationRepo) UpdateTokens(id uint, accessToken, refreshToken string, expiry time.Time) error {
	r.tokenUpdates++
	if r.row != nil && r.row.ID == id {
		r.row.AccessToken = accessToken
		r.row.RefreshToken = refreshToken
		r.row.TokenExpiry = &expiry
	}
	return nil
}

func (r *stubIntegrationRepo) UpdateWatch(id uint, channelID, resourceID string, expiration *time.Time) error {
	return nil
}

func (r *stubIntegrationRepo) UpdateHistoryID(id uint, historyID uint64) error { return nil }

func (r *stubIntegrationRepo) SetSyncEnabled(id uint, enabled bool) error {
	r.syncDisabled = !enabled
	if r.row != nil && r.row.ID == id {
		r.row.SyncEnabled = enabled
	}
	return nil
}

func (r *stubIntegrationRepo) TouchLastSynced(id uint, eventCount int64) error { return nil }

func (r *stubIntegrationRepo) Delete(id uint) error { return nil }

type stubRefresher struct {
	tokens *Tokens
	err    error
	calls  int
}

func (s *stubRefresher) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.tokens, nil
}

type grantingLocker struct{}

func (grantingLocker) Acquire(key string, ttl time.Duration) (bool, error) { return true, nil }
func (grantingLocker) Release(key string) error                            { return nil }

// failingLocker simulates Redis being unavailable; the manager must proceed
// without the lock instead of blocking the refresh.
type failingLocker struct{}

func (failingLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	return false, assert.AnError
}
func (failingLocker) Release(key string) error { return nil }

func expiredIntegration() *models.Integration {
	past := time.Now().Add(-time.Hour)
	return &models.Integration{
		ID:           1,
		UserID:       10,
		Provider:     models.IntegrationProviderCalendar,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-token",
		TokenExpiry:  &past,
		SyncEnabled:  true,
	}
}

func TestEnsureFreshTokenSkipsRefreshWhenValid(t *testing.T) {
	future := time.Now().Add(time.Hour)
	integration := &models.Integration{
		ID: 1, Provider: models.IntegrationProviderCalendar,
		AccessToken: "good-token", TokenExpiry: &future,
	}

	refresher := &stubRefresher{}
	m := NewManagerWithLocker(&stubIntegrationRepo{row: integration}, map[string]Refresher{
		models.IntegrationProviderCalendar: refresher,
	}, grantingLocker{})

	token, err := m.EnsureFreshToken(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, "good-token", token)
	assert.Zero(t, refresher.calls)
}

func TestEnsureFreshTokenRefreshesAndPersists(t *testing.T) {
	integration := expiredIntegration()
	repo := &stubIntegrationRepo{row: integration}

	newExpiry := time.Now().Add(time.Hour)
	refresher := &stubRefresher{tokens: &Tokens{
		AccessToken:  "fresh-token",
		RefreshToken: "rotated-refresh",
		Expiry:       newExpiry,
	}}
	m := NewManagerWithLocker(repo, map[string]Refresher{
		models.IntegrationProviderCalendar: refresher,
	}, grantingLocker{})

	token, err := m.EnsureFreshToken(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, 1, repo.tokenUpdates)

	// The caller's struct is updated in place
	assert.Equal(t, "fresh-token", integration.AccessToken)
	assert.Equal(t, "rotated-refresh", integration.RefreshToken)
	require.NotNil(t, integration.TokenExpiry)
	assert.True(t, integration.TokenExpiry.Equal(newExpiry))
}

func TestEnsureFreshTokenReusesConcurrentRefresh(t *testing.T) {
	// The stored row already carries a fresh token, as after a concurrent
	// request won the refresh race while we waited for the lock.
	future := time.Now().Add(time.Hour)
	stored := expiredIntegration()
	stored.AccessToken = "already-refreshed"
	stored.TokenExpiry = &future
	repo := &stubIntegrationRepo{row: stored}

	stale := expiredIntegration()
	refresher := &stubRefresher{}
	m := NewManagerWithLocker(repo, map[string]Refresher{
		models.IntegrationProviderCalendar: refresher,
	}, grantingLocker{})

	token, err := m.EnsureFreshToken(context.Background(), stale)
	require.NoError(t, err)
	assert.Equal(t, "already-refreshed", token)
	assert.Zero(t, refresher.calls)
	assert.Zero(t, repo.tokenUpdates)
}

func TestEnsureFreshTokenRevokedDisablesSync(t *testing.T) {
	integration := expiredIntegration()
	repo := &stubIntegrationRepo{row: integration}

	var notified *models.Integration
	refresher := &stubRefresher{err: ErrReauthRequired}
	m := NewManagerWithLocker(repo, map[string]Refresher{
		models.IntegrationProviderCalendar: refresher,
	}, grantingLocker{})
	m.ReauthNotify = func(i *models.Integration) { notified = i }

	_, err := m.EnsureFreshToken(context.Background(), integration)
	assert.ErrorIs(t, err, ErrReauthRequired)
	assert.True(t, repo.syncDisabled)
	assert.False(t, integration.SyncEnabled)
	require.NotNil(t, notified)
	assert.Equal(t, integration.ID, notified.ID)
}

func TestEnsureFreshTokenProceedsWithoutLock(t *testing.T) {
	integration := expiredIntegration()
	repo := &stubIntegrationRepo{row: integration}

	refresher := &stubRefresher{tokens: &Tokens{
		AccessToken: "fresh-token",
		Expiry:      time.Now().Add(time.Hour),
	}}
	m := NewManagerWithLocker(repo, map[string]Refresher{
		models.IntegrationProviderCalendar: refresher,
	}, failingLocker{})

	token, err := m.EnsureFreshToken(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, refresher.calls)
}

func TestEnsureFreshTokenUnknownProvider(t *testing.T) {
	integration := expiredIntegration()
	integration.Provider = "unknown"

	m := NewManagerWithLocker(&stubIntegrationRepo{row: integration}, map[string]Refresher{}, grantingLocker{})

	_, err := m.EnsureFreshToken(context.Background(), integration)
	assert.Error(t, err)
}
