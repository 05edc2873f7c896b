package integrations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/cache"
)

const (
	// tokenExpirySkew treats tokens expiring within the window as stale so an
	// in-flight provider call never races the actual expiry.
	tokenExpirySkew = 30 * time.Second

	refreshLockTTL      = 30 * time.Second
	refreshLockAttempts = 10
	refreshLockRetry    = 200 * time.Millisecond
)

// Locker serializes token refreshes per integration across concurrent
// requests and processes.
type Locker interface {
	Acquire(key string, ttl time.Duration) (bool, error)
	Release(key string) error
}

// cacheLocker implements Locker on the shared Redis cache.
type cacheLocker struct{}

func (cacheLocker) Acquire(key string, ttl time.Duration) (bool, error) {
	return cache.AcquireLock(key, ttl)
}

func (cacheLocker) Release(key string) error {
	return cache.ReleaseLock(key)
}

// Manager owns the OAuth token lifecycle for all integrations. Every provider
// call site asks the manager for a fresh access token first; the manager
// refreshes and persists expired tokens before handing them out.
type Manager struct {
	repo       repository.IntegrationRepository
	refreshers map[string]Refresher
	locker     Locker

	// ReauthNotify is invoked when a refresh is rejected because the refresh
	// token was revoked. The integration has already been sync-disabled.
	ReauthNotify func(integration *models.Integration)
}

// NewManager creates an integration manager with the default Redis locker.
func NewManager(repo repository.IntegrationRepository, refreshers map[string]Refresher) *Manager {
	return &Manager{repo: repo, refreshers: refreshers, locker: cacheLocker{}}
}

// NewManagerWithLocker creates an integration manager with a custom locker.
func NewManagerWithLocker(repo repository.IntegrationRepository, refreshers map[string]Refresher, locker Locker) *Manager {
	return &Manager{repo: repo, refreshers: refreshers, locker: locker}
}

// EnsureFreshToken returns a usable access token for the integration,
// refreshing and persisting it first when expired. The integration struct is
// updated in place so callers keep working with current token state.
//
// Concurrent refreshes for the same integration are serialized through a
// per-integration lock; a request that loses the race re-reads the row and
// usually finds the token already refreshed.
func (m *Manager) EnsureFreshToken(ctx context.Context, integration *models.Integration) (string, error) {
	if !integration.TokenExpired(tokenExpirySkew) {
		return integration.AccessToken, nil
	}

	refresher, ok := m.refreshers[integration.Provider]
	if !ok {
		return "", fmt.Errorf("no refresher registered for provider %q", integration.Provider)
	}

	lockKey := fmt.Sprintf("integration:refresh:%d", integration.ID)
	acquired := m.acquireLock(lockKey)
	if acquired {
		defer func() {
			if err := m.locker.Release(lockKey); err != nil {
				log.Warnf("[IntegrationManager] Failed to release refresh lock %s: %v", lockKey, err)
			}
		}()

		// Another request may have refreshed while we waited for the lock
		if fresh, err := m.repo.GetByID(integration.ID); err == nil {
			*integration = *fresh
			if !integration.TokenExpired(tokenExpirySkew) {
				return integration.AccessToken, nil
			}
		}
	} else {
		// Lock unavailable (contention or Redis down). Refreshing anyway is
		// safe: the provider refresh grant is idempotent per token generation
		// and UpdateTokens is a plain overwrite.
		log.Warnf("[IntegrationManager] Proceeding without refresh lock for integration %d", integration.ID)
	}

	return m.refresh(ctx, integration, refresher)
}

func (m *Manager) acquireLock(key string) bool {
	for attempt := 0; attempt < refreshLockAttempts; attempt++ {
		ok, err := m.locker.Acquire(key, refreshLockTTL)
		if err != nil {
			return false
		}
		if ok {
			return true
		}
		time.Sleep(refreshLockRetry)
	}
	return false
}

func (m *Manager) refresh(ctx context.Context, integration *models.Integration, refresher Refresher) (string, error) {
	tokens, err := refresher.Refresh(ctx, integration.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrReauthRequired) {
			log.Warnf("[IntegrationManager] Refresh token revoked for integration %d (%s), disabling sync",
				integration.ID, integration.Provider)
			if derr := m.repo.SetSyncEnabled(integration.ID, false); derr != nil {
				log.Errorf("[IntegrationManager] Failed to disable sync for integration %d: %v", integration.ID, derr)
			}
			integration.SyncEnabled = false
			if m.ReauthNotify != nil {
				m.ReauthNotify(integration)
			}
		}
		return "", err
	}

	// Persist before returning so no provider call ever runs on a token the
	// store does not know about.
	if err := m.repo.UpdateTokens(integration.ID, tokens.AccessToken, tokens.RefreshToken, tokens.Expiry); err != nil {
		return "", fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}

	integration.AccessToken = tokens.AccessToken
	integration.RefreshToken = tokens.RefreshToken
	expiry := tokens.Expiry
	integration.TokenExpiry = &expiry

	log.Infof("[IntegrationManager] Refreshed token for integration %d (%s), new expiry %s",
		integration.ID, integration.Provider, tokens.Expiry.Format(time.RFC3339))
	return tokens.AccessToken, nil
}
