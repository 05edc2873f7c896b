package syncengine

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// watchRenewalWindow is how close to expiry a subscription gets renewed.
// Providers cap subscription lifetimes, so renewal has to run well before the
// deadline or notifications silently stop.
const watchRenewalWindow = 24 * time.Hour

func webhookURLFor(provider string) string {
	base := integrations.BaseURL()
	switch provider {
	case models.IntegrationProviderCalendar:
		return base + "/webhooks/calendar"
	case models.IntegrationProviderGmail:
		return base + "/webhooks/gmail"
	case models.IntegrationProviderOutlook:
		return base + "/webhooks/outlook"
	}
	return base + "/webhooks/" + provider
}

// StartWatch registers a push subscription for the integration and persists
// the channel state. An existing active subscription is stopped first so a
// stale channel cannot keep delivering alongside the new one.
func (e *Engine) StartWatch(ctx context.Context, integration *models.Integration) error {
	if !integration.SyncEnabled {
		return integrations.ErrSyncDisabled
	}

	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return err
	}

	if integration.WatchActive() {
		if err := e.stopWatchChannel(ctx, token, integration); err != nil {
			log.Warnf("[SyncEngine] Could not stop previous watch channel %s: %v", integration.WatchChannelID, err)
		}
	}

	channelID := uuid.New().String()
	webhookURL := webhookURLFor(integration.Provider)

	var sub *integrations.WatchSubscription
	switch integration.Provider {
	case models.IntegrationProviderCalendar:
		sub, err = e.Calendar.StartWatch(ctx, token, integration.CalendarID, channelID, webhookURL)
	case models.IntegrationProviderGmail, models.IntegrationProviderOutlook:
		var adapter integrations.MailProvider
		adapter, err = e.MailFor(integration.Provider)
		if err == nil {
			sub, err = adapter.StartWatch(ctx, token, channelID, webhookURL)
		}
	default:
		return fmt.Errorf("provider %q does not support watch subscriptions", integration.Provider)
	}
	if err != nil {
		return err
	}

	expiration := sub.Expiration
	if err := e.Repos.Integration.UpdateWatch(integration.ID, sub.ChannelID, sub.ResourceID, &expiration); err != nil {
		return err
	}
	integration.WatchChannelID = sub.ChannelID
	integration.WatchResourceID = sub.ResourceID
	integration.WatchExpiration = &expiration

	if sub.HistoryID > 0 {
		if err := e.Repos.Integration.UpdateHistoryID(integration.ID, sub.HistoryID); err != nil {
			return err
		}
		integration.WatchHistoryID = sub.HistoryID
	}

	log.Infof("[SyncEngine] Watch registered for integration %d (%s), channel %s expires %s",
		integration.ID, integration.Provider, sub.ChannelID, expiration.Format(time.RFC3339))
	return nil
}

// StopWatch tears down the push subscription. The provider call is best
// effort; local channel state is cleared regardless so a half-dead channel
// cannot block reconnecting.
func (e *Engine) StopWatch(ctx context.Context, integration *models.Integration) error {
	if integration.WatchChannelID != "" {
		token, err := e.Manager.EnsureFreshToken(ctx, integration)
		if err == nil {
			if err := e.stopWatchChannel(ctx, token, integration); err != nil {
				log.Warnf("[SyncEngine] Watch stop for integration %d failed: %v", integration.ID, err)
			}
		} else {
			log.Warnf("[SyncEngine] Skipping provider-side watch stop for integration %d: %v", integration.ID, err)
		}
	}

	if err := e.Repos.Integration.UpdateWatch(integration.ID, "", "", nil); err != nil {
		return err
	}
	integration.WatchChannelID = ""
	integration.WatchResourceID = ""
	integration.WatchExpiration = nil
	return nil
}

func (e *Engine) stopWatchChannel(ctx context.Context, token string, integration *models.Integration) error {
	switch integration.Provider {
	case models.IntegrationProviderCalendar:
		return e.Calendar.StopWatch(ctx, token, integration.WatchChannelID, integration.WatchResourceID)
	case models.IntegrationProviderGmail, models.IntegrationProviderOutlook:
		adapter, err := e.MailFor(integration.Provider)
		if err != nil {
			return err
		}
		return adapter.StopWatch(ctx, token, integration.WatchChannelID, integration.WatchResourceID)
	}
	return nil
}

// RenewExpiringWatches re-registers every subscription expiring within the
// renewal window. Called periodically from the background queue.
func (e *Engine) RenewExpiringWatches(ctx context.Context) (int, error) {
	expiring, err := e.Repos.Integration.ListWatchExpiring(time.Now().Add(watchRenewalWindow))
	if err != nil {
		return 0, err
	}

	renewed := 0
	var firstErr error
	for i := range expiring {
		integration := &expiring[i]
		if !integration.SyncEnabled {
			continue
		}
		if err := e.StartWatch(ctx, integration); err != nil {
			log.Errorf("[SyncEngine] Watch renewal for integration %d failed: %v", integration.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		renewed++
	}
	return renewed, firstErr
}
