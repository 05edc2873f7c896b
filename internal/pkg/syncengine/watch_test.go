package syncengine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddesk/fielddesk/app/models"
)

func TestStartWatchPersistsChannelState(t *testing.T) {
	integration := &models.Integration{
		ID:          1,
		UserID:      10,
		Provider:    models.IntegrationProviderCalendar,
		AccessToken: "token",
		TokenExpiry: futureExpiry(),
		SyncEnabled: true,
	}
	intRepo := newFakeIntegrationRepo(integration)
	engine := newTestEngine(intRepo, newFakeJobRepo(), newFakeLinkRepo(), newFakeCalendar())

	require.NoError(t, engine.StartWatch(context.Background(), integration))

	assert.NotEmpty(t, integration.WatchChannelID)
	assert.Equal(t, "res-1", integration.WatchResourceID)
	require.NotNil(t, integration.WatchExpiration)
	assert.True(t, integration.WatchActive())

	stored, err := intRepo.GetByID(integration.ID)
	require.NoError(t, err)
	assert.Equal(t, integration.WatchChannelID, stored.WatchChannelID)
}

func TestStartWatchRequiresSyncEnabled(t *testing.T) {
	integration := &models.Integration{
		ID:          1,
		Provider:    models.IntegrationProviderCalendar,
		AccessToken: "token",
		TokenExpiry: futureExpiry(),
		SyncEnabled: false,
	}
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(), newFakeLinkRepo(), newFakeCalendar())

	err := engine.StartWatch(context.Background(), integration)
	assert.Error(t, err)
	assert.Empty(t, integration.WatchChannelID)
}

func TestStopWatchClearsChannelState(t *testing.T) {
	expires := time.Now().Add(12 * time.Hour)
	integration := &models.Integration{
		ID:              1,
		Provider:        models.IntegrationProviderCalendar,
		AccessToken:     "token",
		TokenExpiry:     futureExpiry(),
		SyncEnabled:     true,
		WatchChannelID:  "chan-1",
		WatchResourceID: "res-1",
		WatchExpiration: &expires,
	}
	intRepo := newFakeIntegrationRepo(integration)
	engine := newTestEngine(intRepo, newFakeJobRepo(), newFakeLinkRepo(), newFakeCalendar())

	require.NoError(t, engine.StopWatch(context.Background(), integration))

	assert.Empty(t, integration.WatchChannelID)
	assert.Nil(t, integration.WatchExpiration)

	stored, err := intRepo.GetByID(integration.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.WatchChannelID)
	assert.Nil(t, stored.WatchExpiration)
}

func TestRenewExpiringWatches(t *testing.T) {
	soon := time.Now().Add(6 * time.Hour)
	later := time.Now().Add(72 * time.Hour)

	expiring := &models.Integration{
		ID: 1, Provider: models.IntegrationProviderCalendar,
		AccessToken: "token", TokenExpiry: futureExpiry(), SyncEnabled: true,
		WatchChannelID: "chan-old", WatchResourceID: "res-old", WatchExpiration: &soon,
	}
	healthy := &models.Integration{
		ID: 2, Provider: models.IntegrationProviderCalendar,
		AccessToken: "token", TokenExpiry: futureExpiry(), SyncEnabled: true,
		WatchChannelID: "chan-2", WatchResourceID: "res-2", WatchExpiration: &later,
	}
	disabled := &models.Integration{
		ID: 3, Provider: models.IntegrationProviderCalendar,
		AccessToken: "token", TokenExpiry: futureExpiry(), SyncEnabled: false,
		WatchChannelID: "chan-3", WatchResourceID: "res-3", WatchExpiration: &soon,
	}

	intRepo := newFakeIntegrationRepo(expiring, healthy, disabled)
	engine := newTestEngine(intRepo, newFakeJobRepo(), newFakeLinkRepo(), newFakeCalendar())

	renewed, err := engine.RenewExpiringWatches(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, renewed)

	stored, err := intRepo.GetByID(expiring.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "chan-old", stored.WatchChannelID)
	assert.True(t, stored.WatchExpiration.After(soon))

	untouched, err := intRepo.GetByID(healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, "chan-2", untouched.WatchChannelID)
}
