package syncengine

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

func testJob(id, userID uint, start time.Time) *models.Job {
	return &models.Job{
		ID:        id,
		UserID:    userID,
		Title:     "Boiler service",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    models.JOB_STATUS_SCHEDULED,
	}
}

func testCalendarIntegration(id, userID uint) *models.Integration {
	return &models.Integration{
		ID:          id,
		UserID:      userID,
		Provider:    models.IntegrationProviderCalendar,
		CalendarID:  "primary",
		AccessToken: "token",
		TokenExpiry: futureExpiry(),
		SyncEnabled: true,
	}
}

func TestPushJobCreatesMirrorOnce(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	integration := testCalendarIntegration(1, 10)

	intRepo := newFakeIntegrationRepo(integration)
	linkRepo := newFakeLinkRepo()
	cal := newFakeCalendar()
	engine := newTestEngine(intRepo, newFakeJobRepo(job), linkRepo, cal)

	require.NoError(t, engine.PushJob(context.Background(), job, integration))

	link, err := linkRepo.GetByJobAndIntegration(job.ID, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LINK_STATUS_SYNCED, link.Status)
	assert.NotEmpty(t, link.GoogleEventID)
	assert.Equal(t, 1, cal.created)

	// Second push updates the existing mirror instead of creating another
	require.NoError(t, engine.PushJob(context.Background(), job, integration))
	assert.Equal(t, 1, cal.created)
	assert.Equal(t, 1, cal.updated)

	links, err := linkRepo.ListByIntegration(integration.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	assert.Equal(t, 2, intRepo.touched[integration.ID])
}

func TestPushJobReconcilesPendingLink(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	integration := testCalendarIntegration(1, 10)

	// A pending link with no event ID marks an interrupted earlier push
	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID:         job.ID,
		IntegrationID: integration.ID,
		Status:        models.LINK_STATUS_PENDING,
	})
	cal := newFakeCalendar()
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(job), linkRepo, cal)

	require.NoError(t, engine.PushJob(context.Background(), job, integration))

	link, err := linkRepo.GetByJobAndIntegration(job.ID, integration.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LINK_STATUS_SYNCED, link.Status)
	assert.NotEmpty(t, link.GoogleEventID)
	assert.Equal(t, 1, cal.created)
}

func TestPushJobRecreatesGoneMirror(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	integration := testCalendarIntegration(1, 10)

	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID:         job.ID,
		IntegrationID: integration.ID,
		GoogleEventID: "evt-deleted",
		Status:        models.LINK_STATUS_SYNCED,
	})
	cal := newFakeCalendar()
	cal.updateErr = &integrations.ProviderError{Op: "update event", StatusCode: http.StatusGone}
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(job), linkRepo, cal)

	require.NoError(t, engine.PushJob(context.Background(), job, integration))

	link, err := linkRepo.GetByJobAndIntegration(job.ID, integration.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "evt-deleted", link.GoogleEventID)
	assert.Equal(t, 1, cal.created)
}

func TestPushJobSyncDisabled(t *testing.T) {
	job := testJob(1, 10, time.Now())
	integration := testCalendarIntegration(1, 10)
	integration.SyncEnabled = false

	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(job), newFakeLinkRepo(), newFakeCalendar())

	err := engine.PushJob(context.Background(), job, integration)
	assert.ErrorIs(t, err, integrations.ErrSyncDisabled)
}

func TestDeleteJobMirrorClearsLink(t *testing.T) {
	job := testJob(1, 10, time.Now())
	integration := testCalendarIntegration(1, 10)

	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID:         job.ID,
		IntegrationID: integration.ID,
		GoogleEventID: "evt-1",
		Status:        models.LINK_STATUS_SYNCED,
	})
	cal := newFakeCalendar()
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(job), linkRepo, cal)

	require.NoError(t, engine.DeleteJobMirror(context.Background(), job.ID, integration))

	_, err := linkRepo.GetByJobAndIntegration(job.ID, integration.ID)
	assert.Error(t, err)
	assert.Equal(t, 1, cal.deleted)

	// A job without a mirror is a no-op
	require.NoError(t, engine.DeleteJobMirror(context.Background(), 99, integration))
}

func TestMergedEventsFiltersMirrors(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	integration := testCalendarIntegration(1, 10)

	cal := newFakeCalendar()
	cal.events["evt-mirror"] = &integrations.CalendarEvent{
		ID: "evt-mirror", Summary: "Boiler service", Start: start, End: start.Add(2 * time.Hour),
	}
	cal.events["evt-foreign"] = &integrations.CalendarEvent{
		ID: "evt-foreign", Summary: "Dentist", Start: start.Add(3 * time.Hour), End: start.Add(4 * time.Hour),
	}
	cal.events["evt-cancelled"] = &integrations.CalendarEvent{
		ID: "evt-cancelled", Summary: "Old", Status: "cancelled", Start: start, End: start.Add(time.Hour),
	}

	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID:         job.ID,
		IntegrationID: integration.ID,
		GoogleEventID: "evt-mirror",
		Status:        models.LINK_STATUS_SYNCED,
	})
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(job), linkRepo, cal)

	merged, err := engine.MergedEvents(context.Background(), 10, integration, start.Add(-time.Hour), start.Add(8*time.Hour))
	require.NoError(t, err)

	var jobEntries, providerEntries int
	for _, ev := range merged {
		switch ev.Source {
		case "job":
			jobEntries++
		case "provider":
			providerEntries++
			assert.Equal(t, "evt-foreign", ev.EventID)
		}
	}
	assert.Equal(t, 1, jobEntries)
	assert.Equal(t, 1, providerEntries)
}

func TestMergedEventsWithoutIntegration(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	engine := newTestEngine(newFakeIntegrationRepo(), newFakeJobRepo(job), newFakeLinkRepo(), newFakeCalendar())

	merged, err := engine.MergedEvents(context.Background(), 10, nil, start.Add(-time.Hour), start.Add(8*time.Hour))
	require.NoError(t, err)
	require.Len(t, merged, 1)
	assert.Equal(t, "job", merged[0].Source)
}

func TestPullCalendarChangesWritesOnlySyncedFields(t *testing.T) {
	start := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	job := testJob(1, 10, start)
	job.Title = "Original title"
	integration := testCalendarIntegration(1, 10)
	integration.TwoWaySyncEnabled = true

	newStart := start.Add(time.Hour)
	cal := newFakeCalendar()
	cal.events["evt-1"] = &integrations.CalendarEvent{
		ID:          "evt-1",
		Summary:     "Renamed provider-side",
		Description: "moved by customer",
		Start:       newStart,
		End:         newStart.Add(2 * time.Hour),
	}

	jobRepo := newFakeJobRepo(job)
	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID:         job.ID,
		IntegrationID: integration.ID,
		GoogleEventID: "evt-1",
		Status:        models.LINK_STATUS_SYNCED,
	})
	engine := newTestEngine(newFakeIntegrationRepo(integration), jobRepo, linkRepo, cal)

	changed, err := engine.PullCalendarChanges(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	updated, err := jobRepo.GetByID(job.ID)
	require.NoError(t, err)
	assert.True(t, updated.StartTime.Equal(newStart))
	assert.Equal(t, "moved by customer", updated.Description)
	// Title is never writable from the provider side
	assert.Equal(t, "Original title", updated.Title)
}

func TestPullCalendarChangesRequiresTwoWaySync(t *testing.T) {
	integration := testCalendarIntegration(1, 10)
	integration.TwoWaySyncEnabled = false

	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(), newFakeLinkRepo(), newFakeCalendar())

	changed, err := engine.PullCalendarChanges(context.Background(), integration)
	require.NoError(t, err)
	assert.Equal(t, 0, changed)
}
