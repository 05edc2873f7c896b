package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	hour := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	tests := []struct {
		name     string
		aStart   time.Time
		aEnd     time.Time
		bStart   time.Time
		bEnd     time.Time
		expected bool
	}{
		{"partial overlap", hour(0), hour(2), hour(1), hour(3), true},
		{"contained", hour(0), hour(4), hour(1), hour(2), true},
		{"identical", hour(0), hour(2), hour(0), hour(2), true},
		{"disjoint", hour(0), hour(1), hour(2), hour(3), false},
		{"back to back", hour(0), hour(1), hour(1), hour(2), false},
		{"back to back reversed", hour(1), hour(2), hour(0), hour(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd))
			// Overlap is symmetric
			assert.Equal(t, tt.expected, overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd))
		})
	}
}

func TestCheckConflictInternal(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	existing := &models.Job{
		ID: 1, UserID: 10, Title: "Existing booking",
		StartTime: at(10), EndTime: at(12),
		Status: models.JOB_STATUS_SCHEDULED,
	}
	cancelled := &models.Job{
		ID: 2, UserID: 10, Title: "Cancelled booking",
		StartTime: at(10), EndTime: at(12),
		Status: models.JOB_STATUS_CANCELLED,
	}

	engine := newTestEngine(newFakeIntegrationRepo(), newFakeJobRepo(existing, cancelled), newFakeLinkRepo(), newFakeCalendar())

	// 11-13 collides with the 10-12 booking
	conflicts, err := engine.CheckConflict(context.Background(), 10, at(11), at(13), 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTypeInternal, conflicts[0].Type)
	assert.Equal(t, "Existing booking", conflicts[0].Title)

	// 8-9 is clear; so is the back-to-back 12-13 slot
	conflicts, err = engine.CheckConflict(context.Background(), 10, at(8), at(9), 0)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	conflicts, err = engine.CheckConflict(context.Background(), 10, at(12), at(13), 0)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	// Rescheduling a job never conflicts with itself
	conflicts, err = engine.CheckConflict(context.Background(), 10, at(11), at(13), existing.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestCheckConflictExternal(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	integration := testCalendarIntegration(1, 10)
	cal := newFakeCalendar()
	cal.events["evt-busy"] = &integrations.CalendarEvent{
		ID: "evt-busy", Summary: "Private appointment",
		Start: at(10), End: at(12),
	}
	cal.events["evt-mirror"] = &integrations.CalendarEvent{
		ID: "evt-mirror", Summary: "Mirrored job",
		Start: at(10), End: at(12),
	}

	// The mirror is linked to a job, so only the foreign event may conflict
	linkRepo := newFakeLinkRepo(&models.SyncedCalendarEvent{
		JobID: 5, IntegrationID: integration.ID,
		GoogleEventID: "evt-mirror", Status: models.LINK_STATUS_SYNCED,
	})
	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(), linkRepo, cal)

	conflicts, err := engine.CheckConflict(context.Background(), 10, at(11), at(13), 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTypeExternal, conflicts[0].Type)
	assert.Equal(t, "Private appointment", conflicts[0].Title)
}

func TestCheckConflictDegradesOnProviderOutage(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	at := func(h int) time.Time { return day.Add(time.Duration(h) * time.Hour) }

	existing := &models.Job{
		ID: 1, UserID: 10, Title: "Existing booking",
		StartTime: at(10), EndTime: at(12),
		Status: models.JOB_STATUS_SCHEDULED,
	}
	integration := testCalendarIntegration(1, 10)
	cal := newFakeCalendar()
	cal.listErr = errors.New("provider unreachable")

	engine := newTestEngine(newFakeIntegrationRepo(integration), newFakeJobRepo(existing), newFakeLinkRepo(), cal)

	// Internal conflicts still come back when the calendar is down
	conflicts, err := engine.CheckConflict(context.Background(), 10, at(11), at(13), 0)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, ConflictTypeInternal, conflicts[0].Type)
}
