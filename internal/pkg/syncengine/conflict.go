package syncengine

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
)

const (
	ConflictTypeInternal = "internal"
	ConflictTypeExternal = "external"
)

// conflictLookback widens the provider query window so events that started
// before the proposed slot but run into it are still fetched.
const conflictLookback = 12 * time.Hour

// Conflict describes one booking that collides with a proposed time slot.
type Conflict struct {
	Type  string    `json:"type"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// overlaps is the half-open interval test shared by both conflict sources:
// [aStart, aEnd) intersects [bStart, bEnd). Back-to-back bookings where one
// ends exactly when the other starts do not conflict.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// CheckConflict reports every booking colliding with [start, end): other jobs
// of the user, and foreign provider events on sync-enabled calendars. Mirrors
// of jobs are excluded so a synced job is not reported twice, and the job
// being rescheduled (excludeJobID) never conflicts with itself.
//
// Provider outages degrade the check instead of failing it: internal conflicts
// are still returned when a calendar cannot be reached.
func (e *Engine) CheckConflict(ctx context.Context, userID uint, start, end time.Time, excludeJobID uint) ([]Conflict, error) {
	jobs, err := e.Repos.Job.ListOverlapping(userID, start, end, excludeJobID)
	if err != nil {
		return nil, err
	}

	conflicts := make([]Conflict, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		if job.Status == models.JOB_STATUS_CANCELLED {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:  ConflictTypeInternal,
			Title: job.Title,
			Start: job.StartTime,
			End:   job.EndTime,
		})
	}

	list, err := e.Repos.Integration.ListSyncEnabled(userID, models.IntegrationProviderCalendar)
	if err != nil {
		return nil, err
	}

	for i := range list {
		integration := &list[i]

		external, err := e.externalConflicts(ctx, integration, start, end)
		if err != nil {
			log.Warnf("[SyncEngine] Conflict check against integration %d failed: %v", integration.ID, err)
			continue
		}
		conflicts = append(conflicts, external...)
	}
	return conflicts, nil
}

func (e *Engine) externalConflicts(ctx context.Context, integration *models.Integration, start, end time.Time) ([]Conflict, error) {
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return nil, err
	}

	events, err := e.Calendar.ListEvents(ctx, token, integration.CalendarID, start.Add(-conflictLookback), end)
	if err != nil {
		return nil, err
	}
	mirrored, err := e.Repos.CalendarLink.ListEventIDs(integration.ID)
	if err != nil {
		return nil, err
	}

	var conflicts []Conflict
	for i := range events {
		ev := &events[i]
		if ev.Status == "cancelled" {
			continue
		}
		if _, ok := mirrored[ev.ID]; ok {
			// Mirrors are already covered by the internal job check
			continue
		}
		if !overlaps(start, end, ev.Start, ev.End) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:  ConflictTypeExternal,
			Title: ev.Summary,
			Start: ev.Start,
			End:   ev.End,
		})
	}
	return conflicts, nil
}
