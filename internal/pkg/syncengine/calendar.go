package syncengine

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
	"github.com/fielddesk/fielddesk/internal/pkg/metrics/counter"
)

// pullWindow bounds how far ahead provider-side edits are pulled back.
const pullWindow = 30 * 24 * time.Hour

// MergedEvent is one entry of the combined schedule view: either an internal
// job or a foreign provider event that has no job behind it.
type MergedEvent struct {
	Source      string    `json:"source"` // "job" or "provider"
	JobID       uint      `json:"job_id,omitempty"`
	EventID     string    `json:"event_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status,omitempty"`
}

func jobToEvent(job *models.Job) *integrations.CalendarEvent {
	return &integrations.CalendarEvent{
		Summary:     job.Title,
		Description: job.Description,
		Location:    job.Location,
		Start:       job.StartTime,
		End:         job.EndTime,
	}
}

func isGone(err error) bool {
	var perr *integrations.ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.StatusCode == http.StatusNotFound || perr.StatusCode == http.StatusGone
}

// PushJob mirrors one job into the integration's calendar. The link row is
// written with status "pending" before the provider create so an interrupted
// push leaves a marker instead of an untracked provider event; the unique
// (job_id, integration_id) index guarantees a retry updates the same mirror.
func (e *Engine) PushJob(ctx context.Context, job *models.Job, integration *models.Integration) error {
	if !integration.SyncEnabled {
		return integrations.ErrSyncDisabled
	}

	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return err
	}

	link, err := e.Repos.CalendarLink.GetByJobAndIntegration(job.ID, integration.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		link = &models.SyncedCalendarEvent{
			JobID:         job.ID,
			IntegrationID: integration.ID,
			Status:        models.LINK_STATUS_PENDING,
		}
		if cerr := e.Repos.CalendarLink.Create(link); cerr != nil {
			// Unique index collision means a concurrent push won the insert
			link, err = e.Repos.CalendarLink.GetByJobAndIntegration(job.ID, integration.ID)
			if err != nil {
				return cerr
			}
		}
	} else if err != nil {
		return err
	}

	event := jobToEvent(job)

	if link.GoogleEventID == "" {
		// Fresh push, or reconciliation of an interrupted one
		eventID, err := e.Calendar.CreateEvent(ctx, token, integration.CalendarID, event)
		if err != nil {
			return err
		}
		link.GoogleEventID = eventID
		link.Status = models.LINK_STATUS_SYNCED
		if err := e.Repos.CalendarLink.Update(link); err != nil {
			return err
		}
	} else {
		event.ID = link.GoogleEventID
		err := e.Calendar.UpdateEvent(ctx, token, integration.CalendarID, event)
		if isGone(err) {
			// Mirror was deleted provider-side, recreate it
			log.Infof("[SyncEngine] Mirror %s for job %d is gone, recreating", link.GoogleEventID, job.ID)
			event.ID = ""
			eventID, cerr := e.Calendar.CreateEvent(ctx, token, integration.CalendarID, event)
			if cerr != nil {
				return cerr
			}
			link.GoogleEventID = eventID
			err = nil
		} else if err != nil {
			return err
		}
		if link.Status != models.LINK_STATUS_SYNCED {
			link.Status = models.LINK_STATUS_SYNCED
		}
		if err := e.Repos.CalendarLink.Update(link); err != nil {
			return err
		}
	}

	if err := counter.AddEventsSynced(integration.ID, 1); err != nil {
		log.Warnf("[SyncEngine] Failed to bump sync counter for integration %d: %v", integration.ID, err)
	}
	return e.Repos.Integration.TouchLastSynced(integration.ID, 1)
}

// PushJobAll mirrors the job into every sync-enabled calendar integration of
// its owner, continuing past per-integration failures.
func (e *Engine) PushJobAll(ctx context.Context, job *models.Job) error {
	list, err := e.Repos.Integration.ListSyncEnabled(job.UserID, models.IntegrationProviderCalendar)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range list {
		if err := e.PushJob(ctx, job, &list[i]); err != nil {
			log.Errorf("[SyncEngine] Push of job %d to integration %d failed: %v", job.ID, list[i].ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DeleteJobMirror removes the provider-side mirror of a job. The provider
// delete is best effort; an already-gone event still clears the link row.
func (e *Engine) DeleteJobMirror(ctx context.Context, jobID uint, integration *models.Integration) error {
	link, err := e.Repos.CalendarLink.GetByJobAndIntegration(jobID, integration.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if link.GoogleEventID != "" {
		token, err := e.Manager.EnsureFreshToken(ctx, integration)
		if err != nil {
			return err
		}
		if err := e.Calendar.DeleteEvent(ctx, token, integration.CalendarID, link.GoogleEventID); err != nil && !isGone(err) {
			return err
		}
	}
	return e.Repos.CalendarLink.Delete(link.ID)
}

// DeleteJobMirrors clears the job's mirrors across all calendar integrations.
func (e *Engine) DeleteJobMirrors(ctx context.Context, jobID, userID uint) error {
	list, err := e.Repos.Integration.ListByUser(userID)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range list {
		if list[i].Provider != models.IntegrationProviderCalendar {
			continue
		}
		if err := e.DeleteJobMirror(ctx, jobID, &list[i]); err != nil {
			log.Errorf("[SyncEngine] Mirror delete for job %d on integration %d failed: %v", jobID, list[i].ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// PullCalendarChanges applies provider-side edits of mirrored events back onto
// their jobs. Only start, end and description are writable from outside; every
// other job field belongs to the internal record. Foreign events are never
// imported as jobs.
func (e *Engine) PullCalendarChanges(ctx context.Context, integration *models.Integration) (int, error) {
	if !integration.SyncEnabled {
		return 0, integrations.ErrSyncDisabled
	}
	if !integration.TwoWaySyncEnabled {
		return 0, nil
	}

	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return 0, err
	}

	from := time.Now()
	events, err := e.Calendar.ListEvents(ctx, token, integration.CalendarID, from, from.Add(pullWindow))
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range events {
		ev := &events[i]
		if ev.Status == "cancelled" {
			continue
		}

		link, err := e.Repos.CalendarLink.GetByEventID(integration.ID, ev.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return changed, err
		}

		job, err := e.Repos.Job.GetByID(link.JobID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return changed, err
		}

		if job.StartTime.Equal(ev.Start) && job.EndTime.Equal(ev.End) && job.Description == ev.Description {
			continue
		}
		if err := e.Repos.Job.UpdateSyncedFields(job.ID, ev.Start, ev.End, ev.Description); err != nil {
			return changed, err
		}
		changed++
	}

	if changed > 0 {
		if err := counter.AddEventsSynced(integration.ID, int64(changed)); err != nil {
			log.Warnf("[SyncEngine] Failed to bump sync counter for integration %d: %v", integration.ID, err)
		}
	}
	if err := e.Repos.Integration.TouchLastSynced(integration.ID, int64(changed)); err != nil {
		return changed, err
	}
	return changed, nil
}

// MergedEvents builds the combined schedule: all jobs in the window plus
// provider events that are not mirrors of those jobs. Without the mirror
// filter every synced job would show up twice.
func (e *Engine) MergedEvents(ctx context.Context, userID uint, integration *models.Integration, from, to time.Time) ([]MergedEvent, error) {
	jobs, err := e.Repos.Job.ListInWindow(userID, from, to)
	if err != nil {
		return nil, err
	}

	merged := make([]MergedEvent, 0, len(jobs))
	for i := range jobs {
		job := &jobs[i]
		merged = append(merged, MergedEvent{
			Source:      "job",
			JobID:       job.ID,
			Title:       job.Title,
			Description: job.Description,
			Location:    job.Location,
			Start:       job.StartTime,
			End:         job.EndTime,
			Status:      job.Status,
		})
	}

	if integration == nil || !integration.SyncEnabled {
		return merged, nil
	}

	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return nil, err
	}
	events, err := e.Calendar.ListEvents(ctx, token, integration.CalendarID, from, to)
	if err != nil {
		return nil, err
	}
	mirrored, err := e.Repos.CalendarLink.ListEventIDs(integration.ID)
	if err != nil {
		return nil, err
	}

	for i := range events {
		ev := &events[i]
		if ev.Status == "cancelled" {
			continue
		}
		if _, ok := mirrored[ev.ID]; ok {
			continue
		}
		merged = append(merged, MergedEvent{
			Source:      "provider",
			EventID:     ev.ID,
			Title:       ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       ev.Start,
			End:         ev.End,
		})
	}
	return merged, nil
}
