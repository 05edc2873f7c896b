package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
	"github.com/fielddesk/fielddesk/internal/pkg/jobqueue"
)

// defaultEventWindow is used when the merged-events query gives no range.
const defaultEventWindow = 30 * 24 * time.Hour

// HandleJobSync pushes one job into every sync-enabled calendar of its owner.
func HandleJobSync(c *fiber.Ctx) error {
	jobID := paramUint(c, "id")
	if jobID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid job id")
	}

	job, err := repository.GetGlobalFactory().GetJobRepository().GetByIDForUser(jobID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "job not found")
	}

	if err := SharedEngine().PushJobAll(c.Context(), job); err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "calendar push failed: "+err.Error())
	}
	return c.JSON(fiber.Map{"synced": true})
}

// HandleCalendarEvents returns the merged schedule: jobs plus foreign provider
// events, with mirrors filtered out.
func HandleCalendarEvents(c *fiber.Ctx) error {
	userID := currentUserID(c)

	from := time.Now()
	to := from.Add(defaultEventWindow)
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			from = t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			to = t
		}
	}
	if !to.After(from) {
		return jsonError(c, fiber.StatusBadRequest, "'to' must be after 'from'")
	}

	// Merge against the first sync-enabled calendar; jobs only when none is connected
	var integration *models.Integration
	list, err := repository.GetGlobalFactory().GetIntegrationRepository().
		ListSyncEnabled(userID, models.IntegrationProviderCalendar)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load integrations")
	}
	if len(list) > 0 {
		integration = &list[0]
	}

	events, err := SharedEngine().MergedEvents(c.Context(), userID, integration, from, to)
	if err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "could not load events: "+err.Error())
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleCheckConflict reports bookings colliding with a proposed time slot.
func HandleCheckConflict(c *fiber.Ctx) error {
	var body struct {
		Start        time.Time `json:"start"`
		End          time.Time `json:"end"`
		ExcludeJobID uint      `json:"exclude_job_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if body.Start.IsZero() || body.End.IsZero() || !body.End.After(body.Start) {
		return jsonError(c, fiber.StatusBadRequest, "start must be before end")
	}

	conflicts, err := SharedEngine().CheckConflict(c.Context(), currentUserID(c), body.Start, body.End, body.ExcludeJobID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "conflict check failed")
	}
	return c.JSON(fiber.Map{
		"has_conflict": len(conflicts) > 0,
		"conflicts":    conflicts,
	})
}

// HandleIntegrationResync enqueues a background resync for the integration.
func HandleIntegrationResync(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}

	var jobType jobqueue.JobType
	switch integration.Provider {
	case models.IntegrationProviderCalendar:
		jobType = jobqueue.JobTypeCalendarResync
	case models.IntegrationProviderGmail, models.IntegrationProviderOutlook:
		jobType = jobqueue.JobTypeMailboxResync
	case models.IntegrationProviderGMB:
		jobType = jobqueue.JobTypeReviewResync
	default:
		return jsonError(c, fiber.StatusBadRequest, "provider does not support resync")
	}

	payload := jobqueue.IntegrationResyncJobPayload{IntegrationID: integration.ID}
	queued, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobType, payload.ToMap())
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not enqueue resync")
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": queued.ID})
}

// HandleWatchStart registers a push channel for the integration.
func HandleWatchStart(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}

	if err := SharedEngine().StartWatch(c.Context(), integration); err != nil {
		if errors.Is(err, integrations.ErrSyncDisabled) {
			return jsonError(c, fiber.StatusConflict, "sync is disabled for this integration")
		}
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "could not register watch: "+err.Error())
	}
	return c.JSON(fiber.Map{
		"channel_id": integration.WatchChannelID,
		"expires_at": integration.WatchExpiration,
	})
}

// HandleWatchStop removes the integration's push channel.
func HandleWatchStop(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}

	if err := SharedEngine().StopWatch(c.Context(), integration); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not stop watch")
	}
	return c.JSON(fiber.Map{"stopped": true})
}
