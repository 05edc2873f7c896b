package controllers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/jobqueue"
)

// pushJobMirrors pushes the job to all connected calendars. Provider failures
// never fail the booking; the caller reports them as a warning.
func pushJobMirrors(c *fiber.Ctx, job *models.Job) string {
	if err := SharedEngine().PushJobAll(c.Context(), job); err != nil {
		log.Warnf("[Job] Calendar push for job %d failed: %v", job.ID, err)
		return "job saved, but the calendar sync failed and will be retried"
	}
	return ""
}

// HandleJobCreate books a new job and mirrors it to connected calendars.
func HandleJobCreate(c *fiber.Ctx) error {
	job := &models.Job{}
	if err := c.BodyParser(job); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	job.ID = 0
	job.UserID = currentUserID(c)
	if job.Status == "" {
		job.Status = models.JOB_STATUS_SCHEDULED
	}

	if err := job.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	repos := repository.GetGlobalFactory()
	if job.CustomerID != 0 {
		if _, err := repos.GetCustomerRepository().GetByIDForUser(job.CustomerID, job.UserID); err != nil {
			return jsonError(c, fiber.StatusUnprocessableEntity, "customer not found")
		}
	}

	if err := repos.GetJobRepository().Create(job); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not create job")
	}

	response := fiber.Map{"job": job}
	if warning := pushJobMirrors(c, job); warning != "" {
		response["sync_warning"] = warning
	}
	return c.Status(fiber.StatusCreated).JSON(response)
}

// HandleJobList returns a page of the user's jobs, or the jobs inside an
// explicit time window when from/to are given.
func HandleJobList(c *fiber.Ctx) error {
	userID := currentUserID(c)
	repo := repository.GetGlobalFactory().GetJobRepository()

	if fromStr, toStr := c.Query("from"), c.Query("to"); fromStr != "" && toStr != "" {
		from, err1 := time.Parse(time.RFC3339, fromStr)
		to, err2 := time.Parse(time.RFC3339, toStr)
		if err1 != nil || err2 != nil || !to.After(from) {
			return jsonError(c, fiber.StatusBadRequest, "invalid time window")
		}
		jobs, err := repo.ListInWindow(userID, from, to)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "could not load jobs")
		}
		return c.JSON(fiber.Map{"jobs": jobs})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	jobs, err := repo.ListByUser(userID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load jobs")
	}
	return c.JSON(fiber.Map{"jobs": jobs})
}

// HandleJobGet returns one job owned by the current user.
func HandleJobGet(c *fiber.Ctx) error {
	jobID := paramUint(c, "id")
	if jobID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid job id")
	}

	job, err := repository.GetGlobalFactory().GetJobRepository().
		GetByIDForUser(jobID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "job not found")
	}
	return c.JSON(fiber.Map{"job": job})
}

// HandleJobUpdate modifies a job and refreshes its calendar mirrors.
func HandleJobUpdate(c *fiber.Ctx) error {
	jobID := paramUint(c, "id")
	if jobID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid job id")
	}

	repos := repository.GetGlobalFactory()
	job, err := repos.GetJobRepository().GetByIDForUser(jobID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "job not found")
	}

	var body struct {
		CustomerID  *uint      `json:"customer_id"`
		Title       *string    `json:"title"`
		Description *string    `json:"description"`
		Location    *string    `json:"location"`
		StartTime   *time.Time `json:"start_time"`
		EndTime     *time.Time `json:"end_time"`
		Status      *string    `json:"status"`
		Price       *float64   `json:"price"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if body.CustomerID != nil {
		if *body.CustomerID != 0 {
			if _, err := repos.GetCustomerRepository().GetByIDForUser(*body.CustomerID, job.UserID); err != nil {
				return jsonError(c, fiber.StatusUnprocessableEntity, "customer not found")
			}
		}
		job.CustomerID = *body.CustomerID
	}
	if body.Title != nil {
		job.Title = *body.Title
	}
	if body.Description != nil {
		job.Description = *body.Description
	}
	if body.Location != nil {
		job.Location = *body.Location
	}
	if body.StartTime != nil {
		job.StartTime = *body.StartTime
	}
	if body.EndTime != nil {
		job.EndTime = *body.EndTime
	}
	if body.Status != nil {
		job.Status = *body.Status
	}
	if body.Price != nil {
		job.Price = *body.Price
	}

	if err := job.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	if err := repos.GetJobRepository().Update(job); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not update job")
	}

	response := fiber.Map{"job": job}
	if warning := pushJobMirrors(c, job); warning != "" {
		response["sync_warning"] = warning
	}
	return c.JSON(response)
}

// HandleJobDelete removes a job. The provider-side mirrors are cleaned up by
// a background job, so the delete stays fast even when a provider is slow.
func HandleJobDelete(c *fiber.Ctx) error {
	jobID := paramUint(c, "id")
	if jobID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid job id")
	}

	userID := currentUserID(c)
	job, err := repository.GetGlobalFactory().GetJobRepository().GetByIDForUser(jobID, userID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "job not found")
	}

	payload := jobqueue.MirrorDeleteJobPayload{JobID: job.ID, UserID: userID}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypeMirrorDelete, payload.ToMap()); err != nil {
		log.Warnf("[Job] Could not enqueue mirror cleanup for job %d: %v", job.ID, err)
	}

	if err := repository.GetGlobalFactory().GetJobRepository().Delete(job.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not delete job")
	}
	return c.JSON(fiber.Map{"deleted": true})
}
