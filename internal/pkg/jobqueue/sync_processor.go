package jobqueue

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// loadIntegration resolves the target integration of a resync job. A missing
// row means the integration was disconnected after the job was enqueued; that
// is a no-op, not a failure.
func loadIntegration(id uint) (*models.Integration, error) {
	integration, err := repository.GetGlobalFactory().GetIntegrationRepository().GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[JobQueue] Integration %d no longer exists, skipping", id)
		return nil, nil
	}
	return integration, err
}

// permanent reports whether a sync error should not be retried: a disabled
// integration stays disabled and a revoked token needs the user, not a retry.
func permanent(err error) bool {
	return errors.Is(err, integrations.ErrSyncDisabled) ||
		errors.Is(err, integrations.ErrReauthRequired)
}

// markWebhookProcessed closes the webhook event that triggered this job, if any.
func markWebhookProcessed(payload *IntegrationResyncJobPayload, err error) {
	if payload.WebhookEventID == 0 {
		return
	}
	repo := repository.GetGlobalFactory().GetWebhookEventRepository()
	if merr := repo.MarkProcessed(payload.WebhookEventID, err); merr != nil {
		log.Errorf("[JobQueue] Failed to mark webhook event %d processed: %v", payload.WebhookEventID, merr)
	}
}

// processCalendarResyncJob pulls provider-side calendar changes back into jobs
func (q *Queue) processCalendarResyncJob(ctx context.Context, job *Job) error {
	payload, err := IntegrationResyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}

	integration, err := loadIntegration(payload.IntegrationID)
	if err != nil || integration == nil {
		markWebhookProcessed(payload, err)
		return err
	}

	changed, err := q.engine.PullCalendarChanges(ctx, integration)
	if permanent(err) {
		log.Infof("[JobQueue] Calendar resync for integration %d stopped: %v", integration.ID, err)
		markWebhookProcessed(payload, err)
		return nil
	}
	if err == nil {
		log.Infof("[JobQueue] Calendar resync for integration %d applied %d changes", integration.ID, changed)
	}
	markWebhookProcessed(payload, err)
	return err
}

// processMailboxResyncJob pulls new and changed messages for one mailbox
func (q *Queue) processMailboxResyncJob(ctx context.Context, job *Job) error {
	payload, err := IntegrationResyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}

	integration, err := loadIntegration(payload.IntegrationID)
	if err != nil || integration == nil {
		markWebhookProcessed(payload, err)
		return err
	}

	result, err := q.engine.SyncMailbox(ctx, integration)
	if permanent(err) {
		log.Infof("[JobQueue] Mailbox resync for integration %d stopped: %v", integration.ID, err)
		markWebhookProcessed(payload, err)
		return nil
	}
	if err == nil {
		log.Infof("[JobQueue] Mailbox resync for integration %d: %d new, %d updated, %d errors",
			integration.ID, result.NewMessages, result.UpdatedThreads, len(result.Errors))
	}
	markWebhookProcessed(payload, err)
	return err
}

// processReviewResyncJob refreshes the cached business-profile reviews
func (q *Queue) processReviewResyncJob(ctx context.Context, job *Job) error {
	payload, err := IntegrationResyncJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}

	integration, err := loadIntegration(payload.IntegrationID)
	if err != nil || integration == nil {
		return err
	}

	count, err := q.engine.SyncReviews(ctx, integration)
	if permanent(err) {
		log.Infof("[JobQueue] Review resync for integration %d stopped: %v", integration.ID, err)
		return nil
	}
	if err == nil {
		log.Infof("[JobQueue] Review resync for integration %d cached %d reviews", integration.ID, count)
	}
	return err
}

// processWatchRenewalJob renews every push subscription close to expiry
func (q *Queue) processWatchRenewalJob(ctx context.Context) error {
	renewed, err := q.engine.RenewExpiringWatches(ctx)
	if renewed > 0 {
		log.Infof("[JobQueue] Renewed %d watch subscriptions", renewed)
	}
	return err
}

// processMirrorDeleteJob removes the provider-side mirrors of a deleted job
func (q *Queue) processMirrorDeleteJob(ctx context.Context, job *Job) error {
	payload, err := MirrorDeleteJobPayloadFromMap(job.Payload)
	if err != nil {
		return err
	}

	err = q.engine.DeleteJobMirrors(ctx, payload.JobID, payload.UserID)
	if permanent(err) {
		log.Infof("[JobQueue] Mirror delete for job %d stopped: %v", payload.JobID, err)
		return nil
	}
	return err
}
