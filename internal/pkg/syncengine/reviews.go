package syncengine

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// SyncReviews pulls the business-profile reviews for the integration's
// location into the local cache. Rows are upserted by
// (integration_id, provider_review_id), so re-running is idempotent.
func (e *Engine) SyncReviews(ctx context.Context, integration *models.Integration) (int, error) {
	if !integration.SyncEnabled {
		return 0, integrations.ErrSyncDisabled
	}

	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return 0, err
	}

	reviews, err := e.Reviews.ListReviews(ctx, token, integration.LocationID)
	if err != nil {
		return 0, err
	}

	for i := range reviews {
		r := &reviews[i]
		row := &models.Review{
			UserID:           integration.UserID,
			IntegrationID:    integration.ID,
			ProviderReviewID: r.ID,
			LocationID:       integration.LocationID,
			ReviewerName:     r.ReviewerName,
			StarRating:       r.StarRating,
			Comment:          r.Comment,
			ReplyText:        r.ReplyText,
			RepliedAt:        r.RepliedAt,
			ReviewedAt:       r.ReviewedAt,
		}
		if err := e.Repos.Review.Upsert(row); err != nil {
			return 0, err
		}
	}

	if err := e.Repos.Integration.TouchLastSynced(integration.ID, int64(len(reviews))); err != nil {
		log.Warnf("[SyncEngine] Failed to touch last-synced for integration %d: %v", integration.ID, err)
	}
	return len(reviews), nil
}

// ReplyToReview publishes a reply on the provider first and records it locally
// only after the provider accepted it.
func (e *Engine) ReplyToReview(ctx context.Context, integration *models.Integration, review *models.Review, text string) error {
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return err
	}

	if err := e.Reviews.ReplyToReview(ctx, token, integration.LocationID, review.ProviderReviewID, text); err != nil {
		return err
	}

	now := time.Now()
	review.ReplyText = text
	review.RepliedAt = &now
	return e.Repos.Review.Update(review)
}

// DeleteReviewReply removes a published reply provider-side and locally.
func (e *Engine) DeleteReviewReply(ctx context.Context, integration *models.Integration, review *models.Review) error {
	token, err := e.Manager.EnsureFreshToken(ctx, integration)
	if err != nil {
		return err
	}

	if err := e.Reviews.DeleteReply(ctx, token, integration.LocationID, review.ProviderReviewID); err != nil && !isGone(err) {
		return err
	}

	review.ReplyText = ""
	review.RepliedAt = nil
	return e.Repos.Review.Update(review)
}
