package controllers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// HandleReviewSync refreshes the cached reviews for a business profile.
func HandleReviewSync(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}
	if integration.Provider != models.IntegrationProviderGMB {
		return jsonError(c, fiber.StatusBadRequest, "integration is not a business profile")
	}
	if integration.LocationID == "" {
		return jsonError(c, fiber.StatusConflict, "location_id must be configured first")
	}

	count, err := SharedEngine().SyncReviews(c.Context(), integration)
	if err != nil {
		if errors.Is(err, integrations.ErrSyncDisabled) {
			return jsonError(c, fiber.StatusConflict, "sync is disabled for this integration")
		}
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "review sync failed: "+err.Error())
	}
	return c.JSON(fiber.Map{"reviews_synced": count})
}

// HandleReviewList returns the cached reviews of the current user.
func HandleReviewList(c *fiber.Ctx) error {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	reviews, err := repository.GetGlobalFactory().GetReviewRepository().
		ListByUser(currentUserID(c), offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load reviews")
	}
	return c.JSON(fiber.Map{"reviews": reviews})
}

// HandleReviewReply publishes a reply to one review.
func HandleReviewReply(c *fiber.Ctx) error {
	reviewID := paramUint(c, "id")
	if reviewID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid review id")
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(body.Text) == "" {
		return jsonError(c, fiber.StatusBadRequest, "reply text is required")
	}

	repos := repository.GetGlobalFactory()
	review, err := repos.GetReviewRepository().GetByIDForUser(reviewID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "review not found")
	}

	integration, err := repos.GetIntegrationRepository().GetByID(review.IntegrationID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "integration not found")
	}

	if err := SharedEngine().ReplyToReview(c.Context(), integration, review, body.Text); err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "reply failed: "+err.Error())
	}
	return c.JSON(fiber.Map{"review": review})
}

// HandleReviewReplyDelete removes a published reply.
func HandleReviewReplyDelete(c *fiber.Ctx) error {
	reviewID := paramUint(c, "id")
	if reviewID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid review id")
	}

	repos := repository.GetGlobalFactory()
	review, err := repos.GetReviewRepository().GetByIDForUser(reviewID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "review not found")
	}

	integration, err := repos.GetIntegrationRepository().GetByID(review.IntegrationID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "integration not found")
	}

	if err := SharedEngine().DeleteReviewReply(c.Context(), integration, review); err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "reply delete failed: "+err.Error())
	}
	return c.JSON(fiber.Map{"review": review})
}
