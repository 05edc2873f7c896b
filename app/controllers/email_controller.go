package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// HandleMailboxSync runs a synchronous mailbox sync pass and returns its result.
func HandleMailboxSync(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}
	if integration.Provider != models.IntegrationProviderGmail &&
		integration.Provider != models.IntegrationProviderOutlook {
		return jsonError(c, fiber.StatusBadRequest, "integration is not a mailbox")
	}

	result, err := SharedEngine().SyncMailbox(c.Context(), integration)
	if err != nil {
		if errors.Is(err, integrations.ErrSyncDisabled) {
			return jsonError(c, fiber.StatusConflict, "sync is disabled for this integration")
		}
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "mailbox sync failed: "+err.Error())
	}
	return c.JSON(result)
}

// HandleThreadList returns the user's synced email threads, newest first.
func HandleThreadList(c *fiber.Ctx) error {
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	threads, err := repository.GetGlobalFactory().GetEmailRepository().
		ListThreadsByUser(currentUserID(c), offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load threads")
	}
	return c.JSON(fiber.Map{"threads": threads})
}

// HandleEmailSend sends a message through one of the user's mailbox integrations.
func HandleEmailSend(c *fiber.Ctx) error {
	var body struct {
		IntegrationID uint     `json:"integration_id"`
		To            []string `json:"to"`
		Cc            []string `json:"cc"`
		Bcc           []string `json:"bcc"`
		Subject       string   `json:"subject"`
		BodyText      string   `json:"body_text"`
		BodyHTML      string   `json:"body_html"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if len(body.To) == 0 {
		return jsonError(c, fiber.StatusBadRequest, "at least one recipient is required")
	}
	if body.BodyText == "" && body.BodyHTML == "" {
		return jsonError(c, fiber.StatusBadRequest, "message body is required")
	}

	integration, err := repository.GetGlobalFactory().GetIntegrationRepository().
		GetByIDForUser(body.IntegrationID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "integration not found")
	}

	messageID, err := SharedEngine().SendEmail(c.Context(), integration, &integrations.OutgoingMessage{
		To:       body.To,
		Cc:       body.Cc,
		Bcc:      body.Bcc,
		Subject:  body.Subject,
		BodyText: body.BodyText,
		BodyHTML: body.BodyHTML,
	})
	if err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "send failed: "+err.Error())
	}
	return c.JSON(fiber.Map{
		"sent":       true,
		"message_id": messageID,
	})
}

// HandleThreadRead marks a thread read or unread, locally and provider-side.
func HandleThreadRead(c *fiber.Ctx) error {
	threadID := paramUint(c, "id")
	if threadID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid thread id")
	}

	var body struct {
		Read bool `json:"read"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	repos := repository.GetGlobalFactory()
	thread, err := repos.GetEmailRepository().GetThreadByID(threadID)
	if err != nil || thread.UserID != currentUserID(c) {
		return jsonError(c, fiber.StatusNotFound, "thread not found")
	}

	integration, err := repos.GetIntegrationRepository().GetByID(thread.IntegrationID)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "integration not found")
	}

	if err := SharedEngine().MarkThreadRead(c.Context(), integration, thread, body.Read); err != nil {
		if errors.Is(err, integrations.ErrReauthRequired) {
			return jsonError(c, fiber.StatusConflict, "integration needs to be reconnected")
		}
		return jsonError(c, fiber.StatusBadGateway, "could not update read state")
	}
	return c.JSON(fiber.Map{"read": body.Read})
}
