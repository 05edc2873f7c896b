package controllers

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/jobqueue"
)

// recordAndEnqueue deduplicates the notification and schedules the resync.
// A redelivered event (created == false) is acknowledged without queueing.
func recordAndEnqueue(event *models.SyncWebhookEvent, jobType jobqueue.JobType) {
	created, stored, err := repository.GetGlobalFactory().GetWebhookEventRepository().Record(event)
	if err != nil {
		log.Errorf("[Webhook] Could not record %s event %s: %v", event.Provider, event.ProviderEventID, err)
		return
	}
	if !created {
		log.Debugf("[Webhook] Duplicate %s event %s ignored", event.Provider, event.ProviderEventID)
		return
	}

	payload := jobqueue.IntegrationResyncJobPayload{
		IntegrationID:  event.IntegrationID,
		WebhookEventID: stored.ID,
	}
	if _, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobType, payload.ToMap()); err != nil {
		log.Errorf("[Webhook] Could not enqueue %s for integration %d: %v", jobType, event.IntegrationID, err)
	}
}

// HandleCalendarWebhook receives Google Calendar push notifications. The
// provider retries on non-2xx responses, so every branch acknowledges.
func HandleCalendarWebhook(c *fiber.Ctx) error {
	channelID := c.Get("X-Goog-Channel-ID")
	resourceState := c.Get("X-Goog-Resource-State")
	messageNumber := c.Get("X-Goog-Message-Number")

	if channelID == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	// The initial "sync" ping confirms channel setup, nothing changed yet
	if resourceState == "sync" {
		log.Infof("[Webhook] Calendar channel %s confirmed", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	integration, err := repository.GetGlobalFactory().GetIntegrationRepository().GetByWatchChannelID(channelID)
	if err != nil {
		log.Warnf("[Webhook] Calendar notification for unknown channel %s", channelID)
		return c.SendStatus(fiber.StatusOK)
	}

	recordAndEnqueue(&models.SyncWebhookEvent{
		Provider:        models.IntegrationProviderCalendar,
		ProviderEventID: channelID + ":" + messageNumber,
		IntegrationID:   integration.ID,
		ResourceState:   resourceState,
	}, jobqueue.JobTypeCalendarResync)

	return c.SendStatus(fiber.StatusOK)
}

type pubSubEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type gmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// HandleGmailWebhook receives Gmail change notifications delivered through a
// Pub/Sub push subscription. Pub/Sub redelivers until it sees a 2xx.
func HandleGmailWebhook(c *fiber.Ctx) error {
	var envelope pubSubEnvelope
	if err := c.BodyParser(&envelope); err != nil {
		log.Warnf("[Webhook] Unparseable Pub/Sub envelope: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	data, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		log.Warnf("[Webhook] Invalid Pub/Sub message data: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	var notification gmailNotification
	if err := json.Unmarshal(data, &notification); err != nil || notification.EmailAddress == "" {
		log.Warnf("[Webhook] Invalid Gmail notification payload: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	integration, err := repository.GetGlobalFactory().GetIntegrationRepository().
		GetByAccountEmail(models.IntegrationProviderGmail, notification.EmailAddress)
	if err != nil {
		log.Warnf("[Webhook] Gmail notification for unknown account %s", notification.EmailAddress)
		return c.SendStatus(fiber.StatusOK)
	}

	recordAndEnqueue(&models.SyncWebhookEvent{
		Provider:        models.IntegrationProviderGmail,
		ProviderEventID: envelope.Message.MessageID,
		IntegrationID:   integration.ID,
		PayloadJSON:     string(data),
	}, jobqueue.JobTypeMailboxResync)

	return c.SendStatus(fiber.StatusOK)
}

type graphNotification struct {
	Value []struct {
		SubscriptionID string `json:"subscriptionId"`
		ClientState    string `json:"clientState"`
		ChangeType     string `json:"changeType"`
		ResourceData   struct {
			ID string `json:"id"`
		} `json:"resourceData"`
	} `json:"value"`
}

// HandleOutlookWebhook answers the Graph validation handshake and receives
// change notifications. Graph carries no per-delivery ID, so dedup keys on
// subscription plus resource; the message-link unique index catches the rest.
func HandleOutlookWebhook(c *fiber.Ctx) error {
	if token := c.Query("validationToken"); token != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(token)
	}

	var notification graphNotification
	if err := c.BodyParser(&notification); err != nil {
		log.Warnf("[Webhook] Unparseable Graph notification: %v", err)
		return c.SendStatus(fiber.StatusAccepted)
	}

	repo := repository.GetGlobalFactory().GetIntegrationRepository()
	for _, item := range notification.Value {
		integration, err := repo.GetByWatchChannelID(item.ClientState)
		if err != nil {
			log.Warnf("[Webhook] Graph notification for unknown subscription %s", item.SubscriptionID)
			continue
		}

		recordAndEnqueue(&models.SyncWebhookEvent{
			Provider:        models.IntegrationProviderOutlook,
			ProviderEventID: item.SubscriptionID + ":" + item.ResourceData.ID,
			IntegrationID:   integration.ID,
			ResourceState:   item.ChangeType,
		}, jobqueue.JobTypeMailboxResync)
	}

	return c.SendStatus(fiber.StatusAccepted)
}
