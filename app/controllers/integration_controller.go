package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/sujit-baniya/flash"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
	"github.com/fielddesk/fielddesk/internal/pkg/session"
)

const integrationStateKey = "integration_oauth_state"

var integrationProviders = map[string]bool{
	models.IntegrationProviderCalendar: true,
	models.IntegrationProviderGmail:    true,
	models.IntegrationProviderOutlook:  true,
	models.IntegrationProviderGMB:      true,
}

// HandleIntegrationConnect starts the consent flow for one workspace provider.
func HandleIntegrationConnect(c *fiber.Ctx) error {
	provider := c.Params("provider")
	if !integrationProviders[provider] {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("unknown provider %q", provider),
		}).Redirect("/user/settings/integrations")
	}

	conf, err := integrations.OAuthConfigFor(provider)
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": err.Error(),
		}).Redirect("/user/settings/integrations")
	}

	// Random state bound to the session guards the callback against forgery
	state := uuid.New().String()
	if err := session.SetSessionValue(c, integrationStateKey, provider+":"+state); err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "could not start the connect flow",
		}).Redirect("/user/settings/integrations")
	}

	// prompt=consent forces Google to issue a refresh token on reconnects
	url := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	return c.Redirect(url, fiber.StatusSeeOther)
}

// HandleIntegrationCallback finishes the consent flow: exchanges the code,
// discovers the granted account and upserts the integration row. Reconnecting
// the same (provider, account) pair refreshes the stored tokens instead of
// creating a duplicate.
func HandleIntegrationCallback(c *fiber.Ctx) error {
	provider := c.Params("provider")
	redirectTarget := "/user/settings/integrations"

	if errMsg := c.Query("error"); errMsg != "" {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": fmt.Sprintf("provider rejected the request: %s", errMsg),
		}).Redirect(redirectTarget + "?error=" + provider)
	}

	stored, _ := session.GetSessionValue(c, integrationStateKey).(string)
	if stored == "" || stored != provider+":"+c.Query("state") {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "state mismatch, please retry the connection",
		}).Redirect(redirectTarget + "?error=" + provider)
	}
	_ = session.SetSessionValue(c, integrationStateKey, "")

	connector, err := integrations.ConnectorFor(provider)
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": err.Error(),
		}).Redirect(redirectTarget + "?error=" + provider)
	}

	ctx := c.Context()
	tokens, err := connector.ExchangeCode(ctx, c.Query("code"))
	if err != nil {
		log.Errorf("[Integration] Code exchange for %s failed: %v", provider, err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "could not complete the connection",
		}).Redirect(redirectTarget + "?error=" + provider)
	}

	accountEmail, err := connector.AccountEmail(ctx, tokens.AccessToken)
	if err != nil {
		log.Errorf("[Integration] Account discovery for %s failed: %v", provider, err)
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "could not determine the connected account",
		}).Redirect(redirectTarget + "?error=" + provider)
	}

	userID := currentUserID(c)
	repo := repository.GetGlobalFactory().GetIntegrationRepository()

	integration, err := repo.GetByProviderAccount(userID, provider, accountEmail)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		integration = &models.Integration{
			UserID:       userID,
			Provider:     provider,
			AccountEmail: accountEmail,
			AccessToken:  tokens.AccessToken,
			RefreshToken: tokens.RefreshToken,
			TokenExpiry:  &tokens.Expiry,
			SyncEnabled:  true,
		}
		if provider == models.IntegrationProviderCalendar {
			integration.CalendarID = "primary"
		}
		if err := repo.Create(integration); err != nil {
			log.Errorf("[Integration] Create for %s/%s failed: %v", provider, accountEmail, err)
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": "could not store the connection",
			}).Redirect(redirectTarget + "?error=" + provider)
		}
	} else if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "could not store the connection",
		}).Redirect(redirectTarget + "?error=" + provider)
	} else {
		if err := repo.UpdateTokens(integration.ID, tokens.AccessToken, tokens.RefreshToken, tokens.Expiry); err != nil {
			log.Errorf("[Integration] Token update for %d failed: %v", integration.ID, err)
			return flash.WithError(c, fiber.Map{
				"type":    "error",
				"message": "could not store the connection",
			}).Redirect(redirectTarget + "?error=" + provider)
		}
		// Reconnecting re-enables a previously revoked integration
		if err := repo.SetSyncEnabled(integration.ID, true); err != nil {
			log.Errorf("[Integration] Re-enable for %d failed: %v", integration.ID, err)
		}
	}

	return flash.WithSuccess(c, fiber.Map{
		"type":    "success",
		"message": fmt.Sprintf("Connected %s (%s)", provider, accountEmail),
	}).Redirect(redirectTarget + "?connected=" + provider)
}

// HandleIntegrationList returns all integrations of the current user.
func HandleIntegrationList(c *fiber.Ctx) error {
	list, err := repository.GetGlobalFactory().GetIntegrationRepository().ListByUser(currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load integrations")
	}
	return c.JSON(fiber.Map{"integrations": list})
}

// HandleIntegrationUpdate changes sync settings or provider resource IDs.
func HandleIntegrationUpdate(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}

	var body struct {
		SyncEnabled       *bool   `json:"sync_enabled"`
		TwoWaySyncEnabled *bool   `json:"two_way_sync_enabled"`
		CalendarID        *string `json:"calendar_id"`
		LocationID        *string `json:"location_id"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if body.SyncEnabled != nil {
		integration.SyncEnabled = *body.SyncEnabled
	}
	if body.TwoWaySyncEnabled != nil {
		integration.TwoWaySyncEnabled = *body.TwoWaySyncEnabled
	}
	if body.CalendarID != nil {
		integration.CalendarID = *body.CalendarID
	}
	if body.LocationID != nil {
		integration.LocationID = *body.LocationID
	}

	if err := repository.GetGlobalFactory().GetIntegrationRepository().Update(integration); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not update integration")
	}
	return c.JSON(fiber.Map{"integration": integration})
}

// HandleIntegrationDisconnect tears down the integration: the push channel is
// stopped best effort, then the row (with its tokens) is removed.
func HandleIntegrationDisconnect(c *fiber.Ctx) error {
	integration, err := userIntegration(c)
	if err != nil {
		return err
	}

	if err := SharedEngine().StopWatch(c.Context(), integration); err != nil {
		log.Warnf("[Integration] Watch stop during disconnect of %d failed: %v", integration.ID, err)
	}

	if err := repository.GetGlobalFactory().GetIntegrationRepository().Delete(integration.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not disconnect integration")
	}
	return c.JSON(fiber.Map{"disconnected": true})
}
