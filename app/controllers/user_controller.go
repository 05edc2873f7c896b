package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/fielddesk/fielddesk/app/repository"
)

// HandleUserIntegrations renders the connection settings page with the state
// of every workspace provider.
func HandleUserIntegrations(c *fiber.Ctx) error {
	integrations, err := repository.GetGlobalFactory().GetIntegrationRepository().
		ListByUser(currentUserID(c))
	if err != nil {
		return flash.WithError(c, fiber.Map{
			"type":    "error",
			"message": "could not load your connections",
		}).Redirect("/")
	}

	return c.Render("user/integrations", fiber.Map{
		"Title":        "Connected Accounts",
		"IsLoggedIn":   isLoggedIn(c),
		"Integrations": integrations,
		"Connected":    c.Query("connected"),
		"ConnectError": c.Query("error"),
		"Flash":        flash.Get(c),
	}, "layouts/main")
}
