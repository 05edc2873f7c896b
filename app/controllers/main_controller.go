package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/fielddesk/fielddesk/internal/pkg/session"
)

// HandleStart renders the landing page.
func HandleStart(c *fiber.Ctx) error {
	username, _ := session.GetSessionValue(c, USER_NAME).(string)

	return c.Render("index", fiber.Map{
		"Title":      "FieldDesk",
		"IsLoggedIn": isLoggedIn(c),
		"Username":   username,
		"Flash":      flash.Get(c),
	}, "layouts/main")
}
