package controllers

import (
	"strconv"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/attachments"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
	"github.com/fielddesk/fielddesk/internal/pkg/mail"
	"github.com/fielddesk/fielddesk/internal/pkg/syncengine"
	"github.com/fielddesk/fielddesk/internal/pkg/usercontext"
)

const (
	AUTH_KEY      string = "authenticated"
	USER_ID       string = "user_id"
	USER_NAME     string = "username"
	USER_IS_ADMIN string = "isAdmin"
	FROM_PROTECTED string = "from_protected"
)

var (
	engineOnce sync.Once
	engine     *syncengine.Engine
)

// SharedEngine returns the process-wide sync engine. The job queue and the
// controllers share one instance so token refreshes are serialized through the
// same manager.
func SharedEngine() *syncengine.Engine {
	engineOnce.Do(func() {
		repos := repository.GetGlobalRepositories()
		manager := integrations.NewManager(repos.Integration, integrations.DefaultRefreshers())
		manager.ReauthNotify = notifyReauth
		engine = syncengine.New(repos, manager)

		cfg, err := attachments.LoadConfig()
		if err != nil {
			log.Warnf("[Controllers] Attachment storage config invalid: %v", err)
			return
		}
		if cfg.IsEnabled() {
			client, err := attachments.NewClient(cfg)
			if err != nil {
				log.Warnf("[Controllers] Attachment storage unavailable: %v", err)
				return
			}
			engine.Store = client
		}
	})
	return engine
}

// notifyReauth emails the owner of a revoked integration. Sent from a
// goroutine so a slow SMTP server cannot stall a request.
func notifyReauth(integration *models.Integration) {
	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(integration.UserID)
	if err != nil {
		log.Errorf("[Controllers] Cannot notify user %d about reauth: %v", integration.UserID, err)
		return
	}
	go func() {
		if err := mail.SendReauthNotice(user.Email, integration.Provider, integration.AccountEmail); err != nil {
			log.Errorf("[Controllers] Reauth notice to %s failed: %v", user.Email, err)
		}
	}()
}

func currentUserID(c *fiber.Ctx) uint {
	return usercontext.GetUserID(c)
}

func isLoggedIn(c *fiber.Ctx) bool {
	var fromProtected bool
	if protectedValue := c.Locals(FROM_PROTECTED); protectedValue != nil {
		fromProtected = protectedValue.(bool)
	}

	return fromProtected
}

// paramUint parses a numeric path parameter; 0 means invalid.
func paramUint(c *fiber.Ctx, name string) uint {
	v, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0
	}
	return uint(v)
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// userIntegration loads an integration and enforces ownership.
func userIntegration(c *fiber.Ctx) (*models.Integration, error) {
	id := paramUint(c, "id")
	if id == 0 {
		return nil, jsonError(c, fiber.StatusBadRequest, "invalid integration id")
	}
	integration, err := repository.GetGlobalFactory().GetIntegrationRepository().GetByIDForUser(id, currentUserID(c))
	if err != nil {
		return nil, jsonError(c, fiber.StatusNotFound, "integration not found")
	}
	return integration, nil
}
