package router

import (
	"github.com/gofiber/fiber/v2"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/fielddesk/fielddesk/app/controllers"
	"github.com/fielddesk/fielddesk/internal/pkg/middleware"
	"github.com/fielddesk/fielddesk/internal/pkg/oauth"
	"github.com/fielddesk/fielddesk/internal/pkg/session"
)

type HttpRouter struct {
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	// init session
	session.NewSessionStore()

	// init social sign-in providers
	oauth.Setup()

	// Apply UserContext middleware globally as first middleware
	app.Use(middleware.UserContextMiddleware)

	h.registerPublicRoutes(app)
	h.registerProtectedRoutes(app)
	h.registerWebhookRoutes(app)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/", controllers.HandleStart)

	// Auth
	app.Get("/login", controllers.HandleAuthLogin)
	app.Post("/login", controllers.HandleAuthLogin)
	app.Get("/register", controllers.HandleAuthRegister)
	app.Post("/register", controllers.HandleAuthRegister)
	app.Post("/logout", middleware.RequireAuth, controllers.HandleAuthLogout)

	// Social sign-in
	app.Get("/auth/:provider", gothfiber.BeginAuthHandler)
	app.Get("/auth/:provider/callback", controllers.HandleOAuthCallback)
}

func (h HttpRouter) registerProtectedRoutes(app *fiber.App) {
	app.Get("/user/settings/integrations", middleware.RequireAuth, controllers.HandleUserIntegrations)

	// Workspace provider consent flow. The callback URL is registered with
	// the providers, so these stay top-level routes rather than API paths.
	app.Get("/integrations/:provider/connect", middleware.RequireAuth, controllers.HandleIntegrationConnect)
	app.Get("/integrations/:provider/callback", middleware.RequireAuth, controllers.HandleIntegrationCallback)
}

// registerWebhookRoutes registers the provider notification endpoints. They
// carry no session; dedup and channel validation happen in the controllers.
func (h HttpRouter) registerWebhookRoutes(app *fiber.App) {
	webhooks := app.Group("/webhooks")
	webhooks.Post("/calendar", controllers.HandleCalendarWebhook)
	webhooks.Post("/gmail", controllers.HandleGmailWebhook)
	webhooks.Post("/outlook", controllers.HandleOutlookWebhook)
}
