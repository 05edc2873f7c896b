package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/fielddesk/fielddesk/app/controllers"
	"github.com/fielddesk/fielddesk/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "FieldDesk API",
		})
	})

	v1 := api.Group("/v1", middleware.RequireAPISessionAuth)

	// Customers
	v1.Post("/customers", controllers.HandleCustomerCreate)
	v1.Get("/customers", controllers.HandleCustomerList)
	v1.Get("/customers/:id", controllers.HandleCustomerGet)
	v1.Put("/customers/:id", controllers.HandleCustomerUpdate)
	v1.Delete("/customers/:id", controllers.HandleCustomerDelete)

	// Jobs
	v1.Post("/jobs", controllers.HandleJobCreate)
	v1.Get("/jobs", controllers.HandleJobList)
	v1.Get("/jobs/:id", controllers.HandleJobGet)
	v1.Put("/jobs/:id", controllers.HandleJobUpdate)
	v1.Delete("/jobs/:id", controllers.HandleJobDelete)
	v1.Post("/jobs/:id/sync", controllers.HandleJobSync)

	// Calendar
	v1.Get("/calendar/events", controllers.HandleCalendarEvents)
	v1.Post("/calendar/check-conflict", controllers.HandleCheckConflict)

	// Integrations
	v1.Get("/integrations", controllers.HandleIntegrationList)
	v1.Put("/integrations/:id", controllers.HandleIntegrationUpdate)
	v1.Delete("/integrations/:id", controllers.HandleIntegrationDisconnect)
	v1.Post("/integrations/:id/resync", controllers.HandleIntegrationResync)
	v1.Post("/integrations/:id/watch", controllers.HandleWatchStart)
	v1.Delete("/integrations/:id/watch", controllers.HandleWatchStop)
	v1.Post("/integrations/:id/mailbox-sync", controllers.HandleMailboxSync)
	v1.Post("/integrations/:id/review-sync", controllers.HandleReviewSync)

	// Email
	v1.Get("/emails/threads", controllers.HandleThreadList)
	v1.Post("/emails/threads/:id/read", controllers.HandleThreadRead)
	v1.Post("/emails/send", controllers.HandleEmailSend)

	// Reviews
	v1.Get("/reviews", controllers.HandleReviewList)
	v1.Post("/reviews/:id/reply", controllers.HandleReviewReply)
	v1.Delete("/reviews/:id/reply", controllers.HandleReviewReplyDelete)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
