package syncengine

import (
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/attachments"
	"github.com/fielddesk/fielddesk/internal/pkg/integrations"
)

// Engine drives all synchronization between internal records and provider
// accounts. Every provider call goes through the integration manager first so
// tokens are always fresh and persisted.
type Engine struct {
	Repos   *repository.Repositories
	Manager *integrations.Manager

	Calendar integrations.CalendarProvider
	Reviews  integrations.ReviewProvider
	MailFor  func(provider string) (integrations.MailProvider, error)

	// Store is optional; attachments stay provider-side when nil.
	Store *attachments.Client
}

// New wires the engine with the real provider adapters.
func New(repos *repository.Repositories, manager *integrations.Manager) *Engine {
	return &Engine{
		Repos:    repos,
		Manager:  manager,
		Calendar: integrations.CalendarAdapter(),
		Reviews:  integrations.GMBAdapterFromEnv(),
		MailFor:  integrations.MailAdapterFor,
	}
}
