package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetCustomerRepository returns the customer repository instance
func (f *Factory) GetCustomerRepository() CustomerRepository {
	return f.GetRepositories().Customer
}

// GetJobRepository returns the job repository instance
func (f *Factory) GetJobRepository() JobRepository {
	return f.GetRepositories().Job
}

// GetIntegrationRepository returns the integration repository instance
func (f *Factory) GetIntegrationRepository() IntegrationRepository {
	return f.GetRepositories().Integration
}

// GetCalendarLinkRepository returns the calendar link repository instance
func (f *Factory) GetCalendarLinkRepository() CalendarLinkRepository {
	return f.GetRepositories().CalendarLink
}

// GetEmailRepository returns the email repository instance
func (f *Factory) GetEmailRepository() EmailRepository {
	return f.GetRepositories().Email
}

// GetWebhookEventRepository returns the webhook event repository instance
func (f *Factory) GetWebhookEventRepository() WebhookEventRepository {
	return f.GetRepositories().WebhookEvent
}

// GetReviewRepository returns the review repository instance
func (f *Factory) GetReviewRepository() ReviewRepository {
	return f.GetRepositories().Review
}

// Global factory instance
var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
