package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
}

// CustomerRepository defines the interface for customer-related database operations
type CustomerRepository interface {
	Create(customer *models.Customer) error
	GetByID(id uint) (*models.Customer, error)
	GetByIDForUser(id, userID uint) (*models.Customer, error)
	GetByEmail(userID uint, email string) (*models.Customer, error)
	Update(customer *models.Customer) error
	Delete(id uint) error
	ListByUser(userID uint, offset, limit int) ([]models.Customer, error)
	CountByUser(userID uint) (int64, error)
	Search(userID uint, query string) ([]models.Customer, error)
}

// JobRepository defines the interface for job-related database operations
type JobRepository interface {
	Create(job *models.Job) error
	GetByID(id uint) (*models.Job, error)
	GetByIDForUser(id, userID uint) (*models.Job, error)
	Update(job *models.Job) error
	UpdateSyncedFields(id uint, start, end time.Time, description string) error
	Delete(id uint) error
	ListByUser(userID uint, offset, limit int) ([]models.Job, error)
	ListInWindow(userID uint, from, to time.Time) ([]models.Job, error)
	ListOverlapping(userID uint, start, end time.Time, excludeJobID uint) ([]models.Job, error)
}

// IntegrationRepository defines the interface for integration token-store operations
type IntegrationRepository interface {
	Create(integration *models.Integration) error
	GetByID(id uint) (*models.Integration, error)
	GetByIDForUser(id, userID uint) (*models.Integration, error)
	GetByUserAndProvider(userID uint, provider string) (*models.Integration, error)
	GetByProviderAccount(userID uint, provider, accountEmail string) (*models.Integration, error)
	GetByWatchChannelID(channelID string) (*models.Integration, error)
	GetByAccountEmail(provider, accountEmail string) (*models.Integration, error)
	ListByUser(userID uint) ([]models.Integration, error)
	ListSyncEnabled(userID uint, provider string) ([]models.Integration, error)
	ListWatchExpiring(before time.Time) ([]models.Integration, error)
	Update(integration *models.Integration) error
	UpdateTokens(id uint, accessToken, refreshToken string, expiry time.Time) error
	UpdateWatch(id uint, channelID, resourceID string, expiration *time.Time) error
	UpdateHistoryID(id uint, historyID uint64) error
	SetSyncEnabled(id uint, enabled bool) error
	TouchLastSynced(id uint, eventCount int64) error
	Delete(id uint) error
}

// CalendarLinkRepository manages the job <-> provider event join table
type CalendarLinkRepository interface {
	Create(link *models.SyncedCalendarEvent) error
	Update(link *models.SyncedCalendarEvent) error
	GetByJobAndIntegration(jobID, integrationID uint) (*models.SyncedCalendarEvent, error)
	GetByEventID(integrationID uint, eventID string) (*models.SyncedCalendarEvent, error)
	ListByIntegration(integrationID uint) ([]models.SyncedCalendarEvent, error)
	ListEventIDs(integrationID uint) (map[string]struct{}, error)
	Delete(id uint) error
	DeleteByJob(jobID uint) error
}

// EmailRepository manages synced threads, message links and attachments
type EmailRepository interface {
	CreateThread(thread *models.EmailThread) error
	UpdateThread(thread *models.EmailThread) error
	GetThreadByID(id uint) (*models.EmailThread, error)
	GetThreadByProviderThreadID(integrationID uint, providerThreadID string) (*models.EmailThread, error)
	ListThreadsByUser(userID uint, offset, limit int) ([]models.EmailThread, error)
	SetThreadUnread(threadID uint, unread bool) error
	CreateMessageLink(link *models.SyncedEmailMessage) error
	GetMessageLink(integrationID uint, providerMessageID string) (*models.SyncedEmailMessage, error)
	ListMessageIDs(integrationID uint) (map[string]struct{}, error)
	ListLinksByThread(threadID uint) ([]models.SyncedEmailMessage, error)
	CreateAttachment(attachment *models.EmailAttachment) error
}

// WebhookEventRepository persists received notifications with dedup semantics
type WebhookEventRepository interface {
	// Record inserts the event; created is false when the same
	// (provider, provider_event_id) was already stored.
	Record(event *models.SyncWebhookEvent) (created bool, stored *models.SyncWebhookEvent, err error)
	MarkProcessed(id uint, processingErr error) error
}

// ReviewRepository manages cached business-profile reviews
type ReviewRepository interface {
	Upsert(review *models.Review) error
	GetByID(id uint) (*models.Review, error)
	GetByIDForUser(id, userID uint) (*models.Review, error)
	ListByUser(userID uint, offset, limit int) ([]models.Review, error)
	Update(review *models.Review) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Customer     CustomerRepository
	Job          JobRepository
	Integration  IntegrationRepository
	CalendarLink CalendarLinkRepository
	Email        EmailRepository
	WebhookEvent WebhookEventRepository
	Review       ReviewRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Customer:     NewCustomerRepository(db),
		Job:          NewJobRepository(db),
		Integration:  NewIntegrationRepository(db),
		CalendarLink: NewCalendarLinkRepository(db),
		Email:        NewEmailRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
		Review:       NewReviewRepository(db),
	}
}
