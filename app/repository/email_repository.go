package repository

import (
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// emailRepository implements the EmailRepository interface
type emailRepository struct {
	db *gorm.DB
}

// NewEmailRepository creates a new email repository instance
func NewEmailRepository(db *gorm.DB) EmailRepository {
	return &emailRepository{db: db}
}

func (r *emailRepository) CreateThread(thread *models.EmailThread) error {
	return r.db.Create(thread).Error
}

func (r *emailRepository) UpdateThread(thread *models.EmailThread) error {
	return r.db.Save(thread).Error
}

func (r *emailRepository) GetThreadByID(id uint) (*models.EmailThread, error) {
	var thread models.EmailThread
	err := r.db.First(&thread, id).Error
	if err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *emailRepository) GetThreadByProviderThreadID(integrationID uint, providerThreadID string) (*models.EmailThread, error) {
	var link models.SyncedEmailMessage
	err := r.db.Where("integration_id = ? AND provider_thread_id = ?", integrationID, providerThreadID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return r.GetThreadByID(link.ThreadID)
}

func (r *emailRepository) ListThreadsByUser(userID uint, offset, limit int) ([]models.EmailThread, error) {
	var threads []models.EmailThread
	err := r.db.Where("user_id = ?", userID).
		Order("last_message_at DESC").
		Offset(offset).Limit(limit).
		Find(&threads).Error
	return threads, err
}

func (r *emailRepository) SetThreadUnread(threadID uint, unread bool) error {
	return r.db.Model(&models.EmailThread{}).Where("id = ?", threadID).
		UpdateColumn("unread", unread).Error
}

func (r *emailRepository) CreateMessageLink(link *models.SyncedEmailMessage) error {
	return r.db.Create(link).Error
}

func (r *emailRepository) GetMessageLink(integrationID uint, providerMessageID string) (*models.SyncedEmailMessage, error) {
	var link models.SyncedEmailMessage
	err := r.db.Where("integration_id = ? AND provider_message_id = ?", integrationID, providerMessageID).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// ListMessageIDs returns the set of already-mirrored provider message IDs for
// the read/merge duplicate filter.
func (r *emailRepository) ListMessageIDs(integrationID uint) (map[string]struct{}, error) {
	var ids []string
	err := r.db.Model(&models.SyncedEmailMessage{}).
		Where("integration_id = ?", integrationID).
		Pluck("provider_message_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *emailRepository) ListLinksByThread(threadID uint) ([]models.SyncedEmailMessage, error) {
	var links []models.SyncedEmailMessage
	err := r.db.Where("thread_id = ?", threadID).
		Order("internal_date ASC").
		Find(&links).Error
	return links, err
}

func (r *emailRepository) CreateAttachment(attachment *models.EmailAttachment) error {
	return r.db.Create(attachment).Error
}
