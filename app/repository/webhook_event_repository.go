package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fielddesk/fielddesk/app/models"
)

// webhookEventRepository implements the WebhookEventRepository interface
type webhookEventRepository struct {
	db *gorm.DB
}

// NewWebhookEventRepository creates a new webhook event repository instance
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepository{db: db}
}

// Record inserts the event, relying on the unique (provider, provider_event_id)
// index for dedup. On conflict the existing row is returned with created=false
// so redelivered notifications can be acknowledged without reprocessing.
func (r *webhookEventRepository) Record(event *models.SyncWebhookEvent) (bool, *models.SyncWebhookEvent, error) {
	res := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return false, nil, res.Error
	}
	if res.RowsAffected == 0 {
		var existing models.SyncWebhookEvent
		err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
			First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Conflict row vanished between insert and read; treat as dup anyway
				return false, event, nil
			}
			return false, nil, err
		}
		return false, &existing, nil
	}
	return true, event, nil
}

func (r *webhookEventRepository) MarkProcessed(id uint, processingErr error) error {
	updates := map[string]interface{}{
		"processed_at": time.Now(),
	}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	return r.db.Model(&models.SyncWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
