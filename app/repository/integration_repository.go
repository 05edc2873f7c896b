package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// integrationRepository implements the IntegrationRepository interface
type integrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository creates a new integration repository instance
func NewIntegrationRepository(db *gorm.DB) IntegrationRepository {
	return &integrationRepository{db: db}
}

func (r *integrationRepository) Create(integration *models.Integration) error {
	return r.db.Create(integration).Error
}

func (r *integrationRepository) GetByID(id uint) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.First(&integration, id).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) GetByIDForUser(id, userID uint) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) GetByUserAndProvider(userID uint, provider string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("user_id = ? AND provider = ?", userID, provider).First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) GetByProviderAccount(userID uint, provider, accountEmail string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("user_id = ? AND provider = ? AND account_email = ?", userID, provider, accountEmail).
		First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) GetByWatchChannelID(channelID string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("watch_channel_id = ?", channelID).First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) GetByAccountEmail(provider, accountEmail string) (*models.Integration, error) {
	var integration models.Integration
	err := r.db.Where("provider = ? AND account_email = ?", provider, accountEmail).First(&integration).Error
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (r *integrationRepository) ListByUser(userID uint) ([]models.Integration, error) {
	var integrations []models.Integration
	err := r.db.Where("user_id = ?", userID).Order("provider ASC").Find(&integrations).Error
	return integrations, err
}

func (r *integrationRepository) ListSyncEnabled(userID uint, provider string) ([]models.Integration, error) {
	var integrations []models.Integration
	err := r.db.Where("user_id = ? AND provider = ? AND sync_enabled = ?", userID, provider, true).
		Find(&integrations).Error
	return integrations, err
}

func (r *integrationRepository) ListWatchExpiring(before time.Time) ([]models.Integration, error) {
	var integrations []models.Integration
	err := r.db.Where("watch_channel_id <> '' AND watch_expiration IS NOT NULL AND watch_expiration < ? AND sync_enabled = ?",
		before, true).
		Find(&integrations).Error
	return integrations, err
}

func (r *integrationRepository) Update(integration *models.Integration) error {
	return r.db.Save(integration).Error
}

// UpdateTokens persists a refreshed token set. Providers that do not rotate
// the refresh token pass the stored one through unchanged.
func (r *integrationRepository) UpdateTokens(id uint, accessToken, refreshToken string, expiry time.Time) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Updates(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"token_expiry":  expiry,
	}).Error
}

func (r *integrationRepository) UpdateWatch(id uint, channelID, resourceID string, expiration *time.Time) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Updates(map[string]interface{}{
		"watch_channel_id":  channelID,
		"watch_resource_id": resourceID,
		"watch_expiration":  expiration,
	}).Error
}

func (r *integrationRepository) UpdateHistoryID(id uint, historyID uint64) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).
		UpdateColumn("watch_history_id", historyID).Error
}

func (r *integrationRepository) SetSyncEnabled(id uint, enabled bool) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).
		UpdateColumn("sync_enabled", enabled).Error
}

func (r *integrationRepository) TouchLastSynced(id uint, eventCount int64) error {
	return r.db.Model(&models.Integration{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_synced_at": time.Now(),
		"events_synced":  gorm.Expr("events_synced + ?", eventCount),
	}).Error
}

func (r *integrationRepository) Delete(id uint) error {
	return r.db.Delete(&models.Integration{}, id).Error
}
