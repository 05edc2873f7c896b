package models

import "time"

// SyncWebhookEvent stores received provider notifications with deduplication
// metadata for idempotent processing. The unique (provider, provider_event_id)
// index means a redelivered notification is acknowledged without re-triggering
// a sync.
type SyncWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_sync_webhook_events_provider_event,unique,priority:1;index" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;default:'';index:ux_sync_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	IntegrationID   uint       `gorm:"index" json:"integration_id"`
	ResourceState   string     `gorm:"type:varchar(50)" json:"resource_state"`
	PayloadJSON     string     `gorm:"type:longtext" json:"payload_json"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
