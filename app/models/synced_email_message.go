package models

import "time"

// SyncedEmailMessage links an internal email thread to one provider-side
// message. The unique index on (provider_message_id, integration_id) makes
// webhook redelivery idempotent: re-processing the same notification cannot
// insert the message twice.
type SyncedEmailMessage struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ThreadID          uint      `gorm:"not null;index" json:"thread_id"`
	IntegrationID     uint      `gorm:"not null;index:ux_synced_email_messages_provider_msg,unique,priority:2;index" json:"integration_id"`
	ProviderMessageID string    `gorm:"type:varchar(191);not null;index:ux_synced_email_messages_provider_msg,unique,priority:1" json:"provider_message_id"`
	ProviderThreadID  string    `gorm:"type:varchar(191);index" json:"provider_thread_id"`
	Outbound          bool      `gorm:"default:false" json:"outbound"`
	InternalDate      time.Time `json:"internal_date"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
