package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailThread is the internal record for a synced mailbox conversation.
// Two-way sync may only write the Unread flag back from the provider.
type EmailThread struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"index" json:"user_id"`
	IntegrationID uint           `gorm:"index" json:"integration_id"`
	CustomerID    *uint          `gorm:"index" json:"customer_id,omitempty"`
	Subject       string         `gorm:"type:varchar(500)" json:"subject"`
	Snippet       string         `gorm:"type:text" json:"snippet"`
	Participants  string         `gorm:"type:text" json:"participants"`
	Unread        bool           `gorm:"default:false;index" json:"unread"`
	MessageCount  int            `gorm:"default:0" json:"message_count"`
	LastMessageAt *time.Time     `gorm:"type:timestamp;default:null;index" json:"last_message_at,omitempty"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
