package models

import "time"

// EmailAttachment records an attachment offloaded to object storage during
// mailbox sync. StorageKey is the S3 object key; the blob itself never lands
// in MySQL.
type EmailAttachment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	ThreadID      uint      `gorm:"index" json:"thread_id"`
	MessageLinkID uint      `gorm:"index" json:"message_link_id"`
	Filename      string    `gorm:"type:varchar(255)" json:"filename"`
	MimeType      string    `gorm:"type:varchar(100)" json:"mime_type"`
	SizeBytes     int64     `gorm:"default:0" json:"size_bytes"`
	StorageKey    string    `gorm:"type:varchar(512)" json:"storage_key"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}
