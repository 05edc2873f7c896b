package models

import "time"

// Review caches a Google Business Profile review for display and reply.
// Rows are upserted by (integration_id, provider_review_id) during review sync.
type Review struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"index" json:"user_id"`
	IntegrationID    uint       `gorm:"not null;index:ux_reviews_provider_review,unique,priority:1" json:"integration_id"`
	ProviderReviewID string     `gorm:"type:varchar(191);not null;index:ux_reviews_provider_review,unique,priority:2" json:"provider_review_id"`
	LocationID       string     `gorm:"type:varchar(255)" json:"location_id"`
	ReviewerName     string     `gorm:"type:varchar(200)" json:"reviewer_name"`
	StarRating       int        `gorm:"default:0" json:"star_rating"`
	Comment          string     `gorm:"type:text" json:"comment"`
	ReplyText        string     `gorm:"type:text" json:"reply_text"`
	RepliedAt        *time.Time `gorm:"type:timestamp;default:null" json:"replied_at,omitempty"`
	ReviewedAt       *time.Time `gorm:"type:timestamp;default:null" json:"reviewed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
