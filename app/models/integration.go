package models

import "time"

const (
	IntegrationProviderCalendar = "calendar"
	IntegrationProviderGmail    = "gmail"
	IntegrationProviderOutlook  = "outlook"
	IntegrationProviderGMB      = "gmb"
)

// Integration stores the OAuth credential and sync configuration for one
// (user, provider, external account) tuple. At most one active integration
// may exist per tuple; the unique index enforces this.
type Integration struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	UserID       uint   `gorm:"not null;index:ux_integrations_user_provider_account,unique,priority:1;index" json:"user_id"`
	Provider     string `gorm:"type:varchar(20);not null;index:ux_integrations_user_provider_account,unique,priority:2" json:"provider"`
	AccountEmail string `gorm:"type:varchar(200);not null;default:'';index:ux_integrations_user_provider_account,unique,priority:3" json:"account_email"`

	// Provider-specific resource identifiers
	CalendarID string `gorm:"type:varchar(255)" json:"calendar_id,omitempty"`
	LocationID string `gorm:"type:varchar(255)" json:"location_id,omitempty"`

	AccessToken  string     `gorm:"type:text" json:"-"`
	RefreshToken string     `gorm:"type:text" json:"-"`
	TokenExpiry  *time.Time `gorm:"type:timestamp;default:null" json:"token_expiry,omitempty"`

	SyncEnabled       bool `gorm:"default:true;index" json:"sync_enabled"`
	TwoWaySyncEnabled bool `gorm:"default:false" json:"two_way_sync_enabled"`

	// Webhook subscription state. Providers cap subscription lifetime, so
	// WatchExpiration must be renewed before it passes or notifications
	// silently stop.
	WatchChannelID  string     `gorm:"type:varchar(100);index" json:"watch_channel_id,omitempty"`
	WatchResourceID string     `gorm:"type:varchar(191)" json:"watch_resource_id,omitempty"`
	WatchExpiration *time.Time `gorm:"type:timestamp;default:null" json:"watch_expiration,omitempty"`
	WatchHistoryID  uint64     `gorm:"default:0" json:"watch_history_id,omitempty"`

	LastSyncedAt *time.Time `gorm:"type:timestamp;default:null" json:"last_synced_at,omitempty"`
	EventsSynced int64      `gorm:"default:0" json:"events_synced"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TokenExpired reports whether the access token must be refreshed before the
// next provider call. skew guards against clock drift and in-flight latency.
func (i *Integration) TokenExpired(skew time.Duration) bool {
	if i.TokenExpiry == nil {
		return true
	}
	return !i.TokenExpiry.After(time.Now().Add(skew))
}

// WatchActive reports whether a push subscription is registered and not expired.
func (i *Integration) WatchActive() bool {
	if i.WatchChannelID == "" {
		return false
	}
	if i.WatchExpiration == nil {
		return false
	}
	return i.WatchExpiration.After(time.Now())
}

// WatchNeedsRenewal reports whether the subscription expires within the window.
func (i *Integration) WatchNeedsRenewal(window time.Duration) bool {
	if i.WatchChannelID == "" || i.WatchExpiration == nil {
		return false
	}
	return time.Now().Add(window).After(*i.WatchExpiration)
}
