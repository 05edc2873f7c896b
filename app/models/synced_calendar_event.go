package models

import "time"

const (
	LINK_STATUS_PENDING = "pending"
	LINK_STATUS_SYNCED  = "synced"
)

// SyncedCalendarEvent links an internal job to its mirrored provider calendar
// event. The unique index on (job_id, integration_id) is the at-most-one-mirror
// invariant: a retried push updates the existing row instead of creating a
// second mirror.
//
// A row is written with status "pending" before the provider create call and
// promoted to "synced" once the event ID is known. A pending row with an empty
// event ID marks an interrupted push and is reconciled on the next push.
type SyncedCalendarEvent struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	JobID         uint      `gorm:"not null;index:ux_synced_calendar_events_job_integration,unique,priority:1" json:"job_id"`
	IntegrationID uint      `gorm:"not null;index:ux_synced_calendar_events_job_integration,unique,priority:2;index" json:"integration_id"`
	GoogleEventID string    `gorm:"type:varchar(191);index" json:"google_event_id"`
	Status        string    `gorm:"type:varchar(10);default:'pending'" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
