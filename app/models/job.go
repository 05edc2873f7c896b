package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

const (
	JOB_STATUS_SCHEDULED   = "scheduled"
	JOB_STATUS_IN_PROGRESS = "in_progress"
	JOB_STATUS_DONE        = "done"
	JOB_STATUS_CANCELLED   = "cancelled"
)

// Job is the internal source-of-truth record mirrored to provider calendars.
// Two-way sync may only write StartTime, EndTime and Description back into a
// job; customer, pricing and identity fields are never touched by sync.
type Job struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	UserID      uint           `gorm:"index" json:"user_id"`
	CustomerID  uint           `gorm:"index" json:"customer_id"`
	Title       string         `gorm:"type:varchar(200)" json:"title" validate:"required,min=2,max=200"`
	Description string         `gorm:"type:text" json:"description"`
	Location    string         `gorm:"type:varchar(255)" json:"location" validate:"max=255"`
	StartTime   time.Time      `gorm:"index" json:"start_time" validate:"required"`
	EndTime     time.Time      `gorm:"index" json:"end_time" validate:"required,gtfield=StartTime"`
	Status      string         `gorm:"type:varchar(20);default:'scheduled'" json:"status" validate:"oneof=scheduled in_progress done cancelled"`
	Price       float64        `gorm:"type:decimal(10,2)" json:"price"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Customer *Customer `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
}

func (j *Job) Validate() error {
	v := validator.New()

	return v.Struct(j)
}

// Overlaps reports whether the job's window intersects [start, end) using the
// half-open interval test.
func (j *Job) Overlaps(start, end time.Time) bool {
	return j.StartTime.Before(end) && j.EndTime.After(start)
}
