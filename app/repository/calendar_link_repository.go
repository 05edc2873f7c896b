package repository

import (
	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// calendarLinkRepository implements the CalendarLinkRepository interface
type calendarLinkRepository struct {
	db *gorm.DB
}

// NewCalendarLinkRepository creates a new calendar link repository instance
func NewCalendarLinkRepository(db *gorm.DB) CalendarLinkRepository {
	return &calendarLinkRepository{db: db}
}

func (r *calendarLinkRepository) Create(link *models.SyncedCalendarEvent) error {
	return r.db.Create(link).Error
}

func (r *calendarLinkRepository) Update(link *models.SyncedCalendarEvent) error {
	return r.db.Save(link).Error
}

func (r *calendarLinkRepository) GetByJobAndIntegration(jobID, integrationID uint) (*models.SyncedCalendarEvent, error) {
	var link models.SyncedCalendarEvent
	err := r.db.Where("job_id = ? AND integration_id = ?", jobID, integrationID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *calendarLinkRepository) GetByEventID(integrationID uint, eventID string) (*models.SyncedCalendarEvent, error) {
	var link models.SyncedCalendarEvent
	err := r.db.Where("integration_id = ? AND google_event_id = ?", integrationID, eventID).First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *calendarLinkRepository) ListByIntegration(integrationID uint) ([]models.SyncedCalendarEvent, error) {
	var links []models.SyncedCalendarEvent
	err := r.db.Where("integration_id = ?", integrationID).Find(&links).Error
	return links, err
}

// ListEventIDs returns the set of mirrored provider event IDs for fast
// membership checks in the read/merge filter.
func (r *calendarLinkRepository) ListEventIDs(integrationID uint) (map[string]struct{}, error) {
	var ids []string
	err := r.db.Model(&models.SyncedCalendarEvent{}).
		Where("integration_id = ? AND google_event_id <> ''", integrationID).
		Pluck("google_event_id", &ids).Error
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (r *calendarLinkRepository) Delete(id uint) error {
	return r.db.Delete(&models.SyncedCalendarEvent{}, id).Error
}

func (r *calendarLinkRepository) DeleteByJob(jobID uint) error {
	return r.db.Where("job_id = ?", jobID).Delete(&models.SyncedCalendarEvent{}).Error
}
