package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// jobRepository implements the JobRepository interface
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.Job) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) GetByID(id uint) (*models.Job, error) {
	var job models.Job
	err := r.db.Preload("Customer").First(&job, id).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetByIDForUser(id, userID uint) (*models.Job, error) {
	var job models.Job
	err := r.db.Preload("Customer").Where("id = ? AND user_id = ?", id, userID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) Update(job *models.Job) error {
	return r.db.Save(job).Error
}

// UpdateSyncedFields applies the restricted two-way-sync field set. Only
// start, end and description may be written from the provider side.
func (r *jobRepository) UpdateSyncedFields(id uint, start, end time.Time, description string) error {
	return r.db.Model(&models.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"start_time":  start,
		"end_time":    end,
		"description": description,
	}).Error
}

func (r *jobRepository) Delete(id uint) error {
	return r.db.Delete(&models.Job{}, id).Error
}

func (r *jobRepository) ListByUser(userID uint, offset, limit int) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.Preload("Customer").
		Where("user_id = ?", userID).
		Order("start_time DESC").
		Offset(offset).Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) ListInWindow(userID uint, from, to time.Time) ([]models.Job, error) {
	var jobs []models.Job
	err := r.db.Preload("Customer").
		Where("user_id = ? AND start_time < ? AND end_time > ?", userID, to, from).
		Order("start_time ASC").
		Find(&jobs).Error
	return jobs, err
}

// ListOverlapping returns bookings intersecting [start, end) using the
// half-open overlap test, excluding the job being edited and cancelled jobs.
func (r *jobRepository) ListOverlapping(userID uint, start, end time.Time, excludeJobID uint) ([]models.Job, error) {
	var jobs []models.Job
	q := r.db.Where("user_id = ? AND start_time < ? AND end_time > ? AND status <> ?",
		userID, end, start, models.JOB_STATUS_CANCELLED)
	if excludeJobID != 0 {
		q = q.Where("id <> ?", excludeJobID)
	}
	err := q.Order("start_time ASC").Find(&jobs).Error
	return jobs, err
}
