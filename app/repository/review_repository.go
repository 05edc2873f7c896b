package repository

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fielddesk/fielddesk/app/models"
)

// reviewRepository implements the ReviewRepository interface
type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository creates a new review repository instance
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Upsert inserts the review or refreshes the cached fields when the same
// (integration_id, provider_review_id) already exists.
func (r *reviewRepository) Upsert(review *models.Review) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "integration_id"}, {Name: "provider_review_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reviewer_name", "star_rating", "comment", "reply_text", "replied_at", "reviewed_at",
		}),
	}).Create(review).Error
}

func (r *reviewRepository) GetByID(id uint) (*models.Review, error) {
	var review models.Review
	err := r.db.First(&review, id).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) GetByIDForUser(id, userID uint) (*models.Review, error) {
	var review models.Review
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *reviewRepository) ListByUser(userID uint, offset, limit int) ([]models.Review, error) {
	var reviews []models.Review
	err := r.db.Where("user_id = ?", userID).
		Order("reviewed_at DESC").
		Offset(offset).Limit(limit).
		Find(&reviews).Error
	return reviews, err
}

func (r *reviewRepository) Update(review *models.Review) error {
	return r.db.Save(review).Error
}
