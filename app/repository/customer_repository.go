package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/fielddesk/fielddesk/app/models"
)

// customerRepository implements the CustomerRepository interface
type customerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new customer repository instance
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &customerRepository{db: db}
}

func (r *customerRepository) Create(customer *models.Customer) error {
	return r.db.Create(customer).Error
}

func (r *customerRepository) GetByID(id uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.First(&customer, id).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) GetByIDForUser(id, userID uint) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) GetByEmail(userID uint, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.Where("user_id = ? AND email = ?", userID, email).First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *customerRepository) Update(customer *models.Customer) error {
	return r.db.Save(customer).Error
}

func (r *customerRepository) Delete(id uint) error {
	return r.db.Delete(&models.Customer{}, id).Error
}

func (r *customerRepository) ListByUser(userID uint, offset, limit int) ([]models.Customer, error) {
	var customers []models.Customer
	err := r.db.Where("user_id = ?", userID).
		Order("name ASC").
		Offset(offset).Limit(limit).
		Find(&customers).Error
	return customers, err
}

func (r *customerRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Customer{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// Search matches name, email and phone with a LIKE query
func (r *customerRepository) Search(userID uint, query string) ([]models.Customer, error) {
	var customers []models.Customer
	pattern := fmt.Sprintf("%%%s%%", query)
	err := r.db.Where("user_id = ? AND (name LIKE ? OR email LIKE ? OR phone LIKE ?)",
		userID, pattern, pattern, pattern).
		Order("name ASC").
		Limit(50).
		Find(&customers).Error
	return customers, err
}
