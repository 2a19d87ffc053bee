package repository

import (
	"strings"
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByExternalAuthID retrieves a user by the auth provider's subject id.
func (r *userRepository) GetByExternalAuthID(id string) (*models.User, error) {
	var user models.User
	err := r.db.Where("external_auth_id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByCustomerRef retrieves the user linked to a billing customer reference.
// With duplicate accounts the oldest row wins; dedup keeps siblings in sync.
func (r *userRepository) GetByCustomerRef(ref string) (*models.User, error) {
	var user models.User
	err := r.db.Where("billing_customer_ref = ?", strings.TrimSpace(ref)).
		Order("id ASC").First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListByEmail returns every account row sharing the given address.
func (r *userRepository) ListByEmail(email string) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("email = ?", strings.TrimSpace(email)).
		Order("id ASC").Find(&users).Error
	return users, err
}

// ListDuplicateEmails returns addresses held by more than one account row.
func (r *userRepository) ListDuplicateEmails() ([]string, error) {
	var emails []string
	err := r.db.Model(&models.User{}).
		Select("email").
		Group("email").
		Having("COUNT(*) > 1").
		Pluck("email", &emails).Error
	return emails, err
}

// ListLapsedCancelled returns cancelled accounts whose grace period has run
// out, i.e. candidates for the revoke side effect.
func (r *userRepository) ListLapsedCancelled(now time.Time) ([]models.User, error) {
	var users []models.User
	err := r.db.
		Where("subscription_status = ? AND period_end IS NOT NULL AND period_end <= ?",
			models.SubscriptionCancelled, now).
		Find(&users).Error
	return users, err
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateSubscriptionFields writes only the subscription columns in a single
// atomic UPDATE so concurrent writers cannot interleave a partial record.
func (r *userRepository) UpdateSubscriptionFields(user *models.User) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"subscription_status":      user.SubscriptionStatus,
			"billing_customer_ref":     user.BillingCustomerRef,
			"billing_subscription_ref": user.BillingSubscriptionRef,
			"billing_product_ref":      user.BillingProductRef,
			"period_start":             user.PeriodStart,
			"period_end":               user.PeriodEnd,
			"cancel_at_period_end":     user.CancelAtPeriodEnd,
			"subscription_updated_at":  user.SubscriptionUpdatedAt,
		}).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
