package repository

import (
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations.
// Email lookups return slices because duplicate rows per address are a known
// condition the billing core has to reconcile, not an error.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByExternalAuthID(id string) (*models.User, error)
	GetByCustomerRef(ref string) (*models.User, error)
	ListByEmail(email string) ([]models.User, error)
	ListDuplicateEmails() ([]string, error)
	ListLapsedCancelled(now time.Time) ([]models.User, error)
	Update(user *models.User) error
	UpdateSubscriptionFields(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// NotificationRepository defines the interface for notification records.
type NotificationRepository interface {
	Notify(userID uint, kind, content string) error
	ListByUser(userID uint, offset, limit int) ([]models.Notification, error)
	CountUnread(userID uint) (int64, error)
}

// WebhookEventRepository persists provider webhook events with dedup.
type WebhookEventRepository interface {
	CreateIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkProcessed(id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Notification NotificationRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Notification: NewNotificationRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}
