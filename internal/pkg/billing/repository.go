package billing

import (
	"time"

	"github.com/stammtisch-app/stammtisch/app/models"
	"github.com/stammtisch-app/stammtisch/app/repository"
	"gorm.io/gorm"
)

// Repository is the persistence surface the billing service needs. It is a
// thin projection over the application repositories so tests can swap in an
// in-memory fake.
type Repository interface {
	GetUserByID(id uint) (*models.User, error)
	GetUserByCustomerRef(ref string) (*models.User, error)
	ListUsersByEmail(email string) ([]models.User, error)
	ListDuplicateEmails() ([]string, error)
	ListLapsedCancelled(now time.Time) ([]models.User, error)
	CreateUser(user *models.User) error
	SaveSubscription(user *models.User) error
	RecordWebhookEvent(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	users  repository.UserRepository
	events repository.WebhookEventRepository
}

// NewRepository wires the billing service onto the shared database handle.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{
		users:  repository.NewUserRepository(db),
		events: repository.NewWebhookEventRepository(db),
	}
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	return r.users.GetByID(id)
}

func (r *gormRepository) GetUserByCustomerRef(ref string) (*models.User, error) {
	return r.users.GetByCustomerRef(ref)
}

func (r *gormRepository) ListUsersByEmail(email string) ([]models.User, error) {
	return r.users.ListByEmail(email)
}

func (r *gormRepository) ListDuplicateEmails() ([]string, error) {
	return r.users.ListDuplicateEmails()
}

func (r *gormRepository) ListLapsedCancelled(now time.Time) ([]models.User, error) {
	return r.users.ListLapsedCancelled(now)
}

func (r *gormRepository) CreateUser(user *models.User) error {
	return r.users.Create(user)
}

func (r *gormRepository) SaveSubscription(user *models.User) error {
	return r.users.UpdateSubscriptionFields(user)
}

func (r *gormRepository) RecordWebhookEvent(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	return r.events.CreateIfNotExists(event)
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	return r.events.MarkProcessed(id, processingError)
}
