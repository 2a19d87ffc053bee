package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER  = "user"
	ROLE_ADMIN = "admin"
)

// User is the canonical account record. The subscription fields are stored
// inline and are written only by the billing service (webhook handlers,
// reconciler, admin overrides) - never from client request bodies.
//
// Email is intentionally NOT unique at the storage layer: signup races can
// leave multiple rows for one address. The dedup engine keeps their
// subscription fields converged; rows are never hard-deleted here.
type User struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	ExternalAuthID string `gorm:"type:varchar(64);index" json:"-"`
	Name           string `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email          string `gorm:"index;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password       string `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role           string `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user admin"`

	SubscriptionStatus     SubscriptionStatus `gorm:"type:varchar(20);default:'free';index" json:"subscription_status"`
	BillingCustomerRef     string             `gorm:"type:varchar(191);default:'';index" json:"-"`
	BillingSubscriptionRef string             `gorm:"type:varchar(191);default:''" json:"-"`
	BillingProductRef      string             `gorm:"type:varchar(191);default:''" json:"-"`
	PeriodStart            *time.Time         `gorm:"type:timestamp;default:null" json:"period_start,omitempty"`
	PeriodEnd              *time.Time         `gorm:"type:timestamp;default:null" json:"period_end,omitempty"`
	CancelAtPeriodEnd      bool               `gorm:"default:false" json:"cancel_at_period_end"`
	SubscriptionUpdatedAt  *time.Time         `gorm:"type:timestamp;default:null" json:"-"`

	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

// CreateUser builds a new local account with a hashed password.
func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		ExternalAuthID:     uuid.NewString(),
		Name:               username,
		Email:              email,
		Password:           pw,
		Role:               ROLE_USER,
		SubscriptionStatus: SubscriptionFree,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}
