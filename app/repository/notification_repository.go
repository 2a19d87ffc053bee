package repository

import (
	"github.com/stammtisch-app/stammtisch/app/models"
	"gorm.io/gorm"
)

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository creates a new notification repository instance
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Notify creates a notification record for the push delivery pipeline.
func (r *notificationRepository) Notify(userID uint, kind, content string) error {
	notification := models.Notification{
		UserID:  userID,
		Type:    kind,
		Content: content,
		IsRead:  false,
	}
	return r.db.Create(&notification).Error
}

func (r *notificationRepository) ListByUser(userID uint, offset, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) CountUnread(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
