package repositories

import (
	"context"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"gorm.io/gorm"
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	// DeleteBetween removes notifications of one type from sender to receiver.
	DeleteBetween(ctx context.Context, typ models.NotificationType, senderID, receiverID uint) (int64, error)
	// ListForUser returns notifications addressed to userID or to any of
	// serverIDs, excluding those userID sent, newest first.
	ListForUser(ctx context.Context, userID uint, serverIDs []uint) ([]models.Notification, error)
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	GetUnreadCount(ctx context.Context, recipientID uint) (int64, error)
	MarkAsRead(ctx context.Context, notificationID uint) error
	MarkAllAsRead(ctx context.Context, recipientID uint) error
}

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	return translate(r.db.WithContext(ctx).Create(notification).Error)
}

func (r *postgresNotificationRepository) DeleteBetween(ctx context.Context, typ models.NotificationType, senderID, receiverID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("type = ? AND sender_id = ? AND receiver_id = ?", typ, senderID, receiverID).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}

func (r *postgresNotificationRepository) ListForUser(ctx context.Context, userID uint, serverIDs []uint) ([]models.Notification, error) {
	notifications := []models.Notification{}
	q := r.db.WithContext(ctx).Preload("Sender")
	if len(serverIDs) > 0 {
		q = q.Where("(receiver_id = ? OR server_id IN ?)", userID, serverIDs)
	} else {
		q = q.Where("receiver_id = ?", userID)
	}
	err := q.Where("sender_id <> ?", userID).
		Order("created_at DESC").
		Limit(200).
		Find(&notifications).Error
	return notifications, err
}

func (r *postgresNotificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, translate(err)
	}
	return &n, nil
}

func (r *postgresNotificationRepository) GetUnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = false", recipientID).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, notificationID uint) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", notificationID).Update("is_read", true).Error
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID uint) error {
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = false", recipientID).
		Update("is_read", true).Error
}
