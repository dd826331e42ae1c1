package repositories

import (
	"context"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	// FindByPair looks the pair up in either order.
	FindByPair(ctx context.Context, a, b uint) (*models.OneToOneConversation, error)
	Create(ctx context.Context, conversation *models.OneToOneConversation) error
	GetByID(ctx context.Context, id uint) (*models.OneToOneConversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.OneToOneConversation, error)
}

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewPostgresConversationRepository(db *gorm.DB) *PostgresConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) FindByPair(ctx context.Context, a, b uint) (*models.OneToOneConversation, error) {
	low, high := models.OrderedPair(a, b)
	var conv models.OneToOneConversation
	err := r.db.WithContext(ctx).
		Preload("UserLow").Preload("UserHigh").
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&conv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *PostgresConversationRepository) Create(ctx context.Context, conversation *models.OneToOneConversation) error {
	conversation.UserLowID, conversation.UserHighID = models.OrderedPair(conversation.UserLowID, conversation.UserHighID)
	return translate(r.db.WithContext(ctx).Create(conversation).Error)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uint) (*models.OneToOneConversation, error) {
	var conv models.OneToOneConversation
	if err := r.db.WithContext(ctx).Preload("UserLow").Preload("UserHigh").First(&conv, id).Error; err != nil {
		return nil, translate(err)
	}
	return &conv, nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.OneToOneConversation, error) {
	convs := []models.OneToOneConversation{}
	err := r.db.WithContext(ctx).
		Preload("UserLow").Preload("UserHigh").
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("created_at DESC").
		Find(&convs).Error
	return convs, err
}
