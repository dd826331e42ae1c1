package repositories

import (
	"context"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"gorm.io/gorm"
)

// GraphRepository stores the three edge tables of the social graph. Every
// edge is one row, so both directions of a pair are written together.
type GraphRepository interface {
	IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error)
	HasPendingRequest(ctx context.Context, senderID, receiverID uint) (bool, error)
	IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error)

	CreateFollowRequest(ctx context.Context, senderID, receiverID uint) error
	DeleteFollowRequest(ctx context.Context, senderID, receiverID uint) (bool, error)
	// AcceptFollowRequest replaces the pending edge with a confirmed one in a
	// single transaction. It returns ErrNotFound when no request exists.
	AcceptFollowRequest(ctx context.Context, senderID, receiverID uint) error
	DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error)
	CreateBlock(ctx context.Context, blockerID, blockedID uint) error
	DeleteBlock(ctx context.Context, blockerID, blockedID uint) (bool, error)

	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowingIDs(ctx context.Context, userID uint) ([]uint, error)
	SentRequestIDs(ctx context.Context, userID uint) ([]uint, error)
	ReceivedRequestIDs(ctx context.Context, userID uint) ([]uint, error)
	BlockedIDs(ctx context.Context, userID uint) ([]uint, error)
	BlockedByIDs(ctx context.Context, userID uint) ([]uint, error)
}

// PostgresGraphRepository implements GraphRepository for PostgreSQL
type PostgresGraphRepository struct {
	db *gorm.DB
}

// NewPostgresGraphRepository creates a new PostgresGraphRepository
func NewPostgresGraphRepository(db *gorm.DB) *PostgresGraphRepository {
	return &PostgresGraphRepository{db: db}
}

func (r *PostgresGraphRepository) exists(ctx context.Context, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *PostgresGraphRepository) IsFollowing(ctx context.Context, followerID, followingID uint) (bool, error) {
	return r.exists(ctx, &models.Follow{}, "follower_id = ? AND following_id = ?", followerID, followingID)
}

func (r *PostgresGraphRepository) HasPendingRequest(ctx context.Context, senderID, receiverID uint) (bool, error) {
	return r.exists(ctx, &models.FollowRequest{}, "sender_id = ? AND receiver_id = ?", senderID, receiverID)
}

func (r *PostgresGraphRepository) IsBlocked(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	return r.exists(ctx, &models.Block{}, "blocker_id = ? AND blocked_id = ?", blockerID, blockedID)
}

func (r *PostgresGraphRepository) CreateFollowRequest(ctx context.Context, senderID, receiverID uint) error {
	req := &models.FollowRequest{SenderID: senderID, ReceiverID: receiverID}
	return translate(r.db.WithContext(ctx).Create(req).Error)
}

func (r *PostgresGraphRepository) DeleteFollowRequest(ctx context.Context, senderID, receiverID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Delete(&models.FollowRequest{})
	return res.RowsAffected > 0, res.Error
}

func (r *PostgresGraphRepository) AcceptFollowRequest(ctx context.Context, senderID, receiverID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).Delete(&models.FollowRequest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		follow := &models.Follow{FollowerID: senderID, FollowingID: receiverID}
		if err := tx.Create(follow).Error; err != nil {
			return translate(err)
		}
		return nil
	})
}

func (r *PostgresGraphRepository) DeleteFollow(ctx context.Context, followerID, followingID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	return res.RowsAffected > 0, res.Error
}

func (r *PostgresGraphRepository) CreateBlock(ctx context.Context, blockerID, blockedID uint) error {
	block := &models.Block{BlockerID: blockerID, BlockedID: blockedID}
	return translate(r.db.WithContext(ctx).Create(block).Error)
}

func (r *PostgresGraphRepository) DeleteBlock(ctx context.Context, blockerID, blockedID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.Block{})
	return res.RowsAffected > 0, res.Error
}

func (r *PostgresGraphRepository) pluck(ctx context.Context, model any, column, where string, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(model).Where(where, userID).Order("created_at").Pluck(column, &ids).Error
	return ids, err
}

func (r *PostgresGraphRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.Follow{}, "follower_id", "following_id = ?", userID)
}

func (r *PostgresGraphRepository) FollowingIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.Follow{}, "following_id", "follower_id = ?", userID)
}

func (r *PostgresGraphRepository) SentRequestIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.FollowRequest{}, "receiver_id", "sender_id = ?", userID)
}

func (r *PostgresGraphRepository) ReceivedRequestIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.FollowRequest{}, "sender_id", "receiver_id = ?", userID)
}

func (r *PostgresGraphRepository) BlockedIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.Block{}, "blocked_id", "blocker_id = ?", userID)
}

func (r *PostgresGraphRepository) BlockedByIDs(ctx context.Context, userID uint) ([]uint, error) {
	return r.pluck(ctx, &models.Block{}, "blocker_id", "blocked_id = ?", userID)
}
