package repositories

import (
	"context"

	"github.com/anonto42/nano-chat/backend/internal/models"
	"gorm.io/gorm"
)

// ServerRepository defines the interface for servers, their channels and members
type ServerRepository interface {
	CreateServer(ctx context.Context, server *models.Server) error
	GetServerByID(ctx context.Context, id uint) (*models.Server, error)
	GetServerByInviteCode(ctx context.Context, code string) (*models.Server, error)
	ListServersForUser(ctx context.Context, userID uint) ([]models.Server, error)
	UpdateServer(ctx context.Context, server *models.Server) error
	DeleteServer(ctx context.Context, id uint) error

	AddMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, serverID, userID uint) (*models.Member, error)
	GetMemberByID(ctx context.Context, id uint) (*models.Member, error)
	UpdateMemberRole(ctx context.Context, id uint, role models.MemberRole) error
	RemoveMember(ctx context.Context, id uint) error
	MemberUserIDs(ctx context.Context, serverID uint) ([]uint, error)
	MemberServerIDs(ctx context.Context, userID uint) ([]uint, error)

	CreateChannel(ctx context.Context, channel *models.Channel) error
	GetChannel(ctx context.Context, id uint) (*models.Channel, error)
	UpdateChannel(ctx context.Context, channel *models.Channel) error
	DeleteChannel(ctx context.Context, id uint) error
	ListChannels(ctx context.Context, serverID uint, channelType models.ChannelType) ([]models.Channel, error)
}

// PostgresServerRepository implements ServerRepository for PostgreSQL
type PostgresServerRepository struct {
	db *gorm.DB
}

// NewPostgresServerRepository creates a new PostgresServerRepository
func NewPostgresServerRepository(db *gorm.DB) *PostgresServerRepository {
	return &PostgresServerRepository{db: db}
}

// CreateServer inserts the server together with its nested channels and members.
func (r *PostgresServerRepository) CreateServer(ctx context.Context, server *models.Server) error {
	return translate(r.db.WithContext(ctx).Create(server).Error)
}

func (r *PostgresServerRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Channels", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("role ASC") }).
		Preload("Members.User")
}

func (r *PostgresServerRepository) GetServerByID(ctx context.Context, id uint) (*models.Server, error) {
	var server models.Server
	if err := r.withDetails(ctx).First(&server, id).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

func (r *PostgresServerRepository) GetServerByInviteCode(ctx context.Context, code string) (*models.Server, error) {
	var server models.Server
	if err := r.withDetails(ctx).Where("invite_code = ?", code).First(&server).Error; err != nil {
		return nil, translate(err)
	}
	return &server, nil
}

func (r *PostgresServerRepository) ListServersForUser(ctx context.Context, userID uint) ([]models.Server, error) {
	servers := []models.Server{}
	err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Table("members").Select("server_id").Where("user_id = ?", userID)).
		Order("created_at ASC").
		Find(&servers).Error
	return servers, err
}

// UpdateServer writes the mutable server columns.
func (r *PostgresServerRepository) UpdateServer(ctx context.Context, server *models.Server) error {
	res := r.db.WithContext(ctx).Model(&models.Server{}).Where("id = ?", server.ID).Updates(map[string]any{
		"name":        server.Name,
		"image_url":   server.ImageURL,
		"invite_code": server.InviteCode,
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) DeleteServer(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("server_id = ?", id).Delete(&models.Member{}).Error; err != nil {
			return err
		}
		if err := tx.Where("server_id = ?", id).Delete(&models.Channel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Server{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *PostgresServerRepository) AddMember(ctx context.Context, member *models.Member) error {
	return translate(r.db.WithContext(ctx).Create(member).Error)
}

func (r *PostgresServerRepository) GetMember(ctx context.Context, serverID, userID uint) (*models.Member, error) {
	var member models.Member
	err := r.db.WithContext(ctx).Where("server_id = ? AND user_id = ?", serverID, userID).First(&member).Error
	if err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (r *PostgresServerRepository) GetMemberByID(ctx context.Context, id uint) (*models.Member, error) {
	var member models.Member
	if err := r.db.WithContext(ctx).First(&member, id).Error; err != nil {
		return nil, translate(err)
	}
	return &member, nil
}

func (r *PostgresServerRepository) UpdateMemberRole(ctx context.Context, id uint, role models.MemberRole) error {
	res := r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) RemoveMember(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Member{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) MemberUserIDs(ctx context.Context, serverID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.Member{}).Where("server_id = ?", serverID).Pluck("user_id", &ids).Error
	return ids, err
}

func (r *PostgresServerRepository) MemberServerIDs(ctx context.Context, userID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).Model(&models.Member{}).Where("user_id = ?", userID).Pluck("server_id", &ids).Error
	return ids, err
}

func (r *PostgresServerRepository) CreateChannel(ctx context.Context, channel *models.Channel) error {
	return translate(r.db.WithContext(ctx).Create(channel).Error)
}

func (r *PostgresServerRepository) GetChannel(ctx context.Context, id uint) (*models.Channel, error) {
	var channel models.Channel
	if err := r.db.WithContext(ctx).First(&channel, id).Error; err != nil {
		return nil, translate(err)
	}
	return &channel, nil
}

func (r *PostgresServerRepository) UpdateChannel(ctx context.Context, channel *models.Channel) error {
	res := r.db.WithContext(ctx).Model(&models.Channel{}).Where("id = ?", channel.ID).Updates(map[string]any{
		"name": channel.Name,
		"type": channel.Type,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) DeleteChannel(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Channel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresServerRepository) ListChannels(ctx context.Context, serverID uint, channelType models.ChannelType) ([]models.Channel, error) {
	channels := []models.Channel{}
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND type = ?", serverID, channelType).
		Order("created_at ASC").
		Find(&channels).Error
	return channels, err
}
