package models

import "time"

type MemberRole string

const (
	RoleAdmin     MemberRole = "ADMIN"
	RoleModerator MemberRole = "MODERATOR"
	RoleGuest     MemberRole = "GUEST"
)

type ChannelType string

const (
	ChannelText  ChannelType = "TEXT"
	ChannelAudio ChannelType = "AUDIO"
	ChannelVideo ChannelType = "VIDEO"
)

// Valid reports whether t is one of the three channel types.
func (t ChannelType) Valid() bool {
	switch t {
	case ChannelText, ChannelAudio, ChannelVideo:
		return true
	}
	return false
}

type Server struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"image_url"`
	BannerColor string    `json:"banner_color"`
	InviteCode  string    `json:"invite_code" gorm:"uniqueIndex"`
	OwnerID     uint      `json:"owner_id" gorm:"index"`
	Channels    []Channel `json:"channels,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	Members     []Member  `json:"members,omitempty" gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Channel struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	Name      string      `json:"name"`
	Type      ChannelType `json:"type" gorm:"type:varchar(10);default:'TEXT';index"`
	ServerID  uint        `json:"server_id" gorm:"index"`
	CreatorID uint        `json:"creator_id"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Member struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    uint       `json:"user_id" gorm:"index;uniqueIndex:idx_member_server_user"`
	ServerID  uint       `json:"server_id" gorm:"index;uniqueIndex:idx_member_server_user"`
	Role      MemberRole `json:"role" gorm:"type:varchar(20);default:'GUEST'"`
	User      *User      `json:"user,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CanManageChannels reports whether the member may create channels.
func (m *Member) CanManageChannels() bool {
	return m.Role == RoleAdmin || m.Role == RoleModerator
}

type CreateServerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type UpdateServerRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	ImageURL string `json:"image_url" validate:"omitempty,url"`
}

type JoinServerRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

type MemberRequest struct {
	MemberID uint `json:"member_id" validate:"required"`
}

type CreateChannelRequest struct {
	Name string      `json:"name" validate:"required,min=1,max=100"`
	Type ChannelType `json:"type" validate:"required,oneof=TEXT AUDIO VIDEO"`
}

type UpdateChannelRequest struct {
	Name string      `json:"name" validate:"required,min=1,max=100"`
	Type ChannelType `json:"type" validate:"required,oneof=TEXT AUDIO VIDEO"`
}

// JoinResult reports the outcome of joining through an invite code.
type JoinResult struct {
	ServerID        uint        `json:"server_id"`
	AlreadyInServer bool        `json:"already_in_server"`
	User            UserCompact `json:"user"`
}
