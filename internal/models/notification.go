package models

import "time"

type NotificationType string

const (
	NotificationFollowRequest NotificationType = "follow_request"
	NotificationFollowAccept  NotificationType = "follow_accept"
	NotificationMessage       NotificationType = "message"
)

// Notification is addressed either to a user (ReceiverID) or to every member
// of a server (ServerID).
type Notification struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	Type       NotificationType `json:"type" gorm:"size:30;index"`
	SenderID   uint             `json:"sender_id" gorm:"index"`
	ReceiverID *uint            `json:"receiver_id,omitempty" gorm:"index"`
	ServerID   *uint            `json:"server_id,omitempty" gorm:"index"`
	ChannelID  *uint            `json:"channel_id,omitempty"`
	Message    string           `json:"message"`
	IsRead     bool             `json:"is_read" gorm:"default:false;index"`
	Sender     *User            `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	CreatedAt  time.Time        `json:"created_at" gorm:"index"`
}
