package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MessageKind tells group messages (scoped to a channel) from direct messages
// (scoped to a conversation). Both are stored as Message documents.
type MessageKind string

const (
	GroupMessageKind  MessageKind = "group"
	DirectMessageKind MessageKind = "direct"
)

// Message is a group or direct message stored in MongoDB. Content and the
// reply snapshot content hold ciphertext.
type Message struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Kind       MessageKind        `json:"kind" bson:"kind"`
	ScopeID    uint               `json:"scope_id" bson:"scope_id"` // channel or conversation id
	ServerID   uint               `json:"server_id,omitempty" bson:"server_id,omitempty"`
	AuthorID   uint               `json:"author_id" bson:"author_id"`
	ReceiverID uint               `json:"receiver_id,omitempty" bson:"receiver_id,omitempty"`
	Content    string             `json:"content" bson:"content"`
	ImageURL   string             `json:"image_url,omitempty" bson:"image_url,omitempty"`
	FileURL    string             `json:"file_url,omitempty" bson:"file_url,omitempty"`
	IsEdited   bool               `json:"is_edited" bson:"is_edited"`
	EditedBy   uint               `json:"edited_by,omitempty" bson:"edited_by,omitempty"`
	IsDeleted  bool               `json:"is_deleted" bson:"is_deleted"`
	DeletedBy  uint               `json:"deleted_by,omitempty" bson:"deleted_by,omitempty"`
	HasReply   bool               `json:"has_reply" bson:"has_reply"`
	Reply      *ReplySnapshot     `json:"reply,omitempty" bson:"reply,omitempty"`
	CreatedAt  time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at" bson:"updated_at"`
}

// ReplySnapshot is copied from the parent when the reply is written so the
// reply still renders after the parent is deleted.
type ReplySnapshot struct {
	ParentID       string `json:"parent_id" bson:"parent_id"`
	ParentAuthorID uint   `json:"parent_author_id" bson:"parent_author_id"`
	ParentAuthor   string `json:"parent_author" bson:"parent_author"`
	ParentContent  string `json:"parent_content" bson:"parent_content"`
}

// MessageView is a decrypted message with its author.
type MessageView struct {
	ID        string         `json:"id"`
	Kind      MessageKind    `json:"kind"`
	ScopeID   uint           `json:"scope_id"`
	ServerID  uint           `json:"server_id,omitempty"`
	Content   string         `json:"content"`
	ImageURL  string         `json:"image_url,omitempty"`
	FileURL   string         `json:"file_url,omitempty"`
	IsEdited  bool           `json:"is_edited"`
	EditedBy  uint           `json:"edited_by,omitempty"`
	IsDeleted bool           `json:"is_deleted"`
	DeletedBy uint           `json:"deleted_by,omitempty"`
	HasReply  bool           `json:"has_reply"`
	Reply     *ReplySnapshot `json:"reply,omitempty"`
	Author    UserCompact    `json:"author"`
	Receiver  *UserCompact   `json:"receiver,omitempty"`
	Channel   *Channel       `json:"channel,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// MessagePage is one page of a channel or conversation.
type MessagePage struct {
	Messages      []MessageView `json:"messages"`
	TotalMessages int64         `json:"total_messages"`
	TotalPages    int           `json:"total_pages"`
	HasMore       bool          `json:"has_more"`
}

type SendMessageRequest struct {
	Content  string `json:"content" validate:"required_without_all=ImageURL FileURL,max=4000"`
	ImageURL string `json:"image_url,omitempty" validate:"omitempty,url"`
	FileURL  string `json:"file_url,omitempty" validate:"omitempty,url"`
}

type EditMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

type CreateConversationRequest struct {
	ReceiverID uint `json:"receiver_id" validate:"required"`
}
