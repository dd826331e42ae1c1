package models

import "time"

// Follow is a confirmed edge. One row is both the follower's "following"
// entry and the followee's "followers" entry.
type Follow struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	FollowerID  uint      `json:"follower_id" gorm:"index;uniqueIndex:idx_follower_following"`
	FollowingID uint      `json:"following_id" gorm:"index;uniqueIndex:idx_follower_following"`
	CreatedAt   time.Time `json:"created_at"`
}

// FollowRequest is a pending edge from SenderID to ReceiverID.
type FollowRequest struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	SenderID   uint      `json:"sender_id" gorm:"index;uniqueIndex:idx_request_sender_receiver"`
	ReceiverID uint      `json:"receiver_id" gorm:"index;uniqueIndex:idx_request_sender_receiver"`
	CreatedAt  time.Time `json:"created_at"`
}

// Block is the blockedUsers/blockedBy pair.
type Block struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	BlockerID uint      `json:"blocker_id" gorm:"index;uniqueIndex:idx_blocker_blocked"`
	BlockedID uint      `json:"blocked_id" gorm:"index;uniqueIndex:idx_blocker_blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingType selects what FetchFollowersByType returns.
type ListingType string

const (
	ListingOnline  ListingType = "online"
	ListingAll     ListingType = "all"
	ListingBlocked ListingType = "blocked"
	ListingPending ListingType = "pending"
)

// UserListing is the result of FetchFollowersByType. Users is set for the
// online, all and blocked listings; the two request slices for pending.
type UserListing struct {
	IsPending       bool          `json:"it_is_pending"`
	Users           []UserCompact `json:"users,omitempty"`
	RequestSent     []UserCompact `json:"request_sent,omitempty"`
	RequestReceived []UserCompact `json:"request_received,omitempty"`
}
