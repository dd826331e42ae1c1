package models

import "time"

// OneToOneConversation is stored with the pair normalised so that
// UserLowID < UserHighID; the unique index then covers both initiators.
type OneToOneConversation struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserLowID   uint      `json:"user_low_id" gorm:"index;uniqueIndex:idx_conversation_pair"`
	UserHighID  uint      `json:"user_high_id" gorm:"index;uniqueIndex:idx_conversation_pair"`
	InitiatorID uint      `json:"initiator_id"`
	UserLow     *User     `json:"user_low,omitempty" gorm:"foreignKey:UserLowID"`
	UserHigh    *User     `json:"user_high,omitempty" gorm:"foreignKey:UserHighID"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewConversation builds a conversation for the unordered pair (a, b).
func NewConversation(initiator, other uint) *OneToOneConversation {
	low, high := OrderedPair(initiator, other)
	return &OneToOneConversation{UserLowID: low, UserHighID: high, InitiatorID: initiator}
}

// OrderedPair returns a and b smallest first.
func OrderedPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

func (c *OneToOneConversation) HasParticipant(userID uint) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// OtherParty returns the participant that is not userID.
func (c *OneToOneConversation) OtherParty(userID uint) uint {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}
