package cache

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Single-entity keys are deleted exactly; the paginated and per-query keys
// below have a matching *Pattern function for wildcard invalidation.

func UserListingKey(kind string, userID uint) string {
	return fmt.Sprintf("user_listing:%s:%d", kind, userID)
}

// UserListingPattern matches the listings of one kind for every user.
func UserListingPattern(kind string) string {
	return fmt.Sprintf("user_listing:%s:*", kind)
}

func FollowersKey(userID uint) string     { return fmt.Sprintf("followers:%d", userID) }
func FollowingKey(userID uint) string     { return fmt.Sprintf("following:%d", userID) }
func SentRequestsKey(userID uint) string  { return fmt.Sprintf("follow_requests_sent:%d", userID) }
func ReceivedRequestsKey(userID uint) string {
	return fmt.Sprintf("follow_requests_received:%d", userID)
}

func ServerListKey(userID uint) string   { return fmt.Sprintf("multiple_server_info:%d", userID) }
func ServerKey(serverID uint) string     { return fmt.Sprintf("single_server:%d", serverID) }
func ChannelsKey(serverID uint, channelType string) string {
	return fmt.Sprintf("channels:%d:%s", serverID, channelType)
}

func ChannelsPattern(serverID uint) string { return fmt.Sprintf("channels:%d:*", serverID) }

func ChannelMessagesKey(channelID uint, page, limit int) string {
	return fmt.Sprintf("channel_messages:%d:page-%d:limit-%d", channelID, page, limit)
}

func ChannelMessagesPattern(channelID uint) string {
	return fmt.Sprintf("channel_messages:%d:*", channelID)
}

func ConversationsKey(userID uint) string { return fmt.Sprintf("conversations:%d", userID) }

func ConversationMessagesKey(conversationID uint, page, limit int) string {
	return fmt.Sprintf("conversation_messages:%d:page-%d:limit-%d", conversationID, page, limit)
}

func ConversationMessagesPattern(conversationID uint) string {
	return fmt.Sprintf("conversation_messages:%d:*", conversationID)
}

// NotificationsKey includes the server filter so different filters do not
// share an entry. The ids are sorted to keep the key deterministic.
func NotificationsKey(userID uint, serverIDs []uint) string {
	ids := slices.Clone(serverIDs)
	slices.Sort(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return fmt.Sprintf("notifications:%d:%s", userID, strings.Join(parts, ","))
}

func NotificationsPattern(userID uint) string { return fmt.Sprintf("notifications:%d:*", userID) }

// ProfilePatterns match every cached entry that embeds user views: graph
// listings, message pages, servers with their members, conversations and
// notifications with their senders.
func ProfilePatterns() []string {
	return []string{
		"user_listing:*", "followers:*", "following:*", "follow_requests_*",
		"channel_messages:*", "conversation_messages:*",
		"single_server:*", "multiple_server_info:*",
		"conversations:*", "notifications:*",
	}
}
