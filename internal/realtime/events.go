package realtime

import (
	"context"
	"encoding/json"
)

// Event is the name carried in the "event" field of an outbound frame.
type Event string

const (
	EventSessionCreated Event = "SessionCreated"

	EventServerCreated     Event = "EmitNewServerCreated"
	EventMemberJoined      Event = "EmitNew_UserJoined_The_Server"
	EventServerInfoUpdated Event = "EmitServerInfoUpdated"
	EventMemberRemoved     Event = "EmitThatMemberRemovedByAdmin"
	EventServerDeleted     Event = "EmitServerHasBeenDeleted"
	EventChannelCreated    Event = "EmitNewChannelHasBeenCreated"
	EventChannelUpdated    Event = "EmitChannelHasBeenUpdated"
	EventChannelDeleted    Event = "EmitChannelHasBeenDeleted"

	EventFollowRequestSent      Event = "EmitNewFollowRequestHasBeenSent"
	EventFollowRequestWithdrawn Event = "EmitA_FollowRequestHasBeenWithdrawn"
	EventFollowRequestIgnored   Event = "EmitA_FollowRequestHasBeenIgnored"
	EventFollowRequestAccepted  Event = "EmitYourFollowRequestHasBeenAccepted"
	EventUnfollowed             Event = "EmitUserUnFollowedAnFollower"
	EventFollowerRemoved        Event = "EmitAnFollowerHasBeenRemoved"
	EventUserBlocked            Event = "EmitAnUserBlockedSuccessfully"
	EventUserUnblocked          Event = "EmitAnUser_UnBlocked_Successfully"

	EventMessageSent    Event = "EmitNewMessageHasBeenSent"
	EventMessageEdited  Event = "EmitMessageHasBeenEditedSuccessfully"
	EventMessageDeleted Event = "EmitMessageHasBeenDeleted"
	EventTypingStarted  Event = "EmitStartTyping"
	EventTypingStopped  Event = "EmitStopTyping"

	EventProfileUpdated    Event = "EmitUserProfileUpdatedSuccessfully"
	EventMeetingShared     Event = "EmitSendMeetingIdToTheMemberOfTheServer"
	EventUserStatusChanged Event = "EmitUserStatusChanged"
)

// clientRelays lists the events a connected client may publish directly.
// Everything else is published by the services after the write succeeds.
var clientRelays = map[string]Event{
	"StartTyping":                         EventTypingStarted,
	"StopTyping":                          EventTypingStopped,
	"SendMeetingIdToTheMemberOfTheServer": EventMeetingShared,
}

// RelayedEvent maps an inbound client event name to the event re-emitted to
// the other sessions.
func RelayedEvent(name string) (Event, bool) {
	e, ok := clientRelays[name]
	return e, ok
}

// Broadcaster fans an event out to every connected session except
// excludeSession. Delivery is at-most-once.
type Broadcaster interface {
	Publish(event Event, payload any, excludeSession string)
}

// Frame is the JSON envelope written to clients.
type Frame struct {
	Event Event `json:"event"`
	Data  any   `json:"data,omitempty"`
}

type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// SessionHeader lets an HTTP request name the realtime session that caused
// it, so the resulting broadcast skips the originator.
const SessionHeader = "X-Socket-Session"

type sessionKey struct{}

func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the originating session id, or "" when there is none.
func SessionFrom(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
