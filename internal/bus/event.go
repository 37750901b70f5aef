package bus

import "time"

// Event represents an event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Puppet domain event kinds. These form the typed event stream exposed
// to callers.
const (
	KindMessage    = "puppet.message"
	KindScan       = "puppet.scan"
	KindLogin      = "puppet.login"
	KindLogout     = "puppet.logout"
	KindReset      = "puppet.reset"
	KindFriendship = "puppet.friendship"
	KindRoomJoin   = "puppet.room_join"
	KindRoomLeave  = "puppet.room_leave"
	KindRoomTopic  = "puppet.room_topic"
	KindRoomInvite = "puppet.room_invite"
	KindDong       = "puppet.dong"
)

// MessageEvent announces a received message; the payload itself lives
// in the ephemeral message store under MessageID.
type MessageEvent struct {
	MessageID string
}

// ScanEvent carries a login challenge. QRCode is a terminal-renderable
// QR for the challenge URL; Status is the scan progress reported by
// the gateway.
type ScanEvent struct {
	QRCode string
	Status int
}

// LoginEvent announces a completed login.
type LoginEvent struct {
	ContactID string
}

// LogoutEvent announces a logout. It is always followed by a
// ResetEvent: a logged-out session must be torn down and restarted,
// not merely re-authenticated.
type LogoutEvent struct {
	ContactID string
	Data      string
}

// ResetEvent asks the caller layer to restart the session.
type ResetEvent struct {
	Data string
}

// FriendshipEvent announces a stored friendship payload.
type FriendshipEvent struct {
	FriendshipID string
}

// RoomJoinEvent announces members joining a room. InviteeIDs may be
// empty when name resolution gave up after bounded retries.
type RoomJoinEvent struct {
	RoomID     string
	InviterID  string
	InviteeIDs []string
	Timestamp  int64
}

// RoomLeaveEvent announces members leaving a room.
type RoomLeaveEvent struct {
	RoomID     string
	RemoverID  string
	RemoveeIDs []string
	Timestamp  int64
}

// RoomTopicEvent announces a room rename, carrying both the previous
// and the new topic.
type RoomTopicEvent struct {
	RoomID    string
	ChangerID string
	NewTopic  string
	OldTopic  string
	Timestamp int64
}

// RoomInviteEvent announces a stored room invitation.
type RoomInviteEvent struct {
	RoomInvitationID string
}

// DongEvent is the heartbeat echo answering Ding.
type DongEvent struct {
	Data string
}
