package schema

// MessageType is the content-type discriminator carried by gateway
// message payloads. Values are fixed by the Macpro wire protocol.
type MessageType int

const (
	MessageTypeUnknown     MessageType = 0
	MessageTypeText        MessageType = 1
	MessageTypeImage       MessageType = 2
	MessageTypeVoice       MessageType = 3
	MessageTypeVideo       MessageType = 4
	MessageTypeURLLink     MessageType = 5
	MessageTypeFile        MessageType = 6
	MessageTypePublicCard  MessageType = 7
	MessageTypePrivateCard MessageType = 8
	MessageTypeSystem      MessageType = 10
	MessageTypeMiniProgram MessageType = 12
	MessageTypeGif         MessageType = 13
	MessageTypeLocation    MessageType = 15
	MessageTypeRedPacket   MessageType = 16
	MessageTypeTransfer    MessageType = 17
)

// String returns a short name for logging.
func (t MessageType) String() string {
	switch t {
	case MessageTypeText:
		return "text"
	case MessageTypeImage:
		return "image"
	case MessageTypeVoice:
		return "voice"
	case MessageTypeVideo:
		return "video"
	case MessageTypeURLLink:
		return "url"
	case MessageTypeFile:
		return "file"
	case MessageTypePublicCard:
		return "public_card"
	case MessageTypePrivateCard:
		return "private_card"
	case MessageTypeSystem:
		return "system"
	case MessageTypeMiniProgram:
		return "mini_program"
	case MessageTypeGif:
		return "gif"
	case MessageTypeLocation:
		return "location"
	case MessageTypeRedPacket:
		return "red_packet"
	case MessageTypeTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Gender of a contact as reported by the gateway.
type Gender int

const (
	GenderUnknown Gender = 0
	GenderMale    Gender = 1
	GenderFemale  Gender = 2
)

// ContactPayload is the cached contact record. Keyed by AccountAlias;
// Account and AccountAlias may coincide for accounts that never set an
// alias.
type ContactPayload struct {
	Account      string `json:"account"`
	AccountAlias string `json:"account_alias"`
	Name         string `json:"name"`
	FormName     string `json:"form_name"` // remark set by the logged-in user
	Thumb        string `json:"thumb"`
	Sex          Gender `json:"sex"`
	City         string `json:"city"`
	Province     string `json:"province"`
	Description  string `json:"description"`
	Disturb      string `json:"disturb"`
	V1           string `json:"v1"` // friendship verification token
}

// RoomPayload is the cached room record. A room is incomplete while
// Members is empty or Owner is empty; incomplete rooms are re-synced on
// read instead of returned as-is.
type RoomPayload struct {
	Number  string              `json:"number"`
	Name    string              `json:"name"`
	Thumb   string              `json:"thumb"`
	Owner   string              `json:"owner"`
	Disturb int                 `json:"disturb"`
	Members []RoomMemberPayload `json:"members"`
}

// Complete reports whether the room record can be served from cache.
func (r *RoomPayload) Complete() bool {
	return r != nil && len(r.Members) > 0 && r.Owner != ""
}

// RoomMemberPayload is one entry of a room membership map.
type RoomMemberPayload struct {
	Account      string `json:"account"`
	AccountAlias string `json:"account_alias"`
	Name         string `json:"name"`
	RoomNick     string `json:"room_nick"` // in-room display name
	Thumb        string `json:"thumb"`
}

// FriendshipType discriminates friendship event payloads.
type FriendshipType string

const (
	FriendshipReceive FriendshipType = "receive"
	FriendshipConfirm FriendshipType = "confirm"
	FriendshipVerify  FriendshipType = "verify"
)

// FriendshipPayload is created on an inbound friend event and read by
// the caller; it is never mutated afterwards.
type FriendshipPayload struct {
	ID        string         `json:"id"`
	ContactID string         `json:"contact_id"`
	Hello     string         `json:"hello"`
	Type      FriendshipType `json:"type"`
	Timestamp int64          `json:"timestamp"`
}

// RoomInvitationPayload is created on a room-invite parse match and
// read once by the accept operation, which dereferences URL.
type RoomInvitationPayload struct {
	ID        string `json:"id"`
	FromUser  string `json:"from_user"`
	Receiver  string `json:"receiver"`
	RoomName  string `json:"room_name"`
	Thumb     string `json:"thumb"`
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// MessagePayload is the ephemeral message record kept for deferred
// dereferencing (files, urls, forwards).
type MessagePayload struct {
	MessageID   string      `json:"msgid"`
	ContentType MessageType `json:"content_type"`
	Content     string      `json:"content"`
	FromAccount string      `json:"from_account"`
	ToAccount   string      `json:"to_account"`
	RoomID      string      `json:"g_number"`
	SendTime    int64       `json:"send_time"`
	VoiceLen    int         `json:"voice_len"`
	FileName    string      `json:"file_name"`
}

// InRoom reports whether the message was delivered through a room.
func (m *MessagePayload) InRoom() bool {
	return m.RoomID != ""
}

// URLLinkPayload describes a link card attached to a url-type message.
type URLLinkPayload struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ThumbURL    string `json:"thumb_url"`
}

// FriendInfo is the acknowledgement carried by the
// add-friend-before-accept push after a friendship request goes out.
type FriendInfo struct {
	FriendAccount string `json:"friend_account"`
	FriendPhone   string `json:"friend_phone"`
	FriendThumb   string `json:"friend_thumb"`
	MyAccount     string `json:"my_account"`
}
