package schema

// Wire shapes for the opaque JSON payloads carried by gateway push
// events. Field names follow the gateway protocol, not Go conventions.

// LoginInfo is the payload of the "login" push.
type LoginInfo struct {
	TaskID       string `json:"task_id"`
	Account      string `json:"account"`
	AccountAlias string `json:"account_alias"`
	Name         string `json:"name"`
	Thumb        string `json:"thumb"`
}

// ScanInfo is the payload of the "scan" push. Either Status is set
// (scan progress) or URL carries a fresh login challenge.
type ScanInfo struct {
	Status int    `json:"status"`
	URL    string `json:"url"`
}

// ContactListEntry is one contact of a "contact-list" page.
type ContactListEntry struct {
	Account      string `json:"account"`
	AccountAlias string `json:"account_alias"`
	Name         string `json:"name"`
	FormName     string `json:"form_name"`
	Area         string `json:"area"` // "province_city"
	Sex          string `json:"sex"`
	Thumb        string `json:"thumb"`
	Description  string `json:"description"`
	Disturb      string `json:"disturb"`
	V1           string `json:"v1"`
}

// ContactListChunk is the payload of the "contact-list" push. The full
// list arrives in pages of 100.
type ContactListChunk struct {
	CurrentPage int                `json:"current_page"`
	Total       int                `json:"total"`
	Info        []ContactListEntry `json:"info"`
}

// RoomListBox is the payload of the "room-list" push; Info is a nested
// JSON document listing the rooms.
type RoomListBox struct {
	Info      string `json:"info"`
	MyAccount string `json:"my_account"`
	Type      int    `json:"type"`
}

// RoomListEntry is one room of the nested room list.
type RoomListEntry struct {
	Number string `json:"number"`
	Name   string `json:"name"`
	Thumb  string `json:"thumb"`
}

// ContactInfo is the payload of the "contact-info" push, answering a
// single-contact sync request.
type ContactInfo struct {
	Username  string `json:"username"`
	Alias     string `json:"alias"`
	Nickname  string `json:"nickname"`
	HeadURL   string `json:"headurl"`
	Signature string `json:"signature"`
}

// ContactRemark is the payload of the "contact-remark" push.
type ContactRemark struct {
	ToAccountAlias string `json:"to_account_alias"`
	Remark         string `json:"remark"`
}

// RoomInfo is the payload of the "room-info" push, answering a room
// detail sync request.
type RoomInfo struct {
	Number  string `json:"number"`
	Name    string `json:"name"`
	Thumb   string `json:"thumb"`
	Author  string `json:"author"` // owner account id, may be empty
	Disturb int    `json:"disturb"`
}

// Room change kinds carried by RoomJoinNotice.Type.
const (
	RoomChangeJoin  = "1"
	RoomChangeLeave = "2"
)

// RoomJoinNotice is the payload of the "room-join" push.
type RoomJoinNotice struct {
	GNumber   string `json:"g_number"`
	Account   string `json:"account"`
	Name      string `json:"name"`
	MyAccount string `json:"my_account"`
	Type      string `json:"type"`
}

// RoomMemberEntry is one member of a "room-member" push.
type RoomMemberEntry struct {
	UserName      string `json:"userName"`
	NickName      string `json:"nickName"`
	DisplayName   string `json:"displayName"`
	BigHeadImgURL string `json:"bigHeadImgUrl"`
	Number        string `json:"number"` // room id
}

// RoomMemberList is the payload of the "room-member" push.
type RoomMemberList struct {
	MemberList []RoomMemberEntry `json:"memberList"`
}

// RoomQrcode is the payload of the "room-qrcode" push.
type RoomQrcode struct {
	GroupNumber string `json:"group_number"`
	Qrcode      string `json:"qrcode"`
}

// FriendshipNotice is the payload of the "new-friend" push.
type FriendshipNotice struct {
	Account  string `json:"account"`
	Nickname string `json:"nickname"`
	Content  string `json:"content"` // verification message
	Thumb    string `json:"thumb"`
	Time     int64  `json:"time"`
}

// Friend-accepted kinds carried by FriendAccepted.Type.
const (
	AcceptedByOther = 1 // our outbound request was accepted
	AcceptedByBot   = 2 // we accepted an inbound request
)

// FriendAccepted is the payload of the "add-friend" push; Data is a
// nested JSON document with the new contact detail.
type FriendAccepted struct {
	Type int    `json:"type"`
	Data string `json:"data"`
	V1   string `json:"v1"`
}

// FriendAcceptedDetail is the nested contact detail of FriendAccepted.
type FriendAcceptedDetail struct {
	Account      string `json:"account"`
	AccountAlias string `json:"account_alias"`
	Name         string `json:"name"`
	Area         string `json:"area"`
	Sex          string `json:"sex"`
	Thumb        string `json:"thumb"`
}

// DeleteFriendNotice is the payload of the "del-friend" push.
type DeleteFriendNotice struct {
	Account string `json:"account"`
}

// AddFriendBeforeAcceptNotice is the payload of the
// "add-friend-before-accept" push.
type AddFriendBeforeAcceptNotice struct {
	Phone     string `json:"phone"`
	ToName    string `json:"to_name"`
	ToThumb   string `json:"to_thumb"`
	MyAccount string `json:"my_account"`
}

// CreateRoomNotice is the payload of the "room-create" push. Account
// carries the new room id.
type CreateRoomNotice struct {
	Account     string `json:"account"`
	Name        string `json:"name"`
	HeaderImage string `json:"headerImage"`
	MyAccount   string `json:"my_account"`
}
