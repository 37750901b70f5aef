// Package gateway is the control channel to the Macpro gateway: a
// websocket carrying named JSON events inbound and api calls outbound.
package gateway

import (
	"context"
	"encoding/json"
)

// Inbound event names pushed by the gateway.
const (
	EventHeartbeat             = "heartbeat"
	EventReconnect             = "reconnect"
	EventScan                  = "scan"
	EventLogin                 = "login"
	EventLogout                = "logout"
	EventNotLogin              = "not-login"
	EventMessage               = "message"
	EventContactList           = "contact-list"
	EventRoomList              = "room-list"
	EventContactInfo           = "contact-info"
	EventContactRemark         = "contact-remark"
	EventRoomInfo              = "room-info"
	EventRoomJoin              = "room-join"
	EventRoomMember            = "room-member"
	EventRoomQrcode            = "room-qrcode"
	EventNewFriend             = "new-friend"
	EventAddFriend             = "add-friend"
	EventDelFriend             = "del-friend"
	EventAddFriendBeforeAccept = "add-friend-before-accept"
	EventRoomCreate            = "room-create"
)

// Outbound api names.
const (
	APIGetLoginUserInfo = "getLoginUserInfo"
	APILoginScan        = "loginScan"
	APIGetContactList   = "getContactList"
	APIGetContactInfo   = "getContactInfo"
	APISetContactAlias  = "setContactAlias"
	APIGetRoomList      = "getRoomList"
	APIGetRoomInfo      = "getRoomInfo"
	APIGetRoomMember    = "getRoomMember"
	APIGetRoomQrcode    = "getRoomQrcode"
	APISendMessage      = "sendMessage"
	APISendAtMessage    = "sendAtMessage"
	APISendURLLink      = "sendUrlLink"
	APISendImage        = "sendImage"
	APISendVoice        = "sendVoice"
	APISendVideo        = "sendVideo"
	APISendFile         = "sendFile"
	APISendContactCard  = "sendContactCard"
	APICreateRoom       = "createRoom"
	APIAddRoomMember    = "addRoomMember"
	APIInviteRoomMember = "inviteRoomMember"
	APIDelRoomMember    = "delRoomMember"
	APIQuitRoom         = "quitRoom"
	APISetRoomTopic     = "setRoomName"
	APISetRoomAnnounce  = "setRoomAnnouncement"
	APIAddFriend        = "addFriend"
	APIAcceptFriend     = "acceptFriend"
	APIAcceptRoomInvite = "acceptRoomInvitation"
	APILogout           = "logout"
)

// Handler receives the raw data of one named inbound event.
type Handler func(data json.RawMessage)

// Conn is the control channel as the rest of the daemon sees it. The
// websocket client implements it; tests substitute a fake.
type Conn interface {
	// Start establishes the channel, retrying until connected or ctx
	// is cancelled.
	Start(ctx context.Context) error
	// On registers a handler for a named inbound event. Multiple
	// handlers per event are allowed; all run in registration order.
	On(event string, h Handler)
	// Request sends an api call carrying data. The reply, if any,
	// arrives later as a named event.
	Request(api string, data any) error
	// Notify sends an api call with no data.
	Notify(api string) error
	// RemoveAllHandlers drops every registered handler.
	RemoveAllHandlers()
	// Stop closes the channel. Safe to call more than once.
	Stop()
}

// frame is one websocket message in either direction.
type frame struct {
	ID    string          `json:"id,omitempty"`
	Event string          `json:"event,omitempty"`
	API   string          `json:"api,omitempty"`
	Token string          `json:"token,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}
