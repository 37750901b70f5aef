package parser

import (
	"encoding/json"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/matheus3301/macbridge/internal/schema"
)

var (
	inviteTitleZh = "邀请你加入群聊"
	inviteTitleEn = "Group Chat Invitation"

	// "A"邀请你加入群聊“X”，进入可查看详情。
	inviteRoomNameZh = regexp.MustCompile(`邀请你加入群聊“(.+?)”`)
	inviteRoomNameEn = regexp.MustCompile(`invited you to (?:a group chat|join the group) "(.+?)"`)
)

// RoomInvite probes a url-typed message for a group chat invitation
// card. The content is an opaque JSON document; gjson keeps the probe
// tolerant of fields the gateway adds or drops between versions.
func RoomInvite(m *schema.MessagePayload) *schema.RoomInvitationPayload {
	if m.ContentType != schema.MessageTypeURLLink || !gjson.Valid(m.Content) {
		return nil
	}
	title := gjson.Get(m.Content, "title").String()
	if title != inviteTitleZh && title != inviteTitleEn {
		return nil
	}
	url := gjson.Get(m.Content, "url").String()
	if url == "" {
		return nil
	}

	roomName := ""
	des := gjson.Get(m.Content, "des").String()
	for _, re := range []*regexp.Regexp{inviteRoomNameZh, inviteRoomNameEn} {
		if g := re.FindStringSubmatch(des); g != nil {
			roomName = g[1]
			break
		}
	}

	return &schema.RoomInvitationPayload{
		ID:        m.MessageID,
		FromUser:  m.FromAccount,
		Receiver:  m.ToAccount,
		RoomName:  roomName,
		Thumb:     gjson.Get(m.Content, "thumburl").String(),
		URL:       url,
		Timestamp: m.SendTime,
	}
}

// MessageURL decodes the link card of a url-typed message.
func MessageURL(m *schema.MessagePayload) *schema.URLLinkPayload {
	if m.ContentType != schema.MessageTypeURLLink || !gjson.Valid(m.Content) {
		return nil
	}
	url := gjson.Get(m.Content, "url").String()
	if url == "" {
		return nil
	}
	return &schema.URLLinkPayload{
		URL:         url,
		Title:       gjson.Get(m.Content, "title").String(),
		Description: gjson.Get(m.Content, "des").String(),
		ThumbURL:    gjson.Get(m.Content, "thumburl").String(),
	}
}

// NewFriendContact interprets a message push with no content type as a
// contact record: the gateway reuses the message channel to announce a
// freshly accepted friend.
func NewFriendContact(data json.RawMessage) *schema.ContactPayload {
	if gjson.GetBytes(data, "content_type").Exists() {
		return nil
	}
	account := gjson.GetBytes(data, "account").String()
	name := gjson.GetBytes(data, "name").String()
	if account == "" || name == "" {
		return nil
	}
	alias := gjson.GetBytes(data, "account_alias").String()
	if alias == "" {
		alias = account
	}
	return &schema.ContactPayload{
		Account:      account,
		AccountAlias: alias,
		Name:         name,
		Thumb:        gjson.GetBytes(data, "thumb").String(),
	}
}
