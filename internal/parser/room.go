package parser

import (
	"regexp"

	"github.com/matheus3301/macbridge/internal/schema"
)

// SelfName is the placeholder the gateway uses for the logged-in user
// in system messages. Callers map it to the bot's own id.
const SelfName = "你"

// RoomJoinEvent is a parsed room-join system message. Names, not ids:
// the gateway writes display names into system messages, so id
// resolution happens later against the membership cache.
type RoomJoinEvent struct {
	RoomID       string
	InviterName  string
	InviteeNames []string
	Timestamp    int64
}

// RoomLeaveEvent is a parsed room-leave system message.
type RoomLeaveEvent struct {
	RoomID      string
	RemoverName string
	LeaverNames []string
	Timestamp   int64
}

// RoomTopicEvent is a parsed room-rename system message.
type RoomTopicEvent struct {
	RoomID      string
	ChangerName string
	Topic       string
	Timestamp   int64
}

var (
	// "A"邀请"B"加入了群聊 / 你邀请"B"加入了群聊
	roomJoinInviteZh = regexp.MustCompile(`^(你|"[^"]+?")邀请(.+?)加入了群聊`)
	// "B"通过扫描"A"分享的二维码加入群聊
	roomJoinQrcodeZh = regexp.MustCompile(`^(.+?)通过扫描(你|"[^"]+?")分享的二维码加入群聊`)
	// "A" invited "B" to the group chat / You invited "B" to the group chat
	roomJoinInviteEn = regexp.MustCompile(`^(You|"[^"]+?") invited (.+?) to the group chat`)
	// "B" joined the group chat via the QR code shared by "A"
	roomJoinQrcodeEn = regexp.MustCompile(`^(.+?) joined the group chat via the QR [Cc]ode shared by (You|"[^"]+?")`)

	// 你将"B"移出了群聊 / 你被"A"移出群聊
	roomLeaveBotRemovesZh = regexp.MustCompile(`^你将(.+?)移出了群聊`)
	roomLeaveOtherZh      = regexp.MustCompile(`^你被(.+?)移出群聊`)
	// You removed "B" from the group chat / You were removed from the group chat by "A"
	roomLeaveBotRemovesEn = regexp.MustCompile(`^You removed (.+?) from the group chat`)
	roomLeaveOtherEn      = regexp.MustCompile(`^You were removed from the group chat by (.+)`)

	// "A"修改群名为“X” / 你修改群名为“X”
	roomTopicZh = regexp.MustCompile(`^(你|"[^"]+?")修改群名为“(.+)”`)
	// "A" changed the group name to "X" / You changed the group name to "X"
	roomTopicEn = regexp.MustCompile(`^(You|"[^"]+?") changed the group name to "(.+)"`)
)

// RoomJoin matches join system messages in a room. Only system typed
// payloads delivered through a room qualify.
func RoomJoin(m *schema.MessagePayload) *RoomJoinEvent {
	if m.ContentType != schema.MessageTypeSystem || !m.InRoom() {
		return nil
	}
	for _, re := range []*regexp.Regexp{roomJoinInviteZh, roomJoinInviteEn} {
		if g := re.FindStringSubmatch(m.Content); g != nil {
			return &RoomJoinEvent{
				RoomID:       m.RoomID,
				InviterName:  normalizeSelf(g[1]),
				InviteeNames: splitNames(g[2]),
				Timestamp:    m.SendTime,
			}
		}
	}
	for _, re := range []*regexp.Regexp{roomJoinQrcodeZh, roomJoinQrcodeEn} {
		if g := re.FindStringSubmatch(m.Content); g != nil {
			return &RoomJoinEvent{
				RoomID:       m.RoomID,
				InviterName:  normalizeSelf(g[2]),
				InviteeNames: splitNames(g[1]),
				Timestamp:    m.SendTime,
			}
		}
	}
	return nil
}

// RoomLeave matches remove-from-room system messages.
func RoomLeave(m *schema.MessagePayload) *RoomLeaveEvent {
	if m.ContentType != schema.MessageTypeSystem || !m.InRoom() {
		return nil
	}
	for _, re := range []*regexp.Regexp{roomLeaveBotRemovesZh, roomLeaveBotRemovesEn} {
		if g := re.FindStringSubmatch(m.Content); g != nil {
			return &RoomLeaveEvent{
				RoomID:      m.RoomID,
				RemoverName: SelfName,
				LeaverNames: splitNames(g[1]),
				Timestamp:   m.SendTime,
			}
		}
	}
	for _, re := range []*regexp.Regexp{roomLeaveOtherZh, roomLeaveOtherEn} {
		if g := re.FindStringSubmatch(m.Content); g != nil {
			return &RoomLeaveEvent{
				RoomID:      m.RoomID,
				RemoverName: normalizeSelf(g[1]),
				LeaverNames: []string{SelfName},
				Timestamp:   m.SendTime,
			}
		}
	}
	return nil
}

// RoomTopic matches rename system messages.
func RoomTopic(m *schema.MessagePayload) *RoomTopicEvent {
	if m.ContentType != schema.MessageTypeSystem || !m.InRoom() {
		return nil
	}
	for _, re := range []*regexp.Regexp{roomTopicZh, roomTopicEn} {
		if g := re.FindStringSubmatch(m.Content); g != nil {
			return &RoomTopicEvent{
				RoomID:      m.RoomID,
				ChangerName: normalizeSelf(g[1]),
				Topic:       g[2],
				Timestamp:   m.SendTime,
			}
		}
	}
	return nil
}

func normalizeSelf(name string) string {
	if name == "你" || name == "You" {
		return SelfName
	}
	return trimQuotes(name)
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
