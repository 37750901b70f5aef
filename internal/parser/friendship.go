package parser

import (
	"regexp"

	"github.com/matheus3301/macbridge/internal/schema"
)

var (
	// 你已添加了X，现在可以开始聊天了。
	confirmAddedZh = regexp.MustCompile(`^你已添加了(.+)，现在可以开始聊天了。$`)
	// You have added X as your WeChat contact. Start chatting!
	confirmAddedEn = regexp.MustCompile(`^You have added (.+) as your WeChat contact\. Start chatting!$`)
	// X刚刚把你添加到通讯录，现在可以开始聊天了。
	confirmAcceptedZh = regexp.MustCompile(`^(.+)刚刚把你添加到通讯录，现在可以开始聊天了。$`)
	confirmAcceptedEn = regexp.MustCompile(`^(.+) just added you to his/her contacts list\. Start chatting!$`)

	// X开启了朋友验证，你还不是他（她）朋友。…
	verifyZh = regexp.MustCompile(`^(.+?)开启了朋友验证`)
	verifyEn = regexp.MustCompile(`^(.+?) has enabled Friend Confirmation`)
)

// FriendshipConfirm matches "now friends" system texts. The returned
// payload is keyed by the message id so the caller can store and
// re-serve it.
func FriendshipConfirm(m *schema.MessagePayload) *schema.FriendshipPayload {
	if m.ContentType != schema.MessageTypeText && m.ContentType != schema.MessageTypeSystem {
		return nil
	}
	for _, re := range []*regexp.Regexp{confirmAddedZh, confirmAddedEn, confirmAcceptedZh, confirmAcceptedEn} {
		if re.MatchString(m.Content) {
			return &schema.FriendshipPayload{
				ID:        m.MessageID,
				ContactID: m.FromAccount,
				Type:      schema.FriendshipConfirm,
				Timestamp: m.SendTime,
			}
		}
	}
	return nil
}

// FriendshipVerify matches "friend confirmation required" rejection
// texts.
func FriendshipVerify(m *schema.MessagePayload) *schema.FriendshipPayload {
	if m.ContentType != schema.MessageTypeText && m.ContentType != schema.MessageTypeSystem {
		return nil
	}
	for _, re := range []*regexp.Regexp{verifyZh, verifyEn} {
		if re.MatchString(m.Content) {
			return &schema.FriendshipPayload{
				ID:        m.MessageID,
				ContactID: m.FromAccount,
				Type:      schema.FriendshipVerify,
				Timestamp: m.SendTime,
			}
		}
	}
	return nil
}

// FriendshipReceive converts a "new-friend" push into a receive
// friendship payload. The notice always matches; it exists so the
// classifier handles all friendship kinds through one shape.
func FriendshipReceive(n *schema.FriendshipNotice) *schema.FriendshipPayload {
	if n == nil || n.Account == "" {
		return nil
	}
	return &schema.FriendshipPayload{
		ID:        n.Account, // one outstanding request per contact
		ContactID: n.Account,
		Hello:     n.Content,
		Type:      schema.FriendshipReceive,
		Timestamp: n.Time,
	}
}
