package puppet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/schema"
)

func TestContactLookupSuspendsUntilPush(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	type result struct {
		c   *schema.ContactPayload
		err error
	}
	got := make(chan result, 1)
	go func() {
		c, err := p.ContactPayload(context.Background(), "wxid_x")
		got <- result{c, err}
	}()

	// The miss triggers a throttled sync request.
	r := awaitRequest(t, fc, gateway.APIGetContactInfo)
	if r.Data["account"] != "wxid_x" {
		t.Errorf("sync request = %+v", r.Data)
	}

	select {
	case res := <-got:
		t.Fatalf("lookup returned before the push: %+v", res)
	case <-time.After(100 * time.Millisecond):
	}

	fc.push(t, gateway.EventContactInfo, schema.ContactInfo{
		Username: "wxid_x",
		Alias:    "wxid_x",
		Nickname: "Xavier",
		HeadURL:  "http://t",
	})

	select {
	case res := <-got:
		if res.err != nil || res.c == nil || res.c.Name != "Xavier" {
			t.Errorf("lookup = %+v, %v", res.c, res.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("lookup never resolved")
	}

	// Second read is a pure cache hit: no new request.
	if _, err := p.ContactPayload(context.Background(), "wxid_x"); err != nil {
		t.Fatal(err)
	}
}

func TestContactLookupRetriesOnTimeout(t *testing.T) {
	if testing.Short() {
		t.Skip("waits through a full lookup timeout")
	}
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = p.ContactPayload(context.Background(), "wxid_slow")
	}()

	awaitRequest(t, fc, gateway.APIGetContactInfo)

	// No answer within the timeout: the request goes out again.
	deadline := time.After(awaitTimeout + 2*time.Second)
	for {
		select {
		case r := <-fc.requests:
			if r.API == gateway.APIGetContactInfo && r.Data["account"] == "wxid_slow" {
				fc.push(t, gateway.EventContactInfo, schema.ContactInfo{Username: "wxid_slow", Nickname: "S"})
				<-done
				return
			}
		case <-deadline:
			t.Fatal("lookup was not re-requested after timeout")
		}
	}
}

func TestContactLookupAbortsOnCancel(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := p.ContactPayload(ctx, "wxid_never")
		errc <- err
	}()
	awaitRequest(t, fc, gateway.APIGetContactInfo)
	cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled lookup never returned")
	}
}

func TestContactListSyncsWhenEmpty(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	got := make(chan []string, 1)
	go func() {
		ids, err := p.ContactList(context.Background())
		if err != nil {
			t.Errorf("ContactList: %v", err)
		}
		got <- ids
	}()

	awaitRequest(t, fc, gateway.APIGetContactList)
	fc.push(t, gateway.EventContactList, schema.ContactListChunk{
		CurrentPage: 1,
		Total:       2,
		Info: []schema.ContactListEntry{
			{Account: "wxid_a", AccountAlias: "wxid_a", Name: "A", Area: "Zhejiang_Hangzhou", Sex: "2"},
			{Account: "wxid_b", AccountAlias: "wxid_b", Name: "B"},
		},
	})

	select {
	case ids := <-got:
		// The seeded self contact is in the list too.
		if len(ids) != 3 {
			t.Errorf("ids = %v", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("list sync never completed")
	}

	c, err := p.cache.GetContact("wxid_a")
	if err != nil || c == nil {
		t.Fatalf("contact = %+v, %v", c, err)
	}
	if c.Province != "Zhejiang" || c.City != "Hangzhou" || c.Sex != schema.GenderFemale {
		t.Errorf("area/sex mapping = %+v", c)
	}
}

func TestRoomPayloadCompletenessGate(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	// Roster sync knows the room, but owner and members are missing.
	if err := p.cache.SetRoom("R1", &schema.RoomPayload{Number: "R1", Name: "room"}); err != nil {
		t.Fatal(err)
	}

	got := make(chan *schema.RoomPayload, 1)
	go func() {
		room, err := p.RoomPayload(context.Background(), "R1")
		if err != nil {
			t.Errorf("RoomPayload: %v", err)
		}
		got <- room
	}()

	// Incomplete record: a room sync goes out instead of serving it.
	awaitRequest(t, fc, gateway.APIGetRoomInfo)
	fc.push(t, gateway.EventRoomInfo, schema.RoomInfo{Number: "R1", Name: "room", Author: "wxid_owner"})

	// Still incomplete (no members): the membership sync cascades.
	awaitRequest(t, fc, gateway.APIGetRoomMember)
	fc.push(t, gateway.EventRoomMember, schema.RoomMemberList{
		MemberList: []schema.RoomMemberEntry{
			{UserName: "wxid_owner", NickName: "房主", Number: "R1"},
			{UserName: "wxid_a", NickName: "张三", Number: "R1"},
		},
	})

	select {
	case room := <-got:
		if !room.Complete() {
			t.Fatalf("served incomplete room: %+v", room)
		}
		if room.Owner != "wxid_owner" || len(room.Members) != 2 {
			t.Errorf("room = %+v", room)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("room lookup never resolved")
	}
}

func TestRoomMemberPayload(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)
	seedRoom(t, p)

	m, err := p.RoomMemberPayload(context.Background(), "R1", "wxid_a")
	if err != nil || m.Name != "张三" {
		t.Fatalf("member = %+v, %v", m, err)
	}
}

func TestSendFilePicksEndpointByExtension(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	tests := []struct {
		name string
		file FileRef
		api  string
	}{
		{"voice", FileRef{URL: "http://f/a.silk", Name: "a.silk", VoiceLen: 12}, gateway.APISendVoice},
		{"image", FileRef{URL: "http://f/a.jpg", Name: "a.jpg"}, gateway.APISendImage},
		{"video", FileRef{URL: "http://f/a.mp4", Name: "a.mp4"}, gateway.APISendVideo},
		{"attachment", FileRef{URL: "http://f/a.pdf", Name: "a.pdf"}, gateway.APISendFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.SendFile(context.Background(), "wxid_peer", &tt.file); err != nil {
				t.Fatal(err)
			}
			awaitRequest(t, fc, tt.api)
		})
	}
}

func TestSendTextWithMentions(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	if err := p.SendText(context.Background(), "R1", "hi", "wxid_a", "wxid_b"); err != nil {
		t.Fatal(err)
	}
	r := awaitRequest(t, fc, gateway.APISendAtMessage)
	if r.Data["g_number"] != "R1" {
		t.Errorf("at message = %+v", r.Data)
	}

	if err := p.SendText(context.Background(), "wxid_peer", "hi"); err != nil {
		t.Fatal(err)
	}
	awaitRequest(t, fc, gateway.APISendMessage)
}

func TestForwardText(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	p.recent.Set("m1", &schema.MessagePayload{
		MessageID:   "m1",
		ContentType: schema.MessageTypeText,
		Content:     "original",
	})
	if err := p.Forward(context.Background(), "wxid_peer", "m1"); err != nil {
		t.Fatal(err)
	}
	r := awaitRequest(t, fc, gateway.APISendMessage)
	if r.Data["content"] != "original" {
		t.Errorf("forward = %+v", r.Data)
	}

	if err := p.Forward(context.Background(), "wxid_peer", "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("forward of unknown message = %v", err)
	}
}

func TestRoomAddSwitchesToInvitePastLimit(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	small := map[string]schema.RoomMemberPayload{}
	for _, id := range []string{"a", "b", "c"} {
		small[id] = schema.RoomMemberPayload{Account: id}
	}
	if err := p.cache.SetRoomMembers("R1", small); err != nil {
		t.Fatal(err)
	}
	if err := p.RoomAdd(context.Background(), "R1", "wxid_new"); err != nil {
		t.Fatal(err)
	}
	awaitRequest(t, fc, gateway.APIAddRoomMember)

	big := map[string]schema.RoomMemberPayload{}
	for i := 0; i < roomAddDirectLimit; i++ {
		id := string(rune('a'+i%26)) + string(rune('0'+i/26))
		big[id] = schema.RoomMemberPayload{Account: id}
	}
	if err := p.cache.SetRoomMembers("R2", big); err != nil {
		t.Fatal(err)
	}
	if err := p.RoomAdd(context.Background(), "R2", "wxid_new"); err != nil {
		t.Fatal(err)
	}
	awaitRequest(t, fc, gateway.APIInviteRoomMember)
}

func TestRoomDelUpdatesRoster(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)
	seedRoom(t, p)

	if err := p.RoomDel(context.Background(), "R1", "wxid_b"); err != nil {
		t.Fatal(err)
	}
	awaitRequest(t, fc, gateway.APIDelRoomMember)

	members, err := p.cache.GetRoomMembers("R1")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := members["wxid_b"]; ok {
		t.Error("removed member still in roster")
	}
	// Room record invalidated for re-sync.
	if room, _ := p.cache.GetRoom("R1"); room != nil {
		t.Error("room record survived member removal")
	}
}

func TestRoomCreateWaitsForPush(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	got := make(chan string, 1)
	go func() {
		id, err := p.RoomCreate(context.Background(), []string{"wxid_a", "wxid_b"}, "new room")
		if err != nil {
			t.Errorf("RoomCreate: %v", err)
		}
		got <- id
	}()

	awaitRequest(t, fc, gateway.APICreateRoom)
	fc.push(t, gateway.EventRoomCreate, schema.CreateRoomNotice{
		Account:   "R9",
		Name:      "new room",
		MyAccount: "wxid_me",
	})

	select {
	case id := <-got:
		if id != "R9" {
			t.Errorf("room id = %q", id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("create never resolved")
	}
}

func TestRoomQRCode(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	got := make(chan string, 1)
	go func() {
		qr, err := p.RoomQRCode(context.Background(), "R1")
		if err != nil {
			t.Errorf("RoomQRCode: %v", err)
		}
		got <- qr
	}()

	awaitRequest(t, fc, gateway.APIGetRoomQrcode)
	fc.push(t, gateway.EventRoomQrcode, schema.RoomQrcode{GroupNumber: "R1", Qrcode: "http://qr"})

	select {
	case qr := <-got:
		if qr != "http://qr" {
			t.Errorf("qr = %q", qr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("qrcode never resolved")
	}
}

func TestSetContactAliasWaitsForRemark(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	if err := p.cache.SetContact("wxid_a", &schema.ContactPayload{Account: "wxid_a", AccountAlias: "wxid_a", Name: "A"}); err != nil {
		t.Fatal(err)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- p.SetContactAlias(context.Background(), "wxid_a", "buddy")
	}()

	awaitRequest(t, fc, gateway.APISetContactAlias)
	fc.push(t, gateway.EventContactRemark, schema.ContactRemark{ToAccountAlias: "wxid_a", Remark: "buddy"})

	select {
	case err := <-errc:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("alias set never confirmed")
	}

	alias, err := p.ContactAlias(context.Background(), "wxid_a")
	if err != nil || alias != "buddy" {
		t.Errorf("alias = %q, %v", alias, err)
	}
}

func TestFriendshipAccept(t *testing.T) {
	p, fc, _ := newTestPuppet(t)
	login(t, p, fc)

	fc.push(t, gateway.EventNewFriend, schema.FriendshipNotice{
		Account: "wxid_peer",
		Content: "hello",
		Time:    1700000000,
	})

	if err := p.FriendshipAccept(context.Background(), "wxid_peer"); err != nil {
		t.Fatal(err)
	}
	r := awaitRequest(t, fc, gateway.APIAcceptFriend)
	if r.Data["account"] != "wxid_peer" {
		t.Errorf("accept = %+v", r.Data)
	}

	if err := p.FriendshipAccept(context.Background(), "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("accept of unknown friendship = %v", err)
	}
}

func TestUnsupportedOperations(t *testing.T) {
	p, _, _ := newTestPuppet(t)

	if _, err := p.ContactSelfQRCode(); !errors.Is(err, ErrUnsupported) {
		t.Errorf("ContactSelfQRCode = %v", err)
	}
	if err := p.SetContactSelfName("x"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("SetContactSelfName = %v", err)
	}
	if _, err := p.MessageRecall("m1"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("MessageRecall = %v", err)
	}
	if _, err := p.RoomAnnounce("R1"); !errors.Is(err, ErrUnsupported) {
		t.Errorf("RoomAnnounce = %v", err)
	}
}

func TestOperationsRequireLogin(t *testing.T) {
	p, _, _ := newTestPuppet(t)

	if err := p.SendText(context.Background(), "wxid_peer", "hi"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("SendText before login = %v", err)
	}
	if _, err := p.RoomCreate(context.Background(), nil, "t"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("RoomCreate before login = %v", err)
	}
}
