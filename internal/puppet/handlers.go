package puppet

import (
	"encoding/json"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/parser"
	"github.com/matheus3301/macbridge/internal/schema"
	"github.com/matheus3301/macbridge/internal/session"
	"github.com/matheus3301/macbridge/internal/status"
)

// on registers a gateway handler that first republishes the raw push
// on the bus under the "gw." namespace, then runs fn.
func (p *Puppet) on(event string, fn func(data json.RawMessage)) {
	p.conn.On(event, func(data json.RawMessage) {
		p.bus.Publish(bus.Event{
			Kind:      "gw." + event,
			Timestamp: time.Now(),
			Payload:   data,
		})
		fn(data)
	})
}

func (p *Puppet) bindHandlers() {
	p.on(gateway.EventHeartbeat, func(json.RawMessage) {
		p.logger.Debug("gateway heartbeat")
	})
	p.on(gateway.EventReconnect, func(data json.RawMessage) {
		p.reconnector.Signal(string(data))
	})
	p.on(gateway.EventScan, p.onScan)
	p.on(gateway.EventLogin, p.onLogin)
	p.on(gateway.EventLogout, p.onLogout)
	p.on(gateway.EventNotLogin, p.onNotLogin)
	p.on(gateway.EventMessage, func(data json.RawMessage) {
		// Classification may block on membership syncs; never hold
		// the read loop.
		go p.classify(data)
	})
	p.on(gateway.EventContactList, p.onContactList)
	p.on(gateway.EventContactInfo, p.onContactInfo)
	p.on(gateway.EventContactRemark, p.onContactRemark)
	p.on(gateway.EventRoomList, p.onRoomList)
	p.on(gateway.EventRoomInfo, p.onRoomInfo)
	p.on(gateway.EventRoomJoin, p.onRoomChange)
	p.on(gateway.EventRoomMember, p.onRoomMember)
	p.on(gateway.EventRoomQrcode, p.onRoomQrcode)
	p.on(gateway.EventRoomCreate, p.onRoomCreate)
	p.on(gateway.EventNewFriend, p.onNewFriend)
	p.on(gateway.EventAddFriend, p.onAddFriend)
	p.on(gateway.EventDelFriend, p.onDelFriend)
	p.on(gateway.EventAddFriendBeforeAccept, p.onAddFriendBeforeAccept)
}

func (p *Puppet) onScan(data json.RawMessage) {
	var info schema.ScanInfo
	if err := json.Unmarshal(data, &info); err != nil {
		p.logger.Warn("bad scan push", zap.Error(err))
		return
	}
	evt := bus.ScanEvent{Status: info.Status}
	if info.URL != "" {
		qr, err := qrcode.New(info.URL, qrcode.Medium)
		if err != nil {
			p.logger.Warn("qr render failed", zap.Error(err))
			evt.QRCode = info.URL
		} else {
			evt.QRCode = qr.ToSmallString(false)
		}
	}
	p.emit(bus.KindScan, evt)
}

// onLogin seeds the session: cache, self contact, persisted slot, then
// kicks the full contact and room list syncs.
func (p *Puppet) onLogin(data json.RawMessage) {
	var info schema.LoginInfo
	if err := json.Unmarshal(data, &info); err != nil {
		p.logger.Warn("bad login push", zap.Error(err))
		return
	}
	if info.Account == "" {
		p.logger.Warn("login push without account")
		return
	}
	alias := info.AccountAlias
	if alias == "" {
		alias = info.Account
	}

	if err := p.cache.Init(info.Account); err != nil {
		p.logger.Error("cache init failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	p.selfID = info.Account
	p.taskID = info.TaskID
	p.mu.Unlock()

	self := &schema.ContactPayload{
		Account:      info.Account,
		AccountAlias: alias,
		Name:         info.Name,
		Thumb:        info.Thumb,
	}
	if err := p.cache.SetContact(alias, self); err != nil {
		p.logger.Warn("self contact seed failed", zap.Error(err))
	}
	if err := session.SaveSlot(p.slotPath(), &session.Slot{
		TaskID:       info.TaskID,
		Account:      info.Account,
		AccountAlias: alias,
	}); err != nil {
		p.logger.Warn("slot persist failed", zap.Error(err))
	}

	if err := p.machine.Transition(status.LoggedIn); err != nil {
		p.logger.Error("bad state on login", zap.Error(err))
	}
	p.emit(bus.KindLogin, bus.LoginEvent{ContactID: info.Account})
	p.logger.Info("logged in", zap.String("account", info.Account))

	p.syncContactList()
	p.syncRoomList()
}

func (p *Puppet) onLogout(data json.RawMessage) {
	p.mu.Lock()
	self := p.selfID
	p.selfID = ""
	p.taskID = ""
	p.contactsSynced = false
	p.roomsSynced = false
	p.mu.Unlock()

	if err := session.ClearSlot(p.slotPath()); err != nil {
		p.logger.Warn("slot clear failed", zap.Error(err))
	}
	if err := p.cache.Release(); err != nil {
		p.logger.Warn("cache release failed", zap.Error(err))
	}
	if err := p.machine.Transition(status.Connected); err != nil {
		p.logger.Debug("logout outside logged-in state", zap.Error(err))
	}

	// A logout always demands a session restart, not just a re-auth.
	p.emit(bus.KindLogout, bus.LogoutEvent{ContactID: self, Data: string(data)})
	p.emit(bus.KindReset, bus.ResetEvent{Data: "logout"})
}

// onNotLogin answers the gateway's "nobody logged in" probe reply. A
// persisted slot scopes the QR challenge to the previous account so
// the user confirms instead of re-scanning from scratch.
func (p *Puppet) onNotLogin(data json.RawMessage) {
	slot, err := session.LoadSlot(p.slotPath())
	if err != nil {
		p.logger.Warn("slot load failed", zap.Error(err))
	}
	if slot != nil && slot.Account != "" {
		err = p.conn.Request(gateway.APILoginScan, map[string]string{
			"task_id": slot.TaskID,
			"account": slot.Account,
		})
	} else {
		err = p.conn.Notify(gateway.APILoginScan)
	}
	if err != nil {
		p.logger.Warn("login challenge request failed", zap.Error(err))
	}
}

// onContactList ingests one page of the full contact sync. The last
// page resolves the list waiters.
func (p *Puppet) onContactList(data json.RawMessage) {
	var chunk schema.ContactListChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		p.logger.Warn("bad contact-list push", zap.Error(err))
		return
	}
	for i := range chunk.Info {
		c := contactFromListEntry(&chunk.Info[i])
		if err := p.cache.SetContact(c.AccountAlias, c); err != nil {
			p.logger.Warn("contact upsert failed", zap.String("id", c.AccountAlias), zap.Error(err))
			continue
		}
		p.contacts.Resolve(c.AccountAlias, c)
		if c.Account != c.AccountAlias {
			p.contacts.Resolve(c.Account, c)
		}
	}
	// Pages hold up to 100 entries; a short page is the last one.
	if len(chunk.Info) < 100 || chunk.CurrentPage*100 >= chunk.Total {
		p.mu.Lock()
		p.contactsSynced = true
		p.mu.Unlock()
		p.contactLists.Resolve("contact-list", chunk.Total)
	}
}

func (p *Puppet) onContactInfo(data json.RawMessage) {
	var info schema.ContactInfo
	if err := json.Unmarshal(data, &info); err != nil {
		p.logger.Warn("bad contact-info push", zap.Error(err))
		return
	}
	if info.Username == "" {
		return
	}
	alias := info.Alias
	if alias == "" {
		alias = info.Username
	}
	c := &schema.ContactPayload{
		Account:      info.Username,
		AccountAlias: alias,
		Name:         info.Nickname,
		Thumb:        info.HeadURL,
		Description:  info.Signature,
	}
	// Single-contact syncs carry fewer fields than the list sync;
	// keep what the cache already knows.
	if prev, err := p.cache.GetContact(alias); err == nil && prev != nil {
		c.FormName = prev.FormName
		c.Sex = prev.Sex
		c.City = prev.City
		c.Province = prev.Province
		c.Disturb = prev.Disturb
		c.V1 = prev.V1
	}
	if err := p.cache.SetContact(alias, c); err != nil {
		p.logger.Warn("contact upsert failed", zap.String("id", alias), zap.Error(err))
		return
	}
	p.contacts.Resolve(alias, c)
	if info.Username != alias {
		p.contacts.Resolve(info.Username, c)
	}
}

func (p *Puppet) onContactRemark(data json.RawMessage) {
	var remark schema.ContactRemark
	if err := json.Unmarshal(data, &remark); err != nil {
		p.logger.Warn("bad contact-remark push", zap.Error(err))
		return
	}
	if c, err := p.cache.GetContact(remark.ToAccountAlias); err == nil && c != nil {
		c.FormName = remark.Remark
		if err := p.cache.SetContact(remark.ToAccountAlias, c); err != nil {
			p.logger.Warn("remark upsert failed", zap.Error(err))
		}
	}
	p.remarks.Resolve(remark.ToAccountAlias, remark.Remark)
}

// onRoomList ingests the room roster. Entries carry only name and
// thumb; records already completed by room-info keep their owner and
// members.
func (p *Puppet) onRoomList(data json.RawMessage) {
	var box schema.RoomListBox
	if err := json.Unmarshal(data, &box); err != nil {
		p.logger.Warn("bad room-list push", zap.Error(err))
		return
	}
	var entries []schema.RoomListEntry
	if err := json.Unmarshal([]byte(box.Info), &entries); err != nil {
		p.logger.Warn("bad room-list roster", zap.Error(err))
		return
	}
	ids := make([]string, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Number == "" {
			continue
		}
		room, err := p.cache.GetRoom(e.Number)
		if err != nil {
			p.logger.Warn("room lookup failed", zap.Error(err))
			continue
		}
		if room == nil {
			room = &schema.RoomPayload{Number: e.Number}
		}
		room.Name = e.Name
		room.Thumb = e.Thumb
		if err := p.cache.SetRoom(e.Number, room); err != nil {
			p.logger.Warn("room upsert failed", zap.String("id", e.Number), zap.Error(err))
			continue
		}
		ids = append(ids, e.Number)
	}
	p.mu.Lock()
	p.roomsSynced = true
	p.mu.Unlock()
	p.roomLists.Resolve("room-list", ids)
}

// onRoomInfo answers a single-room sync. An incomplete record (no
// owner or the members have not arrived yet) triggers the membership
// sync instead of resolving the waiters.
func (p *Puppet) onRoomInfo(data json.RawMessage) {
	var info schema.RoomInfo
	if err := json.Unmarshal(data, &info); err != nil {
		p.logger.Warn("bad room-info push", zap.Error(err))
		return
	}
	if info.Number == "" {
		return
	}
	room, err := p.cache.GetRoom(info.Number)
	if err != nil {
		p.logger.Warn("room lookup failed", zap.Error(err))
		return
	}
	if room == nil {
		room = &schema.RoomPayload{Number: info.Number}
	}
	room.Name = info.Name
	room.Thumb = info.Thumb
	room.Owner = info.Author
	room.Disturb = info.Disturb
	if err := p.cache.SetRoom(info.Number, room); err != nil {
		p.logger.Warn("room upsert failed", zap.Error(err))
		return
	}
	if room.Complete() {
		p.rooms.Resolve(info.Number, room)
		return
	}
	p.syncRoomMembers(info.Number)
}

// onRoomMember ingests a membership roster, completing both the
// membership map and, if an owner is already known, the room record.
func (p *Puppet) onRoomMember(data json.RawMessage) {
	var list schema.RoomMemberList
	if err := json.Unmarshal(data, &list); err != nil {
		p.logger.Warn("bad room-member push", zap.Error(err))
		return
	}
	if len(list.MemberList) == 0 {
		return
	}
	roomID := list.MemberList[0].Number
	memberMap := make(map[string]schema.RoomMemberPayload, len(list.MemberList))
	memberSlice := make([]schema.RoomMemberPayload, 0, len(list.MemberList))
	for _, e := range list.MemberList {
		m := schema.RoomMemberPayload{
			Account:      e.UserName,
			AccountAlias: e.UserName,
			Name:         e.NickName,
			RoomNick:     e.DisplayName,
			Thumb:        e.BigHeadImgURL,
		}
		memberMap[e.UserName] = m
		memberSlice = append(memberSlice, m)
	}
	if err := p.cache.SetRoomMembers(roomID, memberMap); err != nil {
		p.logger.Warn("membership upsert failed", zap.Error(err))
		return
	}
	p.members.Resolve(roomID, memberMap)

	room, err := p.cache.GetRoom(roomID)
	if err != nil || room == nil {
		return
	}
	room.Members = memberSlice
	if err := p.cache.SetRoom(roomID, room); err != nil {
		p.logger.Warn("room upsert failed", zap.Error(err))
		return
	}
	if room.Complete() {
		p.rooms.Resolve(roomID, room)
	}
}

// onRoomChange reacts to the gateway's own join/leave notice by
// invalidating the affected room; the next read re-syncs.
func (p *Puppet) onRoomChange(data json.RawMessage) {
	var notice schema.RoomJoinNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		p.logger.Warn("bad room-join push", zap.Error(err))
		return
	}
	if notice.GNumber == "" {
		return
	}
	if err := p.cache.MarkRoomDirty(notice.GNumber); err != nil {
		p.logger.Warn("room invalidate failed", zap.Error(err))
	}
	if err := p.cache.MarkRoomMembersDirty(notice.GNumber); err != nil {
		p.logger.Warn("membership invalidate failed", zap.Error(err))
	}
	p.syncRoom(notice.GNumber)
}

func (p *Puppet) onRoomQrcode(data json.RawMessage) {
	var qr schema.RoomQrcode
	if err := json.Unmarshal(data, &qr); err != nil {
		p.logger.Warn("bad room-qrcode push", zap.Error(err))
		return
	}
	p.roomQrcodes.Resolve(qr.GroupNumber, qr.Qrcode)
}

func (p *Puppet) onRoomCreate(data json.RawMessage) {
	var notice schema.CreateRoomNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		p.logger.Warn("bad room-create push", zap.Error(err))
		return
	}
	if notice.Account == "" {
		return
	}
	room := &schema.RoomPayload{Number: notice.Account, Name: notice.Name, Thumb: notice.HeaderImage}
	if err := p.cache.SetRoom(notice.Account, room); err != nil {
		p.logger.Warn("room upsert failed", zap.Error(err))
	}
	p.roomCreates.Resolve("room-create", notice.Account)
}

func (p *Puppet) onNewFriend(data json.RawMessage) {
	var notice schema.FriendshipNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		p.logger.Warn("bad new-friend push", zap.Error(err))
		return
	}
	f := parser.FriendshipReceive(&notice)
	if f == nil {
		return
	}
	if err := p.cache.SetFriendship(f.ID, f); err != nil {
		p.logger.Warn("friendship store failed", zap.Error(err))
		return
	}
	p.emit(bus.KindFriendship, bus.FriendshipEvent{FriendshipID: f.ID})
}

// onAddFriend lands when a friendship completes in either direction;
// the nested detail seeds the new contact.
func (p *Puppet) onAddFriend(data json.RawMessage) {
	var accepted schema.FriendAccepted
	if err := json.Unmarshal(data, &accepted); err != nil {
		p.logger.Warn("bad add-friend push", zap.Error(err))
		return
	}
	var detail schema.FriendAcceptedDetail
	if err := json.Unmarshal([]byte(accepted.Data), &detail); err != nil {
		p.logger.Warn("bad add-friend detail", zap.Error(err))
		return
	}
	if detail.Account == "" {
		return
	}
	alias := detail.AccountAlias
	if alias == "" {
		alias = detail.Account
	}
	c := &schema.ContactPayload{
		Account:      detail.Account,
		AccountAlias: alias,
		Name:         detail.Name,
		Thumb:        detail.Thumb,
		V1:           accepted.V1,
	}
	if err := p.cache.SetContact(alias, c); err != nil {
		p.logger.Warn("contact upsert failed", zap.Error(err))
		return
	}
	p.contacts.Resolve(alias, c)

	if accepted.Type == schema.AcceptedByOther {
		f := &schema.FriendshipPayload{
			ID:        detail.Account,
			ContactID: detail.Account,
			Type:      schema.FriendshipConfirm,
			Timestamp: time.Now().Unix(),
		}
		if err := p.cache.SetFriendship(f.ID, f); err != nil {
			p.logger.Warn("friendship store failed", zap.Error(err))
			return
		}
		p.emit(bus.KindFriendship, bus.FriendshipEvent{FriendshipID: f.ID})
	}
}

func (p *Puppet) onDelFriend(data json.RawMessage) {
	var notice schema.DeleteFriendNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		p.logger.Warn("bad del-friend push", zap.Error(err))
		return
	}
	if notice.Account == "" {
		return
	}
	if err := p.cache.DeleteContact(notice.Account); err != nil {
		p.logger.Warn("contact delete failed", zap.Error(err))
	}
}

func (p *Puppet) onAddFriendBeforeAccept(data json.RawMessage) {
	var notice schema.AddFriendBeforeAcceptNotice
	if err := json.Unmarshal(data, &notice); err != nil {
		p.logger.Warn("bad add-friend-before-accept push", zap.Error(err))
		return
	}
	p.friendAcks.Resolve("add-friend", &schema.FriendInfo{
		FriendPhone: notice.Phone,
		FriendThumb: notice.ToThumb,
		MyAccount:   notice.MyAccount,
	})
}

// Throttled sync request helpers. Each goes through its domain queue
// so bursts stay under the gateway rate limit.

func (p *Puppet) syncContactList() {
	if err := p.contactQueue.Execute(func() {
		if err := p.conn.Notify(gateway.APIGetContactList); err != nil {
			p.logger.Warn("contact list sync failed", zap.Error(err))
		}
	}); err != nil {
		p.logger.Warn("contact queue rejected sync", zap.Error(err))
	}
}

func (p *Puppet) syncContact(id string) {
	if err := p.contactQueue.Execute(func() {
		if err := p.conn.Request(gateway.APIGetContactInfo, map[string]string{"account": id}); err != nil {
			p.logger.Warn("contact sync failed", zap.String("id", id), zap.Error(err))
		}
	}); err != nil {
		p.logger.Warn("contact queue rejected sync", zap.Error(err))
	}
}

func (p *Puppet) syncRoomList() {
	if err := p.roomQueue.Execute(func() {
		if err := p.conn.Notify(gateway.APIGetRoomList); err != nil {
			p.logger.Warn("room list sync failed", zap.Error(err))
		}
	}); err != nil {
		p.logger.Warn("room queue rejected sync", zap.Error(err))
	}
}

func (p *Puppet) syncRoom(id string) {
	if err := p.roomQueue.Execute(func() {
		if err := p.conn.Request(gateway.APIGetRoomInfo, map[string]string{"account": id}); err != nil {
			p.logger.Warn("room sync failed", zap.String("id", id), zap.Error(err))
		}
	}); err != nil {
		p.logger.Warn("room queue rejected sync", zap.Error(err))
	}
}

func (p *Puppet) syncRoomMembers(id string) {
	if err := p.memberQueue.Execute(func() {
		if err := p.conn.Request(gateway.APIGetRoomMember, map[string]string{"account": id}); err != nil {
			p.logger.Warn("membership sync failed", zap.String("id", id), zap.Error(err))
		}
	}); err != nil {
		p.logger.Warn("member queue rejected sync", zap.Error(err))
	}
}

func contactFromListEntry(e *schema.ContactListEntry) *schema.ContactPayload {
	alias := e.AccountAlias
	if alias == "" {
		alias = e.Account
	}
	province, city := splitArea(e.Area)
	return &schema.ContactPayload{
		Account:      e.Account,
		AccountAlias: alias,
		Name:         e.Name,
		FormName:     e.FormName,
		Thumb:        e.Thumb,
		Sex:          parseSex(e.Sex),
		City:         city,
		Province:     province,
		Description:  e.Description,
		Disturb:      e.Disturb,
		V1:           e.V1,
	}
}
