package puppet

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/bus"
	"github.com/matheus3301/macbridge/internal/parser"
	"github.com/matheus3301/macbridge/internal/schema"
)

// classify turns one raw message push into domain events. Parsers are
// speculative and side-effect free; this is the only place their
// matches touch the cache and the bus.
func (p *Puppet) classify(data json.RawMessage) {
	// The gateway reuses the message channel to announce freshly
	// accepted friends: those payloads carry contact fields and no
	// content type.
	if c := parser.NewFriendContact(data); c != nil {
		if err := p.cache.SetContact(c.AccountAlias, c); err != nil {
			p.logger.Warn("new friend contact upsert failed", zap.Error(err))
		}
		p.contacts.Resolve(c.AccountAlias, c)
		return
	}

	var m schema.MessagePayload
	if err := json.Unmarshal(data, &m); err != nil {
		p.logger.Warn("bad message push", zap.Error(err))
		return
	}
	if m.MessageID == "" {
		p.logger.Warn("message push without id dropped")
		return
	}
	p.recent.Set(m.MessageID, &m)

	switch m.ContentType {
	case schema.MessageTypeText:
		// A friendship match adds its own event; the message event
		// still follows below.
		p.applyFriendshipMatch(&m)
	case schema.MessageTypeURLLink:
		if inv := parser.RoomInvite(&m); inv != nil {
			if err := p.cache.SetRoomInvitation(inv.ID, inv); err != nil {
				p.logger.Warn("invitation store failed", zap.Error(err))
			}
			p.emit(bus.KindRoomInvite, bus.RoomInviteEvent{RoomInvitationID: inv.ID})
			return
		}
	case schema.MessageTypeSystem:
		p.classifySystem(&m)
	}

	p.emit(bus.KindMessage, bus.MessageEvent{MessageID: m.MessageID})
}

// applyFriendshipMatch probes a text for friendship system shapes and
// applies the match.
func (p *Puppet) applyFriendshipMatch(m *schema.MessagePayload) {
	f := parser.FriendshipConfirm(m)
	if f == nil {
		f = parser.FriendshipVerify(m)
	}
	if f == nil {
		return
	}
	if err := p.cache.SetFriendship(f.ID, f); err != nil {
		p.logger.Warn("friendship store failed", zap.Error(err))
		return
	}
	p.emit(bus.KindFriendship, bus.FriendshipEvent{FriendshipID: f.ID})
}

// classifySystem runs every system-message probe concurrently: any
// subset may match, each match applies its own side effects, and the
// generic message event always follows (emitted by classify).
func (p *Puppet) classifySystem(m *schema.MessagePayload) {
	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		p.applyFriendshipMatch(m)
	}()
	go func() {
		defer wg.Done()
		if e := parser.RoomJoin(m); e != nil {
			p.applyRoomJoin(e)
		}
	}()
	go func() {
		defer wg.Done()
		if e := parser.RoomLeave(m); e != nil {
			p.applyRoomLeave(e)
		}
	}()
	go func() {
		defer wg.Done()
		if e := parser.RoomTopic(m); e != nil {
			p.applyRoomTopic(e)
		}
	}()
	wg.Wait()
}

// applyRoomJoin resolves the display names in a join notice to member
// ids. Invitees may not be in the cached roster yet, so resolution
// invalidates and re-syncs the membership a bounded number of times
// before settling for an empty list.
func (p *Puppet) applyRoomJoin(e *parser.RoomJoinEvent) {
	var inviteeIDs []string
	for attempt := 0; attempt < maxJoinResolveAttempts; attempt++ {
		inviteeIDs = nil
		for _, name := range e.InviteeNames {
			inviteeIDs = append(inviteeIDs, p.roomMemberSearch(e.RoomID, name)...)
		}
		if len(inviteeIDs) > 0 {
			break
		}
		if err := p.cache.MarkRoomMembersDirty(e.RoomID); err != nil {
			p.logger.Warn("membership invalidate failed", zap.Error(err))
		}
		// Each re-sync attempt waits at most two request rounds.
		ctx, cancel := context.WithTimeout(context.Background(), 2*awaitTimeout)
		_, err := p.RoomMemberList(ctx, e.RoomID)
		cancel()
		if err != nil {
			p.logger.Warn("membership re-sync failed",
				zap.String("room", e.RoomID),
				zap.Int("attempt", attempt+1),
				zap.Error(err))
		}
	}
	if len(inviteeIDs) == 0 {
		p.logger.Warn("invitees not resolved, emitting join with empty list",
			zap.String("room", e.RoomID),
			zap.Strings("names", e.InviteeNames))
	}

	inviterIDs := p.roomMemberSearch(e.RoomID, e.InviterName)
	if len(inviterIDs) == 0 {
		p.logger.Warn("inviter not resolved, dropping join event",
			zap.String("room", e.RoomID),
			zap.String("name", e.InviterName))
		return
	}

	p.markRoomDirty(e.RoomID, true)
	p.emit(bus.KindRoomJoin, bus.RoomJoinEvent{
		RoomID:     e.RoomID,
		InviterID:  inviterIDs[0],
		InviteeIDs: inviteeIDs,
		Timestamp:  e.Timestamp,
	})
}

// applyRoomLeave resolves leaver ids against the roster as it was
// before the leave, then invalidates it.
func (p *Puppet) applyRoomLeave(e *parser.RoomLeaveEvent) {
	var leaverIDs []string
	for _, name := range e.LeaverNames {
		leaverIDs = append(leaverIDs, p.roomMemberSearch(e.RoomID, name)...)
	}
	removerIDs := p.roomMemberSearch(e.RoomID, e.RemoverName)
	if len(removerIDs) == 0 {
		p.logger.Warn("remover not resolved, dropping leave event",
			zap.String("room", e.RoomID),
			zap.String("name", e.RemoverName))
		return
	}

	p.markRoomDirty(e.RoomID, true)
	p.emit(bus.KindRoomLeave, bus.RoomLeaveEvent{
		RoomID:     e.RoomID,
		RemoverID:  removerIDs[0],
		RemoveeIDs: leaverIDs,
		Timestamp:  e.Timestamp,
	})
}

// applyRoomTopic renames the cached room and emits the topic event
// carrying both the previous and the new name.
func (p *Puppet) applyRoomTopic(e *parser.RoomTopicEvent) {
	oldTopic := ""
	room, err := p.cache.GetRoom(e.RoomID)
	if err != nil {
		p.logger.Warn("room lookup failed", zap.Error(err))
	}
	if room != nil {
		oldTopic = room.Name
	}

	changerIDs := p.roomMemberSearch(e.RoomID, e.ChangerName)
	if len(changerIDs) == 0 {
		p.logger.Warn("topic changer not resolved, dropping topic event",
			zap.String("room", e.RoomID),
			zap.String("name", e.ChangerName))
		return
	}

	p.markRoomDirty(e.RoomID, false)
	if room != nil {
		room.Name = e.Topic
		if err := p.cache.SetRoom(e.RoomID, room); err != nil {
			p.logger.Warn("room rename failed", zap.Error(err))
		}
	}

	p.emit(bus.KindRoomTopic, bus.RoomTopicEvent{
		RoomID:    e.RoomID,
		ChangerID: changerIDs[0],
		NewTopic:  e.Topic,
		OldTopic:  oldTopic,
		Timestamp: e.Timestamp,
	})
}

// markRoomDirty invalidates the room record and, when membership
// changed, the membership map too.
func (p *Puppet) markRoomDirty(roomID string, members bool) {
	if err := p.cache.MarkRoomDirty(roomID); err != nil {
		p.logger.Warn("room invalidate failed", zap.Error(err))
	}
	if members {
		if err := p.cache.MarkRoomMembersDirty(roomID); err != nil {
			p.logger.Warn("membership invalidate failed", zap.Error(err))
		}
	}
}
