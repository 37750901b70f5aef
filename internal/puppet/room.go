package puppet

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/macbridge/internal/gateway"
	"github.com/matheus3301/macbridge/internal/schema"
)

// RoomPayload returns the room record for id. Incomplete records
// (missing owner or members) are never served: the call suspends while
// a throttled room sync, and the membership sync it cascades into,
// complete the record.
func (p *Puppet) RoomPayload(ctx context.Context, id string) (*schema.RoomPayload, error) {
	room, err := p.cache.GetRoom(id)
	if err != nil {
		return nil, err
	}
	if room.Complete() {
		return room, nil
	}

	p.syncRoom(id)
	return p.rooms.Await(ctx, id, awaitTimeout, func() {
		p.syncRoom(id)
	})
}

// RoomList returns every cached room id, waiting for the roster sync
// to complete first after a fresh login.
func (p *Puppet) RoomList(ctx context.Context) ([]string, error) {
	p.mu.RLock()
	synced := p.roomsSynced
	p.mu.RUnlock()
	if !synced {
		p.syncRoomList()
		if _, err := p.roomLists.Await(ctx, "room-list", awaitTimeout, p.syncRoomList); err != nil {
			return nil, err
		}
	}
	return p.cache.RoomIDs()
}

// RoomMemberList returns the member ids of a room, syncing the
// membership on a miss.
func (p *Puppet) RoomMemberList(ctx context.Context, roomID string) ([]string, error) {
	members, err := p.cache.GetRoomMembers(roomID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		p.syncRoomMembers(roomID)
		members, err = p.members.Await(ctx, roomID, awaitTimeout, func() {
			p.syncRoomMembers(roomID)
		})
		if err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids, nil
}

// RoomMemberPayload returns one member record. A stale roster gets one
// invalidate-and-resync before the member counts as absent.
func (p *Puppet) RoomMemberPayload(ctx context.Context, roomID, memberID string) (*schema.RoomMemberPayload, error) {
	for attempt := 0; attempt < 2; attempt++ {
		members, err := p.cache.GetRoomMembers(roomID)
		if err != nil {
			return nil, err
		}
		if members == nil {
			if _, err := p.RoomMemberList(ctx, roomID); err != nil {
				return nil, err
			}
			members, err = p.cache.GetRoomMembers(roomID)
			if err != nil {
				return nil, err
			}
		}
		if m, ok := members[memberID]; ok {
			return &m, nil
		}
		if attempt == 0 {
			if err := p.cache.MarkRoomMembersDirty(roomID); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("member %s of room %s: %w", memberID, roomID, ErrNotFound)
}

// roomMemberSearch resolves a display name against the cached roster.
// The gateway writes the literal self placeholder for the logged-in
// user; that resolves to the self id directly.
func (p *Puppet) roomMemberSearch(roomID, name string) []string {
	p.mu.RLock()
	self := p.selfID
	p.mu.RUnlock()
	if name == "你" || name == "You" || name == self {
		if self == "" {
			return nil
		}
		return []string{self}
	}

	members, err := p.cache.GetRoomMembers(roomID)
	if err != nil || members == nil {
		return nil
	}
	var ids []string
	for id, m := range members {
		if m.RoomNick == name || m.Name == name {
			ids = append(ids, id)
		}
	}
	return ids
}

// RoomCreate creates a room with the given contacts and waits for the
// gateway's room-create push carrying the new room id.
func (p *Puppet) RoomCreate(ctx context.Context, contactIDs []string, topic string) (string, error) {
	self, err := p.requireLogin()
	if err != nil {
		return "", err
	}
	send := func() {
		err := p.conn.Request(gateway.APICreateRoom, map[string]any{
			"my_account": self,
			"accounts":   contactIDs,
			"name":       topic,
		})
		if err != nil {
			p.logger.Warn("room create request failed", zap.Error(err))
		}
	}
	send()
	return p.roomCreates.Await(ctx, "room-create", awaitTimeout, send)
}

// RoomAdd adds a contact to a room. Past the direct-add member limit
// the gateway only accepts invitations.
func (p *Puppet) RoomAdd(ctx context.Context, roomID, contactID string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	memberIDs, err := p.RoomMemberList(ctx, roomID)
	if err != nil {
		return err
	}
	api := gateway.APIAddRoomMember
	if len(memberIDs) >= roomAddDirectLimit {
		api = gateway.APIInviteRoomMember
	}
	return p.conn.Request(api, map[string]string{
		"my_account": self,
		"g_number":   roomID,
		"account":    contactID,
	})
}

// RoomDel removes a member and drops it from the cached roster so
// reads stay consistent before the gateway's own notice lands.
func (p *Puppet) RoomDel(ctx context.Context, roomID, contactID string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	if err := p.conn.Request(gateway.APIDelRoomMember, map[string]string{
		"my_account": self,
		"g_number":   roomID,
		"account":    contactID,
	}); err != nil {
		return err
	}
	members, err := p.cache.GetRoomMembers(roomID)
	if err != nil || members == nil {
		return err
	}
	delete(members, contactID)
	if err := p.cache.SetRoomMembers(roomID, members); err != nil {
		return err
	}
	return p.cache.MarkRoomDirty(roomID)
}

// RoomQuit leaves a room.
func (p *Puppet) RoomQuit(ctx context.Context, roomID string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	if err := p.conn.Request(gateway.APIQuitRoom, map[string]string{
		"my_account": self,
		"g_number":   roomID,
	}); err != nil {
		return err
	}
	p.markRoomDirty(roomID, true)
	return nil
}

// RoomTopic returns the current topic of a room.
func (p *Puppet) RoomTopic(ctx context.Context, roomID string) (string, error) {
	room, err := p.RoomPayload(ctx, roomID)
	if err != nil {
		return "", err
	}
	return room.Name, nil
}

// SetRoomTopic renames a room and updates the cached record in place.
func (p *Puppet) SetRoomTopic(ctx context.Context, roomID, topic string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	if err := p.conn.Request(gateway.APISetRoomTopic, map[string]string{
		"my_account": self,
		"g_number":   roomID,
		"name":       topic,
	}); err != nil {
		return err
	}
	if room, err := p.cache.GetRoom(roomID); err == nil && room != nil {
		room.Name = topic
		return p.cache.SetRoom(roomID, room)
	}
	return nil
}

// RoomQRCode returns a join QR for a room, waiting for the
// room-qrcode push.
func (p *Puppet) RoomQRCode(ctx context.Context, roomID string) (string, error) {
	self, err := p.requireLogin()
	if err != nil {
		return "", err
	}
	send := func() {
		err := p.conn.Request(gateway.APIGetRoomQrcode, map[string]string{
			"my_account": self,
			"g_number":   roomID,
		})
		if err != nil {
			p.logger.Warn("room qrcode request failed", zap.Error(err))
		}
	}
	send()
	return p.roomQrcodes.Await(ctx, roomID, awaitTimeout, send)
}

// SetRoomAnnounce posts a room announcement. Reading the announcement
// back is not part of the gateway protocol.
func (p *Puppet) SetRoomAnnounce(ctx context.Context, roomID, text string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	return p.conn.Request(gateway.APISetRoomAnnounce, map[string]string{
		"my_account": self,
		"g_number":   roomID,
		"content":    text,
	})
}

// RoomInvitationPayload returns a stored invitation by id.
func (p *Puppet) RoomInvitationPayload(id string) (*schema.RoomInvitationPayload, error) {
	inv, err := p.cache.GetRoomInvitation(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("room invitation %s: %w", id, ErrNotFound)
	}
	return inv, nil
}

// RoomInvitationAccept joins the room behind a stored invitation by
// dereferencing its url.
func (p *Puppet) RoomInvitationAccept(ctx context.Context, id string) error {
	self, err := p.requireLogin()
	if err != nil {
		return err
	}
	inv, err := p.RoomInvitationPayload(id)
	if err != nil {
		return err
	}
	return p.conn.Request(gateway.APIAcceptRoomInvite, map[string]string{
		"my_account": self,
		"url":        inv.URL,
	})
}
