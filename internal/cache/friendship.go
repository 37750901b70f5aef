package cache

import (
	"database/sql"
	"time"

	"github.com/matheus3301/macbridge/internal/schema"
)

// UpsertFriendship stores a friendship payload under its id.
func (db *DB) UpsertFriendship(id string, f *schema.FriendshipPayload) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO friendships (id, contact_id, hello, type, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			contact_id = excluded.contact_id,
			hello = excluded.hello,
			type = excluded.type,
			timestamp = excluded.timestamp`,
		id, f.ContactID, f.Hello, string(f.Type), f.Timestamp, now)
	return err
}

// SelectFriendship returns a friendship payload by id, or nil when
// absent.
func (db *DB) SelectFriendship(id string) (*schema.FriendshipPayload, error) {
	var f schema.FriendshipPayload
	var kind string
	err := db.QueryRow(`
		SELECT id, contact_id, hello, type, timestamp
		FROM friendships WHERE id = ?`, id).
		Scan(&f.ID, &f.ContactID, &f.Hello, &kind, &f.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f.Type = schema.FriendshipType(kind)
	return &f, nil
}

// UpsertRoomInvitation stores a room invitation under its id.
func (db *DB) UpsertRoomInvitation(id string, inv *schema.RoomInvitationPayload) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO room_invitations (id, from_user, receiver, room_name, thumb, url, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			from_user = excluded.from_user,
			receiver = excluded.receiver,
			room_name = excluded.room_name,
			thumb = excluded.thumb,
			url = excluded.url,
			timestamp = excluded.timestamp`,
		id, inv.FromUser, inv.Receiver, inv.RoomName, inv.Thumb, inv.URL, inv.Timestamp, now)
	return err
}

// SelectRoomInvitation returns a room invitation by id, or nil when
// absent.
func (db *DB) SelectRoomInvitation(id string) (*schema.RoomInvitationPayload, error) {
	var inv schema.RoomInvitationPayload
	err := db.QueryRow(`
		SELECT id, from_user, receiver, room_name, thumb, url, timestamp
		FROM room_invitations WHERE id = ?`, id).
		Scan(&inv.ID, &inv.FromUser, &inv.Receiver, &inv.RoomName, &inv.Thumb, &inv.URL, &inv.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}
