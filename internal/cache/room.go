package cache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/macbridge/internal/schema"
)

// UpsertRoom inserts or updates a room record, member list included.
func (db *DB) UpsertRoom(r *schema.RoomPayload) error {
	members, err := json.Marshal(r.Members)
	if err != nil {
		return fmt.Errorf("encode room members: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO rooms (number, name, thumb, owner, disturb, members, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			name = excluded.name,
			thumb = excluded.thumb,
			owner = excluded.owner,
			disturb = excluded.disturb,
			members = excluded.members,
			updated_at = excluded.updated_at`,
		r.Number, r.Name, r.Thumb, r.Owner, r.Disturb, string(members), now)
	return err
}

// SelectRoom returns a room by id, or nil when absent.
func (db *DB) SelectRoom(id string) (*schema.RoomPayload, error) {
	var r schema.RoomPayload
	var members string
	err := db.QueryRow(`
		SELECT number, name, thumb, owner, disturb, members
		FROM rooms WHERE number = ?`, id).
		Scan(&r.Number, &r.Name, &r.Thumb, &r.Owner, &r.Disturb, &members)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &r.Members); err != nil {
		return nil, fmt.Errorf("decode room members: %w", err)
	}
	return &r, nil
}

// RemoveRoom deletes a room record so the next read forces a re-sync.
func (db *DB) RemoveRoom(id string) error {
	_, err := db.Exec(`DELETE FROM rooms WHERE number = ?`, id)
	return err
}

// SelectRoomIDs lists all cached room ids.
func (db *DB) SelectRoomIDs() ([]string, error) {
	rows, err := db.Query(`SELECT number FROM rooms ORDER BY number`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertRoomMembers stores the full membership map for a room. Storing
// an empty map is meaningful: it marks the membership as known-empty,
// distinct from never-loaded.
func (db *DB) UpsertRoomMembers(roomID string, members map[string]schema.RoomMemberPayload) error {
	if members == nil {
		members = map[string]schema.RoomMemberPayload{}
	}
	payload, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode membership: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = db.Exec(`
		INSERT INTO room_members (room_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		roomID, string(payload), now)
	return err
}

// SelectRoomMembers returns the membership map for a room. A nil map
// means membership was never synced; an empty non-nil map means the
// room is known to have no members.
func (db *DB) SelectRoomMembers(roomID string) (map[string]schema.RoomMemberPayload, error) {
	var payload string
	err := db.QueryRow(`SELECT payload FROM room_members WHERE room_id = ?`, roomID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	members := map[string]schema.RoomMemberPayload{}
	if err := json.Unmarshal([]byte(payload), &members); err != nil {
		return nil, fmt.Errorf("decode membership: %w", err)
	}
	return members, nil
}

// RemoveRoomMembers drops the membership row, returning the room to
// the never-loaded state.
func (db *DB) RemoveRoomMembers(roomID string) error {
	_, err := db.Exec(`DELETE FROM room_members WHERE room_id = ?`, roomID)
	return err
}
