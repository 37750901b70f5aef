// Package cache is the durable entity cache: the single writer of
// truth for contacts, rooms, memberships, friendships and room
// invitations, incrementally filled and corrected by push events.
package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/matheus3301/macbridge/internal/schema"
	"go.uber.org/zap"
)

// ErrNotReady is returned by every accessor before Init or after
// Release. Callers must surface it, not mask it.
var ErrNotReady = errors.New("cache: not ready")

// Manager owns the per-account cache lifecycle: the backing database
// is created on login and destroyed on logout/stop.
type Manager struct {
	dir    string
	logger *zap.Logger

	mu      sync.RWMutex
	db      *DB
	account string
}

// NewManager creates a manager storing cache databases under dir.
func NewManager(dir string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{dir: dir, logger: logger}
}

// Init opens (creating if needed) the cache scoped to the logged-in
// account and runs migrations. Re-initializing for the same account is
// a no-op; a different account closes the previous store first.
func (m *Manager) Init(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		if m.account == accountID {
			return nil
		}
		_ = m.db.Close()
		m.db = nil
	}

	if err := os.MkdirAll(m.dir, 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := filepath.Join(m.dir, fmt.Sprintf("cache-%s.db", accountID))
	db, err := Open(path)
	if err != nil {
		return err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return err
	}
	if result.Changed {
		m.logger.Info("cache migrations applied",
			zap.String("account", accountID),
			zap.Uint("version", result.Version))
	}
	m.db = db
	m.account = accountID
	m.logger.Info("entity cache ready", zap.String("path", path))
	return nil
}

// Release flushes and closes the store. Safe to call when not
// initialized.
func (m *Manager) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	m.account = ""
	return err
}

// Ready reports whether the cache is open.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.db != nil
}

func (m *Manager) store() (*DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return nil, ErrNotReady
	}
	return m.db, nil
}

// GetContact returns a contact by alias id; (nil, nil) when unknown so
// callers can distinguish "go sync" from "use as is".
func (m *Manager) GetContact(id string) (*schema.ContactPayload, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectContact(id)
}

// SetContact upserts a contact keyed by its alias id.
func (m *Manager) SetContact(id string, c *schema.ContactPayload) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	if c.AccountAlias == "" {
		c.AccountAlias = id
	}
	return db.UpsertContact(c)
}

// DeleteContact removes a contact.
func (m *Manager) DeleteContact(id string) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.RemoveContact(id)
}

// ContactIDs lists all cached contact ids.
func (m *Manager) ContactIDs() ([]string, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectContactIDs()
}

// GetRoom returns a room by id; (nil, nil) when unknown.
func (m *Manager) GetRoom(id string) (*schema.RoomPayload, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectRoom(id)
}

// SetRoom upserts a room record.
func (m *Manager) SetRoom(id string, r *schema.RoomPayload) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	if r.Number == "" {
		r.Number = id
	}
	return db.UpsertRoom(r)
}

// MarkRoomDirty drops the cached room so the next read re-syncs.
func (m *Manager) MarkRoomDirty(id string) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.RemoveRoom(id)
}

// RoomIDs lists all cached room ids.
func (m *Manager) RoomIDs() ([]string, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectRoomIDs()
}

// GetRoomMembers returns the membership map for a room; nil map means
// never synced, empty map means known-empty.
func (m *Manager) GetRoomMembers(roomID string) (map[string]schema.RoomMemberPayload, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectRoomMembers(roomID)
}

// SetRoomMembers stores the full membership map for a room.
func (m *Manager) SetRoomMembers(roomID string, members map[string]schema.RoomMemberPayload) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.UpsertRoomMembers(roomID, members)
}

// MarkRoomMembersDirty drops the membership map so the next read
// re-syncs.
func (m *Manager) MarkRoomMembersDirty(roomID string) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.RemoveRoomMembers(roomID)
}

// GetFriendship returns a stored friendship payload; (nil, nil) when
// unknown.
func (m *Manager) GetFriendship(id string) (*schema.FriendshipPayload, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectFriendship(id)
}

// SetFriendship stores a friendship payload under id.
func (m *Manager) SetFriendship(id string, f *schema.FriendshipPayload) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.UpsertFriendship(id, f)
}

// GetRoomInvitation returns a stored invitation; (nil, nil) when
// unknown.
func (m *Manager) GetRoomInvitation(id string) (*schema.RoomInvitationPayload, error) {
	db, err := m.store()
	if err != nil {
		return nil, err
	}
	return db.SelectRoomInvitation(id)
}

// SetRoomInvitation stores an invitation under id.
func (m *Manager) SetRoomInvitation(id string, inv *schema.RoomInvitationPayload) error {
	db, err := m.store()
	if err != nil {
		return err
	}
	return db.UpsertRoomInvitation(id, inv)
}
