package session

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Slot is the persisted login identity, written on a successful login
// and read back on "not logged in" pushes to offer reconnection to the
// same account.
type Slot struct {
	TaskID       string `toml:"task_id"`
	Account      string `toml:"account"`
	AccountAlias string `toml:"account_alias"`
}

// LoadSlot reads a slot from path. A missing file returns (nil, nil):
// no prior session is a normal condition, not an error.
func LoadSlot(path string) (*Slot, error) {
	var slot Slot
	_, err := toml.DecodeFile(path, &slot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &slot, nil
}

// SaveSlot writes the slot to path, creating parent dirs as needed.
func SaveSlot(path string, slot *Slot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(slot)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ClearSlot removes the persisted slot. Missing files are ignored.
func ClearSlot(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
