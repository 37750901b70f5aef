package session

import (
	"fmt"
	"os"
	"path/filepath"
)

// BaseDir returns ~/.macbridge.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".macbridge")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// LockPath returns the lock file path for a session.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the entity cache database path for the given
// session and logged-in account.
func CacheDBPath(name, accountID string) string {
	return filepath.Join(Dir(name), fmt.Sprintf("cache-%s.db", accountID))
}

// SlotPath returns the persisted login slot path for a session.
func SlotPath(name string) string {
	return filepath.Join(Dir(name), "slot.toml")
}

// LogDir returns the log directory for a session.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "macbridged.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
