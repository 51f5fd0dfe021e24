// Package store provides crash-safe account-state persistence using JSON
// files.
//
// The whole account snapshot (balances plus every open position) is stored
// as a single file: account.json. Writes use atomic file replacement (write
// to .tmp, then rename) so a crash or kill mid-save never leaves a
// truncated or partially written file behind. internal/runtime calls
// SaveAccount after every position-tracker mutation and LoadAccount on
// startup to restore
// state before the first exchange snapshot arrives.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"hyperliquid-trader/pkg/types"
)

// Store persists account state to a JSON file in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing account.json
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory, creating it if
// necessary.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, "account.json")
}

// SaveAccount atomically persists the current account snapshot. It writes
// to a .tmp file first, then renames over the target so the file is never
// left in a partial state.
func (s *Store) SaveAccount(account types.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	path := s.path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write account: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadAccount restores the last persisted account snapshot from disk.
// Returns nil, nil if no snapshot exists yet (first run).
func (s *Store) LoadAccount() (*types.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read account: %w", err)
	}

	var account types.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("unmarshal account: %w", err)
	}
	return &account, nil
}
