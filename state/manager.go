// Package state provides the typed key-value manager shared by the native
// ledgers. Values are stored as JSON documents so on-disk state stays
// inspectable with standard tooling.
package state

import (
	"encoding/json"
	"errors"
	"fmt"

	"privscore/storage"
)

// Manager implements the KVGet/KVPut storage contract expected by the credit,
// disclosure and lending ledgers on top of a storage.Database.
type Manager struct {
	db storage.Database
}

// NewManager binds a manager to the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("state: database not configured")
	}
	raw, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("state: get %q: %w", key, err)
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value as JSON and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("state: database not configured")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	if err := m.db.Put(key, raw); err != nil {
		return fmt.Errorf("state: put %q: %w", key, err)
	}
	return nil
}
