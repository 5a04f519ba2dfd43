package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrStoreUnavailable marks a backing file that exists but cannot be read
// or written. Fatal at startup; mid-run write failures keep the in-memory
// state authoritative until the next successful write.
var ErrStoreUnavailable = errors.New("user store unavailable")

// Store is the durable account → ReferredUser mapping. All mutation goes
// through Upsert, which rewrites the whole backing JSON document
// atomically; a crash loses at most the in-flight decision.
type Store struct {
	path string

	mu    sync.Mutex
	users map[string]ReferredUser
}

// Open loads the store from the given path. A missing file yields an
// empty store; an unreadable or corrupt file yields ErrStoreUnavailable.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]ReferredUser),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrStoreUnavailable, path, err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.users); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", ErrStoreUnavailable, path, err)
		}
	}
	return s, nil
}

// Upsert merges the given records by account and persists the full
// mapping. The in-memory state is updated even when the write fails, so a
// failed write is retried implicitly by the next successful Upsert.
func (s *Store) Upsert(users ...ReferredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		s.users[u.Account] = u
	}
	return s.persist()
}

// Merge inserts feed accounts that are not yet known, keeping stored
// lifecycle fields for accounts present in both sources, and persists the
// merged mapping once.
func (s *Store) Merge(users []ReferredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range users {
		if _, ok := s.users[u.Account]; !ok {
			u.Status = StatusInactive
			s.users[u.Account] = u
		}
	}
	return s.persist()
}

// persist rewrites the backing document via a temp file and rename, so
// readers never observe a partial write. Caller holds s.mu.
func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrStoreUnavailable, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrStoreUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %w", ErrStoreUnavailable, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %w", ErrStoreUnavailable, tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %w", ErrStoreUnavailable, s.path, err)
	}
	return nil
}

// Get returns a copy of the record for the account.
func (s *Store) Get(account string) (ReferredUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[account]
	return u, ok
}

// All returns a copy of the full mapping.
func (s *Store) All() map[string]ReferredUser {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ReferredUser, len(s.users))
	for k, v := range s.users {
		out[k] = v
	}
	return out
}

// Inactive lists the accounts still waiting for support.
func (s *Store) Inactive() []string {
	return s.accountsWithStatus(StatusInactive)
}

// Delegated lists the accounts currently holding a delegation.
func (s *Store) Delegated() []string {
	return s.accountsWithStatus(StatusDelegated)
}

func (s *Store) accountsWithStatus(status Status) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var accounts []string
	for _, u := range s.users {
		if u.Status == status {
			accounts = append(accounts, u.Account)
		}
	}
	return accounts
}
