// Package memory implements the shared knowledge store used for inter-agent
// exchange: a concurrent key/value map gated per (agent, key, operation) by
// an access-control table, with values encrypted at rest and advisory locks
// for cross-agent coordination.
package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/marvin-agent/marvin/internal/secrets"
	"github.com/marvin-agent/marvin/internal/task"
)

// ErrNotFound reports a read of a key no agent has written. Callers use it
// to tell an absent key apart from a denied or failed read.
var ErrNotFound = errors.New("shared memory key not found")

type entry struct {
	owner      string
	ciphertext []byte
}

// Store is the shared memory. Access control is evaluated under the same
// critical section as the data access so a permission check cannot race a
// concurrent revoke.
type Store struct {
	mu     sync.Mutex
	data   map[string]*entry
	acl    *AccessControl
	locks  *LockTable
	cipher *secrets.Cipher
	logger *slog.Logger
}

// NewStore creates a shared memory encrypting with the given cipher.
func NewStore(cipher *secrets.Cipher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		data:   make(map[string]*entry),
		acl:    NewAccessControl(),
		locks:  NewLockTable(),
		cipher: cipher,
		logger: logger,
	}
}

// Access exposes the permission table so owners and the collaboration layer
// can grant access to other agents.
func (s *Store) Access() *AccessControl { return s.acl }

// Read decrypts and returns the value for key if agentID may read it.
func (s *Store) Read(key, agentID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok && !s.acl.Known(key) {
		return nil, fmt.Errorf("read %s: %w", key, ErrNotFound)
	}
	if !s.acl.CanRead(agentID, key) {
		s.logger.Warn("shared memory read denied", "agent", agentID, "key", key)
		return nil, fmt.Errorf("read %s by %s: %w", key, agentID, task.ErrAccessDenied)
	}
	if !ok {
		return nil, fmt.Errorf("read %s: %w", key, ErrNotFound)
	}
	plain, err := s.cipher.Decrypt(e.ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s: %w", key, err)
	}
	return plain, nil
}

// Write encrypts and stores the value under key. The first writer of a key
// becomes its owner and implicitly receives full permissions; later writes
// require write permission. Writes to the same key are last-writer-wins
// unless callers coordinate through Lock/Unlock.
func (s *Store) Write(key string, value []byte, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists || s.acl.Known(key) {
		if !s.acl.CanWrite(agentID, key) {
			s.logger.Warn("shared memory write denied", "agent", agentID, "key", key)
			return fmt.Errorf("write %s by %s: %w", key, agentID, task.ErrAccessDenied)
		}
	} else {
		s.acl.Grant(agentID, key, FullAccess())
	}

	ciphertext, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	e, ok := s.data[key]
	if !ok {
		e = &entry{owner: agentID}
		s.data[key] = e
	}
	e.ciphertext = ciphertext
	return nil
}

// Delete removes the entry for key if agentID may delete it.
func (s *Store) Delete(key, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acl.CanDelete(agentID, key) {
		s.logger.Warn("shared memory delete denied", "agent", agentID, "key", key)
		return fmt.Errorf("delete %s by %s: %w", key, agentID, task.ErrAccessDenied)
	}
	if _, ok := s.data[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, ErrNotFound)
	}
	delete(s.data, key)
	return nil
}

// Owner returns the owning agent of key, if the key exists.
func (s *Store) Owner(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return "", false
	}
	return e.owner, true
}

// ListKeys returns the keys agentID holds any permission on.
func (s *Store) ListKeys(agentID string) []string {
	return s.acl.AccessibleKeys(agentID)
}

// Lock acquires the advisory lock on key for agentID. Requires lock
// permission; returns false when the key is held by another agent.
func (s *Store) Lock(key, agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.acl.CanLock(agentID, key) {
		s.logger.Warn("shared memory lock denied", "agent", agentID, "key", key)
		return false
	}
	return s.locks.Acquire(key, agentID)
}

// Unlock releases the advisory lock on key if agentID holds it.
func (s *Store) Unlock(key, agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locks.Release(key, agentID)
}

// TeardownOwner removes every entry owned by agentID and its permissions.
func (s *Store) TeardownOwner(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.data {
		if e.owner != agentID {
			continue
		}
		delete(s.data, key)
		s.acl.Revoke(agentID, key)
	}
}
