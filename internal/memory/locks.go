package memory

import "sync"

// LockTable records advisory per-key locks: at most one holder per key.
// Locking is cooperative. The store does not consult the table on ordinary
// reads and writes; agents doing a read-modify-write sequence are expected
// to bracket it with Lock and Unlock themselves.
type LockTable struct {
	mu      sync.Mutex
	holders map[string]string
}

// NewLockTable creates an empty lock table.
func NewLockTable() *LockTable {
	return &LockTable{holders: make(map[string]string)}
}

// Acquire records agentID as the holder of key if the key is unheld.
// Re-acquiring a key already held by the same agent succeeds.
func (l *LockTable) Acquire(key, agentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, held := l.holders[key]
	if held && holder != agentID {
		return false
	}
	l.holders[key] = agentID
	return true
}

// Release removes the lock if agentID is the current holder.
func (l *LockTable) Release(key, agentID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holders[key] != agentID {
		return false
	}
	delete(l.holders, key)
	return true
}

// Holder returns the current holder of key, if any.
func (l *LockTable) Holder(key string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	holder, held := l.holders[key]
	return holder, held
}
