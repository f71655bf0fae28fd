package memory

import "sync"

// Permissions is the per-(agent, key) permission set.
type Permissions struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Delete bool `json:"delete"`
	Lock   bool `json:"lock"`
}

// FullAccess grants every operation.
func FullAccess() Permissions {
	return Permissions{Read: true, Write: true, Delete: true, Lock: true}
}

// ReadOnly grants read access only.
func ReadOnly() Permissions {
	return Permissions{Read: true}
}

// AccessControl maps (key, agent) to permissions. A zero entry denies.
type AccessControl struct {
	mu    sync.RWMutex
	perms map[string]map[string]Permissions
}

// NewAccessControl creates an empty permission table.
func NewAccessControl() *AccessControl {
	return &AccessControl{perms: make(map[string]map[string]Permissions)}
}

// Grant sets the permissions for agentID on key, replacing any previous set.
func (a *AccessControl) Grant(agentID, key string, p Permissions) {
	a.mu.Lock()
	defer a.mu.Unlock()
	agents, ok := a.perms[key]
	if !ok {
		agents = make(map[string]Permissions)
		a.perms[key] = agents
	}
	agents[agentID] = p
}

// Revoke removes all permissions for agentID on key.
func (a *AccessControl) Revoke(agentID, key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if agents, ok := a.perms[key]; ok {
		delete(agents, agentID)
		if len(agents) == 0 {
			delete(a.perms, key)
		}
	}
}

func (a *AccessControl) get(agentID, key string) Permissions {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.perms[key][agentID]
}

// CanRead reports whether agentID may read key.
func (a *AccessControl) CanRead(agentID, key string) bool { return a.get(agentID, key).Read }

// CanWrite reports whether agentID may write key.
func (a *AccessControl) CanWrite(agentID, key string) bool { return a.get(agentID, key).Write }

// CanDelete reports whether agentID may delete key.
func (a *AccessControl) CanDelete(agentID, key string) bool { return a.get(agentID, key).Delete }

// CanLock reports whether agentID may lock key.
func (a *AccessControl) CanLock(agentID, key string) bool { return a.get(agentID, key).Lock }

// Known reports whether any permission entry exists for key.
func (a *AccessControl) Known(key string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.perms[key]) > 0
}

// AccessibleKeys returns all keys agentID holds any permission on.
func (a *AccessControl) AccessibleKeys(agentID string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0)
	for key, agents := range a.perms {
		if _, ok := agents[agentID]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}
