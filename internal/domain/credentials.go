package domain

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoCredentials is returned when every pooled key for a kind is parked or none exist.
var ErrNoCredentials = errors.New("no server-side credentials available")

// Credential is a server-side API key usable when a request omits its own.
type Credential struct {
	// Key is the secret value.
	Key string `json:"key" mapstructure:"key"`

	// Name is a human-readable label used in logs instead of the key.
	Name string `json:"name" mapstructure:"name"`

	// Enabled excludes the key from rotation when false.
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// CredentialRing hands out pooled keys round-robin. Keys that fail with
// auth or quota errors are parked and come back after the cooldown.
type CredentialRing struct {
	mu       sync.RWMutex
	keys     []string
	parked   map[string]time.Time
	managed  map[string]struct{}
	cursor   atomic.Int64
	cooldown time.Duration
}

// NewCredentialRing builds a ring of unique non-empty keys.
// A zero cooldown disables automatic return of parked keys.
func NewCredentialRing(keys []string, cooldown time.Duration) *CredentialRing {
	r := &CredentialRing{
		keys:     make([]string, 0, len(keys)),
		parked:   make(map[string]time.Time),
		managed:  make(map[string]struct{}, len(keys)),
		cooldown: cooldown,
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := r.managed[k]; dup {
			continue
		}
		r.managed[k] = struct{}{}
		r.keys = append(r.keys, k)
	}
	return r
}

// Next returns the next usable key.
func (r *CredentialRing) Next() (string, error) {
	r.releaseExpired()

	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.keys) == 0 {
		return "", ErrNoCredentials
	}
	idx := (r.cursor.Add(1) - 1) % int64(len(r.keys))
	return r.keys[idx], nil
}

// Park removes key from rotation until the cooldown elapses.
func (r *CredentialRing) Park(key string) {
	if _, ok := r.managed[key]; !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parked[key] = time.Now()
	kept := r.keys[:0]
	for _, k := range r.keys {
		if k != key {
			kept = append(kept, k)
		}
	}
	r.keys = kept
}

// Release puts a parked key back into rotation.
func (r *CredentialRing) Release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(key)
}

func (r *CredentialRing) releaseLocked(key string) {
	if _, ok := r.parked[key]; !ok {
		return
	}
	delete(r.parked, key)
	r.keys = append(r.keys, key)
}

func (r *CredentialRing) releaseExpired() {
	if r.cooldown == 0 {
		return
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, at := range r.parked {
		if now.Sub(at) >= r.cooldown {
			r.releaseLocked(k)
		}
	}
}

// IsParked reports whether key is currently out of rotation.
func (r *CredentialRing) IsParked(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.parked[key]
	return ok
}

// Active is the number of keys in rotation.
func (r *CredentialRing) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// Parked is the number of keys waiting out their cooldown.
func (r *CredentialRing) Parked() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.parked)
}

// Total is the number of managed keys.
func (r *CredentialRing) Total() int {
	return len(r.managed)
}
