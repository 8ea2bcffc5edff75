package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Reserved keys of the document store.
const (
	KeyGlobalData        = "global_data"
	KeyLastActiveSession = "last_active_session_name"
	sessionKeyPrefix     = "session_"
	backupKeyPrefix      = "backup_"
)

// Store persists opaque JSON blobs by key.
// Load returns (nil, nil) when the key is absent. ClearAll wipes every key of the store.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
	ClearAll(ctx context.Context) error
	IsAuthenticated() bool
}

// SessionKey is the key holding the named working session.
func SessionKey(name string) string {
	return sessionKeyPrefix + strings.TrimSpace(name)
}

// BackupKey names the automatic backup taken before an optimization is applied.
func BackupKey(term string, at time.Time) string {
	return fmt.Sprintf("%s%s_%d", backupKeyPrefix, term, at.UTC().Unix())
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: map[string][]byte{}}
}

// Load returns a copy of the stored blob.
func (s *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

// Save stores a copy of value.
func (s *MemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), value...)
	return nil
}

// Clear removes key.
func (s *MemoryStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

// ClearAll drops every blob.
func (s *MemoryStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs = map[string][]byte{}
	return nil
}

// IsAuthenticated is always true for the in-process store.
func (s *MemoryStore) IsAuthenticated() bool {
	return true
}

// Keys lists stored keys with the given prefix.
func (s *MemoryStore) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for key := range s.blobs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	return out
}
