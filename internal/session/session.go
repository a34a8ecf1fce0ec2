// Package session keeps per-browser chat settings in memory.
package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"ragchat/internal/service"
)

// CookieName is the cookie carrying the session id.
const CookieName = "ragchat_session"

// Store maps session ids to chat settings. Idle sessions expire after the TTL
// and the least recently used are evicted once the store is full.
type Store struct {
	sessions *expirable.LRU[string, service.ChatSettings]
	defaults service.ChatSettings
}

// NewStore creates a store holding up to size sessions for ttl each.
func NewStore(size int, ttl time.Duration, defaults service.ChatSettings) *Store {
	return &Store{
		sessions: expirable.NewLRU[string, service.ChatSettings](size, nil, ttl),
		defaults: defaults,
	}
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Valid reports whether id looks like an id issued by NewID.
func Valid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the settings for id, initialising the session with the
// defaults when it is unknown or expired.
func (s *Store) Get(id string) service.ChatSettings {
	if settings, ok := s.sessions.Get(id); ok {
		return settings
	}
	s.sessions.Add(id, s.defaults)
	return s.defaults
}

// Set replaces the settings for id.
func (s *Store) Set(id string, settings service.ChatSettings) {
	s.sessions.Add(id, settings)
}

// Reset restores the defaults for id and returns them.
func (s *Store) Reset(id string) service.ChatSettings {
	s.sessions.Add(id, s.defaults)
	return s.defaults
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Len()
}
