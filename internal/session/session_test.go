package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ragchat/internal/service"
)

func TestGetInitialisesDefaults(t *testing.T) {
	s := NewStore(10, time.Hour, service.DefaultChatSettings())
	id := NewID()

	assert.Equal(t, service.DefaultChatSettings(), s.Get(id))
	assert.Equal(t, 1, s.Len())
}

func TestSetIsPerSession(t *testing.T) {
	s := NewStore(10, time.Hour, service.DefaultChatSettings())
	a, b := NewID(), NewID()

	custom := service.DefaultChatSettings()
	custom.Temperature = 0.1
	s.Set(a, custom)

	assert.InDelta(t, 0.1, s.Get(a).Temperature, 1e-6)
	assert.InDelta(t, 0.7, s.Get(b).Temperature, 1e-6)

	reset := s.Reset(a)
	assert.Equal(t, service.DefaultChatSettings(), reset)
	assert.Equal(t, reset, s.Get(a))
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	s := NewStore(1, time.Hour, service.DefaultChatSettings())
	custom := service.DefaultChatSettings()
	custom.MaxTokens = 42

	s.Set("first", custom)
	s.Set("second", custom)

	assert.Equal(t, 500, s.Get("first").MaxTokens)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(NewID()))
	assert.False(t, Valid("not-a-session"))
	assert.False(t, Valid(""))
}
