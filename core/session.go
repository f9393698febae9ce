package core

import (
	"sync"
	"time"
)

// Session is a conversation container holding the ordered message history of
// one agent conversation. It is safe for concurrent access.
//
// Contract:
//   - AddMessage updates the Updated timestamp
//   - History returns a defensive copy
//   - Clone performs deep copies of slices and maps for safe divergence
type Session struct {
	ID       string            `json:"id"`
	Messages []Message         `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// AddMessage appends messages to the history.
func (s *Session) AddMessage(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.Messages = append(s.Messages, m.Clone())
	}
	s.Updated = time.Now()
}

// History returns a copy of the message history.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Messages)
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Session{
		ID:       s.ID,
		Messages: make([]Message, len(s.Messages)),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: make(map[string]string, len(s.Metadata)),
	}
	for i, m := range s.Messages {
		c.Messages[i] = m.Clone()
	}
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// SessionStore persists sessions for agents. Get creates sessions lazily so
// callers may use any caller-chosen id.
type SessionStore interface {
	Create(sessionID string) (*Session, error)
	Get(sessionID string) (*Session, error)
	Append(sessionID string, msgs ...Message) error
	Delete(sessionID string) error
}
