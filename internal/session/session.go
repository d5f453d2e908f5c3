// Package session keeps per-key conversation history.
package session

import (
	"sync"

	"chat-agent/internal/domain"
)

// Session is the ordered turn history of one conversation.
type Session struct {
	mu        sync.Mutex
	turns     []domain.Turn
	userTurns int
}

// Append adds a turn at the end of the history.
func (s *Session) Append(role domain.Role, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, domain.Turn{Role: role, Text: text})
}

// Truncate keeps only the last 2k turns when the history is longer.
func (s *Session) Truncate(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := 2 * k
	if limit < 0 || len(s.turns) <= limit {
		return
	}
	kept := make([]domain.Turn, limit)
	copy(kept, s.turns[len(s.turns)-limit:])
	s.turns = kept
}

// Turns returns a copy of the history, oldest first.
func (s *Session) Turns() []domain.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Turn(nil), s.turns...)
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// CountUserTurn increments and returns the number of user inputs seen,
// which keeps growing after truncation.
func (s *Session) CountUserTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userTurns++
	return s.userTurns
}

// UserTurns returns the number of user inputs counted so far.
func (s *Session) UserTurns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userTurns
}

// Store maps session keys to sessions, creating them on first use.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Get returns the session for key, creating an empty one if needed.
func (st *Store) Get(key string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		s = &Session{}
		st.sessions[key] = s
	}
	return s
}
