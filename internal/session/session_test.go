package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-agent/internal/domain"
)

func TestTruncate(t *testing.T) {
	s := &Session{}
	for i := 0; i < 11; i++ {
		s.Append(domain.RoleUser, fmt.Sprintf("q%d", i))
		s.Append(domain.RoleAssistant, fmt.Sprintf("a%d", i))
	}
	s.Truncate(5)

	turns := s.Turns()
	require.Len(t, turns, 10)
	assert.Equal(t, domain.Turn{Role: domain.RoleUser, Text: "q6"}, turns[0])
	assert.Equal(t, domain.Turn{Role: domain.RoleAssistant, Text: "a10"}, turns[9])
}

func TestTruncate_ShortHistoryUntouched(t *testing.T) {
	s := &Session{}
	s.Append(domain.RoleUser, "hi")
	s.Append(domain.RoleAssistant, "hello")
	s.Truncate(5)
	assert.Equal(t, 2, s.Len())
}

func TestTurns_ReturnsCopy(t *testing.T) {
	s := &Session{}
	s.Append(domain.RoleUser, "hi")
	turns := s.Turns()
	turns[0].Text = "changed"
	assert.Equal(t, "hi", s.Turns()[0].Text)
}

func TestCountUserTurn(t *testing.T) {
	s := &Session{}
	assert.Equal(t, 1, s.CountUserTurn())
	assert.Equal(t, 2, s.CountUserTurn())
	s.Truncate(0)
	assert.Equal(t, 2, s.UserTurns())
}

func TestStore_IsolatesKeys(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Get("a").Append(domain.RoleUser, "x")
		}()
	}
	wg.Wait()

	assert.Same(t, st.Get("a"), st.Get("a"))
	assert.Equal(t, 8, st.Get("a").Len())
	assert.Equal(t, 0, st.Get("b").Len())
}

func TestTruncate_AfterEleventhTurn(t *testing.T) {
	s := &Session{}
	for i := 1; i <= 11; i++ {
		s.Append(domain.RoleUser, fmt.Sprintf("t%d", i))
	}
	s.Truncate(5)

	turns := s.Turns()
	require.Len(t, turns, 10)
	assert.Equal(t, "t2", turns[0].Text)
	assert.Equal(t, "t11", turns[9].Text)
}
