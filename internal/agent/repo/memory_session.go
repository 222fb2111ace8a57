package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// MemorySessionRepository keeps sessions in process. Used when no Redis URL
// is configured and in tests.
type MemorySessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*model.ConversationState
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: map[string]*model.ConversationState{}}
}

func (r *MemorySessionRepository) Load(_ context.Context, conversationID string) (*model.ConversationState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.sessions[conversationID]; ok {
		return st.Clone(), nil
	}
	return model.NewConversationState(conversationID), nil
}

func (r *MemorySessionRepository) Save(_ context.Context, st *model.ConversationState) error {
	if st == nil || st.ConversationID == "" {
		return fmt.Errorf("save session: missing conversation id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[st.ConversationID] = st.Clone()
	return nil
}

func (r *MemorySessionRepository) Clear(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conversationID)
	return nil
}

var _ model.SessionRepository = (*MemorySessionRepository)(nil)
