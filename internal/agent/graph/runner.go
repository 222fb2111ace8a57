package graph

import (
	"context"
	"errors"
	"sync"

	"github.com/marketing-analytics-team/server/internal/agent/graph/clarify"
	"github.com/marketing-analytics-team/server/internal/agent/graph/conversations"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// ErrConversationBusy rejects a turn while another one for the same
// conversation is in flight.
var ErrConversationBusy = errors.New("conversation turn already in progress")

// Runner is the session-aware facade over the orchestration loop: load,
// run or resume, save. Turns are serialized per conversation id.
type Runner struct {
	orchestrator *Orchestrator
	messages     *conversations.MessagesManager

	mu     sync.Mutex
	active map[string]struct{}
}

func NewRunner(o *Orchestrator, mm *conversations.MessagesManager) *Runner {
	return &Runner{
		orchestrator: o,
		messages:     mm,
		active:       map[string]struct{}{},
	}
}

// Ask runs one user turn and returns the state it ended in.
func (r *Runner) Ask(ctx context.Context, conversationID, message string) (*model.ConversationState, error) {
	release, err := r.acquire(conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := r.messages.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	st, runErr := r.orchestrator.RunTurn(ctx, st, message)
	return r.finish(ctx, st, runErr)
}

// Resume answers the pending clarification and continues the turn.
func (r *Runner) Resume(ctx context.Context, conversationID, choice string) (*model.ConversationState, error) {
	release, err := r.acquire(conversationID)
	if err != nil {
		return nil, err
	}
	defer release()

	st, err := r.messages.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !clarify.Pending(st) {
		return st, clarify.ErrNoPendingClarification
	}
	st, runErr := r.orchestrator.Resume(ctx, st, choice)
	if errors.Is(runErr, clarify.ErrInvalidChoice) {
		return st, runErr
	}
	return r.finish(ctx, st, runErr)
}

// State returns the stored conversation without running anything.
func (r *Runner) State(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	return r.messages.Load(ctx, conversationID)
}

// Reset forgets a conversation.
func (r *Runner) Reset(ctx context.Context, conversationID string) error {
	release, err := r.acquire(conversationID)
	if err != nil {
		return err
	}
	defer release()
	return r.messages.Reset(ctx, conversationID)
}

// finish saves st whatever happened; an internal-consistency failure still
// leaves a consistent record behind.
func (r *Runner) finish(ctx context.Context, st *model.ConversationState, runErr error) (*model.ConversationState, error) {
	if runErr != nil && errx.IsInternal(runErr) {
		logx.Error().Err(runErr).Str("conversation_id", st.ConversationID).Msg("Turn ended on an internal consistency failure")
	}
	if err := r.messages.Save(ctx, st); err != nil {
		logx.Error().Err(err).Str("conversation_id", st.ConversationID).Msg("Failed to save conversation")
		return st, err
	}
	return st, runErr
}

func (r *Runner) acquire(conversationID string) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.active[conversationID]; busy {
		return nil, ErrConversationBusy
	}
	r.active[conversationID] = struct{}{}
	return func() {
		r.mu.Lock()
		delete(r.active, conversationID)
		r.mu.Unlock()
	}, nil
}
