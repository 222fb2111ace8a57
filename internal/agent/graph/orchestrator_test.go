package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketing-analytics-team/server/internal/agent/graph/nodes"
	"github.com/marketing-analytics-team/server/internal/agent/graph/supervisor"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
)

type stubHandler struct {
	id    model.HandlerID
	calls int
	fn    func(st *model.ConversationState) (model.Outcome, error)
}

func (h *stubHandler) ID() model.HandlerID { return h.id }

func (h *stubHandler) Handle(_ context.Context, st *model.ConversationState) (model.Outcome, error) {
	h.calls++
	if h.fn != nil {
		return h.fn(st)
	}
	return model.Outcome{Message: model.Message{Kind: model.KindResult, Content: string(h.id) + " done"}}, nil
}

func stubs() map[model.HandlerID]*stubHandler {
	out := map[model.HandlerID]*stubHandler{}
	for _, id := range model.HandlerPriority {
		out[id] = &stubHandler{id: id}
	}
	return out
}

func newStubOrchestrator(t *testing.T, maxSteps int, hs map[model.HandlerID]*stubHandler) *Orchestrator {
	t.Helper()
	list := make([]nodes.Handler, 0, len(hs))
	for _, id := range model.HandlerPriority {
		list = append(list, hs[id])
	}
	o, err := NewOrchestrator(supervisor.New(maxSteps), list)
	require.NoError(t, err)
	return o
}

func TestNewOrchestratorRequiresEveryHandler(t *testing.T) {
	hs := stubs()
	_, err := NewOrchestrator(supervisor.New(8), []nodes.Handler{hs[model.HandlerDataQuery]})
	assert.ErrorContains(t, err, "missing handler")

	_, err = NewOrchestrator(supervisor.New(8), []nodes.Handler{hs[model.HandlerDataQuery], hs[model.HandlerDataQuery]})
	assert.ErrorContains(t, err, "duplicate handler")

	list := []nodes.Handler{&stubHandler{id: "weather"}}
	for _, id := range model.HandlerPriority {
		list = append(list, hs[id])
	}
	_, err = NewOrchestrator(supervisor.New(8), list)
	assert.ErrorContains(t, err, "unknown handler")

	_, err = NewOrchestrator(nil, nil)
	assert.Error(t, err)
}

func TestRunTurnDispatchesInPriorityOrder(t *testing.T) {
	hs := stubs()
	o := newStubOrchestrator(t, 8, hs)

	st := model.NewConversationState("c1")
	st, err := o.RunTurn(context.Background(), st,
		"Show Champions with a pie chart and recommend a strategy, then write an email")
	require.NoError(t, err)

	assert.Equal(t, []model.HandlerID{
		model.HandlerDataQuery,
		model.HandlerVisualization,
		model.HandlerSegmentation,
		model.HandlerEmail,
	}, st.CompletedHandlers)
	assert.Equal(t, 4, st.StepCount)
	assert.Equal(t, model.TurnCompleted, st.Status)
	for _, h := range hs {
		assert.LessOrEqual(t, h.calls, 1, "%s dispatched more than once", h.id)
	}
	require.Len(t, st.History, 5)
	for i, id := range st.CompletedHandlers {
		assert.Equal(t, id, st.History[i+1].Handler)
	}
}

func TestHandlerErrorBecomesMessage(t *testing.T) {
	hs := stubs()
	hs[model.HandlerDataQuery].fn = func(*model.ConversationState) (model.Outcome, error) {
		return model.Outcome{}, errors.New("boom")
	}
	o := newStubOrchestrator(t, 8, hs)

	st, err := o.RunTurn(context.Background(), model.NewConversationState("c1"), "Show leads")
	require.NoError(t, err)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, st.CompletedHandlers)
	last := st.History[len(st.History)-1]
	assert.Equal(t, model.KindError, last.Kind)
	assert.Equal(t, model.TurnCompleted, st.Status)
}

func TestHandlersSeeSnapshot(t *testing.T) {
	hs := stubs()
	hs[model.HandlerDataQuery].fn = func(st *model.ConversationState) (model.Outcome, error) {
		st.History = nil
		st.CompletedHandlers = append(st.CompletedHandlers, model.HandlerEmail)
		return model.Outcome{Message: model.Message{Content: "ok"}}, nil
	}
	o := newStubOrchestrator(t, 8, hs)

	st, err := o.RunTurn(context.Background(), model.NewConversationState("c1"), "Show leads")
	require.NoError(t, err)
	assert.Len(t, st.History, 2)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, st.CompletedHandlers)
}

func TestSuspendWhilePendingIsInternal(t *testing.T) {
	hs := stubs()
	hs[model.HandlerDataQuery].fn = func(*model.ConversationState) (model.Outcome, error) {
		return model.Outcome{
			Message: model.Message{Kind: model.KindClarification, Content: "again?"},
			Suspend: &model.SuspendRequest{Question: "again?", Options: []string{"a"}},
		}, nil
	}
	o := newStubOrchestrator(t, 8, hs)

	// a corrupted record: clarified and still flagged as waiting
	st := model.NewConversationState("c1")
	st.BeginTurn("Show leads", o.now())
	st.NeedsClarification = true
	st.ClarificationOptions = []string{"x"}
	st.UserClarification = "x"
	st.Checkpoint = &model.Checkpoint{RequestedBy: model.StageDetect}

	err := o.loop(context.Background(), st)
	require.Error(t, err)
	assert.True(t, errx.IsInternal(err))
	assert.Equal(t, model.TurnCompleted, st.Status)
}

func TestSuspendLeavesHandlerPending(t *testing.T) {
	hs := stubs()
	hs[model.HandlerDataQuery].fn = func(*model.ConversationState) (model.Outcome, error) {
		return model.Outcome{
			Message: model.Message{Kind: model.KindClarification, Content: "which?"},
			Suspend: &model.SuspendRequest{
				Question:   "which?",
				Options:    []string{"a", "b"},
				Checkpoint: model.Checkpoint{RequestedBy: model.StageValidate, Plan: "p"},
			},
		}, nil
	}
	o := newStubOrchestrator(t, 8, hs)

	st, err := o.RunTurn(context.Background(), model.NewConversationState("c1"), "Show leads and write an email")
	require.NoError(t, err)
	assert.Equal(t, model.TurnSuspended, st.Status)
	assert.Empty(t, st.CompletedHandlers)
	assert.Equal(t, model.HandlerDataQuery, st.PendingHandler)
	assert.Zero(t, hs[model.HandlerEmail].calls, "nothing runs after a suspension")

	// resuming re-enters the pipeline that asked, then the remaining handlers
	hs[model.HandlerDataQuery].fn = func(*model.ConversationState) (model.Outcome, error) {
		return model.Outcome{Message: model.Message{Content: "rows"}, ConsumedClarification: true}, nil
	}
	st, err = o.Resume(context.Background(), st, "2")
	require.NoError(t, err)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery, model.HandlerEmail}, st.CompletedHandlers)
	assert.Equal(t, 3, st.StepCount)
	assert.Nil(t, st.Checkpoint)
	assert.Empty(t, st.UserClarification)
	assert.Equal(t, model.TurnCompleted, st.Status)
}

func TestDecideIsStableOnCompletedTurn(t *testing.T) {
	hs := stubs()
	o := newStubOrchestrator(t, 8, hs)

	st, err := o.RunTurn(context.Background(), model.NewConversationState("c1"), "Show leads")
	require.NoError(t, err)

	before := st.Clone()
	d := o.supervisor.Decide(st)
	assert.True(t, d.Done())
	assert.Equal(t, supervisor.ReasonComplete, d.Reason)
	assert.Empty(t, cmp.Diff(before, st))
}
