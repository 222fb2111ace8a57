package supervisor

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

func turn(msg string) *model.ConversationState {
	st := model.NewConversationState("c1")
	st.BeginTurn(msg, time.Unix(1700000000, 0))
	return st
}

// step simulates the loop's bookkeeping for one dispatched handler.
func step(st *model.ConversationState, d Decision) {
	st.StepCount++
	st.MarkCompleted(d.Next)
}

func TestDecideScenarioSingleDataQuery(t *testing.T) {
	s := New(8)
	st := turn("Show top 20 Champions")

	d := s.Decide(st)
	assert.Equal(t, model.HandlerDataQuery, d.Next)
	step(st, d)

	d = s.Decide(st)
	assert.True(t, d.Done())
	assert.Equal(t, ReasonComplete, d.Reason)
}

func TestDecideScenarioDataThenEmail(t *testing.T) {
	s := New(8)
	st := turn("Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")

	var route []model.HandlerID
	for {
		d := s.Decide(st)
		if d.Done() {
			assert.Equal(t, ReasonComplete, d.Reason)
			break
		}
		route = append(route, d.Next)
		step(st, d)
	}
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery, model.HandlerEmail}, route)
	assert.Equal(t, 2, st.StepCount)
}

func TestDecideFallsBackToDataQuery(t *testing.T) {
	s := New(8)
	st := turn("Hello there, what's new?")

	d := s.Decide(st)
	assert.Equal(t, model.HandlerDataQuery, d.Next)
	step(st, d)
	assert.Equal(t, ReasonComplete, s.Decide(st).Reason)
}

func TestDecideRoutes(t *testing.T) {
	tests := []struct {
		request string
		want    []model.HandlerID
	}{
		{"Show me a pie chart of segments", []model.HandlerID{model.HandlerDataQuery, model.HandlerVisualization}},
		{"Recommend a re-engagement strategy for At Risk leads", []model.HandlerID{model.HandlerDataQuery, model.HandlerSegmentation}},
		{"What is Learning Labs Pro?", []model.HandlerID{model.HandlerProduct}},
		{"Draft a newsletter", []model.HandlerID{model.HandlerEmail}},
		{"What strategy fits our segments?", []model.HandlerID{model.HandlerSegmentation}},
	}
	for _, tt := range tests {
		t.Run(tt.request, func(t *testing.T) {
			s := New(8)
			st := turn(tt.request)
			var route []model.HandlerID
			for d := s.Decide(st); !d.Done(); d = s.Decide(st) {
				route = append(route, d.Next)
				step(st, d)
			}
			assert.Equal(t, tt.want, route)
			assert.Equal(t, tt.want, s.Implied(tt.request))
		})
	}
}

func TestDecideWordBoundaries(t *testing.T) {
	s := New(8)
	// "target" must not trigger "get", "stop" must not trigger "top"
	assert.Empty(t, s.Implied("target the stop"))
}

func TestDecideAwaitingClarification(t *testing.T) {
	s := New(8)
	st := turn("Show top 20 Champions")
	st.NeedsClarification = true
	st.ClarificationOptions = []string{"Cancel"}

	d := s.Decide(st)
	assert.True(t, d.Done())
	assert.Equal(t, ReasonAwaitingClarification, d.Reason)
}

func TestDecideResumesPipelineAfterClarification(t *testing.T) {
	s := New(8)
	st := turn("Who are the champions?")
	st.Checkpoint = &model.Checkpoint{RequestedBy: model.StageDetect}
	st.UserClarification = "Champions customer segment"
	st.StepCount = 1

	assert.Equal(t, model.HandlerDataQuery, s.Decide(st).Next)
}

func TestDecideStepCeiling(t *testing.T) {
	s := New(3)
	st := turn("Show top 20 Champions")
	st.StepCount = 3

	d := s.Decide(st)
	assert.True(t, d.Done())
	assert.Equal(t, ReasonStepCeiling, d.Reason)
}

func TestDecideCompleteWinsAtCeiling(t *testing.T) {
	s := New(2)
	st := turn("Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")
	st.MarkCompleted(model.HandlerDataQuery)
	st.MarkCompleted(model.HandlerEmail)
	st.StepCount = 2

	d := s.Decide(st)
	assert.True(t, d.Done())
	assert.Equal(t, ReasonComplete, d.Reason)

	// one implied handler still left: the ceiling stops the turn
	st.CompletedHandlers = []model.HandlerID{model.HandlerDataQuery}
	assert.Equal(t, ReasonStepCeiling, s.Decide(st).Reason)
}

func TestDecideIsPure(t *testing.T) {
	s := New(8)
	st := turn("Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")
	st.MarkCompleted(model.HandlerDataQuery)
	st.StepCount = 1
	before := st.Clone()

	first := s.Decide(st)
	second := s.Decide(st)

	assert.Equal(t, first, second)
	assert.Empty(t, cmp.Diff(before, st))
}

func TestNormalizeMaxSteps(t *testing.T) {
	assert.Equal(t, DefaultMaxSteps, NormalizeMaxSteps(0))
	assert.Equal(t, 5, New(5).MaxSteps())
	assert.Equal(t, DefaultMaxSteps, New(-1).MaxSteps())
}
