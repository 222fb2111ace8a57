package model

import (
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginTurnResetsPerTurnFields(t *testing.T) {
	st := NewConversationState("c1")
	st.RetrievedData = &ResultSet{Columns: []ResultColumn{{Name: "Segment"}}, Rows: [][]any{{"Champions"}}}
	st.CompletedHandlers = []HandlerID{HandlerDataQuery}
	st.StepCount = 3
	st.NeedsClarification = true
	st.ClarificationOptions = []string{"Cancel"}
	st.Checkpoint = &Checkpoint{RequestedBy: StageDetect}
	st.EmailDraft = "old"

	st.BeginTurn("Show top 20 Champions", time.Unix(0, 0))

	assert.Empty(t, st.CompletedHandlers)
	assert.Zero(t, st.StepCount)
	assert.False(t, st.NeedsClarification)
	assert.Empty(t, st.ClarificationOptions)
	assert.Nil(t, st.Checkpoint)
	assert.Empty(t, st.EmailDraft)
	assert.Equal(t, TurnRunning, st.Status)
	require.NotNil(t, st.RetrievedData)
	assert.Equal(t, 1, st.RetrievedData.Len())
	require.Len(t, st.History, 1)
	assert.Equal(t, schema.User, st.History[0].Role)
	assert.Equal(t, KindRequest, st.History[0].Kind)
}

func TestLatestRequestSkipsClarification(t *testing.T) {
	st := NewConversationState("c1")
	st.BeginTurn("first", time.Now())
	st.BeginTurn("Show top 20 Champions", time.Now())
	st.AppendMessage(Message{Role: schema.Assistant, Handler: HandlerDataQuery, Content: "which one?"})
	st.AppendMessage(Message{Role: schema.User, Kind: KindClarification, Content: "Champions customer segment"})

	assert.Equal(t, "Show top 20 Champions", st.LatestRequest())
}

func TestMarkCompletedIsAtMostOnce(t *testing.T) {
	st := NewConversationState("c1")
	assert.True(t, st.MarkCompleted(HandlerDataQuery))
	assert.False(t, st.MarkCompleted(HandlerDataQuery))
	assert.True(t, st.MarkCompleted(HandlerEmail))
	assert.Equal(t, []HandlerID{HandlerDataQuery, HandlerEmail}, st.CompletedHandlers)
}

func TestCloneIsDeep(t *testing.T) {
	st := NewConversationState("c1")
	st.BeginTurn("chart please", time.Now())
	st.RetrievedData = &ResultSet{Columns: []ResultColumn{{Name: "Segment"}}, Rows: [][]any{{"Champions"}}}
	st.ClarificationOptions = []string{"a", "b"}
	st.Checkpoint = &Checkpoint{RequestedBy: StageValidate, Plan: "p"}
	st.AppendMessage(Message{
		Role:    schema.Assistant,
		Handler: HandlerVisualization,
		Payload: &Payload{Chart: &ChartArtifact{Labels: []string{"x"}, Values: []float64{1}}},
	})

	cp := st.Clone()
	cp.RetrievedData.Rows[0][0] = "At Risk"
	cp.ClarificationOptions[0] = "z"
	cp.Checkpoint.Plan = "changed"
	cp.History[1].Payload.Chart.Labels[0] = "y"
	cp.History = append(cp.History, Message{Content: "extra"})
	cp.MarkCompleted(HandlerVisualization)

	assert.Equal(t, "Champions", st.RetrievedData.Rows[0][0])
	assert.Equal(t, "a", st.ClarificationOptions[0])
	assert.Equal(t, "p", st.Checkpoint.Plan)
	assert.Equal(t, "x", st.History[1].Payload.Chart.Labels[0])
	assert.Len(t, st.History, 2)
	assert.Empty(t, st.CompletedHandlers)
}

func TestMessageTagged(t *testing.T) {
	m := Message{Role: schema.Assistant, Handler: HandlerEmail, Content: "Subject: hi"}
	assert.Equal(t, "[Email Writer]\nSubject: hi", m.Tagged())

	u := Message{Role: schema.User, Content: "hello"}
	assert.Equal(t, "hello", u.Tagged())
}
