package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketing-analytics-team/server/internal/agent/graph/clarify"
	"github.com/marketing-analytics-team/server/internal/agent/graph/pipeline"
	"github.com/marketing-analytics-team/server/internal/agent/llm/llmtest"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	"github.com/marketing-analytics-team/server/internal/agent/repo"
	"github.com/marketing-analytics-team/server/pkg/sqlite"
)

const (
	championsPlan = "Select customer_id, Segment and engagement_score where Segment is Champions, order by engagement_score, limit 20."
	championsSQL  = "SELECT customer_id, Segment, engagement_score FROM leadscored WHERE Segment = 'Champions' ORDER BY engagement_score DESC LIMIT 20;"
	engagedPlan   = "Select customer_id and Segment where Segment is Highly Engaged, order by engagement_score, limit 5."
	engagedSQL    = "SELECT customer_id, Segment, engagement_score FROM leadscored WHERE Segment = 'Highly Engaged' ORDER BY engagement_score DESC LIMIT 5;"
	webPlan       = "Based on my search, according to Wikipedia the champions are listed online."
)

// countingStore records every executed query.
type countingStore struct {
	inner model.QueryExecutor
	mu    sync.Mutex
	calls int
}

func (s *countingStore) Execute(ctx context.Context, query string, rowCap int) (*model.ResultSet, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.inner.Execute(ctx, query, rowCap)
}

func (s *countingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func seedLeads(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadscored.db")
	cfg := sqlite.Config{Path: path, BusyTimeout: 1000}
	db, err := cfg.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE leadscored (
		customer_id INTEGER PRIMARY KEY,
		Segment TEXT,
		engagement_score REAL,
		Converted INTEGER,
		Lead_Source TEXT,
		Country TEXT
	)`)
	require.NoError(t, err)

	id := 1
	insert := func(segment string, n int) {
		for i := range n {
			_, err := db.Exec(`INSERT INTO leadscored VALUES (?, ?, ?, ?, ?, ?)`,
				id, segment, float64(i)/100, id%2, "Google", fmt.Sprintf("Country %d", id%3))
			require.NoError(t, err)
			id++
		}
	}
	insert("Champions", 25)
	insert("Highly Engaged", 8)
	insert("At Risk", 4)
	return path
}

type harness struct {
	runner *Runner
	model  *llmtest.ScriptedModel
	store  *countingStore
}

func newHarness(t *testing.T, maxSteps int, rules ...llmtest.Rule) *harness {
	t.Helper()
	cfg := sqlite.Config{Path: seedLeads(t), ReadOnly: true, BusyTimeout: 1000}
	db, err := cfg.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := &countingStore{inner: repo.NewSQLiteLeadsStore(db)}
	cm := llmtest.New(rules...)
	r, err := BuildRunner(context.Background(), Config{
		LLM:          model.LLMConfig{Model: "gemini-2.5-flash"},
		ChatModel:    cm,
		Orchestrator: model.OrchestratorConfig{MaxSteps: maxSteps},
		Query:        model.QueryConfig{RowCap: 200, PreviewRows: 5},
		Conversation: model.ConversationConfig{ContextTurns: 6},
		Sessions:     repo.NewMemorySessionRepository(),
		Store:        store,
	})
	require.NoError(t, err)
	return &harness{runner: r, model: cm, store: store}
}

func assertNoDuplicates(t *testing.T, st *model.ConversationState) {
	t.Helper()
	seen := map[model.HandlerID]bool{}
	for _, h := range st.CompletedHandlers {
		assert.False(t, seen[h], "handler %s completed twice", h)
		seen[h] = true
	}
}

func assertClarificationInvariant(t *testing.T, st *model.ConversationState) {
	t.Helper()
	assert.Equal(t, st.NeedsClarification, len(st.ClarificationOptions) > 0)
}

func TestScenarioTopChampions(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Reply(llmtest.MatchPlan, championsPlan),
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)

	st, err := h.runner.Ask(context.Background(), "c1", "Show top 20 Champions")
	require.NoError(t, err)

	assert.Equal(t, model.TurnCompleted, st.Status)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, st.CompletedHandlers)
	assert.Equal(t, 1, st.StepCount)
	require.NotNil(t, st.RetrievedData)
	assert.LessOrEqual(t, st.RetrievedData.Len(), 20)
	assert.Equal(t, 20, st.RetrievedData.Len())
	col := st.RetrievedData.ColumnIndex("Segment")
	for _, row := range st.RetrievedData.Rows {
		assert.Equal(t, "Champions", row[col])
	}
	assert.Equal(t, championsSQL, st.SQLQuery)
	assert.Empty(t, st.PendingHandler)
	assertClarificationInvariant(t, st)

	require.Len(t, st.History, 2)
	assert.Equal(t, model.HandlerDataQuery, st.History[1].Handler)
	assert.Contains(t, st.History[1].Tagged(), "[SQL Agent]")
	assert.Greater(t, st.UsageCostUSD, 0.0)
}

func TestScenarioDataThenEmail(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Reply(llmtest.MatchPlan, engagedPlan),
		llmtest.Reply(llmtest.MatchSQL, engagedSQL),
		llmtest.Reply(llmtest.MatchEmail, "Subject: Level up with Learning Labs Pro"),
	)

	st, err := h.runner.Ask(context.Background(), "c1",
		"Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")
	require.NoError(t, err)

	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery, model.HandlerEmail}, st.CompletedHandlers)
	assert.Equal(t, 2, st.StepCount)
	assert.Equal(t, model.TurnCompleted, st.Status)
	require.NotNil(t, st.RetrievedData)
	assert.Equal(t, 5, st.RetrievedData.Len())
	assert.Equal(t, "Subject: Level up with Learning Labs Pro", st.EmailDraft)
	assert.Contains(t, h.model.LastInput(llmtest.MatchEmail)[0].Content, "5 customers in the Highly Engaged segment")
	assert.Equal(t, 1, h.model.Calls(llmtest.MatchPlan))
	assert.Equal(t, 1, h.store.Calls())
	assertNoDuplicates(t, st)

	require.Len(t, st.History, 3)
	assert.Equal(t, model.HandlerEmail, st.History[2].Handler)
}

func TestScenarioDetectSuspendsAndResumes(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Rule{Match: llmtest.MatchPlan, Replies: []string{championsPlan, webPlan}},
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)
	ctx := context.Background()

	first, err := h.runner.Ask(ctx, "c1", "Show top 20 Champions")
	require.NoError(t, err)
	before := first.RetrievedData.Clone()
	require.Equal(t, 1, h.store.Calls())

	st, err := h.runner.Ask(ctx, "c1", "Who are the champions?")
	require.NoError(t, err)

	assert.Equal(t, model.TurnSuspended, st.Status)
	assert.True(t, st.NeedsClarification)
	assert.NotEmpty(t, st.ClarificationOptions)
	assertClarificationInvariant(t, st)
	require.NotNil(t, st.Checkpoint)
	assert.Equal(t, model.StageDetect, st.Checkpoint.RequestedBy)
	assert.Equal(t, 1, h.store.Calls(), "execute is not reached")
	assert.Equal(t, before, st.RetrievedData, "retrieved data unchanged")
	assert.Empty(t, st.CompletedHandlers)
	assert.Equal(t, model.HandlerDataQuery, st.PendingHandler)
	last := st.History[len(st.History)-1]
	assert.Equal(t, model.KindClarification, last.Kind)
	assert.Equal(t, st.ClarificationOptions, last.Payload.Options)

	// the persisted state survives a reload
	stored, err := h.runner.State(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, clarify.Pending(stored))

	plans := h.model.Calls(llmtest.MatchPlan)
	resumed, err := h.runner.Resume(ctx, "c1", pipeline.OptionTopCustomers)
	require.NoError(t, err)

	assert.Equal(t, plans, h.model.Calls(llmtest.MatchPlan), "resume does not re-plan")
	assert.Equal(t, 2, h.store.Calls(), "execute runs exactly once after resume")
	assert.Equal(t, model.TurnCompleted, resumed.Status)
	assert.False(t, resumed.NeedsClarification)
	assert.Empty(t, resumed.ClarificationOptions)
	assert.Empty(t, resumed.UserClarification)
	assert.Nil(t, resumed.Checkpoint)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, resumed.CompletedHandlers)
	assert.Equal(t, 2, resumed.StepCount)
	assert.Contains(t, resumed.SQLPlan, "User clarified: List top customers")
	assertClarificationInvariant(t, resumed)

	var clarification *model.Message
	for i := range resumed.History {
		if resumed.History[i].Kind == model.KindClarification && resumed.History[i].Role == "user" {
			clarification = &resumed.History[i]
		}
	}
	require.NotNil(t, clarification)
	assert.Equal(t, pipeline.OptionTopCustomers, clarification.Content)
	assert.Equal(t, "Who are the champions?", resumed.LatestRequest())
}

func TestScenarioDefaultsToData(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Reply(llmtest.MatchPlan, championsPlan),
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)

	st, err := h.runner.Ask(context.Background(), "c1", "Champions please")
	require.NoError(t, err)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, st.CompletedHandlers)
	assert.Equal(t, 1, h.store.Calls())
}

func TestStepCeilingTerminatesTurn(t *testing.T) {
	h := newHarness(t, 1,
		llmtest.Reply(llmtest.MatchPlan, engagedPlan),
		llmtest.Reply(llmtest.MatchSQL, engagedSQL),
		llmtest.Reply(llmtest.MatchEmail, "Subject: hi"),
	)

	st, err := h.runner.Ask(context.Background(), "c1",
		"Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")
	require.NoError(t, err)

	assert.Equal(t, model.TurnTerminated, st.Status)
	assert.Equal(t, 1, st.StepCount)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery}, st.CompletedHandlers)
	assert.Zero(t, h.model.Calls(llmtest.MatchEmail))
	last := st.History[len(st.History)-1]
	assert.Equal(t, stepCeilingMessage, last.Content)
	assert.False(t, st.NeedsClarification)

	// the next turn starts clean
	next, err := h.runner.Ask(context.Background(), "c1", "Show top 20 Champions")
	require.NoError(t, err)
	assert.Equal(t, model.TurnCompleted, next.Status)
	assert.Equal(t, 1, next.StepCount)
}

func TestTurnUsingEveryStepCompletes(t *testing.T) {
	h := newHarness(t, 1,
		llmtest.Reply(llmtest.MatchPlan, championsPlan),
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)
	st, err := h.runner.Ask(context.Background(), "c1", "Show top 20 Champions")
	require.NoError(t, err)
	assert.Equal(t, model.TurnCompleted, st.Status)
	assert.Equal(t, 1, st.StepCount)
	assert.NotEqual(t, stepCeilingMessage, st.History[len(st.History)-1].Content)

	h = newHarness(t, 2,
		llmtest.Reply(llmtest.MatchPlan, engagedPlan),
		llmtest.Reply(llmtest.MatchSQL, engagedSQL),
		llmtest.Reply(llmtest.MatchEmail, "Subject: hi"),
	)
	st, err = h.runner.Ask(context.Background(), "c1",
		"Find top 5 Highly Engaged customers and write them an email about Learning Labs Pro")
	require.NoError(t, err)
	assert.Equal(t, model.TurnCompleted, st.Status)
	assert.Equal(t, []model.HandlerID{model.HandlerDataQuery, model.HandlerEmail}, st.CompletedHandlers)
	assert.Equal(t, "Subject: hi", st.History[len(st.History)-1].Content)
}

func TestNewTurnAbandonsClarification(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Rule{Match: llmtest.MatchPlan, Replies: []string{webPlan, championsPlan}},
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)
	ctx := context.Background()

	st, err := h.runner.Ask(ctx, "c1", "Who are the champions?")
	require.NoError(t, err)
	require.True(t, st.NeedsClarification)

	st, err = h.runner.Ask(ctx, "c1", "Show top 20 Champions")
	require.NoError(t, err)
	assert.False(t, st.NeedsClarification)
	assert.Nil(t, st.Checkpoint)
	assert.Equal(t, model.TurnCompleted, st.Status)

	_, err = h.runner.Resume(ctx, "c1", "1")
	assert.ErrorIs(t, err, clarify.ErrNoPendingClarification)
}

func TestResumeInvalidChoiceKeepsSuspension(t *testing.T) {
	h := newHarness(t, 8, llmtest.Reply(llmtest.MatchPlan, webPlan))
	ctx := context.Background()

	_, err := h.runner.Ask(ctx, "c1", "Who are the champions?")
	require.NoError(t, err)

	_, err = h.runner.Resume(ctx, "c1", "9")
	assert.ErrorIs(t, err, clarify.ErrInvalidChoice)

	stored, err := h.runner.State(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, clarify.Pending(stored))
}

func TestResumeCancel(t *testing.T) {
	h := newHarness(t, 8, llmtest.Reply(llmtest.MatchPlan, webPlan))
	ctx := context.Background()

	_, err := h.runner.Ask(ctx, "c1", "Who are the champions?")
	require.NoError(t, err)

	st, err := h.runner.Resume(ctx, "c1", pipeline.OptionRephrase)
	require.NoError(t, err)
	assert.Equal(t, model.TurnCompleted, st.Status)
	assert.Contains(t, st.History[len(st.History)-1].Content, "Please rephrase")
	assert.Zero(t, h.store.Calls())
	assert.Nil(t, st.RetrievedData)
}

func TestRunnerSerializesTurns(t *testing.T) {
	h := newHarness(t, 8)
	release, err := h.runner.acquire("c1")
	require.NoError(t, err)

	_, err = h.runner.Ask(context.Background(), "c1", "Show top 20 Champions")
	assert.ErrorIs(t, err, ErrConversationBusy)
	_, err = h.runner.Resume(context.Background(), "c1", "1")
	assert.ErrorIs(t, err, ErrConversationBusy)

	release()
	_, err = h.runner.acquire("c1")
	assert.NoError(t, err)
}

func TestRunnerReset(t *testing.T) {
	h := newHarness(t, 8,
		llmtest.Reply(llmtest.MatchPlan, championsPlan),
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)
	ctx := context.Background()
	_, err := h.runner.Ask(ctx, "c1", "Show top 20 Champions")
	require.NoError(t, err)

	require.NoError(t, h.runner.Reset(ctx, "c1"))
	st, err := h.runner.State(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, st.History)
	assert.Nil(t, st.RetrievedData)
}

func TestBuildRunnerValidates(t *testing.T) {
	_, err := BuildRunner(context.Background(), Config{})
	assert.ErrorContains(t, err, "session repository")

	_, err = BuildRunner(context.Background(), Config{Sessions: repo.NewMemorySessionRepository()})
	assert.ErrorContains(t, err, "query executor")
}

func TestNow(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := newHarness(t, 8,
		llmtest.Reply(llmtest.MatchPlan, championsPlan),
		llmtest.Reply(llmtest.MatchSQL, championsSQL),
	)
	WithClock(func() time.Time { return fixed })(h.runner.orchestrator)

	st, err := h.runner.Ask(context.Background(), "c1", "Show top 20 Champions")
	require.NoError(t, err)
	for _, m := range st.History {
		assert.Equal(t, fixed, m.CreatedAt)
	}
}
