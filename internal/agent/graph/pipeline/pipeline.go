// Package pipeline runs the data-query handler's Plan, Detect, Validate and
// Execute stages as a compiled Eino graph. A suspended run records the stage
// that asked for clarification; the next run with an answer enters at
// Validate instead of Plan.
package pipeline

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/graph/conversations"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

const (
	NodePlan     = "plan"
	NodeDetect   = "detect"
	NodeResume   = "resume"
	NodeValidate = "validate"
	NodeExecute  = "execute"
)

const (
	DefaultRowCap      = 200
	DefaultPreviewRows = 15

	// every path visits at most four nodes
	maxRunSteps = 10
)

// Config wires the pipeline's collaborators.
type Config struct {
	LLM         *llm.Client
	Store       model.QueryExecutor
	Schema      *model.Schema
	RowCap      int
	PreviewRows int
	// ContextTurns bounds the history folded into the plan prompt.
	ContextTurns int
}

// Pipeline is safe for concurrent use; each Run owns its own run record.
type Pipeline struct {
	cfg      Config
	runnable compose.Runnable[*run, *run]
}

// run flows through every node. Nodes only read state.
type run struct {
	state   *model.ConversationState
	request string

	plan  string
	query string

	visited []model.Stage
	outcome model.Outcome
	// done ends the graph at the current node
	done bool
}

func (r *run) visit(s model.Stage) {
	r.visited = append(r.visited, s)
}

func (r *run) finish(kind model.MessageKind, content string, payload *model.Payload) {
	r.outcome.Message = model.Message{
		Role:    schema.Assistant,
		Kind:    kind,
		Handler: model.HandlerDataQuery,
		Content: content,
		Payload: payload,
	}
	r.done = true
}

func (r *run) addUsage(c *llm.Completion) {
	model.AddUsage(&r.outcome.Usage, &c.Usage)
	r.outcome.CostUSD += c.CostUSD
}

// New validates cfg and compiles the stage graph.
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("pipeline: llm client is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: query executor is nil")
	}
	if err := cfg.Schema.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	if cfg.RowCap <= 0 {
		cfg.RowCap = DefaultRowCap
	}
	if cfg.PreviewRows <= 0 {
		cfg.PreviewRows = DefaultPreviewRows
	}
	if cfg.ContextTurns <= 0 {
		cfg.ContextTurns = conversations.DefaultContextTurns
	}

	p := &Pipeline{cfg: cfg}
	runnable, err := p.build(ctx)
	if err != nil {
		return nil, err
	}
	p.runnable = runnable
	return p, nil
}

// Result is one pipeline run.
type Result struct {
	Outcome model.Outcome
	Visited []model.Stage
}

// Run executes the pipeline against a snapshot of st. A clarified checkpoint
// resumes at Validate; anything else starts at Plan.
func (p *Pipeline) Run(ctx context.Context, st *model.ConversationState) (*Result, error) {
	in := &run{state: st, request: st.LatestRequest()}
	out, err := p.runnable.Invoke(ctx, in)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", st.ConversationID).Msg("Query pipeline failed")
		return nil, fmt.Errorf("query pipeline: %w", err)
	}
	out.outcome.Stages = out.visited
	return &Result{Outcome: out.outcome, Visited: out.visited}, nil
}

func (p *Pipeline) build(ctx context.Context) (compose.Runnable[*run, *run], error) {
	g := compose.NewGraph[*run, *run]()

	nodes := []struct {
		key string
		fn  func(context.Context, *run) (*run, error)
	}{
		{NodePlan, p.planStage},
		{NodeDetect, p.detectStage},
		{NodeResume, p.resumeStage},
		{NodeValidate, p.validateStage},
		{NodeExecute, p.executeStage},
	}
	for _, n := range nodes {
		if err := g.AddLambdaNode(n.key, compose.InvokableLambda(n.fn)); err != nil {
			return nil, fmt.Errorf("add %s node: %w", n.key, err)
		}
	}

	if err := g.AddEdge(NodeExecute, compose.END); err != nil {
		return nil, fmt.Errorf("add execute edge: %w", err)
	}

	branches := []struct {
		from string
		cond func(context.Context, *run) (string, error)
		to   []string
	}{
		{compose.START, entryCondition, []string{NodePlan, NodeResume}},
		{NodePlan, continueTo(NodeDetect), []string{NodeDetect, compose.END}},
		{NodeDetect, continueTo(NodeValidate), []string{NodeValidate, compose.END}},
		{NodeResume, continueTo(NodeValidate), []string{NodeValidate, compose.END}},
		{NodeValidate, continueTo(NodeExecute), []string{NodeExecute, compose.END}},
	}
	for _, b := range branches {
		ends := make(map[string]bool, len(b.to))
		for _, t := range b.to {
			ends[t] = true
		}
		if err := g.AddBranch(b.from, compose.NewGraphBranch(b.cond, ends)); err != nil {
			logx.Error().Err(err).Str("from", b.from).Msg("Error adding pipeline branch")
			return nil, fmt.Errorf("error adding %s branch: %w", b.from, err)
		}
	}

	runnable, err := g.Compile(ctx, compose.WithMaxRunSteps(maxRunSteps), compose.WithGraphName("query_pipeline"))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling query pipeline")
		return nil, fmt.Errorf("error compiling query pipeline: %w", err)
	}
	return runnable, nil
}

// entryCondition picks Resume when a clarification answer is waiting.
func entryCondition(_ context.Context, r *run) (string, error) {
	if r.state.Checkpoint != nil && r.state.UserClarification != "" {
		return NodeResume, nil
	}
	return NodePlan, nil
}

func continueTo(next string) func(context.Context, *run) (string, error) {
	return func(_ context.Context, r *run) (string, error) {
		if r.done {
			return compose.END, nil
		}
		return next, nil
	}
}
