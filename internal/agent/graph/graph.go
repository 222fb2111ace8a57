package graph

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"go.opentelemetry.io/otel/trace"

	"github.com/marketing-analytics-team/server/internal/agent/catalog"
	"github.com/marketing-analytics-team/server/internal/agent/graph/conversations"
	"github.com/marketing-analytics-team/server/internal/agent/graph/nodes"
	"github.com/marketing-analytics-team/server/internal/agent/graph/pipeline"
	"github.com/marketing-analytics-team/server/internal/agent/graph/supervisor"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	"github.com/marketing-analytics-team/server/internal/chart"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// Config holds everything needed to compose the runner end-to-end.
// ChatModel, when set, replaces the provider built from LLM.
type Config struct {
	LLM          model.LLMConfig
	ChatModel    einomodel.BaseChatModel
	Orchestrator model.OrchestratorConfig
	Query        model.QueryConfig
	Conversation model.ConversationConfig

	Sessions model.SessionRepository
	Store    model.QueryExecutor
	Schema   *model.Schema
	Catalog  *catalog.Catalog
	Segments catalog.Segments
	Renderer model.ChartRenderer
	Tracer   trace.Tracer
}

// BuildRunner validates cfg, builds the chat model, query pipeline, the five
// handlers and the orchestrator, and returns a Runner.
func BuildRunner(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session repository is nil")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("query executor is nil")
	}
	if cfg.Schema == nil {
		cfg.Schema = model.DefaultSchema()
	}
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.DefaultCatalog()
	}
	if len(cfg.Segments) == 0 {
		cfg.Segments = catalog.DefaultSegments()
	}
	if cfg.Renderer == nil {
		cfg.Renderer = chart.NewRenderer()
	}

	cm := cfg.ChatModel
	if cm == nil {
		var err error
		cm, err = llm.NewChatModel(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
	}
	client := llm.NewClient(cm, cfg.LLM.Model)

	mm := conversations.NewMessagesManager(cfg.Sessions, cfg.Conversation)

	qp, err := pipeline.New(ctx, pipeline.Config{
		LLM:          client,
		Store:        cfg.Store,
		Schema:       cfg.Schema,
		RowCap:       cfg.Query.RowCap,
		PreviewRows:  cfg.Query.PreviewRows,
		ContextTurns: mm.ContextTurns(),
	})
	if err != nil {
		return nil, err
	}

	handlers := []nodes.Handler{
		nodes.NewDataQueryHandler(qp),
		nodes.NewVisualizationHandler(client, cfg.Renderer),
		nodes.NewSegmentationHandler(client, cfg.Segments),
		nodes.NewProductHandler(client, cfg.Catalog),
		nodes.NewEmailHandler(client, cfg.Catalog, cfg.Segments),
	}

	var opts []Option
	if cfg.Tracer != nil {
		opts = append(opts, WithTracer(cfg.Tracer))
	}
	o, err := NewOrchestrator(supervisor.New(cfg.Orchestrator.MaxSteps), handlers, opts...)
	if err != nil {
		return nil, err
	}

	logx.Debug().
		Str("model", cfg.LLM.Model).
		Int("max_steps", o.supervisor.MaxSteps()).
		Int("row_cap", cfg.Query.RowCap).
		Msg("Runner built successfully")
	return NewRunner(o, mm), nil
}
