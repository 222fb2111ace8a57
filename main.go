package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel"

	"github.com/marketing-analytics-team/server/internal/agent/catalog"
	"github.com/marketing-analytics-team/server/internal/agent/graph"
	"github.com/marketing-analytics-team/server/internal/agent/graph/observers"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	"github.com/marketing-analytics-team/server/internal/agent/repo"
	"github.com/marketing-analytics-team/server/internal/core"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
	pkgredis "github.com/marketing-analytics-team/server/pkg/redis"
	"github.com/marketing-analytics-team/server/pkg/sqlite"
)

// AppConfig defines all configurable parameters of the CLI, sourced from
// environment variables (loaded from .env for local runs).
type AppConfig struct {
	Env      core.Environment `envconfig:"APP_ENV" default:"development"`
	LogLevel string           `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	Leads  sqlite.Config
	Tracer string `envconfig:"TRACER_NAME" default:"marketeam"`

	// Agent configs
	LLM          model.LLMConfig
	Orchestrator model.OrchestratorConfig
	Query        model.QueryConfig
	Catalog      model.CatalogConfig
	Conversation model.ConversationConfig
}

func loadConfig() (*AppConfig, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	return &cfg, nil
}

// app bundles the runner with the resources it holds open.
type app struct {
	cfg    *AppConfig
	runner *graph.Runner
	schema *model.Schema
	close  func()
}

func newApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	logx.Init(logx.LoggerOpts{Environment: cfg.Env, Level: cfg.LogLevel})
	callbacks.AppendGlobalHandlers(observers.NewAllCallbacks())

	schema := model.DefaultSchema()
	if cfg.Query.SchemaFile != "" {
		s, err := model.LoadSchema(cfg.Query.SchemaFile)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	products := catalog.DefaultCatalog()
	if cfg.Catalog.ProductsFile != "" {
		c, err := catalog.LoadCatalog(cfg.Catalog.ProductsFile)
		if err != nil {
			return nil, err
		}
		products = c
	}
	segments := catalog.DefaultSegments()
	if cfg.Catalog.SegmentsFile != "" {
		s, err := catalog.LoadSegments(cfg.Catalog.SegmentsFile)
		if err != nil {
			return nil, err
		}
		segments = s
	}

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := cfg.Leads.New()
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = db.Close() })

	var sessions model.SessionRepository = repo.NewMemorySessionRepository()
	if cfg.Redis.Enabled() {
		ttl, err := time.ParseDuration(cfg.Conversation.TTL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
		}
		rdb, err := cfg.Redis.New()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("initialise redis client: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		sessions = repo.NewRedisSessionRepository(rdb, ttl)
		logx.Debug().Dur("ttl", ttl).Msg("Connected to Redis successfully")
	} else {
		logx.Debug().Msg("REDIS_URL not set, sessions are kept in memory")
	}

	runner, err := graph.BuildRunner(ctx, graph.Config{
		LLM:          cfg.LLM,
		Orchestrator: cfg.Orchestrator,
		Query:        cfg.Query,
		Conversation: cfg.Conversation,
		Sessions:     sessions,
		Store:        repo.NewSQLiteLeadsStore(db),
		Schema:       schema,
		Catalog:      products,
		Segments:     segments,
		Tracer:       otel.Tracer(cfg.Tracer),
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("build runner: %w", err)
	}
	return &app{cfg: cfg, runner: runner, schema: schema, close: closeAll}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
