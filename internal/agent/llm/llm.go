package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// NewChatModel picks the provider named in cfg.
func NewChatModel(ctx context.Context, cfg model.LLMConfig) (einomodel.BaseChatModel, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini, "":
		return NewGeminiChatModel(ctx, cfg)
	case ProviderAnthropic:
		return NewAnthropicChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// Client is the language-model collaborator handed to task handlers:
// prompt messages in, text out, with token usage priced per call.
type Client struct {
	chatModel einomodel.BaseChatModel
	modelName string
	pricing   model.Pricing
	handlers  []callbacks.Handler
}

// NewClient wraps cm. handlers are attached to every call in addition to
// the global callback handlers.
func NewClient(cm einomodel.BaseChatModel, modelName string, handlers ...callbacks.Handler) *Client {
	return &Client{
		chatModel: cm,
		modelName: modelName,
		pricing:   model.ResolvePricing(modelName),
		handlers:  handlers,
	}
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.modelName
}

// Completion is one model answer with its usage.
type Completion struct {
	Content string
	Usage   schema.TokenUsage
	CostUSD float64
}

// Complete runs one synchronous call. name identifies the call site in
// callbacks and logs. There is no retry; failures come back wrapped with
// errx.WrapLLM.
func (c *Client) Complete(ctx context.Context, name string, msgs []*schema.Message) (*Completion, error) {
	if c == nil || c.chatModel == nil {
		return nil, errx.WrapLLM(fmt.Errorf("chat model is not configured"))
	}
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      c.modelType(),
		Component: components.ComponentOfChatModel,
	}, c.handlers...)

	out, err := c.generate(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Str("call", name).Str("model", c.modelName).Msg("LLM call failed")
		return nil, errx.WrapLLM(err)
	}
	if out == nil {
		return nil, errx.WrapLLM(fmt.Errorf("empty response"))
	}

	res := &Completion{Content: strings.TrimSpace(out.Content)}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		res.Usage = *out.ResponseMeta.Usage
		inC, outC, total := model.ComputeCost(out.ResponseMeta.Usage, c.pricing)
		res.CostUSD = total
		logx.Debug().
			Str("call", name).
			Str("model", c.modelName).
			Int("prompt_tokens", res.Usage.PromptTokens).
			Int("completion_tokens", res.Usage.CompletionTokens).
			Int("total_tokens", res.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", total).
			Msg("LLM usage")
	}
	return res, nil
}

// generate fires model callbacks itself for models that do not.
func (c *Client) generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	if components.IsCallbacksEnabled(c.chatModel) {
		return c.chatModel.Generate(ctx, msgs)
	}
	ctx = callbacks.OnStart(ctx, &einomodel.CallbackInput{Messages: msgs})
	out, err := c.chatModel.Generate(ctx, msgs)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}
	callbacks.OnEnd(ctx, &einomodel.CallbackOutput{Message: out})
	return out, nil
}

func (c *Client) modelType() string {
	if t, ok := components.GetType(c.chatModel); ok {
		return t
	}
	return "ChatModel"
}
