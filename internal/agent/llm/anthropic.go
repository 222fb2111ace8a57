package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// AnthropicChatModel adapts the Anthropic Messages API to eino's
// BaseChatModel. Text in, text out; no tools.
type AnthropicChatModel struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewAnthropicChatModel builds the adapter from config, through Bedrock when
// ANTHROPIC_USE_BEDROCK is set.
func NewAnthropicChatModel(ctx context.Context, cfg model.LLMConfig, extra ...option.RequestOption) (*AnthropicChatModel, error) {
	var opts []option.RequestOption
	name := cfg.Model

	if cfg.UseBedrock {
		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
		name = bedrockModelID(name)
	} else {
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		opts = append(opts, option.WithAPIKey(cfg.AnthropicAPIKey))
	}
	opts = append(opts, extra...)

	return &AnthropicChatModel{
		client:      anthropic.NewClient(opts...),
		model:       name,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// bedrockModelID converts an Anthropic model name into a cross-region
// inference profile id (us.anthropic.<model>-v1:0).
func bedrockModelID(name string) string {
	name = strings.TrimPrefix(name, "anthropic/")
	if strings.HasPrefix(name, "us.") || strings.Contains(name, "anthropic.") {
		return name
	}
	return "us.anthropic." + name + "-v1:0"
}

func (m *AnthropicChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	modelName, maxTokens, temperature := m.model, m.maxTokens, m.temperature
	o := einomodel.GetCommonOptions(&einomodel.Options{
		Model:       &modelName,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}, opts...)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(*o.Model),
		MaxTokens: int64(*o.MaxTokens),
	}
	if o.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*o.Temperature))
	}
	if len(o.Stop) > 0 {
		params.StopSequences = o.Stop
	}
	for _, msg := range input {
		if msg == nil || strings.TrimSpace(msg.Content) == "" {
			continue
		}
		switch msg.Role {
		case schema.System:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case schema.Assistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if len(params.Messages) == 0 {
		return nil, fmt.Errorf("anthropic: no user message in input")
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(tb.Text)
		}
	}
	out := schema.AssistantMessage(text.String(), nil)
	out.ResponseMeta = &schema.ResponseMeta{
		FinishReason: string(resp.StopReason),
		Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	return out, nil
}

// Stream emits the full response as a single chunk.
func (m *AnthropicChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *AnthropicChatModel) GetType() string {
	return "Anthropic"
}

var _ einomodel.BaseChatModel = (*AnthropicChatModel)(nil)
