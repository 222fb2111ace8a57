// Package llmtest provides a scripted chat model for handler and
// orchestration tests.
package llmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Markers found in the system prompt of each call site.
const (
	MatchPlan         = "SQL query planner"
	MatchSQL          = "Generate a SIMPLE SQL query"
	MatchInsights     = "Data Visualization"
	MatchSegmentation = "Customer Segmentation Analyst"
	MatchProduct      = "You are a Product Expert"
	MatchEmail        = "Marketing Email Writer"
)

// Rule answers calls whose system prompt contains Match. Replies are used in
// order; the last one repeats. Err, when set, fails every matching call.
type Rule struct {
	Match   string
	Replies []string
	Err     error
}

// Reply is a one-answer Rule.
func Reply(match, reply string) Rule {
	return Rule{Match: match, Replies: []string{reply}}
}

// Fail is a Rule that always errors.
func Fail(match string, err error) Rule {
	return Rule{Match: match, Err: err}
}

// ScriptedModel is an eino BaseChatModel driven by rules.
type ScriptedModel struct {
	mu    sync.Mutex
	rules []Rule
	calls map[string]int
	last  map[string][]*schema.Message
}

func New(rules ...Rule) *ScriptedModel {
	return &ScriptedModel{
		rules: rules,
		calls: map[string]int{},
		last:  map[string][]*schema.Message{},
	}
}

func (m *ScriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	system := ""
	for _, msg := range in {
		if msg != nil && msg.Role == schema.System {
			system += msg.Content
		}
	}
	for _, r := range m.rules {
		if !strings.Contains(system, r.Match) {
			continue
		}
		n := m.calls[r.Match]
		m.calls[r.Match] = n + 1
		m.last[r.Match] = in
		if r.Err != nil {
			return nil, r.Err
		}
		if len(r.Replies) == 0 {
			return nil, fmt.Errorf("llmtest: rule %q has no replies", r.Match)
		}
		reply := r.Replies[min(n, len(r.Replies)-1)]
		out := schema.AssistantMessage(reply, nil)
		out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120,
		}}
		return out, nil
	}
	return nil, fmt.Errorf("llmtest: no rule for prompt %.60q", system)
}

func (m *ScriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

// Calls returns how many calls matched the rule for match.
func (m *ScriptedModel) Calls(match string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[match]
}

// LastInput returns the messages of the latest call matching match.
func (m *ScriptedModel) LastInput(match string) []*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last[match]
}

// LastUser returns the user message content of the latest matching call.
func (m *ScriptedModel) LastUser(match string) string {
	for _, msg := range m.LastInput(match) {
		if msg != nil && msg.Role == schema.User {
			return msg.Content
		}
	}
	return ""
}

var _ einomodel.BaseChatModel = (*ScriptedModel)(nil)
