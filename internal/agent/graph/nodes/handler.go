package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// Handler is one task unit. It receives a snapshot of the conversation and
// returns its owned outcome; only the orchestration loop commits it.
// Recoverable failures are reported as messages, not errors.
type Handler interface {
	ID() model.HandlerID
	Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error)
}

func assistant(h model.HandlerID, kind model.MessageKind, content string, payload *model.Payload) model.Message {
	return model.Message{
		Role:    schema.Assistant,
		Kind:    kind,
		Handler: h,
		Content: strings.TrimSpace(content),
		Payload: payload,
	}
}

func addUsage(out *model.Outcome, c *llm.Completion) {
	if c == nil {
		return
	}
	model.AddUsage(&out.Usage, &c.Usage)
	out.CostUSD += c.CostUSD
}
