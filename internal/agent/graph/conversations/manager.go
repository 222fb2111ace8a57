package conversations

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

const DefaultContextTurns = 6

// priorDataRefRe spots requests that point back at the last result set.
var priorDataRefRe = regexp.MustCompile(`(?i)\b(those|these|them|they|their|that list|same (?:customers|leads|people))\b`)

type MessagesManager struct {
	sessions     model.SessionRepository
	contextTurns int
}

func NewMessagesManager(sessions model.SessionRepository, config model.ConversationConfig) *MessagesManager {
	turns := config.ContextTurns
	if turns <= 0 {
		turns = DefaultContextTurns
	}
	return &MessagesManager{
		sessions:     sessions,
		contextTurns: turns,
	}
}

// ContextTurns is the number of history entries folded into prompts.
func (cm *MessagesManager) ContextTurns() int {
	return cm.contextTurns
}

// Load returns the stored conversation, fresh when unknown.
func (cm *MessagesManager) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is empty")
	}
	st, err := cm.sessions.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if st.ConversationID == "" {
		st.ConversationID = conversationID
	}
	return st, nil
}

// Save persists st after a turn ends or suspends.
func (cm *MessagesManager) Save(ctx context.Context, st *model.ConversationState) error {
	if err := cm.sessions.Save(ctx, st); err != nil {
		return err
	}
	logx.Debug().
		Str("conversation_id", st.ConversationID).
		Int("history", len(st.History)).
		Str("status", string(st.Status)).
		Msg("Conversation saved")
	return nil
}

// Reset drops everything stored for a conversation.
func (cm *MessagesManager) Reset(ctx context.Context, conversationID string) error {
	return cm.sessions.Clear(ctx, conversationID)
}

// BuildContext returns the last maxTurns of history as a prompt block and,
// when the latest request refers back to earlier results, a summary of
// retrieved_data.
func BuildContext(st *model.ConversationState, maxTurns int) (history, priorData string) {
	if st == nil {
		return "", ""
	}
	history = buildHistoryContext(previousMessages(st.History), maxTurns)
	if ReferencesPriorData(st.LatestRequest()) {
		priorData = SummarizeResult(st.RetrievedData, 5)
	}
	return history, priorData
}

// ReferencesPriorData reports whether request points at earlier results
// ("email those customers").
func ReferencesPriorData(request string) bool {
	return priorDataRefRe.MatchString(request)
}

// SummarizeResult renders a compact description of rs for prompts.
func SummarizeResult(rs *model.ResultSet, previewRows int) string {
	if rs == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d rows with columns: %s\n", rs.Len(), strings.Join(rs.ColumnNames(), ", "))
	if rs.Query != "" {
		fmt.Fprintf(&b, "Query: %s\n", rs.Query)
	}
	if rs.Len() > 0 {
		b.WriteString(rs.Markdown(previewRows))
	}
	return strings.TrimSpace(b.String())
}

// previousMessages drops the request being answered right now.
func previousMessages(history []model.Message) []model.Message {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == schema.User && history[i].Kind == model.KindRequest {
			return history[:i]
		}
	}
	return history
}

func buildHistoryContext(messages []model.Message, maxTurns int) string {
	recent := trimTail(messages, maxTurns)
	if len(recent) == 0 {
		return ""
	}

	var contextBuilder strings.Builder
	contextBuilder.WriteString("<conversation_context>\n")
	for _, msg := range recent {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case schema.User:
			contextBuilder.WriteString("UserMessage(" + msg.Content + ")\n")
		case schema.Assistant:
			contextBuilder.WriteString("AssistantMessage(" + msg.Tagged() + ")\n")
		}
	}
	contextBuilder.WriteString("</conversation_context>")
	return contextBuilder.String()
}

// ====================== Helper function ======================
func trimTail(messages []model.Message, maxTurns int) []model.Message {
	if maxTurns <= 0 {
		return nil
	}
	if len(messages) <= maxTurns {
		result := make([]model.Message, len(messages))
		copy(result, messages)
		return result
	}
	source := messages[len(messages)-maxTurns:]
	result := make([]model.Message, len(source))
	copy(result, source)
	return result
}

// NewUserMessage is a history record for text typed by the user.
func NewUserMessage(kind model.MessageKind, content string, now time.Time) model.Message {
	return model.Message{Role: schema.User, Kind: kind, Content: content, CreatedAt: now}
}
