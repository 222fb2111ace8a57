package model

import (
	"slices"
	"time"

	"github.com/cloudwego/eino/schema"
)

// Stage is a Query Pipeline stage.
type Stage string

const (
	StagePlan      Stage = "plan"
	StageDetect    Stage = "detect"
	StageValidate  Stage = "validate"
	StageExecute   Stage = "execute"
	StageSuspended Stage = "suspended"
)

// TurnStatus is where the last turn ended.
type TurnStatus string

const (
	TurnRunning    TurnStatus = "running"
	TurnCompleted  TurnStatus = "completed"
	TurnSuspended  TurnStatus = "suspended"
	TurnTerminated TurnStatus = "terminated"
)

// MessageKind separates the original request from other history entries.
type MessageKind string

const (
	KindRequest       MessageKind = "request"
	KindClarification MessageKind = "clarification"
	KindResult        MessageKind = "result"
	KindError         MessageKind = "error"
	KindNotice        MessageKind = "notice"
)

// Checkpoint is the resumption marker written when the pipeline suspends.
type Checkpoint struct {
	RequestedBy Stage  `json:"requested_by"`
	Reason      string `json:"reason,omitempty"`
	Plan        string `json:"plan,omitempty"`
	Query       string `json:"query,omitempty"`
}

// ChartArtifact is the opaque output of the chart renderer.
type ChartArtifact struct {
	Type   string    `json:"type"`
	Title  string    `json:"title"`
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
	Colors []string  `json:"colors,omitempty"`
}

// Payload is the optional structured part of a message.
type Payload struct {
	Plan     string         `json:"plan,omitempty"`
	Query    string         `json:"query,omitempty"`
	RowCount int            `json:"row_count,omitempty"`
	Chart    *ChartArtifact `json:"chart,omitempty"`
	Options  []string       `json:"options,omitempty"`
	Stage    Stage          `json:"stage,omitempty"`
}

// Message is one history record.
type Message struct {
	Role      schema.RoleType `json:"role"`
	Kind      MessageKind     `json:"kind,omitempty"`
	Handler   HandlerID       `json:"handler,omitempty"`
	Content   string          `json:"content"`
	Payload   *Payload        `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Tagged renders the content prefixed with the handler identity tag.
func (m Message) Tagged() string {
	if m.Role != schema.Assistant {
		return m.Content
	}
	return m.Handler.Tag() + "\n" + m.Content
}

// ConversationState is the single mutable record of a conversation. The
// orchestration loop owns it for the duration of a turn; handlers only ever
// see a Clone.
type ConversationState struct {
	ConversationID string    `json:"conversation_id"`
	History        []Message `json:"history"`

	PendingHandler HandlerID  `json:"pending_handler,omitempty"`
	RetrievedData  *ResultSet `json:"retrieved_data,omitempty"`

	NeedsClarification    bool        `json:"needs_clarification"`
	ClarificationQuestion string      `json:"clarification_question,omitempty"`
	ClarificationOptions  []string    `json:"clarification_options,omitempty"`
	UserClarification     string      `json:"user_clarification,omitempty"`
	Checkpoint            *Checkpoint `json:"checkpoint,omitempty"`

	CompletedHandlers []HandlerID `json:"completed_handlers"`
	StepCount         int         `json:"step_count"`
	Status            TurnStatus  `json:"status,omitempty"`

	SQLPlan            string `json:"sql_plan,omitempty"`
	SQLQuery           string `json:"sql_query,omitempty"`
	SQLValidationError string `json:"sql_validation_error,omitempty"`
	ProductInfo        string `json:"product_info,omitempty"`
	SegmentAnalysis    string `json:"segment_analysis,omitempty"`
	EmailDraft         string `json:"email_draft,omitempty"`

	UsageCostUSD float64 `json:"usage_cost_usd,omitempty"`
}

// NewConversationState returns an empty state for id.
func NewConversationState(id string) *ConversationState {
	return &ConversationState{ConversationID: id, Status: TurnCompleted}
}

// BeginTurn appends the user message and resets every per-turn field. Only
// History and RetrievedData carry over. A clarification left unanswered is
// abandoned: the new message replaces the request it belonged to.
func (s *ConversationState) BeginTurn(userMessage string, now time.Time) {
	s.History = append(s.History, Message{
		Role:      schema.User,
		Kind:      KindRequest,
		Content:   userMessage,
		CreatedAt: now,
	})
	s.PendingHandler = ""
	s.NeedsClarification = false
	s.ClarificationQuestion = ""
	s.ClarificationOptions = nil
	s.UserClarification = ""
	s.Checkpoint = nil
	s.CompletedHandlers = nil
	s.StepCount = 0
	s.Status = TurnRunning
	s.SQLPlan = ""
	s.SQLQuery = ""
	s.SQLValidationError = ""
	s.ProductInfo = ""
	s.SegmentAnalysis = ""
	s.EmailDraft = ""
	s.UsageCostUSD = 0
}

// LatestRequest returns the content of the latest user request, skipping
// clarification answers.
func (s *ConversationState) LatestRequest() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		m := s.History[i]
		if m.Role == schema.User && m.Kind != KindClarification {
			return m.Content
		}
	}
	return ""
}

// HasCompleted reports whether h already ran this turn.
func (s *ConversationState) HasCompleted(h HandlerID) bool {
	return slices.Contains(s.CompletedHandlers, h)
}

// MarkCompleted records h; false means it was already recorded.
func (s *ConversationState) MarkCompleted(h HandlerID) bool {
	if s.HasCompleted(h) {
		return false
	}
	s.CompletedHandlers = append(s.CompletedHandlers, h)
	return true
}

// AppendMessage adds a history record.
func (s *ConversationState) AppendMessage(m Message) {
	s.History = append(s.History, m)
}

// Clone returns a deep copy. Handlers receive clones so nothing they do
// leaks into the shared record without going through the loop.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.History = make([]Message, len(s.History))
	for i, m := range s.History {
		if m.Payload != nil {
			p := *m.Payload
			p.Options = append([]string(nil), m.Payload.Options...)
			if m.Payload.Chart != nil {
				c := *m.Payload.Chart
				c.Labels = append([]string(nil), c.Labels...)
				c.Values = append([]float64(nil), c.Values...)
				c.Colors = append([]string(nil), c.Colors...)
				p.Chart = &c
			}
			m.Payload = &p
		}
		out.History[i] = m
	}
	out.RetrievedData = s.RetrievedData.Clone()
	out.ClarificationOptions = append([]string(nil), s.ClarificationOptions...)
	out.CompletedHandlers = append([]HandlerID(nil), s.CompletedHandlers...)
	if s.Checkpoint != nil {
		cp := *s.Checkpoint
		out.Checkpoint = &cp
	}
	return &out
}
