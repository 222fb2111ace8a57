package model

import (
	"context"
)

type SessionRepository interface {
	// Load returns the stored state, or a fresh one when the conversation is unknown
	Load(ctx context.Context, conversationID string) (*ConversationState, error)

	// Save persists the state, appending new history entries
	Save(ctx context.Context, state *ConversationState) error

	// Clear removes everything stored for a conversation
	Clear(ctx context.Context, conversationID string) error
}

// QueryExecutor runs validated SQL against the leads store.
type QueryExecutor interface {
	Execute(ctx context.Context, query string, rowCap int) (*ResultSet, error)
}

// ChartRenderer turns a result set into a chart artifact.
type ChartRenderer interface {
	Render(data *ResultSet, chartType string) (*ChartArtifact, error)
}
