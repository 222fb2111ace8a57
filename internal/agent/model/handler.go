package model

import "github.com/cloudwego/eino/schema"

// HandlerID names one of the fixed task handlers.
type HandlerID string

const (
	HandlerDataQuery     HandlerID = "data_query"
	HandlerVisualization HandlerID = "visualization"
	HandlerSegmentation  HandlerID = "segmentation"
	HandlerProduct       HandlerID = "product"
	HandlerEmail         HandlerID = "email_writer"
)

// HandlerPriority is the tie-break order when a request implies several handlers.
var HandlerPriority = []HandlerID{
	HandlerDataQuery,
	HandlerVisualization,
	HandlerSegmentation,
	HandlerProduct,
	HandlerEmail,
}

var handlerTags = map[HandlerID]string{
	HandlerDataQuery:     "[SQL Agent]",
	HandlerVisualization: "[Data Viz Agent]",
	HandlerSegmentation:  "[Segmentation Analyst]",
	HandlerProduct:       "[Product Expert]",
	HandlerEmail:         "[Email Writer]",
}

// Tag is the identity tag rendered in front of a handler's message.
func (h HandlerID) Tag() string {
	if t, ok := handlerTags[h]; ok {
		return t
	}
	return "[Supervisor]"
}

// Valid reports whether h is one of the known handlers.
func (h HandlerID) Valid() bool {
	_, ok := handlerTags[h]
	return ok
}

// SuspendRequest is what a handler hands back when it needs the user to pick
// between options before it can continue.
type SuspendRequest struct {
	Question   string
	Options    []string
	Checkpoint Checkpoint
}

// Outcome is a handler's owned result. The orchestration loop is the only
// place that commits it into ConversationState.
type Outcome struct {
	Message Message

	// RetrievedData replaces the shared result set when non-nil.
	RetrievedData *ResultSet

	SQLPlan            string
	SQLQuery           string
	SQLValidationError string
	ProductInfo        string
	SegmentAnalysis    string
	EmailDraft         string

	// Suspend, when set, pauses the turn for clarification.
	Suspend *SuspendRequest
	// ConsumedClarification reports that the handler read user_clarification.
	ConsumedClarification bool

	// Stages lists the pipeline stages visited, data-query only.
	Stages []Stage

	Usage   schema.TokenUsage
	CostUSD float64
}
