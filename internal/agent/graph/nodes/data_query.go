package nodes

import (
	"context"

	"github.com/marketing-analytics-team/server/internal/agent/graph/pipeline"
	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// DataQuery answers data requests through the query pipeline.
type DataQuery struct {
	pipeline *pipeline.Pipeline
}

func NewDataQueryHandler(p *pipeline.Pipeline) *DataQuery {
	return &DataQuery{pipeline: p}
}

func (h *DataQuery) ID() model.HandlerID { return model.HandlerDataQuery }

func (h *DataQuery) Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error) {
	res, err := h.pipeline.Run(ctx, st)
	if err != nil {
		return model.Outcome{}, err
	}
	return res.Outcome, nil
}
