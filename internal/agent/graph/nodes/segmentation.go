package nodes

import (
	"context"

	"github.com/marketing-analytics-team/server/internal/agent/catalog"
	"github.com/marketing-analytics-team/server/internal/agent/graph/prompts"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// Segmentation recommends per-segment strategies from the segment profiles.
type Segmentation struct {
	llm      *llm.Client
	segments catalog.Segments
}

func NewSegmentationHandler(client *llm.Client, segments catalog.Segments) *Segmentation {
	if len(segments) == 0 {
		segments = catalog.DefaultSegments()
	}
	return &Segmentation{llm: client, segments: segments}
}

func (h *Segmentation) ID() model.HandlerID { return model.HandlerSegmentation }

func (h *Segmentation) Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error) {
	var out model.Outcome
	msgs, err := prompts.RenderSegmentation(ctx, h.segments.Describe(), st.LatestRequest())
	if err != nil {
		return out, err
	}
	res, err := h.llm.Complete(ctx, string(h.ID()), msgs)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(h.ID())).Msg("Segment analysis failed")
		out.Message = assistant(h.ID(), model.KindError, "Segment analysis unavailable: "+err.Error(), nil)
		return out, nil
	}
	addUsage(&out, res)
	out.SegmentAnalysis = res.Content
	out.Message = assistant(h.ID(), model.KindResult, res.Content, nil)
	return out, nil
}
