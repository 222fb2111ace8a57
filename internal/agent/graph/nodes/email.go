package nodes

import (
	"context"
	"fmt"

	"github.com/marketing-analytics-team/server/internal/agent/catalog"
	"github.com/marketing-analytics-team/server/internal/agent/graph/prompts"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

const generalAudience = "General audience (no customer data retrieved)"

// Email drafts a sales email for the retrieved audience.
type Email struct {
	llm      *llm.Client
	catalog  *catalog.Catalog
	segments catalog.Segments
}

func NewEmailHandler(client *llm.Client, c *catalog.Catalog, segments catalog.Segments) *Email {
	if c == nil {
		c = catalog.DefaultCatalog()
	}
	if len(segments) == 0 {
		segments = catalog.DefaultSegments()
	}
	return &Email{llm: client, catalog: c, segments: segments}
}

func (h *Email) ID() model.HandlerID { return model.HandlerEmail }

func (h *Email) Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error) {
	var out model.Outcome
	request := st.LatestRequest()

	product := st.ProductInfo
	if product == "" {
		p, ok := h.catalog.Mentioned(request)
		if !ok {
			p = h.catalog.Default()
		}
		product = p.Describe()
	}

	tones := make([]prompts.Tone, 0, len(h.segments))
	for _, s := range h.segments {
		tones = append(tones, prompts.Tone{Segment: s.Name, Tone: s.Tone})
	}

	msgs, err := prompts.RenderEmail(ctx, prompts.EmailInput{
		Audience: DescribeAudience(st.RetrievedData),
		Product:  product,
		Request:  request,
		Tones:    tones,
	})
	if err != nil {
		return out, err
	}
	res, err := h.llm.Complete(ctx, string(h.ID()), msgs)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(h.ID())).Msg("Email draft failed")
		out.Message = assistant(h.ID(), model.KindError, "Email draft unavailable: "+err.Error(), nil)
		return out, nil
	}
	addUsage(&out, res)
	out.EmailDraft = res.Content
	out.Message = assistant(h.ID(), model.KindResult, res.Content, &model.Payload{RowCount: st.RetrievedData.Len()})
	return out, nil
}

// DescribeAudience summarizes the recipients: how many, and the segment of
// the first row when there is one.
func DescribeAudience(data *model.ResultSet) string {
	if data.Len() == 0 {
		return generalAudience
	}
	audience := fmt.Sprintf("%d customers", data.Len())
	if col := data.ColumnIndex("Segment"); col >= 0 {
		if seg := model.CellString(data.Rows[0][col]); seg != "" {
			audience += " in the " + seg + " segment"
		}
	}
	return audience
}
