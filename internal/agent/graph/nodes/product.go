package nodes

import (
	"context"

	"github.com/marketing-analytics-team/server/internal/agent/catalog"
	"github.com/marketing-analytics-team/server/internal/agent/graph/prompts"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// Product explains a catalog product. When the model is unavailable the
// catalog entry itself is returned.
type Product struct {
	llm     *llm.Client
	catalog *catalog.Catalog
}

func NewProductHandler(client *llm.Client, c *catalog.Catalog) *Product {
	if c == nil {
		c = catalog.DefaultCatalog()
	}
	return &Product{llm: client, catalog: c}
}

func (h *Product) ID() model.HandlerID { return model.HandlerProduct }

func (h *Product) Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error) {
	var out model.Outcome
	request := st.LatestRequest()
	p, ok := h.catalog.Mentioned(request)
	if !ok {
		p = h.catalog.Default()
	}

	msgs, err := prompts.RenderProduct(ctx, p.Name, p.Describe(), request)
	if err != nil {
		return out, err
	}
	res, err := h.llm.Complete(ctx, string(h.ID()), msgs)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(h.ID())).Msg("Product summary failed; using catalog entry")
		out.ProductInfo = p.Describe()
		out.Message = assistant(h.ID(), model.KindResult, out.ProductInfo, nil)
		return out, nil
	}
	addUsage(&out, res)
	out.ProductInfo = res.Content
	out.Message = assistant(h.ID(), model.KindResult, res.Content, nil)
	return out, nil
}
