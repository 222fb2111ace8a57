package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/graph/prompts"
	"github.com/marketing-analytics-team/server/internal/agent/llm"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

const (
	noDataMessage       = "No data available for visualization. Please run a data query first."
	analysisUnavailable = "Analysis unavailable."
)

var pieRe = regexp.MustCompile(`(?i)\bpie\b`)

// Visualization charts retrieved_data and asks the model for insights.
type Visualization struct {
	llm      *llm.Client
	renderer model.ChartRenderer
}

func NewVisualizationHandler(client *llm.Client, renderer model.ChartRenderer) *Visualization {
	return &Visualization{llm: client, renderer: renderer}
}

func (h *Visualization) ID() model.HandlerID { return model.HandlerVisualization }

func (h *Visualization) Handle(ctx context.Context, st *model.ConversationState) (model.Outcome, error) {
	var out model.Outcome
	data := st.RetrievedData
	if data.Len() == 0 {
		out.Message = assistant(h.ID(), model.KindNotice, noDataMessage, nil)
		return out, nil
	}

	request := st.LatestRequest()
	chartType := "bar"
	if pieRe.MatchString(request) {
		chartType = "pie"
	}

	art, err := h.renderer.Render(data, chartType)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(h.ID())).Msg("Chart rendering failed")
		out.Message = assistant(h.ID(), model.KindError, "Could not build a chart: "+err.Error(), nil)
		return out, nil
	}

	summary := SummarizeData(data)
	insights := analysisUnavailable
	msgs, err := prompts.RenderInsights(ctx, data.ColumnNames(), summary, request)
	if err != nil {
		return out, err
	}
	if res, err := h.llm.Complete(ctx, string(h.ID()), msgs); err == nil {
		addUsage(&out, res)
		insights = res.Content
	}

	content := fmt.Sprintf("Created %s chart: %s\n\n%s\n\nInsights:\n%s", art.Type, art.Title, summary, insights)
	out.Message = assistant(h.ID(), model.KindResult, content, &model.Payload{
		Chart:    art,
		RowCount: data.Len(),
		Query:    data.Query,
	})
	return out, nil
}

// SummarizeData reports record count plus, where the columns exist, average
// engagement, conversion rate and distinct segments.
func SummarizeData(data *model.ResultSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total records: %d", data.Len())

	if avg, ok := columnMean(data, "engagement_score"); ok {
		fmt.Fprintf(&b, "\nAverage engagement score: %.2f", avg)
	}
	if rate, ok := columnMean(data, "Converted"); ok {
		fmt.Fprintf(&b, "\nConversion rate: %.1f%%", rate*100)
	}
	if col := data.ColumnIndex("Segment"); col >= 0 {
		seen := map[string]bool{}
		var segments []string
		for _, row := range data.Rows {
			s := model.CellString(row[col])
			if s != "" && !seen[s] {
				seen[s] = true
				segments = append(segments, s)
			}
		}
		fmt.Fprintf(&b, "\nSegments: %d (%s)", len(segments), strings.Join(segments, ", "))
	}
	return b.String()
}

func columnMean(data *model.ResultSet, name string) (float64, bool) {
	col := data.ColumnIndex(name)
	if col < 0 {
		return 0, false
	}
	sum, n := 0.0, 0
	for _, row := range data.Rows {
		if v, ok := model.CellFloat(row[col]); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
