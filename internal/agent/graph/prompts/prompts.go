package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

var (
	//go:embed template/plan_system.txt
	planSystemPrompt string
	//go:embed template/plan_user.txt
	planUserPrompt string
	//go:embed template/sql_system.txt
	sqlSystemPrompt string
	//go:embed template/sql_user.txt
	sqlUserPrompt string
	//go:embed template/insights_system.txt
	insightsSystemPrompt string
	//go:embed template/segmentation_system.txt
	segmentationSystemPrompt string
	//go:embed template/product_system.txt
	productSystemPrompt string
	//go:embed template/email_system.txt
	emailSystemPrompt string
)

const (
	insightsUserPrompt     = "Provide your analysis."
	segmentationUserPrompt = "Analyze segments for this request: {{.Request}}"
	productUserPrompt      = "Provide product information for: {{.Request}}"
	emailUserPrompt        = "Write a sales email for this request: {{.Request}}"
)

// render formats a system+user pair through the Eino prompt component so
// prompt callbacks fire for every handler call.
func render(ctx context.Context, name, system, user string, vars map[string]any) ([]*schema.Message, error) {
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      "DefaultChatTemplate",
		Component: components.ComponentOfPrompt,
	})
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return nil, fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) != 2 || msgs[0] == nil || msgs[1] == nil {
		return nil, fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs, nil
}

// PlanInput feeds the PLAN stage.
type PlanInput struct {
	Schema    *model.Schema
	Request   string
	History   string
	PriorData string
}

// RenderPlan builds the planner messages for a request against the schema.
func RenderPlan(ctx context.Context, in PlanInput) ([]*schema.Message, error) {
	if in.Schema == nil {
		return nil, fmt.Errorf("plan prompt: schema is nil")
	}
	return render(ctx, "plan", planSystemPrompt, planUserPrompt, map[string]any{
		"Schema":       in.Schema.Describe(),
		"SegmentNames": segmentNames(in.Schema),
		"PriorData":    in.PriorData,
		"History":      in.History,
		"Request":      in.Request,
	})
}

// RenderSQL builds the SQL generation messages for a plan.
func RenderSQL(ctx context.Context, s *model.Schema, plan string) ([]*schema.Message, error) {
	if s == nil {
		return nil, fmt.Errorf("sql prompt: schema is nil")
	}
	t := s.Primary()
	return render(ctx, "sql", sqlSystemPrompt, sqlUserPrompt, map[string]any{
		"Table":   t.Name,
		"Columns": strings.Join(t.ColumnNames(), ", "),
		"Plan":    plan,
	})
}

// RenderInsights builds the visualization analysis messages.
func RenderInsights(ctx context.Context, columns []string, summary, request string) ([]*schema.Message, error) {
	return render(ctx, "insights", insightsSystemPrompt, insightsUserPrompt, map[string]any{
		"Columns": strings.Join(columns, ", "),
		"Summary": summary,
		"Request": request,
	})
}

// RenderSegmentation builds the segment strategy messages.
func RenderSegmentation(ctx context.Context, segments, request string) ([]*schema.Message, error) {
	return render(ctx, "segmentation", segmentationSystemPrompt, segmentationUserPrompt, map[string]any{
		"Segments": segments,
		"Request":  request,
	})
}

// RenderProduct builds the product summary messages.
func RenderProduct(ctx context.Context, productName, product, request string) ([]*schema.Message, error) {
	return render(ctx, "product", productSystemPrompt, productUserPrompt, map[string]any{
		"ProductName": productName,
		"Product":     product,
		"Request":     request,
	})
}

// Tone is the voice an email should take for one segment.
type Tone struct {
	Segment string
	Tone    string
}

// EmailInput feeds the email writer.
type EmailInput struct {
	Audience string
	Product  string
	Request  string
	Tones    []Tone
}

// RenderEmail builds the email writer messages.
func RenderEmail(ctx context.Context, in EmailInput) ([]*schema.Message, error) {
	return render(ctx, "email", emailSystemPrompt, emailUserPrompt, map[string]any{
		"Audience": in.Audience,
		"Product":  in.Product,
		"Request":  in.Request,
		"Tones":    in.Tones,
	})
}

func segmentNames(s *model.Schema) string {
	for _, t := range s.Tables {
		for col, values := range t.Values {
			if strings.EqualFold(col, "segment") && len(values) > 0 {
				return `"` + strings.Join(values, `", "`) + `"`
			}
		}
	}
	return "Segment values"
}
