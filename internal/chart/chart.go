// Package chart turns query results into chart artifacts.
package chart

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

var (
	ErrNoData        = errors.New("no data to chart")
	ErrNoLabelColumn = errors.New("no categorical column to chart")
)

const (
	TypeBar = "bar"
	TypePie = "pie"
)

// Default color palette for chart slices.
var defaultColors = []string{
	"#4F46E5", "#10B981", "#F59E0B", "#EF4444", "#8B5CF6",
	"#06B6D4", "#EC4899", "#84CC16", "#F97316", "#6366F1",
}

// preferred label columns, most specific first
var labelPreference = []string{"Segment", "Lead_Source", "Country", "Occupation"}

// Renderer builds ChartArtifacts from result sets.
type Renderer struct {
	colors []string
}

// NewRenderer returns a renderer using the default palette.
func NewRenderer() *Renderer {
	return &Renderer{colors: defaultColors}
}

// Grouping is the label/value series derived from a result set.
type Grouping struct {
	Column string
	Labels []string
	Values []float64
}

// Render charts data. A pre-aggregated count column is used as-is;
// otherwise rows are counted per label.
func (r *Renderer) Render(data *model.ResultSet, chartType string) (*model.ChartArtifact, error) {
	g, err := Group(data)
	if err != nil {
		return nil, err
	}
	return &model.ChartArtifact{
		Type:   NormalizeType(chartType),
		Title:  "Distribution by " + g.Column,
		Labels: g.Labels,
		Values: g.Values,
		Colors: r.assignColors(len(g.Labels)),
	}, nil
}

// NormalizeType maps anything that is not a pie chart to a bar chart.
func NormalizeType(t string) string {
	if strings.EqualFold(strings.TrimSpace(t), TypePie) {
		return TypePie
	}
	return TypeBar
}

// Group derives the chart series from data.
func Group(data *model.ResultSet) (*Grouping, error) {
	if data.Len() == 0 {
		return nil, ErrNoData
	}

	if ci := data.ColumnIndex("count"); ci >= 0 {
		li := -1
		for i := range data.Columns {
			if i != ci {
				li = i
				break
			}
		}
		if li < 0 {
			li = ci
		}
		g := &Grouping{Column: data.Columns[li].Name}
		for _, row := range data.Rows {
			v, _ := model.CellFloat(row[ci])
			g.Labels = append(g.Labels, model.CellString(row[li]))
			g.Values = append(g.Values, v)
		}
		return g, nil
	}

	li := LabelColumn(data)
	if li < 0 {
		return nil, ErrNoLabelColumn
	}
	counts := map[string]float64{}
	var order []string
	for _, row := range data.Rows {
		label := model.CellString(row[li])
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	g := &Grouping{Column: data.Columns[li].Name}
	for _, label := range order {
		g.Labels = append(g.Labels, label)
		g.Values = append(g.Values, counts[label])
	}
	return g, nil
}

// LabelColumn picks the column rows are counted by: Segment, Lead_Source,
// Country, Occupation, then the first text column. -1 when none fits.
func LabelColumn(data *model.ResultSet) int {
	for _, name := range labelPreference {
		if i := data.ColumnIndex(name); i >= 0 {
			return i
		}
	}
	for i := range data.Columns {
		if isTextColumn(data, i) {
			return i
		}
	}
	return -1
}

func isTextColumn(data *model.ResultSet, col int) bool {
	for _, row := range data.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case string:
			return true
		default:
			return false
		}
	}
	return false
}

func (r *Renderer) assignColors(n int) []string {
	colors := make([]string, n)
	for i := range colors {
		colors[i] = r.colors[i%len(r.colors)]
	}
	return colors
}

// Text renders an artifact as horizontal bars for terminals.
func Text(a *model.ChartArtifact, width int) string {
	if a == nil || len(a.Labels) == 0 {
		return ""
	}
	if width <= 0 {
		width = 30
	}
	var total, peak float64
	labelWidth := 0
	for i, v := range a.Values {
		total += v
		peak = max(peak, v)
		labelWidth = max(labelWidth, len(a.Labels[i]))
	}

	var b strings.Builder
	b.WriteString(a.Title + "\n")
	for i, label := range a.Labels {
		v := a.Values[i]
		n := 0
		if peak > 0 {
			n = int(v / peak * float64(width))
		}
		pct := 0.0
		if total > 0 {
			pct = v / total * 100
		}
		fmt.Fprintf(&b, "%-*s | %s %g (%.1f%%)\n", labelWidth, label, strings.Repeat("#", n), v, pct)
	}
	return b.String()
}
