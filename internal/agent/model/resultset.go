package model

import (
	"fmt"
	"strconv"
	"strings"
)

// ResultColumn describes one column of a query result.
type ResultColumn struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// ResultSet is the opaque rows + column schema returned by the data store.
// Values are string, int64, float64, bool or nil.
type ResultSet struct {
	Query     string         `json:"query,omitempty"`
	Columns   []ResultColumn `json:"columns"`
	Rows      [][]any        `json:"rows"`
	Truncated bool           `json:"truncated,omitempty"`
}

// Len returns the row count.
func (r *ResultSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnNames returns column names in result order.
func (r *ResultSet) ColumnNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex finds a column case-insensitively, -1 if absent.
func (r *ResultSet) ColumnIndex(name string) int {
	if r == nil {
		return -1
	}
	for i, c := range r.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// Clone copies rows so the copy can be mutated independently.
func (r *ResultSet) Clone() *ResultSet {
	if r == nil {
		return nil
	}
	out := &ResultSet{
		Query:     r.Query,
		Columns:   append([]ResultColumn(nil), r.Columns...),
		Rows:      make([][]any, len(r.Rows)),
		Truncated: r.Truncated,
	}
	for i, row := range r.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	return out
}

// CellString renders a value the way it should appear in a table cell.
func CellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

// CellFloat converts numeric-looking values to float64.
func CellFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	case []byte:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(t)), 64)
		return f, err == nil
	}
	return 0, false
}

// Markdown renders the first limit rows as a markdown table.
func (r *ResultSet) Markdown(limit int) string {
	if r == nil || len(r.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	names := r.ColumnNames()
	b.WriteString("| " + strings.Join(names, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(names)) + "\n")
	for i, row := range r.Rows {
		if limit > 0 && i >= limit {
			break
		}
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = strings.ReplaceAll(CellString(v), "|", "\\|")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}
