package model

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Column describes a single column of a known table.
type Column struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Table describes one queryable table. Values lists known categorical
// values per column (e.g. segment names) and feeds the planner prompt.
type Table struct {
	Name    string              `yaml:"name" json:"name"`
	Columns []Column            `yaml:"columns" json:"columns"`
	Values  map[string][]string `yaml:"values,omitempty" json:"values,omitempty"`
}

// Schema is the static, read-only description of the data store.
type Schema struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// DefaultSchema describes the scored-leads table produced by the
// segmentation scripts.
func DefaultSchema() *Schema {
	return &Schema{Tables: []Table{{
		Name: "leadscored",
		Columns: []Column{
			{Name: "customer_id", Type: "INTEGER"},
			{Name: "Segment", Type: "TEXT", Description: "customer segment from k-means clustering"},
			{Name: "engagement_score", Type: "REAL"},
			{Name: "TotalVisits", Type: "REAL"},
			{Name: "Total_Time_Spent_on_Website", Type: "REAL"},
			{Name: "Page_Views_Per_Visit", Type: "REAL"},
			{Name: "Converted", Type: "INTEGER", Description: "1 when the lead converted"},
			{Name: "Lead_Source", Type: "TEXT"},
			{Name: "Lead_Origin", Type: "TEXT"},
			{Name: "Country", Type: "TEXT"},
			{Name: "City", Type: "TEXT"},
			{Name: "Specialization", Type: "TEXT"},
			{Name: "Occupation", Type: "TEXT"},
			{Name: "Last_Activity", Type: "TEXT"},
		},
		Values: map[string][]string{
			"Segment": {"Champions", "Highly Engaged", "Potential Loyalists", "At Risk", "Low Value"},
		},
	}}}
}

// LoadSchema reads a YAML (or JSON) schema description.
func LoadSchema(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var s Schema
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return &s, nil
}

// Validate checks the description is usable.
func (s *Schema) Validate() error {
	if s == nil || len(s.Tables) == 0 {
		return fmt.Errorf("schema has no tables")
	}
	seen := map[string]bool{}
	for _, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with empty name")
		}
		if seen[strings.ToLower(t.Name)] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[strings.ToLower(t.Name)] = true
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %q has no columns", t.Name)
		}
	}
	return nil
}

// Table looks a table up case-insensitively.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Primary is the first table; single-table prompts use it.
func (s *Schema) Primary() *Table {
	return &s.Tables[0]
}

// TableNames returns every table name.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

// Column looks a column up case-insensitively.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if strings.EqualFold(t.Columns[i].Name, name) {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Describe renders the schema for prompts and the "show schema" option.
func (s *Schema) Describe() string {
	var b strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Table %s:\n", t.Name)
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "- %s (%s)", c.Name, c.Type)
			if c.Description != "" {
				b.WriteString(": " + c.Description)
			}
			b.WriteString("\n")
		}
		keys := make([]string, 0, len(t.Values))
		for k := range t.Values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "Known %s values: %s\n", k, strings.Join(t.Values[k], ", "))
		}
	}
	return b.String()
}
