package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentProfile summarizes one k-means segment.
type SegmentProfile struct {
	Name           string  `yaml:"name" json:"name"`
	AvgEngagement  float64 `yaml:"avg_engagement" json:"avg_engagement"`
	ConversionRate float64 `yaml:"conversion_rate" json:"conversion_rate"`
	Tone           string  `yaml:"tone,omitempty" json:"tone,omitempty"`
}

// Segments is ordered by engagement, highest first.
type Segments []SegmentProfile

// DefaultSegments are used when no descriptions file is configured.
func DefaultSegments() Segments {
	return Segments{
		{Name: "Champions", AvgEngagement: 0.35, ConversionRate: 0.65, Tone: "VIP treatment, exclusive offers, loyalty appreciation"},
		{Name: "Highly Engaged", AvgEngagement: 0.25, ConversionRate: 0.50, Tone: "Value reinforcement, success case studies, premium features"},
		{Name: "Potential Loyalists", AvgEngagement: 0.15, ConversionRate: 0.35, Tone: "Nurturing, educational content, special onboarding"},
		{Name: "At Risk", AvgEngagement: 0.08, ConversionRate: 0.25, Tone: `Re-engagement, win-back offers, "we miss you" messaging`},
		{Name: "Low Value", AvgEngagement: 0.03, ConversionRate: 0.15, Tone: "Awareness building, introductory offers, low-friction CTAs"},
	}
}

// LoadSegments reads segment descriptions. Both a list of profiles and the
// segmentation script's map form ({"Champions": {"avg_engagement": ...}})
// are accepted. Tones missing from the file are taken from the defaults.
func LoadSegments(path string) (Segments, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read segments file: %w", err)
	}

	var list Segments
	if err := yaml.Unmarshal(b, &list); err != nil {
		var byName map[string]SegmentProfile
		if err2 := yaml.Unmarshal(b, &byName); err2 != nil {
			return nil, fmt.Errorf("parse segments file %s: %w", path, err)
		}
		for name, p := range byName {
			p.Name = name
			list = append(list, p)
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("segments file %s: no segments", path)
	}

	defaults := DefaultSegments()
	for i := range list {
		if list[i].Tone == "" {
			if d, ok := defaults.Find(list[i].Name); ok {
				list[i].Tone = d.Tone
			}
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].AvgEngagement != list[j].AvgEngagement {
			return list[i].AvgEngagement > list[j].AvgEngagement
		}
		return list[i].Name < list[j].Name
	})
	return list, nil
}

// Find looks a segment up case-insensitively.
func (s Segments) Find(name string) (SegmentProfile, bool) {
	for _, p := range s {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, true
		}
	}
	return SegmentProfile{}, false
}

// Names returns segment names in engagement order.
func (s Segments) Names() []string {
	out := make([]string, len(s))
	for i, p := range s {
		out[i] = p.Name
	}
	return out
}

// Describe renders the profiles for the segmentation prompt.
func (s Segments) Describe() string {
	var b strings.Builder
	for i, p := range s {
		fmt.Fprintf(&b, "%d. %s: avg engagement %.2f, conversion rate %.0f%%\n",
			i+1, p.Name, p.AvgEngagement, p.ConversionRate*100)
	}
	return b.String()
}
