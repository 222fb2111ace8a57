package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, "Learning Labs Pro", c.Default().Name)

	p, ok := c.Mentioned("write them an email about learning labs")
	require.True(t, ok)
	assert.Equal(t, "llp", p.ID)

	_, ok = c.Mentioned("show me the top customers")
	assert.False(t, ok)

	assert.Len(t, c.Search("portfolio", 0), 1)
	assert.Empty(t, c.Search("spaceship", 0))
	assert.Empty(t, c.Search("  ", 0))
}

func TestProductRendering(t *testing.T) {
	desc := LearningLabsPro.Describe()
	assert.Contains(t, desc, "Product: Learning Labs Pro\nTagline: Accelerate Your Career")
	assert.Contains(t, desc, "Pricing: $149/month, $999/year")
	assert.Contains(t, LearningLabsPro.Brief(), "Learning Labs Pro - Professional development platform")
	assert.Equal(t, "Bare", Product{Name: "Bare"}.Brief())
}

func TestLoadCatalog(t *testing.T) {
	path := writeFile(t, "catalog.yaml", `
products:
  - id: dp
    name: Data Pro
    aliases: [datapro]
    summary: Analytics bootcamp.
    price_monthly: 99
`)
	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "Data Pro - Analytics bootcamp.", c.Default().Brief())

	_, err = LoadCatalog(writeFile(t, "empty.yaml", "products: []\n"))
	assert.ErrorContains(t, err, "no products")

	_, err = LoadCatalog(writeFile(t, "noname.yaml", "products:\n  - id: x\n"))
	assert.ErrorContains(t, err, "has no name")
}

func TestSegments(t *testing.T) {
	s := DefaultSegments()
	assert.Equal(t, []string{"Champions", "Highly Engaged", "Potential Loyalists", "At Risk", "Low Value"}, s.Names())

	p, ok := s.Find("at risk")
	require.True(t, ok)
	assert.InDelta(t, 0.25, p.ConversionRate, 1e-9)

	assert.Contains(t, s.Describe(), "1. Champions: avg engagement 0.35, conversion rate 65%\n")
}

func TestLoadSegmentsMapForm(t *testing.T) {
	path := writeFile(t, "segment_descriptions.json", `{
  "Low Value": {"avg_engagement": 0.02, "conversion_rate": 0.1},
  "Champions": {"avg_engagement": 0.4, "conversion_rate": 0.7}
}`)
	s, err := LoadSegments(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Champions", "Low Value"}, s.Names())
	assert.Equal(t, "VIP treatment, exclusive offers, loyalty appreciation", s[0].Tone)
}

func TestLoadSegmentsListForm(t *testing.T) {
	path := writeFile(t, "segments.yaml", `
- name: Dormant
  avg_engagement: 0.01
  conversion_rate: 0.05
  tone: Gentle reminder
`)
	s, err := LoadSegments(path)
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, "Gentle reminder", s[0].Tone)

	_, err = LoadSegments(writeFile(t, "empty.yaml", "[]\n"))
	assert.ErrorContains(t, err, "no segments")
}
