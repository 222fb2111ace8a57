package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ===================================
// Product catalog
// ===================================

type Product struct {
	ID             string   `yaml:"id" json:"id"`
	Name           string   `yaml:"name" json:"name"`
	Aliases        []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Tagline        string   `yaml:"tagline" json:"tagline"`
	Summary        string   `yaml:"summary" json:"summary"`
	Description    string   `yaml:"description" json:"description"`
	PriceMonthly   float64  `yaml:"price_monthly" json:"price_monthly"`
	PriceAnnual    float64  `yaml:"price_annual" json:"price_annual"`
	TargetAudience string   `yaml:"target_audience" json:"target_audience"`
	KeyBenefits    []string `yaml:"key_benefits" json:"key_benefits"`
}

// Describe renders the product block handed to the product and email prompts.
func (p Product) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s\n", p.Name)
	if p.Tagline != "" {
		fmt.Fprintf(&b, "Tagline: %s\n", p.Tagline)
	}
	if p.Description != "" {
		b.WriteString("\n" + strings.TrimSpace(p.Description) + "\n")
	}
	if p.PriceMonthly > 0 || p.PriceAnnual > 0 {
		fmt.Fprintf(&b, "\nPricing: $%.0f/month, $%.0f/year\n", p.PriceMonthly, p.PriceAnnual)
	}
	if len(p.KeyBenefits) > 0 {
		b.WriteString("Key benefits: " + strings.Join(p.KeyBenefits, "; ") + "\n")
	}
	return b.String()
}

// Brief is the one-line fallback used when no product summary was produced this turn.
func (p Product) Brief() string {
	if p.Summary == "" {
		return p.Name
	}
	return p.Name + " - " + p.Summary
}

func (p Product) mentionedIn(lower string) bool {
	if strings.Contains(lower, strings.ToLower(p.Name)) {
		return true
	}
	for _, a := range p.Aliases {
		if a != "" && strings.Contains(lower, strings.ToLower(a)) {
			return true
		}
	}
	return false
}

type Catalog struct {
	Products []Product `yaml:"products" json:"products"`
}

// LoadCatalog reads a YAML (or JSON) catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog file %s: %w", path, err)
	}
	if len(c.Products) == 0 {
		return nil, fmt.Errorf("catalog file %s: no products", path)
	}
	for i, p := range c.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("catalog file %s: product %d has no name", path, i)
		}
	}
	return &c, nil
}

// Default is the flagship product, the first entry.
func (c *Catalog) Default() Product {
	if c == nil || len(c.Products) == 0 {
		return LearningLabsPro
	}
	return c.Products[0]
}

// Mentioned returns the first product named (or aliased) in text.
func (c *Catalog) Mentioned(text string) (Product, bool) {
	lower := strings.ToLower(text)
	for _, p := range c.Products {
		if p.mentionedIn(lower) {
			return p, true
		}
	}
	return Product{}, false
}

// Search matches query against name, tagline and description, returning at
// most maxResults products (default 10).
func (c *Catalog) Search(query string, maxResults int) []Product {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	var matched []Product
	for _, p := range c.Products {
		if strings.Contains(strings.ToLower(p.Name), query) ||
			strings.Contains(strings.ToLower(p.Tagline), query) ||
			strings.Contains(strings.ToLower(p.Description), query) ||
			p.mentionedIn(query) {
			matched = append(matched, p)
		}
		if len(matched) == maxResults {
			break
		}
	}
	return matched
}

// DefaultCatalog holds the built-in product list.
func DefaultCatalog() *Catalog {
	return &Catalog{Products: []Product{LearningLabsPro}}
}

var LearningLabsPro = Product{
	ID:      "llp",
	Name:    "Learning Labs Pro",
	Aliases: []string{"learning labs"},
	Tagline: "Accelerate Your Career with Hands-On Learning",
	Summary: "Professional development platform for career advancement with hands-on labs, portfolio building, and certifications.",
	Description: `Learning Labs Pro is our flagship professional development platform
designed for ambitious professionals looking to advance their careers.

Key Features:
- 500+ hands-on labs and projects across tech, business, and leadership
- AI-powered portfolio builder that showcases your skills to employers
- Personalized learning paths based on your career goals
- Industry-recognized certifications included
- 1-on-1 mentorship sessions with industry experts
- Job placement assistance and interview preparation

Pricing:
- Monthly: $149/month
- Annual: $999/year (save 44%)
- Enterprise: Custom pricing for teams

Success Stories:
- 87% of users report career advancement within 6 months
- 92% satisfaction rate from 50,000+ professionals

Ideal For:
- Working professionals seeking promotion or career change
- Recent graduates building their portfolios
- Teams looking to upskill employees`,
	PriceMonthly:   149,
	PriceAnnual:    999,
	TargetAudience: "Working professionals, recent graduates, career changers",
	KeyBenefits: []string{
		"Build a professional portfolio",
		"Earn industry certifications",
		"Get mentorship from experts",
		"Job placement assistance",
	},
}
