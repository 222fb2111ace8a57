package supervisor

import "github.com/marketing-analytics-team/server/internal/agent/model"

var (
	dataIntent = Keywords(
		`show`, `list`, `find`, `get`, `count`, `how many`, `top`,
		`customers?`, `leads?`,
	)
	vizIntent = Keywords(
		`chart`, `pie`, `bar`, `graph`, `plot`, `visuali[sz]\w*`,
		`distribution`, `breakdown`, `demographics?`, `characteristics?`,
		`insights?`, `analysis`,
	)
	strategyIntent = Keywords(
		`strateg(?:y|ies)`, `recommend\w*`, `approach(?:es)?`, `how to`,
		`marketing plan`, `re-?engage\w*`,
	)
	emailIntent = Pattern(`(?i)\b(e-?mails?|newsletter)\b|\b(draft|write)\b.*\b(message|campaign)\b`)
	// product details asked for on their own; an email about the product
	// pulls them from the catalog instead
	productIntent = All(Keywords(`learning labs`), Not(emailIntent))
)

// DefaultRoutes maps each handler to its trigger phrases, in priority order
// data-query > visualization > segmentation > product > email.
func DefaultRoutes() []Route {
	return []Route{
		{Handler: model.HandlerDataQuery, Matchers: []Matcher{dataIntent}},
		{Handler: model.HandlerVisualization, Matchers: []Matcher{vizIntent}},
		{Handler: model.HandlerSegmentation, Matchers: []Matcher{strategyIntent}},
		{Handler: model.HandlerProduct, Matchers: []Matcher{productIntent}},
		{Handler: model.HandlerEmail, Matchers: []Matcher{emailIntent}},
	}
}
