package pipeline

import (
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/graph/parsers"
)

// Clarification choices with fixed meaning on resumption.
const (
	OptionCancel           = "Cancel"
	OptionShowSchema       = "Show schema"
	OptionRephrase         = "Let me rephrase"
	OptionSomethingElse    = "Something else - let me rephrase"
	OptionSimplerQuery     = "Try a simpler query"
	OptionChampions        = "Champions customer segment"
	OptionSegmentDist      = "Show segment distribution"
	OptionTopCustomers     = "List top customers"
	OptionAllSegments      = "Show all segments"
	OptionShowTopCustomers = "Show top customers"
	OptionSegmentCounts    = "Show segment counts"
	OptionTopChampions     = "Show top 20 Champions"
	OptionLeadSources      = "Show lead sources"
)

// maxColumnSuggestions bounds the options offered for an unknown column.
const maxColumnSuggestions = 3

type detectPrompt struct {
	question string
	options  []string
}

var detectPrompts = map[parsers.OffTaskReason]detectPrompt{
	parsers.ReasonGaming: {
		question: "It looks like this was read as a question about games or sports. Did you mean a customer segment?",
		options:  []string{OptionChampions, OptionSomethingElse},
	},
	parsers.ReasonWebSearch: {
		question: "I can only answer from the leads database. What would you like to see?",
		options:  []string{OptionSegmentDist, OptionTopCustomers, OptionRephrase},
	},
	parsers.ReasonNotSQL: {
		question: "I couldn't turn that into a data query. Pick one of these or cancel.",
		options:  []string{OptionAllSegments, OptionShowTopCustomers, OptionCancel},
	},
}

// offered when the query model answers with something other than SQL
var sqlDriftPrompt = detectPrompt{
	question: "I couldn't generate a valid SQL query for your request. What would you like to query?",
	options:  []string{OptionSegmentCounts, OptionTopChampions, OptionLeadSources},
}

var structuralOptions = []string{OptionSimplerQuery, OptionShowSchema, OptionCancel}

// choiceAction is what a resumed pipeline does with the user's choice.
type choiceAction int

const (
	actionFold choiceAction = iota
	actionCancel
	actionShowSchema
	actionRephrase
)

func classifyChoice(choice string) choiceAction {
	c := strings.ToLower(strings.TrimSpace(choice))
	switch {
	case c == strings.ToLower(OptionCancel):
		return actionCancel
	case c == strings.ToLower(OptionShowSchema):
		return actionShowSchema
	case c == strings.ToLower(OptionRephrase), c == strings.ToLower(OptionSomethingElse), strings.Contains(c, "rephrase"):
		return actionRephrase
	}
	return actionFold
}

// foldClarification appends the user's answer to the suspended plan.
func foldClarification(plan, choice string) string {
	note := "User clarified: " + strings.TrimSpace(choice)
	if strings.EqualFold(strings.TrimSpace(choice), OptionSimplerQuery) {
		note = "User clarified: use a single simple SELECT over one table, no joins or subqueries"
	}
	if strings.TrimSpace(plan) == "" {
		return note
	}
	return strings.TrimSpace(plan) + "\n\n" + note
}

// validationOptions offers the nearest columns for unknown names and the
// generic escape hatches otherwise.
func validationOptions(verr *parsers.ValidationError) []string {
	if verr.Kind == parsers.KindStructural || len(verr.Suggestions) == 0 {
		return append([]string(nil), structuralOptions...)
	}
	n := min(len(verr.Suggestions), maxColumnSuggestions)
	opts := make([]string, 0, n+1)
	for _, s := range verr.Suggestions[:n] {
		opts = append(opts, "Use "+s)
	}
	return append(opts, OptionCancel)
}
