package supervisor

import (
	"regexp"
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

// StopReason explains an empty decision.
type StopReason string

const (
	ReasonNone                  StopReason = ""
	ReasonAwaitingClarification StopReason = "awaiting_clarification"
	ReasonComplete              StopReason = "complete"
	ReasonStepCeiling           StopReason = "step_ceiling"
)

// Decision is the supervisor's answer: a handler to run next, or an empty
// Next with the reason the turn stops.
type Decision struct {
	Next   model.HandlerID
	Reason StopReason
}

// Done reports whether the decision ends the turn.
func (d Decision) Done() bool {
	return d.Next == ""
}

// Matcher is a predicate over the latest request text.
type Matcher func(request string) bool

// Route binds a handler to the matchers that imply it. A route matches when
// any of its matchers does.
type Route struct {
	Handler  model.HandlerID
	Matchers []Matcher
}

func (r Route) matches(request string) bool {
	for _, m := range r.Matchers {
		if m(request) {
			return true
		}
	}
	return false
}

// Supervisor is the routing policy. It only reads state.
type Supervisor struct {
	routes   []Route
	maxSteps int
}

// New builds a supervisor with the default routes in handler priority order.
// A non-positive maxSteps falls back to DefaultMaxSteps.
func New(maxSteps int, routes ...Route) *Supervisor {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	return &Supervisor{routes: routes, maxSteps: NormalizeMaxSteps(maxSteps)}
}

// DefaultMaxSteps is the step ceiling used when none is configured.
const DefaultMaxSteps = 8

// NormalizeMaxSteps returns a sane default when the provided value is invalid.
func NormalizeMaxSteps(n int) int {
	if n <= 0 {
		return DefaultMaxSteps
	}
	return n
}

// MaxSteps returns the configured ceiling.
func (s *Supervisor) MaxSteps() int {
	return s.maxSteps
}

// Decide picks the next handler for st. Same state in, same decision out.
func (s *Supervisor) Decide(st *model.ConversationState) Decision {
	if st.NeedsClarification && st.UserClarification == "" {
		return Decision{Reason: ReasonAwaitingClarification}
	}
	next := s.next(st)
	if next == "" {
		return Decision{Reason: ReasonComplete}
	}
	// the ceiling only stops a turn that still has work left
	if st.StepCount >= s.maxSteps {
		return Decision{Reason: ReasonStepCeiling}
	}
	return Decision{Next: next}
}

func (s *Supervisor) next(st *model.ConversationState) model.HandlerID {
	// a clarified checkpoint hands control back to the pipeline that asked
	if st.Checkpoint != nil && st.UserClarification != "" && !st.HasCompleted(model.HandlerDataQuery) {
		return model.HandlerDataQuery
	}
	for _, h := range s.Implied(st.LatestRequest()) {
		if !st.HasCompleted(h) {
			return h
		}
	}
	if len(st.CompletedHandlers) == 0 {
		return model.HandlerDataQuery
	}
	return ""
}

// Implied lists every handler whose matchers fire on request, in priority order.
func (s *Supervisor) Implied(request string) []model.HandlerID {
	var out []model.HandlerID
	for _, r := range s.routes {
		if r.matches(request) {
			out = append(out, r.Handler)
		}
	}
	return out
}

// Keywords returns a matcher for whole-word, case-insensitive matches of
// any of the given patterns.
func Keywords(patterns ...string) Matcher {
	re := regexp.MustCompile(`(?i)\b(` + strings.Join(patterns, "|") + `)\b`)
	return re.MatchString
}

// Pattern returns a matcher for a raw regular expression.
func Pattern(expr string) Matcher {
	return regexp.MustCompile(expr).MatchString
}

// Not negates m.
func Not(m Matcher) Matcher {
	return func(s string) bool { return !m(s) }
}

// All matches when every matcher does.
func All(ms ...Matcher) Matcher {
	return func(s string) bool {
		for _, m := range ms {
			if !m(s) {
				return false
			}
		}
		return true
	}
}
