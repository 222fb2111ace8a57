package graph

import (
	"github.com/marketing-analytics-team/server/internal/agent/graph/supervisor"
	"github.com/marketing-analytics-team/server/internal/agent/model"
)

const stepCeilingMessage = "I could not complete this request: the workflow took too many steps. Please try a simpler or more specific request."

// ===== Small helpers to keep the loop simple/readable =====

// advanceStep counts one dispatched decision. It refuses, leaving the count
// untouched, when the ceiling is already reached.
func advanceStep(st *model.ConversationState, max int) bool {
	max = supervisor.NormalizeMaxSteps(max)
	if st.StepCount >= max {
		return false
	}
	st.StepCount++
	return true
}

// terminateTurn closes a turn that hit the step ceiling. Per-turn markers
// are cleared so the next turn starts clean.
func terminateTurn(st *model.ConversationState, msg model.Message) {
	st.AppendMessage(msg)
	st.PendingHandler = ""
	st.NeedsClarification = false
	st.ClarificationQuestion = ""
	st.ClarificationOptions = nil
	st.UserClarification = ""
	st.Checkpoint = nil
	st.Status = model.TurnTerminated
}
