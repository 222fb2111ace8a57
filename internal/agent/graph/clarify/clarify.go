// Package clarify implements the two-phase clarification protocol: Suspend
// writes a resumption marker into the conversation state, Resume reads it
// back once the user has picked an option.
package clarify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

var (
	// ErrClarificationPending rejects a second suspend while one is open.
	ErrClarificationPending = errors.New("clarification already pending")
	// ErrNoPendingClarification rejects a resume with nothing to resume.
	ErrNoPendingClarification = errors.New("no pending clarification")
	// ErrInvalidChoice rejects an empty or out-of-range choice.
	ErrInvalidChoice = errors.New("invalid clarification choice")
)

// Suspend marks the state as awaiting a clarification. It fails without
// touching st when a clarification is already pending or no options are
// given, so needs_clarification always implies a non-empty option list.
func Suspend(st *model.ConversationState, req model.SuspendRequest) error {
	if st.NeedsClarification {
		return ErrClarificationPending
	}
	if len(req.Options) == 0 {
		return fmt.Errorf("suspend without options: %w", ErrInvalidChoice)
	}

	cp := req.Checkpoint
	st.NeedsClarification = true
	st.ClarificationQuestion = req.Question
	st.ClarificationOptions = append([]string(nil), req.Options...)
	st.UserClarification = ""
	st.Checkpoint = &cp
	st.Status = model.TurnSuspended
	return nil
}

// Resume records the user's choice and clears the pending options. The
// checkpoint stays in place for the pipeline to pick up. choice may be one
// of the offered options (case-insensitive), its 1-based index, or free text.
func Resume(st *model.ConversationState, choice string) (string, error) {
	if !st.NeedsClarification {
		return "", ErrNoPendingClarification
	}
	resolved, err := ResolveChoice(st.ClarificationOptions, choice)
	if err != nil {
		return "", err
	}

	st.UserClarification = resolved
	st.NeedsClarification = false
	st.ClarificationQuestion = ""
	st.ClarificationOptions = nil
	st.Status = model.TurnRunning
	return resolved, nil
}

// ResolveChoice maps raw input onto the option it names.
func ResolveChoice(options []string, choice string) (string, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return "", ErrInvalidChoice
	}
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(options) {
			return "", fmt.Errorf("option %d of %d: %w", n, len(options), ErrInvalidChoice)
		}
		return options[n-1], nil
	}
	for _, o := range options {
		if strings.EqualFold(o, choice) {
			return o, nil
		}
	}
	return choice, nil
}

// Pending reports whether st is waiting on the user.
func Pending(st *model.ConversationState) bool {
	return st.NeedsClarification && st.UserClarification == ""
}
