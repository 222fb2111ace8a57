package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/marketing-analytics-team/server/internal/agent/graph/clarify"
	"github.com/marketing-analytics-team/server/internal/agent/graph/conversations"
	"github.com/marketing-analytics-team/server/internal/agent/graph/nodes"
	"github.com/marketing-analytics-team/server/internal/agent/graph/supervisor"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// Orchestrator is the orchestration loop: it alternates supervisor decisions
// and handler runs until the turn completes, suspends or hits the step
// ceiling. It is the only writer of ConversationState during a turn.
type Orchestrator struct {
	supervisor *supervisor.Supervisor
	handlers   map[model.HandlerID]nodes.Handler
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracer sets the tracer for turn and step spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides the message timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// NewOrchestrator requires one handler per known handler id.
func NewOrchestrator(sup *supervisor.Supervisor, handlers []nodes.Handler, opts ...Option) (*Orchestrator, error) {
	if sup == nil {
		return nil, fmt.Errorf("supervisor is nil")
	}
	o := &Orchestrator{
		supervisor: sup,
		handlers:   make(map[model.HandlerID]nodes.Handler, len(handlers)),
		tracer:     noop.NewTracerProvider().Tracer("marketeam/orchestrator"),
		now:        time.Now,
	}
	for _, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("nil handler")
		}
		if !h.ID().Valid() {
			return nil, fmt.Errorf("unknown handler %q", h.ID())
		}
		if _, dup := o.handlers[h.ID()]; dup {
			return nil, fmt.Errorf("duplicate handler %q", h.ID())
		}
		o.handlers[h.ID()] = h
	}
	for _, id := range model.HandlerPriority {
		if _, ok := o.handlers[id]; !ok {
			return nil, fmt.Errorf("missing handler %q", id)
		}
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunTurn starts a turn for userMessage on st and drives it to completion,
// suspension or the step ceiling. st is mutated in place and returned.
// The only error is an internal-consistency failure; st is still usable.
func (o *Orchestrator) RunTurn(ctx context.Context, st *model.ConversationState, userMessage string) (*model.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("conversation state is nil")
	}
	if clarify.Pending(st) {
		logx.Info().Str("conversation_id", st.ConversationID).Msg("New message abandons pending clarification")
	}
	st.BeginTurn(strings.TrimSpace(userMessage), o.now())

	ctx, span := o.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("conversation_id", st.ConversationID),
		attribute.String("mode", "run"),
	))
	defer span.End()

	err := o.loop(ctx, st)
	o.endSpan(span, st, err)
	return st, err
}

// Resume answers the pending clarification with choice and continues the
// suspended turn. Completed handlers and the step count carry over.
func (o *Orchestrator) Resume(ctx context.Context, st *model.ConversationState, choice string) (*model.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("conversation state is nil")
	}
	resolved, err := clarify.Resume(st, choice)
	if err != nil {
		return st, err
	}
	st.AppendMessage(conversations.NewUserMessage(model.KindClarification, resolved, o.now()))

	ctx, span := o.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("conversation_id", st.ConversationID),
		attribute.String("mode", "resume"),
	))
	defer span.End()

	err = o.loop(ctx, st)
	o.endSpan(span, st, err)
	return st, err
}

func (o *Orchestrator) loop(ctx context.Context, st *model.ConversationState) error {
	for {
		d := o.supervisor.Decide(st)
		if d.Done() {
			return o.stop(st, d.Reason)
		}
		next := d.Next
		if st.HasCompleted(next) {
			// the supervisor never routes to a completed handler; running it
			// again would duplicate its message
			err := errx.Internal(fmt.Errorf("supervisor routed to completed handler %q", next))
			logx.Error().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(next)).Msg("Duplicate dispatch refused")
			o.complete(st)
			return err
		}
		if !advanceStep(st, o.supervisor.MaxSteps()) {
			return o.stop(st, supervisor.ReasonStepCeiling)
		}

		st.PendingHandler = next
		suspended, err := o.dispatch(ctx, st, next)
		if err != nil {
			return err
		}
		if suspended {
			return nil
		}
	}
}

// dispatch runs one handler on a snapshot and commits its outcome.
func (o *Orchestrator) dispatch(ctx context.Context, st *model.ConversationState, id model.HandlerID) (bool, error) {
	ctx, span := o.tracer.Start(ctx, "step", trace.WithAttributes(
		attribute.String("handler", string(id)),
		attribute.Int("step", st.StepCount),
	))
	defer span.End()

	logx.Debug().
		Str("conversation_id", st.ConversationID).
		Str("handler", string(id)).
		Int("step", st.StepCount).
		Msg("Dispatching handler")

	out, err := o.handlers[id].Handle(ctx, st.Clone())
	if err != nil {
		span.RecordError(err)
		logx.Error().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(id)).Msg("Handler failed")
		out = model.Outcome{
			Message: model.Message{
				Role:    schema.Assistant,
				Kind:    model.KindError,
				Content: "Something went wrong while working on this part of the request.",
			},
			ConsumedClarification: st.UserClarification != "",
		}
	}
	return o.commit(st, id, out)
}

// commit merges a handler outcome into st. A suspension leaves the handler
// uncompleted because it has not finished its work.
func (o *Orchestrator) commit(st *model.ConversationState, id model.HandlerID, out model.Outcome) (bool, error) {
	if out.Message.Content != "" {
		msg := out.Message
		msg.Role = schema.Assistant
		msg.Handler = id
		msg.CreatedAt = o.now()
		st.AppendMessage(msg)
	}
	if out.RetrievedData != nil {
		st.RetrievedData = out.RetrievedData
	}
	if out.SQLPlan != "" {
		st.SQLPlan = out.SQLPlan
	}
	if out.SQLQuery != "" {
		st.SQLQuery = out.SQLQuery
	}
	st.SQLValidationError = out.SQLValidationError
	if out.ProductInfo != "" {
		st.ProductInfo = out.ProductInfo
	}
	if out.SegmentAnalysis != "" {
		st.SegmentAnalysis = out.SegmentAnalysis
	}
	if out.EmailDraft != "" {
		st.EmailDraft = out.EmailDraft
	}
	st.UsageCostUSD += out.CostUSD

	if out.ConsumedClarification {
		st.UserClarification = ""
		st.Checkpoint = nil
	}

	if out.Suspend != nil {
		if err := clarify.Suspend(st, *out.Suspend); err != nil {
			err = errx.Internal(fmt.Errorf("handler %q: %w", id, err))
			logx.Error().Err(err).Str("conversation_id", st.ConversationID).Str("handler", string(id)).Msg("Suspend rejected")
			o.complete(st)
			return false, err
		}
		logx.Info().
			Str("conversation_id", st.ConversationID).
			Str("handler", string(id)).
			Str("stage", string(out.Suspend.Checkpoint.RequestedBy)).
			Int("options", len(out.Suspend.Options)).
			Msg("Turn suspended for clarification")
		return true, nil
	}

	if !st.MarkCompleted(id) {
		err := errx.Internal(fmt.Errorf("handler %q completed twice", id))
		logx.Error().Err(err).Str("conversation_id", st.ConversationID).Msg("Duplicate completion")
		return false, err
	}
	st.PendingHandler = ""
	logx.Debug().
		Str("conversation_id", st.ConversationID).
		Str("handler", string(id)).
		Int("step", st.StepCount).
		Strs("stages", stageNames(out.Stages)).
		Msg("Handler completed")
	return false, nil
}

func (o *Orchestrator) stop(st *model.ConversationState, reason supervisor.StopReason) error {
	switch reason {
	case supervisor.ReasonAwaitingClarification:
		st.Status = model.TurnSuspended
	case supervisor.ReasonStepCeiling:
		logx.Warn().Str("conversation_id", st.ConversationID).Int("step", st.StepCount).Msg("Step ceiling reached")
		terminateTurn(st, model.Message{
			Role:      schema.Assistant,
			Kind:      model.KindError,
			Content:   stepCeilingMessage,
			CreatedAt: o.now(),
		})
	default:
		o.complete(st)
	}
	return nil
}

func (o *Orchestrator) complete(st *model.ConversationState) {
	st.PendingHandler = ""
	st.Status = model.TurnCompleted
	logx.Debug().
		Str("conversation_id", st.ConversationID).
		Int("step", st.StepCount).
		Int("handlers", len(st.CompletedHandlers)).
		Msg("Turn completed")
}

func (o *Orchestrator) endSpan(span trace.Span, st *model.ConversationState, err error) {
	span.SetAttributes(
		attribute.Int("steps", st.StepCount),
		attribute.String("status", string(st.Status)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func stageNames(stages []model.Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
