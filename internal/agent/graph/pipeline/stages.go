package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marketing-analytics-team/server/internal/agent/graph/conversations"
	"github.com/marketing-analytics-team/server/internal/agent/graph/parsers"
	"github.com/marketing-analytics-team/server/internal/agent/graph/prompts"
	"github.com/marketing-analytics-team/server/internal/agent/model"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

func (p *Pipeline) planStage(ctx context.Context, r *run) (*run, error) {
	r.visit(model.StagePlan)

	history, prior := conversations.BuildContext(r.state, p.cfg.ContextTurns)
	msgs, err := prompts.RenderPlan(ctx, prompts.PlanInput{
		Schema:    p.cfg.Schema,
		Request:   r.request,
		History:   history,
		PriorData: prior,
	})
	if err != nil {
		return nil, err
	}
	res, err := p.cfg.LLM.Complete(ctx, NodePlan, msgs)
	if err != nil {
		r.finish(model.KindError, "Could not plan the query: "+err.Error(), &model.Payload{Stage: model.StagePlan})
		return r, nil
	}
	r.addUsage(res)
	r.plan = res.Content
	r.outcome.SQLPlan = r.plan

	logx.Debug().
		Str("conversation_id", r.state.ConversationID).
		Str("stage", string(model.StagePlan)).
		Int("plan_len", len(r.plan)).
		Msg("Plan generated")

	if parsers.IsCannotAnswer(r.plan) {
		reason := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(r.plan), "CANNOT_ANSWER"))
		reason = strings.TrimSpace(strings.TrimPrefix(reason, ":"))
		var b strings.Builder
		b.WriteString("I can't answer that from the available data.")
		if reason != "" {
			b.WriteString(" " + reason)
		}
		fmt.Fprintf(&b, "\n\nAvailable columns: %s", strings.Join(p.cfg.Schema.Primary().ColumnNames(), ", "))
		r.finish(model.KindNotice, b.String(), &model.Payload{Plan: r.plan, Stage: model.StagePlan})
	}
	return r, nil
}

func (p *Pipeline) detectStage(_ context.Context, r *run) (*run, error) {
	r.visit(model.StageDetect)

	reason, offTask := parsers.DetectOffTask(r.plan)
	if !offTask {
		return r, nil
	}
	dp := detectPrompts[reason]
	logx.Warn().
		Str("conversation_id", r.state.ConversationID).
		Str("stage", string(model.StageDetect)).
		Str("reason", string(reason)).
		Msg("Plan drifted off the schema; asking for clarification")

	r.suspend(model.StageDetect, string(reason), dp.question, dp.options)
	return r, nil
}

// resumeStage consumes the user's clarification and either ends the run or
// folds the answer into the saved plan for Validate.
func (p *Pipeline) resumeStage(_ context.Context, r *run) (*run, error) {
	cp := r.state.Checkpoint
	choice := r.state.UserClarification
	r.outcome.ConsumedClarification = true

	logx.Debug().
		Str("conversation_id", r.state.ConversationID).
		Str("requested_by", string(cp.RequestedBy)).
		Str("choice", choice).
		Msg("Resuming query pipeline")

	switch classifyChoice(choice) {
	case actionCancel:
		r.finish(model.KindNotice, "Query cancelled.", nil)
	case actionShowSchema:
		r.finish(model.KindNotice, "Available data:\n\n"+p.cfg.Schema.Describe(), nil)
	case actionRephrase:
		r.finish(model.KindNotice, "Please rephrase your question using the customer data fields (for example: segment, engagement score, lead source, country).", nil)
	default:
		r.plan = foldClarification(cp.Plan, choice)
		r.outcome.SQLPlan = r.plan
	}
	return r, nil
}

func (p *Pipeline) validateStage(ctx context.Context, r *run) (*run, error) {
	r.visit(model.StageValidate)

	msgs, err := prompts.RenderSQL(ctx, p.cfg.Schema, r.plan)
	if err != nil {
		return nil, err
	}
	res, err := p.cfg.LLM.Complete(ctx, NodeValidate, msgs)
	if err != nil {
		r.finish(model.KindError, "Could not generate the query: "+err.Error(), &model.Payload{Plan: r.plan, Stage: model.StageValidate})
		return r, nil
	}
	r.addUsage(res)
	if reason, offTask := parsers.DetectOffTaskSQL(res.Content); offTask {
		logx.Warn().
			Str("conversation_id", r.state.ConversationID).
			Str("stage", string(model.StageValidate)).
			Str("reason", string(reason)).
			Msg("Query model drifted off the schema; asking for clarification")
		r.suspend(model.StageValidate, string(reason), sqlDriftPrompt.question, sqlDriftPrompt.options)
		return r, nil
	}
	r.query = parsers.ExtractSQL(res.Content)
	r.outcome.SQLQuery = r.query

	verr := parsers.ValidateQuery(r.query, p.cfg.Schema)
	if verr == nil {
		return r, nil
	}
	var ve *parsers.ValidationError
	if !errors.As(verr, &ve) {
		return nil, verr
	}
	r.outcome.SQLValidationError = ve.Message

	logx.Warn().
		Str("conversation_id", r.state.ConversationID).
		Str("stage", string(model.StageValidate)).
		Str("kind", string(ve.Kind)).
		Strs("unknown", ve.Unknown).
		Msg("Query failed schema validation")

	question := "Query validation failed: " + ve.Message
	if len(ve.Suggestions) > 0 && ve.Kind != parsers.KindStructural {
		question += " Did you mean one of these?"
	}
	r.suspend(model.StageValidate, string(ve.Kind), question, validationOptions(ve))
	return r, nil
}

func (p *Pipeline) executeStage(ctx context.Context, r *run) (*run, error) {
	r.visit(model.StageExecute)

	rs, err := p.cfg.Store.Execute(ctx, r.query, p.cfg.RowCap)
	if err != nil {
		logx.Error().Err(err).
			Str("conversation_id", r.state.ConversationID).
			Str("stage", string(model.StageExecute)).
			Msg("Query execution failed")
		r.finish(model.KindError,
			fmt.Sprintf("Execution Error: %v\n\nSQL: %s", err, r.query),
			&model.Payload{Plan: r.plan, Query: r.query, Stage: model.StageExecute})
		return r, nil
	}
	rs.Query = r.query
	r.outcome.RetrievedData = rs

	logx.Info().
		Str("conversation_id", r.state.ConversationID).
		Str("stage", string(model.StageExecute)).
		Int("rows", rs.Len()).
		Bool("truncated", rs.Truncated).
		Msg("Query executed")

	r.finish(model.KindResult, p.describeResult(r.plan, rs),
		&model.Payload{Plan: r.plan, Query: r.query, RowCount: rs.Len(), Stage: model.StageExecute})
	return r, nil
}

func (p *Pipeline) describeResult(plan string, rs *model.ResultSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %s\n\nSQL: %s\n\n", plan, rs.Query)
	if rs.Len() == 0 {
		b.WriteString("No data found.")
		return b.String()
	}
	fmt.Fprintf(&b, "Found %d rows", rs.Len())
	if rs.Truncated {
		fmt.Fprintf(&b, " (limited to %d)", p.cfg.RowCap)
	}
	b.WriteString(".\n\n")
	if rs.Len() > p.cfg.PreviewRows {
		fmt.Fprintf(&b, "First %d rows:\n", p.cfg.PreviewRows)
	}
	b.WriteString(rs.Markdown(p.cfg.PreviewRows))
	return strings.TrimRight(b.String(), "\n")
}

// suspend ends the run with a clarification request. The loop commits it
// through the clarification protocol.
func (r *run) suspend(stage model.Stage, reason, question string, options []string) {
	r.outcome.Suspend = &model.SuspendRequest{
		Question: question,
		Options:  options,
		Checkpoint: model.Checkpoint{
			RequestedBy: stage,
			Reason:      reason,
			Plan:        r.plan,
			Query:       r.query,
		},
	}
	r.finish(model.KindClarification, question, &model.Payload{
		Plan:    r.plan,
		Query:   r.query,
		Options: append([]string(nil), options...),
		Stage:   stage,
	})
}
