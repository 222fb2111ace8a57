package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marketing-analytics-team/server/internal/agent/graph/clarify"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Run one turn for a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		id := resolveConversationID()
		before, err := a.runner.State(ctx, id)
		if err != nil {
			return err
		}
		st, err := a.runner.Ask(ctx, id, strings.Join(args, " "))
		if err != nil {
			return err
		}
		printTurn(cmd.OutOrStdout(), st, len(before.History))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <conversation> <choice>",
	Short: "Answer a pending clarification by option number or text",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conversationID = args[0]
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		before, err := a.runner.State(ctx, conversationID)
		if err != nil {
			return err
		}
		st, err := a.runner.Resume(ctx, conversationID, strings.Join(args[1:], " "))
		switch {
		case errors.Is(err, clarify.ErrNoPendingClarification):
			return fmt.Errorf("conversation %s has no pending clarification", conversationID)
		case errors.Is(err, clarify.ErrInvalidChoice):
			printOptions(cmd.OutOrStdout(), before.ClarificationOptions)
			return err
		case err != nil:
			return err
		}
		printTurn(cmd.OutOrStdout(), st, len(before.History))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear a conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if conversationID == "" {
			return fmt.Errorf("reset needs --conversation")
		}
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.runner.Reset(cmd.Context(), conversationID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("conversation "+conversationID+" cleared"))
		return nil
	},
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cmd.Context(), cfg)
}
