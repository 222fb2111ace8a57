package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marketing-analytics-team/server/internal/agent/graph/clarify"
	"github.com/marketing-analytics-team/server/internal/agent/model"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive session; answer clarifications by option number",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		return chatLoop(cmd, a)
	},
}

func chatLoop(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	id := resolveConversationID()

	fmt.Fprintln(out, titleStyle.Render("marketeam")+" "+mutedStyle.Render("conversation "+id))
	fmt.Fprintln(out, mutedStyle.Render("/reset clears the conversation, /schema shows the data, /quit exits"))

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("> "))
		if !in.Scan() {
			if err := in.Err(); err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return nil
		}
		line := strings.TrimSpace(in.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/schema":
			fmt.Fprintln(out, a.schema.Describe())
			continue
		case "/reset":
			if err := a.runner.Reset(ctx, id); err != nil {
				return err
			}
			fmt.Fprintln(out, mutedStyle.Render("conversation cleared"))
			continue
		}

		before, err := a.runner.State(ctx, id)
		if err != nil {
			return err
		}
		var st *model.ConversationState
		if clarify.Pending(before) {
			// free text that names no option is taken as the answer
			st, err = a.runner.Resume(ctx, id, line)
		} else {
			st, err = a.runner.Ask(ctx, id, line)
		}
		if errors.Is(err, clarify.ErrInvalidChoice) {
			fmt.Fprintln(out, errorStyle.Render("Pick one of the numbered options."))
			printOptions(out, before.ClarificationOptions)
			continue
		}
		if err != nil {
			return err
		}
		printTurn(out, st, len(before.History))
	}
}
