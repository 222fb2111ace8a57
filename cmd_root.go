package main

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var conversationID string

var rootCmd = &cobra.Command{
	Use:   "marketeam",
	Short: "Marketing analytics team over the leads database",
	Long: `marketeam answers marketing questions with a small team of handlers:
a SQL data query agent, a data visualizer, a segmentation strategist,
a product expert and an email writer. A supervisor routes each request
to the handlers it needs and stops when the request is covered.

Configuration comes from the environment (or a .env file). Sessions are
kept in Redis when REDIS_URL is set, otherwise in memory for the life of
the process.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&conversationID, "conversation", "c", "", "Conversation id (generated when empty)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(resetCmd)
}

func resolveConversationID() string {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return conversationID
}
