package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marketing-analytics-team/server/internal/agent/model"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the data description handed to the query planner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		schema := model.DefaultSchema()
		if cfg.Query.SchemaFile != "" {
			if schema, err = model.LoadSchema(cfg.Query.SchemaFile); err != nil {
				return err
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), schema.Describe())
		return nil
	},
}
