package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/search"
)

var queryCmd = &cobra.Command{
	Use:   "query [statement]",
	Short: "Run a read-only SQL statement against the store",
	Long: `Run a single SELECT (or WITH ... SELECT) statement and print the rows
as JSON. Statements containing write keywords are rejected before
reaching the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.DatabaseURL == "" {
			return eris.New("store.database_url is not configured")
		}
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
		if err != nil {
			return err
		}
		defer pool.Close()

		rows, err := search.AdhocQuery(ctx, pool, args[0])
		if err != nil {
			return err
		}
		return printJSON(rows)
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
