package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prashanttc/tweetAut/pkg/database"
)

func newMigrateCmd() *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setup(cmd)
			if printOnly {
				dialect, _, err := database.ParseURL(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				schema, err := database.Schema(dialect)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), schema)
				return nil
			}

			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema applied (%s)\n", db.Dialect)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}
