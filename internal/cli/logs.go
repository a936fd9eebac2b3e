package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prashanttc/tweetAut/internal/ledger"
)

func newLogsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the most recent published tweets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setup(cmd)
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tweets, err := ledger.NewSQLStore(db).RecentTweets(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return writeJSON(cmd.OutOrStdout(), tweets)
			}

			w := cmd.OutOrStdout()
			if len(tweets) == 0 {
				fmt.Fprintln(w, "No tweets posted yet.")
				return nil
			}
			fmt.Fprintf(w, "Tweets (%d)\n", len(tweets))
			for _, t := range tweets {
				content := strings.ReplaceAll(t.Content, "\n\n", " / ")
				fmt.Fprintf(w, " - %s %s\n   %s\n", t.CreatedAt.UTC().Format(time.DateTime), t.PostURL, content)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of tweets to show")
	return cmd
}
