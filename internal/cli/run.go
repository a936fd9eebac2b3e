package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prashanttc/tweetAut/internal/app"
	botconfig "github.com/prashanttc/tweetAut/internal/config"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

type runOutput struct {
	Agent    string `json:"agent"`
	Status   string `json:"status"`
	Topic    string `json:"topic,omitempty"`
	PostURL  string `json:"post_url,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Duration string `json:"duration"`
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "run <agent>",
		Short:     "Run one posting agent once and exit",
		Long:      "Runs the full fetch, select, generate and publish pipeline for an agent (morning, evening, tech or thread).",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{app.AgentMorning, app.AgentEvening, app.AgentTech, app.AgentThread},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := setup(cmd)
			return runAgent(cmd, cfg, logger, args[0])
		},
	}
}

func runAgent(cmd *cobra.Command, cfg botconfig.Config, logger logging.Logger, agent string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := cfg.Validate(); err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	res, err := a.Runner.Run(ctx, agent)
	if err != nil {
		return err
	}

	out := runOutput{
		Agent:    res.Agent,
		Status:   string(res.Status),
		Topic:    res.Topic,
		PostURL:  res.PostURL,
		Reason:   res.Reason,
		Duration: res.Duration.String(),
	}
	if jsonOutput() {
		if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: %s\n", out.Agent, out.Status)
		if out.Topic != "" {
			fmt.Fprintf(w, " - topic: %s\n", out.Topic)
		}
		if out.PostURL != "" {
			fmt.Fprintf(w, " - url: %s\n", out.PostURL)
		}
		if out.Reason != "" {
			fmt.Fprintf(w, " - reason: %s\n", out.Reason)
		}
	}

	if res.Status == pipeline.StatusFailed {
		return fmt.Errorf("%s agent failed", agent)
	}
	return nil
}
