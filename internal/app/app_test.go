package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashanttc/tweetAut/internal/config"
	"github.com/prashanttc/tweetAut/internal/pipeline"
	"github.com/prashanttc/tweetAut/pkg/logging"
)

func testConfig() config.Config {
	cfg := config.LoadConfig()
	cfg.DatabaseURL = "sqlite://:memory:"
	cfg.LLM.APIKey = ""
	cfg.LLM.APIURL = ""
	cfg.Ranker = cfg.LLM
	cfg.TwitterAPIKey = ""
	cfg.SMTP.Host = ""
	return cfg
}

func TestNewWiresEveryAgent(t *testing.T) {
	a, err := New(context.Background(), testConfig(), logging.NewDiscardLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{AgentEvening, AgentMorning, AgentTech, AgentThread}, a.Runner.Names())

	tweets, err := a.Ledger.RecentTweets(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, tweets, "schema applied and empty")
}

func TestThreadWithoutModelFailsAtSelection(t *testing.T) {
	a, err := New(context.Background(), testConfig(), logging.NewDiscardLogger())
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Runner.Run(context.Background(), AgentThread)
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, pipeline.ErrSelectionFailure)
}

func TestDefinitionsPresets(t *testing.T) {
	cfg := testConfig()
	defs, err := Definitions(cfg, logging.NewDiscardLogger())
	require.NoError(t, err)
	require.Len(t, defs, 4)

	byName := map[string]int{}
	for _, d := range defs {
		byName[d.Name] = len(d.Sources)
	}
	assert.Equal(t, 2, byName[AgentMorning], "morning reads Reddit and Hacker News")
	assert.Equal(t, 1, byName[AgentEvening])
	assert.Equal(t, 1, byName[AgentTech])
	assert.Equal(t, 0, byName[AgentThread])
}
