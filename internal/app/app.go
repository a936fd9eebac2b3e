// Package app wires configuration into the pipeline shared by the service
// and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/prashanttc/tweetAut/internal/agents"
	"github.com/prashanttc/tweetAut/internal/compose"
	"github.com/prashanttc/tweetAut/internal/config"
	"github.com/prashanttc/tweetAut/internal/ledger"
	"github.com/prashanttc/tweetAut/internal/notify"
	"github.com/prashanttc/tweetAut/internal/publish"
	"github.com/prashanttc/tweetAut/internal/selector"
	"github.com/prashanttc/tweetAut/internal/sources"
	"github.com/prashanttc/tweetAut/pkg/database"
	"github.com/prashanttc/tweetAut/pkg/email"
	"github.com/prashanttc/tweetAut/pkg/llm"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
	"github.com/prashanttc/tweetAut/pkg/version"
)

// Agent names.
const (
	AgentMorning = "morning"
	AgentEvening = "evening"
	AgentTech    = "tech"
	AgentThread  = "thread"
)

// App holds the wired pipeline.
type App struct {
	Config  config.Config
	DB      *database.DB
	Ledger  *ledger.SQLStore
	Runner  *agents.Runner
	Metrics *monitoring.MetricsCollector
	Logger  logging.Logger
}

// New connects to the database, applies the schema and wires every agent.
// Missing credentials leave the corresponding client unset; the affected
// stage fails when it is first used.
func New(ctx context.Context, cfg config.Config, logger logging.Logger) (*App, error) {
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	db, err := database.Connect(ctx, dbCfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	mc := monitoring.NewMetricsCollector("tweetbot", version.Version, version.GitCommit)
	pm := mc.CreatePipelineMetrics()
	store := ledger.NewSQLStore(db)

	writer := newProvider(cfg.LLM, "writer", logger)
	ranker := newProvider(cfg.Ranker, "ranker", logger)
	generator := compose.NewGenerator(compose.Config{
		Writer:  writer,
		Ranker:  ranker,
		Retry:   cfg.Retry,
		Metrics: pm,
		Logger:  logger,
	})

	sel := selector.New(selector.Config{
		Ranker:        generator,
		Proposer:      generator,
		Retry:         cfg.Retry,
		FreshAttempts: cfg.FreshTopicAttempts,
		Logger:        logger,
	})

	var poster publish.Poster
	twitter, err := publish.NewTwitterClient(publish.TwitterConfig{
		APIKey:            cfg.TwitterAPIKey,
		APISecret:         cfg.TwitterAPISecret,
		AccessToken:       cfg.TwitterAccessToken,
		AccessTokenSecret: cfg.TwitterAccessTokenSecret,
		APIURL:            cfg.TwitterAPIURL,
	})
	if err != nil {
		logger.WithError(err).Warn("Twitter client unavailable - publishing disabled")
	} else {
		poster = twitter
	}
	sink := publish.NewSink(publish.SinkConfig{
		Poster:  poster,
		Ledger:  store,
		Retry:   cfg.Retry,
		Metrics: pm,
		Logger:  logger,
	})

	notifier := notify.New(notify.Config{
		Mailer:  email.NewSender(cfg.SMTP),
		Enabled: cfg.SMTP.Configured(),
		To:      cfg.NotifyEmail,
		Logger:  logger,
	})

	defs, err := Definitions(cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	runner := agents.NewRunner(agents.Config{
		Agents:     defs,
		Fetcher:    sources.NewFetcher(sources.FetcherConfig{MaxTopics: cfg.MaxTopics, Logger: logger}),
		Ledger:     store,
		Selector:   sel,
		Writer:     generator,
		Publisher:  sink,
		Notifier:   notifier,
		Metrics:    pm,
		Logger:     logger,
		RunTimeout: cfg.AgentRunTimeout,
		MaxPerDay:  cfg.MaxTweetsPerDay,
		Location:   cfg.Location(),
	})

	return &App{
		Config:  cfg,
		DB:      db,
		Ledger:  store,
		Runner:  runner,
		Metrics: mc,
		Logger:  logger,
	}, nil
}

// Definitions builds the four agents and their feed presets. Every Reddit
// source shares one client and one rate limiter.
func Definitions(cfg config.Config, logger logging.Logger) ([]agents.Definition, error) {
	lister, err := sources.NewRedditLister(sources.RedditCredentials{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.RedditConfigured() {
		logger.Info("Reddit credentials incomplete - reading anonymously")
	}
	limiter := sources.NewRedditLimiter(cfg.RedditRatePerMin)
	reddit := func(name string, subs []string) sources.Source {
		return sources.NewRedditSource(sources.RedditConfig{
			Lister:     lister,
			Subreddits: subs,
			Limit:      cfg.RedditLimit,
			Limiter:    limiter,
			Name:       name,
		})
	}
	hn := sources.NewHackerNewsSource(sources.HackerNewsConfig{
		Endpoint: cfg.HNSearchURL,
		Retry:    cfg.Retry,
	})

	return []agents.Definition{
		{
			Name:    AgentMorning,
			Sources: []sources.Source{reddit("reddit-morning", cfg.MorningSubreddits), hn},
			Style:   agents.StyleTech,
		},
		{
			Name:    AgentEvening,
			Sources: []sources.Source{reddit("reddit-shitpost", cfg.ShitpostSubreddits)},
			Style:   agents.StyleShitpost,
		},
		{
			Name:    AgentTech,
			Sources: []sources.Source{reddit("reddit-tech", cfg.TechSubreddits)},
			Style:   agents.StyleTech,
		},
		{
			Name:  AgentThread,
			Style: agents.StyleThread,
		},
	}, nil
}

func newProvider(cfg llm.Config, role string, logger logging.Logger) llm.Provider {
	if !cfg.Configured() {
		logger.WithField("role", role).Warn("LLM not configured - generation disabled")
		return nil
	}
	p, err := llm.NewProvider(cfg)
	if err != nil {
		logger.WithError(err).WithField("role", role).Warn("Failed to create LLM provider")
		return nil
	}
	return p
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}
