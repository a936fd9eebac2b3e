package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prashanttc/tweetAut/pkg/config"
	"github.com/prashanttc/tweetAut/pkg/email"
	"github.com/prashanttc/tweetAut/pkg/llm"
	"github.com/prashanttc/tweetAut/pkg/retry"
)

// Feed presets, overridable per environment.
var (
	DefaultMorningSubreddits  = []string{"futurology", "technology", "TwoXChromosomes"}
	DefaultTechSubreddits     = []string{"technology", "programming", "cscareerquestions", "webdev"}
	DefaultShitpostSubreddits = []string{"CasualConversation", "TwoXChromosomes", "GenZ", "Showerthoughts"}
)

// Config stores environment configuration for the tweet bot.
type Config struct {
	Port        string
	DatabaseURL string
	CronSecret  string
	LogLevel    string

	LLM    llm.Config
	Ranker llm.Config

	RedditClientID     string
	RedditClientSecret string
	RedditUsername     string
	RedditPassword     string
	RedditUserAgent    string
	RedditLimit        int
	RedditRatePerMin   int
	MorningSubreddits  []string
	TechSubreddits     []string
	ShitpostSubreddits []string
	HNSearchURL        string
	MaxTopics          int

	TwitterAPIKey            string
	TwitterAPISecret         string
	TwitterAccessToken       string
	TwitterAccessTokenSecret string
	TwitterAPIURL            string

	TelegramBotToken string
	TelegramAdminIDs []int64
	RedisURL         string

	SMTP        email.Config
	NotifyEmail string

	FreshTopicAttempts int
	Retry              retry.Policy
	AgentRunTimeout    time.Duration
	MaxTweetsPerDay    int

	ScheduleMorning string
	ScheduleEvening string
	ScheduleTech    string
	ScheduleThread  string
	Timezone        string
}

// LoadConfig loads the bot configuration from environment variables.
func LoadConfig() Config {
	policy := retry.DefaultPolicy()
	policy.Attempts = config.GetEnvInt("RETRY_ATTEMPTS", policy.Attempts)
	policy.BaseDelay = config.GetEnvDuration("RETRY_BASE_DELAY", policy.BaseDelay)
	policy.MaxDelay = config.GetEnvDuration("RETRY_MAX_DELAY", policy.MaxDelay)

	return Config{
		Port:        config.GetEnv("PORT", "3000"),
		DatabaseURL: config.GetEnv("DATABASE_URL", "sqlite://tweetbot.db"),
		CronSecret:  config.GetEnv("CRON_SECRET", ""),
		LogLevel:    config.GetEnv("LOG_LEVEL", "info"),

		LLM:    llm.LoadConfig(),
		Ranker: llm.LoadRankerConfig(),

		RedditClientID:     config.GetEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: config.GetEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUsername:     config.GetEnv("REDDIT_USERNAME", ""),
		RedditPassword:     config.GetEnv("REDDIT_PASSWORD", ""),
		RedditUserAgent:    config.GetEnv("REDDIT_USER_AGENT", "tweetbot/1.0"),
		RedditLimit:        config.GetEnvInt("REDDIT_LIMIT", 3),
		RedditRatePerMin:   config.GetEnvInt("REDDIT_RATE_PER_MINUTE", 60),
		MorningSubreddits:  config.GetEnvList("REDDIT_MORNING_SUBREDDITS", DefaultMorningSubreddits),
		TechSubreddits:     config.GetEnvList("REDDIT_TECH_SUBREDDITS", DefaultTechSubreddits),
		ShitpostSubreddits: config.GetEnvList("REDDIT_SHITPOST_SUBREDDITS", DefaultShitpostSubreddits),
		HNSearchURL:        config.GetEnv("HN_SEARCH_URL", "https://hn.algolia.com/api/v1/search?tags=story"),
		MaxTopics:          config.GetEnvInt("MAX_TOPICS", 20),

		TwitterAPIKey:            config.GetEnv("TWITTER_API_KEY", ""),
		TwitterAPISecret:         config.GetEnv("TWITTER_API_SECRET", ""),
		TwitterAccessToken:       config.GetEnv("TWITTER_ACCESS_TOKEN", ""),
		TwitterAccessTokenSecret: config.GetEnv("TWITTER_ACCESS_TOKEN_SECRET", ""),
		TwitterAPIURL:            config.GetEnv("TWITTER_API_URL", "https://api.twitter.com/2"),

		TelegramBotToken: config.GetEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAdminIDs: parseIDList(config.GetEnv("TELEGRAM_ADMIN_IDS", "")),
		RedisURL:         config.GetEnv("REDIS_URL", ""),

		SMTP: email.Config{
			Host:     config.GetEnv("SMTP_HOST", ""),
			Port:     config.GetEnv("SMTP_PORT", "587"),
			User:     config.GetEnv("SMTP_USER", ""),
			Password: config.GetEnv("SMTP_PASSWORD", ""),
			From:     config.GetEnv("SMTP_FROM", config.GetEnv("SMTP_USER", "")),
			FromName: config.GetEnv("SMTP_FROM_NAME", "Tweet Bot"),
		},
		NotifyEmail: config.GetEnv("NOTIFY_EMAIL", ""),

		FreshTopicAttempts: config.GetEnvInt("FRESH_TOPIC_ATTEMPTS", 5),
		Retry:              policy,
		AgentRunTimeout:    config.GetEnvDuration("AGENT_RUN_TIMEOUT", 2*time.Minute),
		MaxTweetsPerDay:    config.GetEnvInt("MAX_TWEETS_PER_DAY", 0),

		ScheduleMorning: config.GetEnv("SCHEDULE_MORNING", ""),
		ScheduleEvening: config.GetEnv("SCHEDULE_EVENING", ""),
		ScheduleTech:    config.GetEnv("SCHEDULE_TECH", ""),
		ScheduleThread:  config.GetEnv("SCHEDULE_THREAD", ""),
		Timezone:        config.GetEnv("TIMEZONE", "UTC"),
	}
}

// TwitterConfigured reports whether all four OAuth 1.0a credentials are set.
func (c Config) TwitterConfigured() bool {
	return c.TwitterAPIKey != "" && c.TwitterAPISecret != "" &&
		c.TwitterAccessToken != "" && c.TwitterAccessTokenSecret != ""
}

// RedditConfigured reports whether script-app credentials are set. Without
// them Reddit is read anonymously.
func (c Config) RedditConfigured() bool {
	return c.RedditClientID != "" && c.RedditClientSecret != "" &&
		c.RedditUsername != "" && c.RedditPassword != ""
}

// Validate rejects values the bot cannot run with and returns warnings for
// missing credentials, which only fail at first use.
func (c Config) Validate() (warnings []string, err error) {
	var errs []error
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.MaxTopics <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOPICS must be positive, got %d", c.MaxTopics))
	}
	if c.RedditLimit <= 0 {
		errs = append(errs, fmt.Errorf("REDDIT_LIMIT must be positive, got %d", c.RedditLimit))
	}
	if c.FreshTopicAttempts <= 0 {
		errs = append(errs, fmt.Errorf("FRESH_TOPIC_ATTEMPTS must be positive, got %d", c.FreshTopicAttempts))
	}
	if c.Retry.Attempts <= 0 {
		errs = append(errs, fmt.Errorf("RETRY_ATTEMPTS must be positive, got %d", c.Retry.Attempts))
	}
	if c.AgentRunTimeout <= 0 {
		errs = append(errs, errors.New("AGENT_RUN_TIMEOUT must be positive"))
	}
	if c.MaxTweetsPerDay < 0 {
		errs = append(errs, errors.New("MAX_TWEETS_PER_DAY must not be negative"))
	}
	if _, lerr := time.LoadLocation(c.Timezone); lerr != nil {
		errs = append(errs, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, lerr))
	}

	if c.CronSecret == "" {
		warnings = append(warnings, "CRON_SECRET not set; cron endpoints will reject every request")
	}
	if !c.LLM.Configured() {
		warnings = append(warnings, "LLM_API_KEY not set; content generation will fail")
	}
	if !c.TwitterConfigured() {
		warnings = append(warnings, "TWITTER_* credentials incomplete; publishing will fail")
	}
	if !c.RedditConfigured() {
		warnings = append(warnings, "REDDIT_* credentials incomplete; using anonymous Reddit access")
	}
	if c.TelegramBotToken != "" && len(c.TelegramAdminIDs) == 0 {
		warnings = append(warnings, "TELEGRAM_ADMIN_IDS empty; the bot will ignore everyone")
	}
	if c.NotifyEmail != "" && !c.SMTP.Configured() {
		warnings = append(warnings, "NOTIFY_EMAIL set but SMTP_HOST/SMTP_FROM missing; notifications disabled")
	}

	return warnings, errors.Join(errs...)
}

// Location resolves Timezone, defaulting to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseIDList(raw string) []int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var ids []int64
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
