package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/prashanttc/tweetAut/internal/app"
	botconfig "github.com/prashanttc/tweetAut/internal/config"
	"github.com/prashanttc/tweetAut/internal/handlers"
	"github.com/prashanttc/tweetAut/internal/scheduler"
	"github.com/prashanttc/tweetAut/internal/telegram"
	"github.com/prashanttc/tweetAut/pkg/config"
	"github.com/prashanttc/tweetAut/pkg/logging"
	"github.com/prashanttc/tweetAut/pkg/monitoring"
	"github.com/prashanttc/tweetAut/pkg/redis"
	"github.com/prashanttc/tweetAut/pkg/server"
	"github.com/prashanttc/tweetAut/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("tweetbot")

	// Load environment variables
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())

	logger.WithField("version", version.Version).Info("Starting tweet bot")

	cfg := botconfig.LoadConfig()
	warnings, err := cfg.Validate()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bot, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialise pipeline")
	}
	defer func() { _ = bot.Close() }()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("tweetbot", version.Version)
	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(bot.DB.DB))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"CRON_SECRET":          cfg.CronSecret,
		"LLM_API_KEY":          cfg.LLM.APIKey,
		"TWITTER_API_KEY":      cfg.TwitterAPIKey,
		"TWITTER_ACCESS_TOKEN": cfg.TwitterAccessToken,
	}))

	var background sync.WaitGroup

	// Telegram approval bot
	if cfg.TelegramBotToken != "" {
		sessions := telegram.SessionStore(telegram.NewMemorySessions(telegram.SessionTTL))
		if cfg.RedisURL != "" {
			rdb, err := redis.NewClientFromURL(ctx, cfg.RedisURL)
			if err != nil {
				logger.WithError(err).Warn("Redis unavailable - Telegram sessions kept in memory")
			} else {
				defer func() { _ = rdb.Close() }()
				healthChecker.AddCheck("redis", monitoring.PingHealthCheck("redis", redis.Pinger(rdb)))
				sessions = telegram.NewRedisSessions(rdb, telegram.SessionTTL)
			}
		}

		api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
		if err != nil {
			logger.WithError(err).Warn("Failed to connect to Telegram - bot disabled")
		} else {
			tg := telegram.New(telegram.Config{
				Sender:   api,
				Drafter:  bot.Runner,
				Tweets:   bot.Ledger,
				Sessions: sessions,
				Admins:   cfg.TelegramAdminIDs,
				Logger:   logger,
			})
			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			updates := api.GetUpdatesChan(u)
			background.Add(1)
			go func() {
				defer background.Done()
				tg.Run(ctx, updates)
			}()
			go func() {
				<-ctx.Done()
				api.StopReceivingUpdates()
			}()
			logger.WithField("bot", api.Self.UserName).Info("Telegram bot listening")
		}
	} else {
		logger.Info("TELEGRAM_BOT_TOKEN not set - Telegram bot disabled")
	}

	// In-process schedule
	sched, err := scheduler.New(scheduler.Config{
		Runner: bot.Runner,
		Jobs: []scheduler.Job{
			{Agent: app.AgentMorning, Spec: cfg.ScheduleMorning},
			{Agent: app.AgentEvening, Spec: cfg.ScheduleEvening},
			{Agent: app.AgentTech, Spec: cfg.ScheduleTech},
			{Agent: app.AgentThread, Spec: cfg.ScheduleThread},
		},
		Location: cfg.Location(),
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Invalid schedule")
	}
	if sched.Len() > 0 {
		background.Add(1)
		go func() {
			defer background.Done()
			sched.Start(ctx)
		}()
	}

	// Setup router with unified monitoring (health/metrics)
	router := server.SetupServiceRouter(logger, "tweetbot", healthChecker, bot.Metrics)
	handlers.NewCronHandler(bot.Runner, logger).Register(router, cfg.CronSecret)

	// Start HTTP server with graceful shutdown
	serverConfig := server.DefaultConfig("tweetbot", cfg.Port)
	if err := server.Run(ctx, serverConfig, router, logger); err != nil {
		logger.WithError(err).Error("Server error")
	}
	stop()
	background.Wait()
	logger.Info("Tweet bot stopped")
}
