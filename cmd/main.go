package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"titletoimagebot/internal/bot"
	"titletoimagebot/internal/compositor"
	"titletoimagebot/internal/config"
	"titletoimagebot/internal/database"
	"titletoimagebot/internal/imagesource"
	"titletoimagebot/internal/imgur"
	"titletoimagebot/internal/processor"
	"titletoimagebot/internal/publisher"
	"titletoimagebot/internal/ratelimiter"
	"titletoimagebot/internal/reddit"
	"titletoimagebot/internal/scheduler"

	"github.com/joho/godotenv"
)

func main() {
	logLevel := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.ErrorContext(ctx, "Failed to load .env file",
			"error", err)

		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}
	logLevel.Set(cfg.LogLevel)

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db",
			"error", err,
			"dbPath", cfg.DBPath)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	comp, err := compositor.NewFromFile(cfg.FontPath, compositor.DefaultStyle())
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize compositor",
			"error", err,
			"fontPath", cfg.FontPath)

		return
	}

	redditClient := reddit.NewClient(ctx, reddit.Config{
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		Username:     cfg.RedditUsername,
		Password:     cfg.RedditPassword,
		UserAgent:    cfg.RedditUserAgent,
	}, ratelimiter.New(log), log)

	imgurClient := imgur.NewClient(ctx, imgur.Config{
		ClientID:     cfg.ImgurClientID,
		ClientSecret: cfg.ImgurClientSecret,
		RefreshToken: cfg.ImgurRefreshToken,
	}, log)

	proc := processor.New(
		db,
		imagesource.NewFetcher(log),
		comp,
		publisher.New(imgurClient, cfg.TempDir, log),
		redditClient,
		processor.Options{
			BotName:             redditClient.Username(),
			OwnerName:           cfg.OwnerName,
			SourceURL:           cfg.SourceURL,
			ScoreThresholds:     cfg.ScoreThresholds,
			DelimitedSubreddits: cfg.DelimitedSubreddits,
			RhymeTriggers:       cfg.RhymeTriggers,
			MaxAttempts:         cfg.MaxRetryAttempts,
		},
		log,
	)

	botInst := bot.New(redditClient, proc, cfg.Subreddits, cfg.Limit, log)
	log.InfoContext(ctx, "Bot is initialized",
		"username", redditClient.Username(),
		"subreddits", cfg.Subreddits,
		"limit", cfg.Limit)

	sched := scheduler.New(ctx, botInst, cfg.Interval, cfg.CycleTimeout, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"interval", cfg.Interval.String())

		return
	}
	log.InfoContext(ctx, "Scheduler is started",
		"interval", cfg.Interval.String(),
		"cycleTimeout", cfg.CycleTimeout.String())

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	sig := <-c
	log.InfoContext(ctx, "Shutdown signal is received",
		"signal", sig.String())
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"signal", sig.String(),
		"uptimeSeconds", time.Since(start).Seconds())

	sched.Stop()
	log.InfoContext(ctx, "Scheduler is stopped",
		"uptimeSeconds", time.Since(start).Seconds())
}
