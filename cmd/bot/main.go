package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Ovsov/tecret-anta/internal/assign"
	"github.com/Ovsov/tecret-anta/internal/bot"
	"github.com/Ovsov/tecret-anta/internal/config"
	"github.com/Ovsov/tecret-anta/internal/db"
	"github.com/Ovsov/tecret-anta/internal/i18n"
	"github.com/Ovsov/tecret-anta/internal/roster"
	"github.com/Ovsov/tecret-anta/internal/status"
	"github.com/Ovsov/tecret-anta/internal/telegram"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tecret-anta", pflag.ContinueOnError)
	envFile := flags.String("env-file", ".env", "dotenv file loaded before reading the environment")
	autoMigrate := flags.Bool("migrate", false, "run GORM auto-migrations before serving")
	inMemory := flags.Bool("memory", false, "keep games in memory instead of Postgres")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Printf("failed to load %s: %v", *envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is not set")
	}
	if !cfg.TelegramDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, *inMemory, *autoMigrate, logger)
	if err != nil {
		return err
	}
	sessions, closeSessions, err := openSessions(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	catalog, err := i18n.Load()
	if err != nil {
		return fmt.Errorf("load message catalog: %w", err)
	}
	client, err := telegram.Dial(cfg.TelegramToken, cfg.TelegramDebug, cfg.PollTimeoutSeconds, logger)
	if err != nil {
		return err
	}

	machine := bot.NewMachine(bot.MachineConfig{
		Store:     store,
		Generator: assign.New(assign.WithAttempts(cfg.MatchAttempts)),
		Sessions:  sessions,
		Guard:     bot.NewJoinGuard(cfg.MaxJoinAttempts),
		Transport: client,
		Catalog:   catalog,
		Locale:    cfg.Locale,
		Logger:    logger,
	})
	dispatcher := bot.NewDispatcher(bot.DispatcherConfig{
		Handler:   machine,
		Transport: client,
		Catalog:   catalog,
		Locale:    cfg.Locale,
		Logger:    logger,
		Workers:   cfg.Workers,
	})

	g, ctx := errgroup.WithContext(ctx)
	if cfg.StatusAddr != "" {
		g.Go(func() error {
			logger.Info("status api listening", "addr", cfg.StatusAddr)
			return status.New(store, cfg.StatusToken, logger).ListenAndServe(ctx, cfg.StatusAddr)
		})
	}
	g.Go(func() error {
		return dispatcher.Serve(ctx, client.Events(ctx))
	})
	logger.Info("bot started", "workers", cfg.Workers, "locale", cfg.Locale)
	err = g.Wait()
	logger.Info("bot stopped")
	return err
}

func openStore(cfg config.Config, inMemory, autoMigrate bool, logger *slog.Logger) (roster.Store, error) {
	if inMemory || cfg.DatabaseURL == "" {
		logger.Warn("using in-memory store; games are lost on restart")
		return roster.NewMemoryStore(roster.WithPasscodeCost(cfg.PasscodeCost)), nil
	}
	conn, err := db.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if autoMigrate {
		if err := db.Migrate(conn); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	return db.NewGormStore(conn, cfg.PasscodeCost), nil
}

func openSessions(ctx context.Context, cfg config.Config, logger *slog.Logger) (bot.SessionStore, func(), error) {
	if cfg.RedisURL == "" {
		return bot.NewMemorySessionStore(), func() {}, nil
	}
	client, err := bot.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("sessions stored in redis", "ttl", cfg.SessionTTL)
	closeFn := func() {
		if err := client.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}
	return bot.NewRedisSessionStore(client, cfg.SessionTTL), closeFn, nil
}
