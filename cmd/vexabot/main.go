// vexabot is the Vexa Telegram bot: it registers users against the admin
// API and drives meeting bots and transcripts through conversation flows.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vexa-ai/vexabot/bot/api"
	"github.com/vexa-ai/vexabot/bot/auth"
	"github.com/vexa-ai/vexabot/bot/dialogs"
	"github.com/vexa-ai/vexabot/bot/telegram"
	"github.com/vexa-ai/vexabot/bot/users"
	coreconfig "github.com/vexa-ai/vexabot/core/config"
	coredatabase "github.com/vexa-ai/vexabot/core/database"
	"github.com/vexa-ai/vexabot/core/dialog"
	"github.com/vexa-ai/vexabot/core/logger"
)

const defaultConfigPath = "config.yaml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("vexabot: %v", err)
	}
}

func run() error {
	startedAt := time.Now()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	if err := coredatabase.RunMigrations(cfg.Database); err != nil {
		return err
	}
	db, err := coredatabase.Connect(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	client := api.NewClient(api.Options{
		GatewayURL: cfg.API.GatewayURL,
		AdminURL:   cfg.API.AdminURL,
		AdminToken: cfg.API.AdminToken,
	})

	accounts := users.NewService(users.NewPostgresStore(db), client)
	gate := auth.NewGate(accounts, dialogs.FlowAuth, dialogs.CmdStart)

	reg, err := dialogs.NewRegistry(dialogs.Deps{
		Accounts: accounts,
		API:      client,
		BotName:  cfg.API.DefaultBotName,
		Language: cfg.API.DefaultLanguage,
	})
	if err != nil {
		return err
	}

	store, closeStore, err := buildSessionStore(cfg, reg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := dialog.NewEngine(reg, store)
	adapter := telegram.NewAdapter(engine, gate)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info(ctx, "app", "ready",
		slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		slog.Int("flows", len(reg.Flows())),
	)

	err = telegram.Run(ctx, telegram.RunOptions{
		Config:      cfg,
		Middlewares: telegram.DefaultMiddlewares(cfg),
		Routes:      adapter.Routes(),
	})

	logger.Info(context.Background(), "app", "shutdown")
	return err
}

// buildSessionStore picks Redis-backed sessions when configured, otherwise
// conversations live in process memory and reset on restart.
func buildSessionStore(cfg *coreconfig.Config, reg *dialog.Registry) (dialog.Store, func(), error) {
	if cfg.Redis.Addr == "" {
		return dialog.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	logger.Info(context.Background(), "app", "sessions.redis",
		slog.String("addr", cfg.Redis.Addr),
		slog.Int("db", cfg.Redis.DB),
	)
	return dialog.NewRedisStore(client, reg), func() { _ = client.Close() }, nil
}
