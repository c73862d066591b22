package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/teilomillet/gollm"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/existlabs/gptbridge/config"
	"github.com/existlabs/gptbridge/errors"
	"github.com/existlabs/gptbridge/server"
	"github.com/existlabs/gptbridge/server/completion"
	"github.com/existlabs/gptbridge/server/handlers"
	"github.com/existlabs/gptbridge/server/keepalive"
	"github.com/existlabs/gptbridge/server/metrics"
	"github.com/existlabs/gptbridge/server/telegram"
)

var (
	configFile = flag.String("config", "gptbridge.yaml", "Path to configuration file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("gptbridge %s\n", Version)
		os.Exit(0)
	}

	// Local development convenience; in production the variables come
	// from the hosting environment.
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	if cfg.Telegram.Token == "" {
		log.Fatal("TELEGRAM_TOKEN is required")
	}
	if cfg.LLM.APIKey == "" {
		log.Fatal("OPENAI_API_KEY is required")
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	errors.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	watchConfig(ctx, *configFile, logger)

	llm, err := createLLM(cfg.LLM)
	if err != nil {
		logger.Fatal("Failed to create LLM client", zap.Error(err))
	}

	m := metrics.New()
	bot := telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.APIURL, logger)

	completions := completion.NewClient(llm, completion.Config{
		Model:        cfg.LLM.Model,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Retry:        cfg.Retry,
		Breaker:      cfg.CircuitBreaker,
		TrackTokens:  cfg.LLM.TrackTokens,
	}, logger, m)

	webhook := handlers.NewWebhookHandler(bot, completions, m, logger, cfg.Telegram.Token, cfg.LLM.MaxInputChars)
	router := server.NewRouter(webhook, m, cfg.LLM.Model, logger)
	srv := server.NewServer(cfg.Server, router, logger)

	if cfg.Telegram.PublicURL != "" {
		registerWebhook(ctx, bot, cfg.Telegram, logger)
	}

	if cfg.KeepAlive.Enabled {
		go keepalive.New(cfg.KeepAliveURL(), cfg.KeepAlive.Interval, logger).Run(ctx)
	}

	logger.Info("Starting gptbridge",
		zap.String("version", Version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.LLM.Model),
	)
	if err := srv.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}
}

func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.Format == "text" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	return zcfg.Build()
}

func createLLM(cfg config.LLMConfig) (gollm.LLM, error) {
	llm, err := gollm.NewLLM(
		gollm.SetProvider(cfg.Provider),
		gollm.SetModel(cfg.Model),
		gollm.SetAPIKey(cfg.APIKey),
	)
	if err != nil {
		return nil, fmt.Errorf("create LLM: %w", err)
	}
	return llm, nil
}

// watchConfig hot-reloads the file so edits are validated immediately.
// Components are wired once at startup, so a change still needs a
// restart to take effect; the log line says so.
func watchConfig(ctx context.Context, path string, logger *zap.Logger) {
	watcher, err := config.NewFileWatcher(path, logger)
	if err != nil {
		logger.Warn("Config watching disabled", zap.Error(err))
		return
	}

	updates := watcher.Subscribe()
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-updates:
				logger.Info("Config file changed and validated; restart to apply")
			}
		}
	}()
}

func registerWebhook(ctx context.Context, bot *telegram.Client, cfg config.TelegramConfig, logger *zap.Logger) {
	url := strings.TrimSuffix(cfg.PublicURL, "/") + "/webhook/" + cfg.Token

	regCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := bot.SetWebhook(regCtx, url); err != nil {
		logger.Fatal("Failed to register webhook", zap.Error(err))
	}
	logger.Info("Webhook registered", zap.String("public_url", cfg.PublicURL))
}
