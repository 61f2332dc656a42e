package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"xui-sub-hub/internal/aggregator"
	"xui-sub-hub/internal/config"
	"xui-sub-hub/internal/constants"
	"xui-sub-hub/internal/httpapi"
	"xui-sub-hub/internal/policy"
	"xui-sub-hub/internal/publicurl"
	"xui-sub-hub/internal/registry"
	"xui-sub-hub/internal/tokens"
	"xui-sub-hub/pkg/panelclient"
	"xui-sub-hub/pkg/telegrambot"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	// Setup logger
	logger := setupLogger(cfg.LogLevel)

	// Initialize collaborators
	sessionCache := cache.New(
		constants.SessionCacheExpiration*time.Minute,
		constants.SessionCacheCleanupInterval*time.Minute,
	)
	provider := panelclient.NewCachingProvider(cfg.Servers, sessionCache, logger)

	policyStore, err := policy.NewFileStore(cfg.PolicyFile, logger)
	if err != nil {
		logger.Fatal("Failed to load policy store:", err)
	}

	tokenStore, err := tokens.NewStore(cfg.TokensFile, logger)
	if err != nil {
		logger.Fatal("Failed to load token store:", err)
	}

	serverRegistry := registry.NewFromConfig(cfg.Servers)
	orchestrator := aggregator.NewOrchestrator(provider, policyStore, serverRegistry, logger)
	composer := publicurl.NewComposer(cfg)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	// Start the optional Telegram delivery bot
	if cfg.BotEnabled() {
		bot, err := telegrambot.NewBot(cfg, orchestrator, logger)
		if err != nil {
			logger.Fatal("Failed to create bot:", err)
		}
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Errorf("Bot failed: %v", err)
			}
		}()
	}

	// Start the HTTP API
	server := httpapi.NewServer(orchestrator, tokenStore, composer, serverRegistry, logger)
	logger.Infof("Starting subscription hub with %d servers", len(cfg.Servers))
	if err := server.Run(cfg.ListenAddr); err != nil {
		logger.Fatal("HTTP server failed:", err)
	}
}

// setupLogger sets up the logger at the configured level
func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		log.Printf("Invalid log level %s, defaulting to info", logLevel)
		level = logrus.InfoLevel
	}

	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return logger
}
