package telegrambot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"
	telebot "gopkg.in/telebot.v3"

	"xui-sub-hub/internal/aggregator"
	"xui-sub-hub/internal/config"
)

// Bot is the optional subscriber-facing delivery bot: it replies to
// link and QR requests using the same aggregation engine as the HTTP
// surface. It performs no management operations.
type Bot struct {
	bot          *telebot.Bot
	config       *config.Config
	orchestrator *aggregator.Orchestrator
	allowedChats map[int64]bool
	logger       *logrus.Logger
}

// NewBot creates a new delivery bot.
func NewBot(cfg *config.Config, orchestrator *aggregator.Orchestrator, logger *logrus.Logger) (*Bot, error) {
	settings := telebot.Settings{
		Token:  cfg.Telegram.Token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logger.Errorf("Telegram bot error: %v", err)
			if c != nil {
				c.Send("An error occurred. Please try again later.")
			}
		},
	}

	b, err := telebot.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	allowed := make(map[int64]bool, len(cfg.Telegram.ChatIDs))
	for _, id := range cfg.Telegram.ChatIDs {
		allowed[id] = true
	}

	bot := &Bot{
		bot:          b,
		config:       cfg,
		orchestrator: orchestrator,
		allowedChats: allowed,
		logger:       logger,
	}

	bot.setupHandlers()
	return bot, nil
}

// Start starts the bot and blocks until the context is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting Telegram delivery bot")

	go func() {
		<-ctx.Done()
		b.logger.Info("Stopping Telegram delivery bot")
		b.bot.Stop()
	}()

	b.bot.Start()
	return nil
}

// gate rejects updates from senders outside the allow list. Updates
// without a sender (channel posts) are dropped.
func (b *Bot) gate(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			b.logger.Warn("Ignoring update without a sender")
			return nil
		}
		if !b.allowedChats[sender.ID] {
			b.logger.Warnf("Rejected message from unauthorized chat %d", sender.ID)
			return c.Send("You don't have permission to use this bot.")
		}
		return next(c)
	}
}

func (b *Bot) setupHandlers() {
	b.bot.Use(b.gate)

	b.bot.Handle("/start", func(c telebot.Context) error {
		return c.Send("Commands:\n/links <identity> - aggregated connection links\n/qr <identity> - QR code with the links")
	})
	b.bot.Handle("/links", b.handleLinks)
	b.bot.Handle("/qr", b.handleQR)
}

// aggregate runs an aggregation for a bot command argument.
func (b *Bot) aggregate(identity string) (string, error) {
	result, err := b.orchestrator.Aggregate(context.Background(), aggregator.Request{Identity: identity})
	if err != nil {
		return "", err
	}

	if !result.SubscriptionActive {
		return fmt.Sprintf("No usable links for %s: %s", identity, result.InactiveReason), nil
	}
	return aggregator.RenderRaw(result.Links), nil
}

func (b *Bot) handleLinks(c telebot.Context) error {
	identity := strings.TrimSpace(c.Message().Payload)
	if identity == "" {
		return c.Send("Usage: /links <identity>")
	}

	text, err := b.aggregate(identity)
	if err != nil {
		b.logger.Errorf("Aggregation failed for %s: %v", identity, err)
		return c.Send("Failed to collect links. Please try again later.")
	}
	return c.Send(text)
}

func (b *Bot) handleQR(c telebot.Context) error {
	identity := strings.TrimSpace(c.Message().Payload)
	if identity == "" {
		return c.Send("Usage: /qr <identity>")
	}

	text, err := b.aggregate(identity)
	if err != nil {
		b.logger.Errorf("Aggregation failed for %s: %v", identity, err)
		return c.Send("Failed to collect links. Please try again later.")
	}

	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		b.logger.Errorf("Failed to generate QR code: %v", err)
		return c.Send("Failed to generate QR code.")
	}

	photo := &telebot.Photo{File: telebot.FromReader(bytes.NewReader(png))}
	return c.Send(photo)
}
