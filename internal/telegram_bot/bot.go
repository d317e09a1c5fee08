package telegram_bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/models"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
)

const checkAction = "check"

// ComplianceChecker re-checks a tracked item on demand.
type ComplianceChecker interface {
	CheckCompliance(ctx context.Context, itemID string) error
}

// api is the part of the Telegram client the bot uses.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot relays engine events to moderator chats and answers status commands.
type Bot struct {
	api     api
	updates func() (tgbotapi.UpdatesChannel, func())
	chatIDs map[int64]bool
	records repository.RecordRepository
	checker ComplianceChecker
	logger  *zap.Logger
}

var _ notify.Sink = (*Bot)(nil)

// NewBot creates a new Telegram bot instance. It returns nil when the bot is disabled.
func NewBot(cfg config.TelegramConfig, records repository.RecordRepository, checker ComplianceChecker, logger *zap.Logger) (*Bot, error) {
	if !cfg.Enabled || cfg.BotToken == "" {
		logger.Info("Telegram bot is disabled (telegram.enabled=false or token is empty)")
		return nil, nil
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot API: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", botAPI.Self.UserName))

	b := newBot(botAPI, cfg.ChatIDs, records, checker, logger)
	b.updates = func() (tgbotapi.UpdatesChannel, func()) {
		u := tgbotapi.NewUpdate(0)
		u.Timeout = 60
		return botAPI.GetUpdatesChan(u), botAPI.StopReceivingUpdates
	}
	return b, nil
}

func newBot(client api, chatIDs []int64, records repository.RecordRepository, checker ComplianceChecker, logger *zap.Logger) *Bot {
	allowed := make(map[int64]bool, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = true
	}
	return &Bot{
		api:     client,
		chatIDs: allowed,
		records: records,
		checker: checker,
		logger:  logger.With(zap.String("module", "telegram_bot")),
	}
}

// Name identifies the bot as a notification sink.
func (b *Bot) Name() string { return "telegram" }

// Start begins listening for updates from Telegram
func (b *Bot) Start(ctx context.Context) error {
	if b == nil || b.updates == nil {
		return nil
	}

	updates, stop := b.updates()
	b.logger.Info("Telegram bot started, waiting for updates...")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Telegram bot shutting down...")
			stop()
			return nil
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	} else if update.Message != nil {
		b.handleMessage(ctx, update.Message)
	}
}

// Deliver posts the event to every configured chat. Items still open to action get a button
// that re-checks compliance.
func (b *Bot) Deliver(_ context.Context, e notify.Event) error {
	var errs []error
	for chatID := range b.chatIDs {
		msg := tgbotapi.NewMessage(chatID, formatEvent(e))
		if e.Type == notify.EventWarningIssued || e.Type == notify.EventItemRemoved {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("🔄 Re-check", checkAction+":"+e.ItemID),
				),
			)
		}
		if _, err := b.api.Send(msg); err != nil {
			errs = append(errs, fmt.Errorf("failed to send notification to chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func formatEvent(e notify.Event) string {
	icon := "ℹ️"
	switch e.Type {
	case notify.EventWarningIssued:
		icon = "⚠️"
	case notify.EventItemRemoved:
		icon = "🗑"
	case notify.EventItemReinstated:
		icon = "✅"
	case notify.EventFlaggedForReview:
		icon = "🔍"
	case notify.EventCoreError:
		icon = "❌"
	}
	return icon + " " + e.Summary() + "\n" + e.At.Format(time.RFC3339)
}

// handleCallbackQuery processes callback queries from inline buttons
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	b.logger.Info("Received callback query",
		zap.String("data", query.Data),
		zap.Int64("user_id", query.From.ID),
	)

	if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		b.logger.Error("Failed to send callback response", zap.Error(err))
	}

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if !b.chatIDs[chatID] {
		b.sendMessage(chatID, "❌ This chat is not allowed to act on items")
		return
	}

	// Parse callback data: "check:<item_id>"
	action, itemID, ok := strings.Cut(query.Data, ":")
	if !ok || action != checkAction || itemID == "" {
		b.logger.Error("Failed to parse callback data: invalid format", zap.String("data", query.Data))
		b.sendMessage(chatID, "❌ Unknown action")
		return
	}

	if err := b.checker.CheckCompliance(ctx, itemID); err != nil {
		b.logger.Error("Failed to re-check item", zap.String("item_id", itemID), zap.Error(err))
		b.sendMessage(chatID, fmt.Sprintf("❌ Re-check of %s failed: %v", itemID, err))
		return
	}
	b.sendMessage(chatID, b.status(ctx, itemID))
}

// handleMessage processes incoming messages
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if !message.IsCommand() {
		return
	}
	switch message.Command() {
	case "start":
		b.sendMessage(message.Chat.ID, fmt.Sprintf(
			"👋 Hi, %s!\n\nI relay moderation events about unexplained posts. Use /help for more.",
			message.From.FirstName,
		))
	case "help":
		b.sendMessage(message.Chat.ID, "📚 Help:\n\n"+
			"/start - Welcome message\n"+
			"/help - This help\n"+
			"/status <item_id> - Show the enforcement record of an item\n\n"+
			fmt.Sprintf("Your chat ID: %d", message.Chat.ID))
	case "status":
		if !b.chatIDs[message.Chat.ID] {
			b.sendMessage(message.Chat.ID, "❌ This chat is not allowed to query items")
			return
		}
		itemID := strings.TrimSpace(message.CommandArguments())
		if itemID == "" {
			b.sendMessage(message.Chat.ID, "Usage: /status <item_id>")
			return
		}
		b.sendMessage(message.Chat.ID, b.status(ctx, itemID))
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help for help.")
	}
}

func (b *Bot) status(ctx context.Context, itemID string) string {
	snap, err := b.records.Snapshot(ctx, itemID)
	if err != nil {
		b.logger.Error("Failed to read record", zap.String("item_id", itemID), zap.Error(err))
		return fmt.Sprintf("❌ Could not read the record of %s", itemID)
	}
	return formatSnapshot(snap)
}

func formatSnapshot(s *models.RecordSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Item %s\n", s.ItemID)
	line := func(label string, at *time.Time) {
		if at == nil {
			fmt.Fprintf(&sb, "%s: -\n", label)
			return
		}
		fmt.Fprintf(&sb, "%s: %s\n", label, at.UTC().Format(time.RFC3339))
	}
	var warned, removed *time.Time
	if s.Warned != nil {
		warned = &s.Warned.At
	}
	if s.Removed != nil {
		removed = &s.Removed.At
	}
	line("Warned", warned)
	line("Removed", removed)
	line("Approved", s.ApprovedAt)
	return strings.TrimRight(sb.String(), "\n")
}

// sendMessage is a helper to send a simple text message
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("Failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
