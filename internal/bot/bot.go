package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"homelab-agent/internal/models"
	"homelab-agent/internal/service"

	"gopkg.in/telebot.v3"
)

const (
	recentLimit    = 5
	commandTimeout = 60 * time.Second
)

// Sender - часть telebot.Bot, через которую бот отправляет сообщения.
type Sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// Bot пересылает отчеты об инцидентах в канал и отвечает на команды
// чтения истории. Текст без команды уходит агенту.
type Bot struct {
	bot            *telebot.Bot
	sender         Sender
	history        *service.HistoryService
	chat           *service.ChatService
	alertChannelID int64
	logger         *slog.Logger
}

func NewBot(token string, history *service.HistoryService, chat *service.ChatService, alertChannelID int64, logger *slog.Logger) (*Bot, error) {
	pref := telebot.Settings{Token: token, Poller: &telebot.LongPoller{Timeout: 10 * time.Second}}
	b, err := telebot.NewBot(pref)
	if err != nil {
		return nil, err
	}
	botInstance := newBot(b, history, chat, alertChannelID, logger)
	botInstance.bot = b
	return botInstance, nil
}

func newBot(sender Sender, history *service.HistoryService, chat *service.ChatService, alertChannelID int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		sender:         sender,
		history:        history,
		chat:           chat,
		alertChannelID: alertChannelID,
		logger:         logger,
	}
}

// Start блокируется до отмены ctx.
func (b *Bot) Start(ctx context.Context, notifChan <-chan *service.IncidentReport) {
	b.bot.Use(b.contextMiddleware(ctx))
	b.registerHandlers()
	go b.startNotifier(ctx, notifChan)
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	b.logger.Info("telegram bot starting")
	b.bot.Start()
}

func (b *Bot) startNotifier(ctx context.Context, notifChan <-chan *service.IncidentReport) {
	b.logger.Info("notification listener started")
	for {
		select {
		case <-ctx.Done():
			return
		case report, ok := <-notifChan:
			if !ok {
				return
			}
			b.deliver(report)
		}
	}
}

// deliver отправляет отчет в канал, разбивая длинный текст на части.
func (b *Bot) deliver(report *service.IncidentReport) {
	if b.alertChannelID == 0 {
		b.logger.Debug("alert channel ID is not configured, skipping notification")
		return
	}
	chat := &telebot.Chat{ID: b.alertChannelID}
	for i, part := range formatReport(report) {
		opts := &telebot.SendOptions{ParseMode: telebot.ModeMarkdownV2, DisableWebPagePreview: true}
		if _, err := b.sender.Send(chat, part, opts); err != nil {
			b.logger.Error("failed to send incident notification",
				"monitor", report.Incident.MonitorName, "part", i, "channel", b.alertChannelID, "error", err)
			return
		}
	}
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/stats", b.handleStats)
	b.bot.Handle("/history", b.handleHistory)
	b.bot.Handle("/recent", b.handleRecent)
	b.bot.Handle(telebot.OnText, b.handleTextMessage)
}

func (b *Bot) handleStart(c telebot.Context) error {
	return c.Send("Добро пожаловать! Команды: /stats - статистика инцидентов, /history <запрос> - поиск по истории, /recent - последние инциденты. Любой другой текст уходит агенту.")
}

func (b *Bot) handleStats(c telebot.Context) error {
	return sendPlain(c, b.history.IncidentStatistics(requestContext(c)))
}

func (b *Bot) handleHistory(c telebot.Context) error {
	query := strings.TrimSpace(c.Message().Payload)
	if query == "" {
		return c.Send("Использование: /history <запрос>")
	}
	return sendPlain(c, b.history.SearchIncidentHistory(requestContext(c), query))
}

func (b *Bot) handleRecent(c telebot.Context) error {
	records, err := b.history.Logs(requestContext(c), models.KindIncidentAnalysis, recentLimit)
	if err != nil {
		b.logger.Error("failed to list recent incidents", "error", err)
		return c.Send("Не удалось получить последние инциденты.")
	}
	return sendPlain(c, formatRecent(records))
}

func (b *Bot) handleTextMessage(c telebot.Context) error {
	if b.chat == nil {
		return nil
	}
	result, err := b.chat.ChatInSession(requestContext(c), chatSessionID(c.Chat().ID), c.Text())
	if err != nil {
		b.logger.Error("chat from telegram failed", "chat_id", c.Chat().ID, "error", err)
		return c.Send("Ошибка обработки запроса: " + err.Error())
	}
	return sendPlain(c, result.Response)
}

// chatSessionID - одна сессия агента на чат Telegram.
func chatSessionID(chatID int64) string {
	return fmt.Sprintf("telegram_%d", chatID)
}

// contextMiddleware кладет в контекст telebot ctx с таймаутом команды.
func (b *Bot) contextMiddleware(parent context.Context) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			ctx, cancel := context.WithTimeout(parent, commandTimeout)
			defer cancel()
			c.Set("ctx", ctx)
			return next(c)
		}
	}
}

func requestContext(c telebot.Context) context.Context {
	if ctx, ok := c.Get("ctx").(context.Context); ok {
		return ctx
	}
	return context.Background()
}

func sendPlain(c telebot.Context, text string) error {
	for _, part := range chunkText(text, maxMessageRunes) {
		if err := c.Send(part, &telebot.SendOptions{DisableWebPagePreview: true}); err != nil {
			return err
		}
	}
	return nil
}
