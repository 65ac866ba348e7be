package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	app "road-inspector/internal/application"
	"road-inspector/internal/domain/entity"
)

const (
	msgStart = `👋 Привет! Я бот обследования дорог.

Я присылаю отчёты о состоянии участков после обработки видео и отвечаю на запросы по участкам.

📋 Команды:
/subscribe — получать новые отчёты
/unsubscribe — отключить рассылку
/rating <участок> — текущая оценка участка
/report <участок> — последний отчёт участка
/help — справка`

	msgHelp = `ℹ️ Как пользоваться ботом:

1️⃣ Подпишитесь командой /subscribe
2️⃣ После каждой обработки видео придёт оценка участка и PDF-отчёт
3️⃣ Оценку и отчёт можно запросить в любой момент:
• /rating R-101
• /report R-101

Оценка от 0 до 100, где 100 — дефектов нет.`

	msgSubscribed      = "🔔 Подписка включена. Новые отчёты будут приходить в этот чат."
	msgUnsubscribed    = "🔕 Подписка отключена."
	msgUnknownCommand  = "❓ Неизвестная команда. Используйте /help для справки."
	msgSendCommand     = "📋 Отправьте команду. Список команд: /help"
	msgRoadRequired    = "⚠️ Укажите участок, например: /%s R-101"
	msgNoDefects       = "✅ По участку %s дефекты не зарегистрированы."
	msgRating          = "📊 Участок %s\nОценка состояния: %.2f\nДефектов: %d"
	msgNoReport        = "📭 Отчёта по участку %s пока нет."
	msgRequestError    = "⚠️ Не удалось выполнить запрос. Попробуйте позже."
	msgReportGenerated = "📄 Новый отчёт по участку %s\nОценка состояния: %.2f\nДефектов: %d"
)

// sender отправка сообщений, *tgbotapi.BotAPI реализует его
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// RatingSource оценка участка по сохранённым дефектам
type RatingSource interface {
	RoadRating(ctx context.Context, roadID string) (float64, int, error)
}

// ReportSource доступ к файлам отчётов
type ReportSource interface {
	Open(ctx context.Context, kind entity.ArtifactKind, id int64) (*app.Download, error)
	OpenRoadReport(ctx context.Context, roadID string) (*entity.ReportArtifact, *app.Download, error)
}

// Bot представляет Telegram-бота операторов
type Bot struct {
	bot       *tgbotapi.BotAPI
	api       sender
	operators *app.OperatorService
	ratings   RatingSource
	reports   ReportSource
	logger    *zap.Logger
}

// NewBot создаёт нового бота
func NewBot(token string, operators *app.OperatorService, ratings RatingSource, reports ReportSource, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	logger.Info("telegram bot authorized", zap.String("account", api.Self.UserName))

	b := newBot(api, operators, ratings, reports, logger)
	b.bot = api
	return b, nil
}

func newBot(api sender, operators *app.OperatorService, ratings RatingSource, reports ReportSource, logger *zap.Logger) *Bot {
	return &Bot{
		api:       api,
		operators: operators,
		ratings:   ratings,
		reports:   reports,
		logger:    logger,
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage обрабатывает входящее сообщение
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.sendMessage(msg.Chat.ID, msgSendCommand)
}

// handleCommand обрабатывает команды бота
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		if _, err := b.operators.Get(ctx, msg.From.ID, chatID); err != nil {
			b.logger.Error("failed to load operator", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		}
		b.sendMessage(chatID, msgStart)

	case "help":
		b.sendMessage(chatID, msgHelp)

	case "subscribe":
		if _, err := b.operators.Subscribe(ctx, msg.From.ID, chatID); err != nil {
			b.logger.Error("failed to subscribe operator", zap.Int64("user_id", msg.From.ID), zap.Error(err))
			b.sendMessage(chatID, msgRequestError)
			return
		}
		b.sendMessage(chatID, msgSubscribed)

	case "unsubscribe":
		if _, err := b.operators.Unsubscribe(ctx, msg.From.ID, chatID); err != nil {
			b.logger.Error("failed to unsubscribe operator", zap.Int64("user_id", msg.From.ID), zap.Error(err))
			b.sendMessage(chatID, msgRequestError)
			return
		}
		b.sendMessage(chatID, msgUnsubscribed)

	case "rating":
		b.handleRating(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))

	case "report":
		b.handleReport(ctx, chatID, strings.TrimSpace(msg.CommandArguments()))

	default:
		b.sendMessage(chatID, msgUnknownCommand)
	}
}

func (b *Bot) handleRating(ctx context.Context, chatID int64, roadID string) {
	if roadID == "" {
		b.sendMessage(chatID, fmt.Sprintf(msgRoadRequired, "rating"))
		return
	}

	rating, count, err := b.ratings.RoadRating(ctx, roadID)
	if err != nil {
		b.logger.Error("failed to compute road rating", zap.String("road_id", roadID), zap.Error(err))
		b.sendMessage(chatID, msgRequestError)
		return
	}
	if count == 0 {
		b.sendMessage(chatID, fmt.Sprintf(msgNoDefects, roadID))
		return
	}

	b.sendMessage(chatID, fmt.Sprintf(msgRating, roadID, rating, count))
}

func (b *Bot) handleReport(ctx context.Context, chatID int64, roadID string) {
	if roadID == "" {
		b.sendMessage(chatID, fmt.Sprintf(msgRoadRequired, "report"))
		return
	}

	report, dl, err := b.reports.OpenRoadReport(ctx, roadID)
	if errors.Is(err, entity.ErrNotFound) {
		b.sendMessage(chatID, fmt.Sprintf(msgNoReport, roadID))
		return
	}
	if err != nil {
		b.logger.Error("failed to open road report", zap.String("road_id", roadID), zap.Error(err))
		b.sendMessage(chatID, msgRequestError)
		return
	}

	data, err := readDownload(dl)
	if err != nil {
		b.logger.Error("failed to read road report", zap.String("road_id", roadID), zap.Error(err))
		b.sendMessage(chatID, msgRequestError)
		return
	}

	caption := fmt.Sprintf("📄 Участок %s\nОценка состояния: %.2f", roadID, report.ConditionRating)
	if err := b.sendDocument(chatID, dl.Name, data, caption); err != nil {
		b.logger.Error("failed to send report", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) sendDocument(chatID int64, name string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	_, err := b.api.Send(doc)
	return err
}

func readDownload(dl *app.Download) ([]byte, error) {
	defer dl.Body.Close()
	return io.ReadAll(dl.Body)
}
