// Package bot is the Telegram front end of the desk booking service.
package bot

import (
	"context"
	"fmt"
	"strings"

	"deskbot/internal/admin"
	"deskbot/internal/booking"
	"deskbot/internal/metrics"
	"deskbot/internal/models"
	"deskbot/shared/access"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are the services the bot delegates to. Exporter may be nil.
type Deps struct {
	Resolver DeskResolver
	Writer   BookingWriter
	Admin    *admin.Service
	Access   AccessChecker
	State    StateManager
	Exporter ReportExporter
}

// Options tune the dialog.
type Options struct {
	Mode booking.Mode
	// DateDays is how many calendar days ahead the date picker reaches.
	// It should match the writer's advance limit.
	DateDays int
	// MessagesPerMinute limits updates per user; zero disables the limit.
	MessagesPerMinute int
	Debug             bool
}

// Bot routes Telegram updates to booking and admin operations.
type Bot struct {
	tg       telegramClient
	resolver DeskResolver
	writer   BookingWriter
	admin    *admin.Service
	access   AccessChecker
	state    StateManager
	exporter ReportExporter
	opts     Options
	logger   *zerolog.Logger
}

func New(token string, deps Deps, opts Options, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	return newBot(&realTelegramClient{api: api}, deps, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, deps Deps, opts Options, logger *zerolog.Logger) (*Bot, error) {
	return newBot(tg, deps, opts, logger)
}

func newBot(tg telegramClient, deps Deps, opts Options, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if deps.Resolver == nil || deps.Writer == nil || deps.Admin == nil || deps.Access == nil || deps.State == nil {
		return nil, fmt.Errorf("bot dependencies are incomplete")
	}
	if opts.DateDays <= 0 {
		opts.DateDays = 10
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "bot").Logger()
	return &Bot{
		tg:       tg,
		resolver: deps.Resolver,
		writer:   deps.Writer,
		admin:    deps.Admin,
		access:   deps.Access,
		state:    deps.State,
		exporter: deps.Exporter,
		opts:     opts,
		logger:   &l,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	defer b.tg.StopReceivingUpdates()
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)

	var from *tgbotapi.User
	var chatID int64
	switch {
	case update.CallbackQuery != nil:
		metrics.IncUpdate("callback")
		from = update.CallbackQuery.From
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
	case update.Message != nil:
		metrics.IncUpdate("message")
		from = update.Message.From
		chatID = update.Message.Chat.ID
	default:
		metrics.IncUpdate("other")
		return
	}
	if from == nil {
		return
	}

	if err := b.access.Middleware(ctx, from.ID); err != nil {
		if access.IsAccessDenied(err) {
			l.Info().Int64("user_id", from.ID).Msg("Rejected banned user")
			b.reply(chatID, err.Error())
			return
		}
		l.Error().Err(err).Int64("user_id", from.ID).Msg("Access check failed")
		b.reply(chatID, textInternalError)
		return
	}

	if !b.state.Allow(ctx, from.ID, b.opts.MessagesPerMinute) {
		l.Warn().Int64("user_id", from.ID).Msg("Rate limited")
		if update.CallbackQuery != nil {
			b.answerCallback(update.CallbackQuery.ID, textRateLimited)
		} else {
			b.reply(chatID, textRateLimited)
		}
		return
	}

	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", from.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	l.Debug().
		Int64("user_id", from.ID).
		Str("text", update.Message.Text).
		Msg("Handling message")
	b.handleMessage(ctx, update.Message)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		// Commands interrupt any active dialog.
		if b.handleUserCommand(ctx, msg) {
			return
		}
		if b.handleAdminCommand(ctx, msg) {
			return
		}
		b.reply(msg.Chat.ID, textUnknownCommand)
		return
	}

	st, err := b.state.GetUserState(ctx, msg.From.ID)
	if err != nil {
		b.reply(msg.Chat.ID, textInternalError)
		return
	}
	switch st.CurrentStep() {
	case models.StepAwaitName:
		b.register(ctx, msg.Chat.ID, msg.From.ID, strings.TrimSpace(msg.Text))
	case models.StepAwaitFloorMap:
		b.receiveFloorPlan(ctx, msg, st.GetString(keyRoom))
	default:
		b.reply(msg.Chat.ID, textUseCommands)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	b.answerCallback(cq.ID, "")
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID
	userID := cq.From.ID
	data := cq.Data

	switch {
	case data == cbNoop:
	case strings.HasPrefix(data, cbRoom):
		b.handleRoomCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbRoom))
	case strings.HasPrefix(data, cbDate):
		b.handleDateCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbDate))
	case strings.HasPrefix(data, cbPage):
		b.handlePageCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbPage))
	case strings.HasPrefix(data, cbDesk):
		b.handleDeskCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbDesk))
	case strings.HasPrefix(data, cbRandom):
		b.handleRandomCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbRandom))
	case strings.HasPrefix(data, cbCancelBooking):
		b.handleCancelBookingCallback(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbCancelBooking))
	case strings.HasPrefix(data, cbBack):
		b.handleBack(ctx, chatID, messageID, userID, strings.TrimPrefix(data, cbBack))
	case data == cbConfirm:
		b.handleConfirmCallback(ctx, chatID, messageID, userID)
	case data == cbAbort:
		_ = b.state.ClearUserState(ctx, userID)
		b.edit(chatID, messageID, textDialogCancelled, nil)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if chatID == 0 {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

func (b *Bot) replyWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.tg.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Send failed")
	}
}

// edit replaces the text and keyboard of a dialog message. A zero messageID sends a new one.
func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		if markup != nil {
			b.replyWithMarkup(chatID, text, *markup)
		} else {
			b.reply(chatID, text)
		}
		return
	}
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	if _, err := b.tg.Send(cfg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Edit failed")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug().Err(err).Msg("Answer callback failed")
	}
}
