// Package bot implements the Telegram dialog layer for seat booking.
package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HRyska/seatbot/internal/config"
	"github.com/HRyska/seatbot/internal/database"
	"github.com/HRyska/seatbot/internal/models"
	"github.com/HRyska/seatbot/internal/service"
	"github.com/HRyska/seatbot/internal/session"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// Bot wires Telegram updates to the booking services.
type Bot struct {
	tg           telegramClient
	sender       *sender
	db           *database.DB
	availability *service.AvailabilityService
	bookings     *service.BookingService
	recurring    *service.RecurringService
	sessions     session.Store
	fsm          *session.FSM
	cfg          *config.Config
	logger       *zerolog.Logger
}

func New(
	cfg *config.Config,
	db *database.DB,
	availability *service.AvailabilityService,
	bookings *service.BookingService,
	recurring *service.RecurringService,
	sessions session.Store,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram api: %w", err)
	}
	api.Debug = cfg.Telegram.Debug
	return newBot(&realTelegramClient{api: api}, cfg, db, availability, bookings, recurring, sessions, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	cfg *config.Config,
	db *database.DB,
	availability *service.AvailabilityService,
	bookings *service.BookingService,
	recurring *service.RecurringService,
	sessions session.Store,
	logger *zerolog.Logger,
) (*Bot, error) {
	return newBot(tg, cfg, db, availability, bookings, recurring, sessions, logger)
}

func newBot(
	tg telegramClient,
	cfg *config.Config,
	db *database.DB,
	availability *service.AvailabilityService,
	bookings *service.BookingService,
	recurring *service.RecurringService,
	sessions session.Store,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	return &Bot{
		tg:           tg,
		sender:       newSender(tg, logger),
		db:           db,
		availability: availability,
		bookings:     bookings,
		recurring:    recurring,
		sessions:     sessions,
		fsm:          session.NewFSM(),
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Start begins polling updates until the context is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)

	b.registerUser(ctx, msg.From)

	// Menu buttons and commands interrupt any active flow.
	switch {
	case strings.HasPrefix(text, "/start"):
		b.clearSession(ctx, msg.From.ID)
		b.sendGreeting(ctx, msg.Chat.ID, msg.From)
		return
	case strings.HasPrefix(text, "/help") || text == "ℹ️ Помощь":
		b.reply(ctx, msg.Chat.ID, helpText)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.clearSession(ctx, msg.From.ID)
		b.reply(ctx, msg.Chat.ID, "Операция отменена.")
		b.sendMainMenu(ctx, msg.Chat.ID, msg.From.ID)
		return
	case text == btnBook || strings.HasPrefix(text, "/book"):
		b.startBookFlow(ctx, msg.Chat.ID, msg.From.ID)
		return
	case text == btnMyBookings || strings.HasPrefix(text, "/my_bookings"):
		b.handleMyBookings(ctx, msg.Chat.ID, msg.From.ID)
		return
	case text == btnCancelBooking:
		b.startCancelFlow(ctx, msg.Chat.ID, msg.From.ID)
		return
	case text == btnChangeBooking:
		b.startChangeFlow(ctx, msg.Chat.ID, msg.From.ID)
		return
	case text == btnOfficeMap || strings.HasPrefix(text, "/map"):
		b.sendOfficeMap(ctx, msg.Chat.ID)
		return
	case text == btnAdminPanel || strings.HasPrefix(text, "/admin"):
		if b.requireAdmin(ctx, msg.Chat.ID, msg.From.ID) {
			b.sendAdminPanel(ctx, msg.Chat.ID)
		}
		return
	}

	// Free text is only meaningful inside a flow step that expects it.
	b.handleFlowText(ctx, msg.Chat.ID, msg.From.ID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	_ = b.answerCallback(cq.ID)
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "cal:"):
		b.handleCalendarNav(ctx, chatID, cq.Message.MessageID, data)
	case strings.HasPrefix(data, "date:"):
		b.handleDatePicked(ctx, chatID, userID, strings.TrimPrefix(data, "date:"))
	case strings.HasPrefix(data, "seat:"):
		b.handleSeatPicked(ctx, chatID, userID, strings.TrimPrefix(data, "seat:"))
	case strings.HasPrefix(data, "bk:"):
		b.handleBookingPicked(ctx, chatID, userID, strings.TrimPrefix(data, "bk:"))
	case strings.HasPrefix(data, "rule:"):
		b.handleRulePicked(ctx, chatID, userID, strings.TrimPrefix(data, "rule:"))
	case strings.HasPrefix(data, "wd:"):
		b.handleWeekdayToggled(ctx, chatID, userID, cq.Message.MessageID, strings.TrimPrefix(data, "wd:"))
	case strings.HasPrefix(data, "confirm:"):
		b.handleConfirm(ctx, chatID, userID, strings.TrimPrefix(data, "confirm:"))
	case strings.HasPrefix(data, "adm:"):
		if b.requireAdmin(ctx, chatID, userID) {
			b.handleAdminAction(ctx, chatID, userID, strings.TrimPrefix(data, "adm:"))
		}
	}
}

func (b *Bot) registerUser(ctx context.Context, from *tgbotapi.User) {
	user := &models.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
	}
	if err := b.db.UpsertUser(ctx, user); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", from.ID).Msg("Failed to upsert user")
	}
}

// isAdmin consults the admins table and the config seed list.
func (b *Bot) isAdmin(ctx context.Context, userID int64) bool {
	if b.cfg.IsSeedAdmin(userID) {
		return true
	}
	ok, err := b.db.IsAdmin(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Admin check failed")
		return false
	}
	return ok
}

func (b *Bot) requireAdmin(ctx context.Context, chatID, userID int64) bool {
	if b.isAdmin(ctx, userID) {
		return true
	}
	b.reply(ctx, chatID, "Эта функция доступна только администраторам.")
	return false
}

func (b *Bot) getSession(ctx context.Context, userID int64) *session.Session {
	s, err := b.sessions.Get(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to load session")
	}
	if s == nil {
		return &session.Session{}
	}
	return s
}

func (b *Bot) putSession(ctx context.Context, userID int64, s *session.Session) {
	if err := b.sessions.Put(ctx, userID, s); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to save session")
	}
}

func (b *Bot) clearSession(ctx context.Context, userID int64) {
	if err := b.sessions.Clear(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to clear session")
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.sender.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) answerCallback(id string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, ""))
	return err
}
