package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Telegram allows roughly 30 messages per second bot-wide.
const (
	sendRate  = 20
	sendBurst = 5
)

// sender rate-limits outgoing messages so bursts of flow replies do
// not trip the Telegram API limit.
type sender struct {
	tg      telegramClient
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func newSender(tg telegramClient, logger *zerolog.Logger) *sender {
	return &sender{
		tg:      tg,
		limiter: rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		logger:  logger,
	}
}

func (s *sender) send(ctx context.Context, msg tgbotapi.Chattable) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := s.tg.Send(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to send message")
	}
}
