package notify

import (
	"errors"
	"fmt"
	"strings"

	"clothingrental/internal/availability"
	"clothingrental/internal/domain"
	"clothingrental/internal/events"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TelegramNotifier сообщает администраторам о новых и измененных бронях.
type TelegramNotifier struct {
	sender  domain.TelegramSender
	chatIDs []int64
	logger  *zerolog.Logger
}

func NewTelegramNotifier(sender domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, logger: logger}
}

// NewBotSender connects to the Bot API with token.
func NewBotSender(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

// HandleEvent is an EventBus handler for booking events.
func (n *TelegramNotifier) HandleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	var text string
	switch event.Type {
	case events.EventBookingCreated:
		text = formatCreated(payload)
	case events.EventBookingStatusChanged:
		text = fmt.Sprintf("Бронь %s: статус %s", payload.BookingID, payload.Status)
	default:
		return nil
	}
	return n.Broadcast(text)
}

// Broadcast sends text to every admin chat. Errors are collected, one failed
// chat does not stop the rest.
func (n *TelegramNotifier) Broadcast(text string) error {
	var errs []error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func formatCreated(p events.BookingEventPayload) string {
	var b strings.Builder
	b.WriteString("Новая бронь\n")
	item := p.ItemName
	if p.ItemCode != "" {
		item = fmt.Sprintf("%s (%s)", p.ItemName, p.ItemCode)
	}
	fmt.Fprintf(&b, "Товар: %s\n", item)
	fmt.Fprintf(&b, "Даты: %s - %s (%d дн.)\n",
		availability.FormatDate(p.FromDate), availability.FormatDate(p.ToDate), availability.Nights(p.FromDate, p.ToDate))
	fmt.Fprintf(&b, "Клиент: %s, %s, %s", p.CustomerName, p.CustomerEmail, p.CustomerPhone)
	return b.String()
}
