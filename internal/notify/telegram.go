package notify

import (
	"encoding/json"
	"fmt"
	"strings"

	"simpkl/internal/availability"
	"simpkl/internal/events"
	"simpkl/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Sender is the part of the Telegram API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier pushes booking events to the admin chats so staff
// can decide submissions without watching the dashboard.
type TelegramNotifier struct {
	sender       Sender
	adminChatIDs []int64
	logger       zerolog.Logger
}

func NewTelegramNotifier(sender Sender, adminChatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notify").Logger()
	}
	return &TelegramNotifier{sender: sender, adminChatIDs: adminChatIDs, logger: l}
}

// NewBotSender dials the Telegram API with the configured token.
func NewBotSender(token string) (Sender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return bot, nil
}

// SubscribeTo wires the notifier into the event bus.
func (n *TelegramNotifier) SubscribeTo(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingSubmitted, n.handleEvent)
	bus.Subscribe(events.EventBookingApproved, n.handleEvent)
	bus.Subscribe(events.EventBookingRejected, n.handleEvent)
}

func (n *TelegramNotifier) handleEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", event.Type).Msg("decode event payload")
		return err
	}

	text := formatMessage(event.Type, payload)
	if text == "" {
		return nil
	}

	for _, chatID := range n.adminChatIDs {
		if _, err := n.sender.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send admin notification")
		}
	}
	return nil
}

func formatMessage(eventType string, p events.BookingEventPayload) string {
	var b strings.Builder

	switch eventType {
	case events.EventBookingSubmitted:
		b.WriteString("🆕 Pengajuan baru\n")
	case events.EventBookingApproved:
		b.WriteString("✅ Pengajuan disetujui\n")
	case events.EventBookingRejected:
		b.WriteString("❌ Pengajuan ditolak\n")
	default:
		return ""
	}

	fmt.Fprintf(&b, "ID: %d\n", p.BookingID)
	fmt.Fprintf(&b, "Nama: %s\n", p.ApplicantName)
	fmt.Fprintf(&b, "Unit: %s", p.ResourceGroup)
	if p.ResourceType != "" && p.ResourceType != models.ResourceInternship {
		fmt.Fprintf(&b, " (%s)", p.ResourceType)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Mulai: %s\n", availability.DayKey(p.StartDate))
	fmt.Fprintf(&b, "Durasi: %s hari", p.DurationDays)
	if p.Comment != "" {
		fmt.Fprintf(&b, "\n💬 %s", p.Comment)
	}

	return b.String()
}
