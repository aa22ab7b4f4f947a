package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fic-recs-bot/internal/adapters/messaging"
	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// maxKeyboards ограничивает число сообщений, для которых помним кнопки.
const maxKeyboards = 4096

// BotAPI — часть клиента Telegram, которой пользуется адаптер.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Sink отправляет сообщения бота в Telegram. Реакции превращаются в инлайн-кнопки.
type Sink struct {
	bot BotAPI

	mu        sync.Mutex
	keyboards map[string][]string
	order     []string
}

var _ domain.MessageSink = (*Sink)(nil)

// NewSink создаёт отправителя.
func NewSink(bot BotAPI) *Sink {
	return &Sink{bot: bot, keyboards: make(map[string][]string)}
}

// SendMessage реализует domain.MessageSink. Возвращает ссылку на первую часть.
func (s *Sink) SendMessage(_ context.Context, channelID string, content domain.MessageContent) (domain.MessageRef, error) {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("telegram: некорректный чат %q: %w", channelID, err)
	}
	var first domain.MessageRef
	for i, part := range messaging.SplitMessage(render(content), messaging.TelegramLimit) {
		start := time.Now()
		msg, err := s.bot.Send(tgbotapi.NewMessage(chatID, part))
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", channelID, start, err)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = domain.MessageRef{ChannelID: channelID, MessageID: strconv.Itoa(msg.MessageID)}
		}
	}
	return first, nil
}

// EditMessage реализует domain.MessageSink, сохраняя ранее добавленные кнопки.
func (s *Sink) EditMessage(_ context.Context, target domain.MessageRef, content domain.MessageContent) error {
	chatID, msgID, err := parseRef(target)
	if err != nil {
		return err
	}
	text := []rune(render(content))
	if len(text) > messaging.TelegramLimit {
		text = text[:messaging.TelegramLimit]
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, string(text))
	if emojis := s.buttons(target); len(emojis) > 0 {
		markup := keyboard(emojis)
		edit.ReplyMarkup = &markup
	}
	start := time.Now()
	_, err = s.bot.Send(edit)
	if isNotModified(err) {
		err = nil
	}
	metrics.ObserveNetworkRequest("telegram_bot", "edit_message", target.ChannelID, start, err)
	return err
}

// AddReaction добавляет кнопку с эмодзи к сообщению.
func (s *Sink) AddReaction(_ context.Context, target domain.MessageRef, emoji string) error {
	chatID, msgID, err := parseRef(target)
	if err != nil {
		return err
	}
	emojis := s.addButton(target, emoji)
	start := time.Now()
	_, err = s.bot.Request(tgbotapi.NewEditMessageReplyMarkup(chatID, msgID, keyboard(emojis)))
	if isNotModified(err) {
		err = nil
	}
	metrics.ObserveNetworkRequest("telegram_bot", "add_reaction", target.ChannelID, start, err)
	return err
}

func (s *Sink) buttons(ref domain.MessageRef) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keyboards[refKey(ref)]...)
}

func (s *Sink) addButton(ref domain.MessageRef, emoji string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := refKey(ref)
	current, ok := s.keyboards[key]
	if !ok {
		s.order = append(s.order, key)
		if len(s.order) > maxKeyboards {
			delete(s.keyboards, s.order[0])
			s.order = s.order[1:]
		}
	}
	for _, e := range current {
		if e == emoji {
			return append([]string(nil), current...)
		}
	}
	current = append(current, emoji)
	s.keyboards[key] = current
	return append([]string(nil), current...)
}

func keyboard(emojis []string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(emojis))
	for _, e := range emojis {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(e, e))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

// render сводит эмбед к простому тексту: в Telegram нет аналога.
func render(content domain.MessageContent) string {
	if content.Embed == nil {
		return content.Text
	}
	var b strings.Builder
	if content.Text != "" {
		b.WriteString(content.Text)
		b.WriteString("\n\n")
	}
	if content.Embed.Title != "" {
		b.WriteString(content.Embed.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(content.Embed.Description)
	if content.Embed.Footer != "" {
		b.WriteString("\n\n")
		b.WriteString(content.Embed.Footer)
	}
	return b.String()
}

func parseRef(ref domain.MessageRef) (int64, int, error) {
	chatID, err := strconv.ParseInt(ref.ChannelID, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: некорректный чат %q: %w", ref.ChannelID, err)
	}
	msgID, err := strconv.Atoi(ref.MessageID)
	if err != nil {
		return 0, 0, fmt.Errorf("telegram: некорректное сообщение %q: %w", ref.MessageID, err)
	}
	return chatID, msgID, nil
}

func refKey(ref domain.MessageRef) string {
	return ref.ChannelID + ":" + ref.MessageID
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
