package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// Dispatcher принимает события платформы.
type Dispatcher interface {
	DispatchMessage(ctx context.Context, msg domain.InboundMessage)
	DispatchReaction(ctx context.Context, reaction domain.InboundReaction)
}

// Updates — источник апдейтов для режима long polling.
type Updates interface {
	BotAPI
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Gateway превращает апдейты Telegram в события бота.
type Gateway struct {
	bot        Updates
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewGateway создаёт шлюз.
func NewGateway(bot Updates, dispatcher Dispatcher, log zerolog.Logger) *Gateway {
	return &Gateway{bot: bot, dispatcher: dispatcher, log: log}
}

// Run читает апдейты через long polling до отмены ctx.
func (g *Gateway) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := g.bot.GetUpdatesChan(cfg)
	defer g.bot.StopReceivingUpdates()
	g.log.Info().Msg("telegram шлюз запущен в режиме polling")
	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			g.HandleUpdate(ctx, upd)
		}
	}
}

// WebhookHandler принимает апдейты вебхука. Проверку секрета выполняет middleware.
func (g *Gateway) WebhookHandler(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.HandleUpdate(ctx, update)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleUpdate передаёт сообщение или нажатие кнопки обработчику.
func (g *Gateway) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		if msg, ok := g.inboundMessage(upd.Message); ok {
			g.dispatcher.DispatchMessage(ctx, msg)
		}
	case upd.CallbackQuery != nil:
		g.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (g *Gateway) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if reaction, ok := inboundReaction(cb); ok {
		g.dispatcher.DispatchReaction(ctx, reaction)
	}
	start := time.Now()
	_, err := g.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", "callback", start, err)
	if err != nil {
		g.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (g *Gateway) inboundMessage(m *tgbotapi.Message) (domain.InboundMessage, bool) {
	if m.From == nil || m.Chat == nil || m.From.IsBot || strings.TrimSpace(m.Text) == "" {
		return domain.InboundMessage{}, false
	}
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	return domain.InboundMessage{
		Ref:           domain.MessageRef{ChannelID: chatID, MessageID: strconv.Itoa(m.MessageID)},
		ServerID:      chatID,
		AuthorID:      strconv.FormatInt(m.From.ID, 10),
		AuthorName:    m.From.UserName,
		AuthorIsAdmin: g.isAdmin(m),
		Content:       m.Text,
	}, true
}

// isAdmin запрашивает права только для смены префикса: это единственная команда, где они важны.
func (g *Gateway) isAdmin(m *tgbotapi.Message) bool {
	if m.Chat.IsPrivate() {
		return true
	}
	if !strings.Contains(strings.ToLower(m.Text), "prefix") {
		return false
	}
	start := time.Now()
	member, err := g.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: m.Chat.ID, UserID: m.From.ID},
	})
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat_member", strconv.FormatInt(m.Chat.ID, 10), start, err)
	if err != nil {
		g.log.Warn().Err(err).Int64("chat", m.Chat.ID).Msg("не удалось получить права участника")
		return false
	}
	return member.IsAdministrator() || member.IsCreator()
}

func inboundReaction(cb *tgbotapi.CallbackQuery) (domain.InboundReaction, bool) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return domain.InboundReaction{}, false
	}
	chatID := strconv.FormatInt(cb.Message.Chat.ID, 10)
	return domain.InboundReaction{
		Ref:      domain.MessageRef{ChannelID: chatID, MessageID: strconv.Itoa(cb.Message.MessageID)},
		ServerID: chatID,
		UserID:   strconv.FormatInt(cb.From.ID, 10),
		Emoji:    cb.Data,
	}, true
}
