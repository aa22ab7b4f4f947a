package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"fic-recs-bot/internal/adapters/messaging"
	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// Sink отправляет сообщения бота в Discord.
type Sink struct {
	session *discordgo.Session
}

var _ domain.MessageSink = (*Sink)(nil)

// NewSink создаёт отправителя поверх открытой сессии.
func NewSink(session *discordgo.Session) *Sink {
	return &Sink{session: session}
}

// SendMessage отправляет текст частями; эмбед прикладывается к первой части.
// Возвращает ссылку на первое сообщение, к нему же вешаются реакции.
func (s *Sink) SendMessage(ctx context.Context, channelID string, content domain.MessageContent) (domain.MessageRef, error) {
	parts := messaging.SplitMessage(content.Text, messaging.DiscordLimit)
	if len(parts) == 0 {
		parts = []string{""}
	}
	var first domain.MessageRef
	for i, part := range parts {
		send := &discordgo.MessageSend{Content: part}
		if i == 0 && content.Embed != nil {
			send.Embeds = []*discordgo.MessageEmbed{toEmbed(content.Embed)}
		}
		start := time.Now()
		msg, err := s.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
		metrics.ObserveNetworkRequest("discord", "send_message", channelID, start, err)
		if err != nil {
			return first, err
		}
		if i == 0 {
			first = domain.MessageRef{ChannelID: msg.ChannelID, MessageID: msg.ID}
		}
	}
	return first, nil
}

// EditMessage заменяет содержимое сообщения. Текст обрезается до предела платформы.
func (s *Sink) EditMessage(ctx context.Context, target domain.MessageRef, content domain.MessageContent) error {
	text := truncate(content.Text, messaging.DiscordLimit)
	edit := discordgo.NewMessageEdit(target.ChannelID, target.MessageID).SetContent(text)
	if content.Embed != nil {
		edit.SetEmbed(toEmbed(content.Embed))
	}
	start := time.Now()
	_, err := s.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "edit_message", target.ChannelID, start, err)
	return err
}

// AddReaction ставит реакцию от имени бота.
func (s *Sink) AddReaction(ctx context.Context, target domain.MessageRef, emoji string) error {
	start := time.Now()
	err := s.session.MessageReactionAdd(target.ChannelID, target.MessageID, emoji, discordgo.WithContext(ctx))
	metrics.ObserveNetworkRequest("discord", "add_reaction", target.ChannelID, start, err)
	return err
}

func toEmbed(e *domain.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: truncate(e.Description, 4096),
		URL:         e.URL,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
