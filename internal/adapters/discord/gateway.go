package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
)

// Dispatcher принимает события платформы.
type Dispatcher interface {
	DispatchMessage(ctx context.Context, msg domain.InboundMessage)
	DispatchReaction(ctx context.Context, reaction domain.InboundReaction)
}

// NewSession создаёт сессию бота с нужными намерениями.
func NewSession(token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsDirectMessageReactions |
		discordgo.IntentsMessageContent
	return session, nil
}

// Gateway слушает события Discord и передаёт их обработчику.
type Gateway struct {
	session    *discordgo.Session
	dispatcher Dispatcher
	log        zerolog.Logger
}

// NewGateway создаёт шлюз.
func NewGateway(session *discordgo.Session, dispatcher Dispatcher, log zerolog.Logger) *Gateway {
	return &Gateway{session: session, dispatcher: dispatcher, log: log}
}

// Run открывает соединение и держит его до отмены ctx.
func (g *Gateway) Run(ctx context.Context) error {
	removeMessages := g.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		msg, ok := inboundMessage(m.Message, g.isAdmin(s, m.Message))
		if !ok {
			return
		}
		g.dispatcher.DispatchMessage(ctx, msg)
	})
	defer removeMessages()
	removeReactions := g.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
		if s.State != nil && s.State.User != nil && r.UserID == s.State.User.ID {
			return
		}
		g.dispatcher.DispatchReaction(ctx, inboundReaction(r.MessageReaction))
	})
	defer removeReactions()

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}
	g.log.Info().Msg("discord шлюз подключён")
	<-ctx.Done()
	if err := g.session.Close(); err != nil {
		g.log.Warn().Err(err).Msg("discord: ошибка при закрытии сессии")
	}
	return nil
}

func (g *Gateway) isAdmin(s *discordgo.Session, m *discordgo.Message) bool {
	if m.GuildID == "" || m.Author == nil {
		return false
	}
	perms, err := s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	if err != nil {
		g.log.Debug().Err(err).Str("user", m.Author.ID).Msg("discord: не удалось получить права")
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// serverID — гильдия, а для личных сообщений отдельный «сервер» на канал.
func serverID(guildID, channelID string) string {
	if guildID != "" {
		return guildID
	}
	return "dm:" + channelID
}

func inboundMessage(m *discordgo.Message, isAdmin bool) (domain.InboundMessage, bool) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return domain.InboundMessage{}, false
	}
	return domain.InboundMessage{
		Ref:           domain.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID},
		ServerID:      serverID(m.GuildID, m.ChannelID),
		AuthorID:      m.Author.ID,
		AuthorName:    m.Author.Username,
		AuthorIsAdmin: isAdmin,
		Content:       m.Content,
	}, true
}

func inboundReaction(r *discordgo.MessageReaction) domain.InboundReaction {
	return domain.InboundReaction{
		Ref:      domain.MessageRef{ChannelID: r.ChannelID, MessageID: r.MessageID},
		ServerID: serverID(r.GuildID, r.ChannelID),
		UserID:   r.UserID,
		Emoji:    r.Emoji.Name,
	}
}
