package bot

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/commands"
)

// ServerResolver возвращает настройки сервера, создавая их при первом обращении.
type ServerResolver interface {
	Ensure(ctx context.Context, id string) (*domain.Server, error)
}

// Tracker находит сообщения бота, которые можно листать реакциями.
type Tracker interface {
	Lookup(ref domain.MessageRef) (domain.TrackedMessage, error)
}

// Router строит цепочки команд из сообщений и реакций.
type Router interface {
	Execute(ctx context.Context, word string, server *domain.Server, msg domain.InboundMessage) domain.CommandChain
	ExecuteReaction(ctx context.Context, entry domain.TrackedMessage, server *domain.Server, reaction domain.InboundReaction) domain.CommandChain
}

// Runner исполняет цепочку под блокировкой пользователя.
type Runner interface {
	Handle(ctx context.Context, userID string, build func() domain.CommandChain)
}

// Handler принимает события любой платформы и раздаёт их пулу обработчиков.
type Handler struct {
	log     zerolog.Logger
	servers ServerResolver
	tracker Tracker
	router  Router
	runner  Runner
	pool    *errgroup.Group
}

// NewHandler создаёт обработчик. workers ограничивает число одновременно исполняемых событий.
func NewHandler(log zerolog.Logger, servers ServerResolver, tracker Tracker, router Router, runner Runner, workers int) *Handler {
	if workers <= 0 {
		workers = 1
	}
	pool := &errgroup.Group{}
	pool.SetLimit(workers)
	return &Handler{
		log:     log,
		servers: servers,
		tracker: tracker,
		router:  router,
		runner:  runner,
		pool:    pool,
	}
}

// DispatchMessage ставит сообщение в пул. Блокируется, пока все обработчики заняты.
func (h *Handler) DispatchMessage(ctx context.Context, msg domain.InboundMessage) {
	h.pool.Go(func() error {
		h.HandleMessage(ctx, msg)
		return nil
	})
}

// DispatchReaction ставит реакцию в пул.
func (h *Handler) DispatchReaction(ctx context.Context, reaction domain.InboundReaction) {
	h.pool.Go(func() error {
		h.HandleReaction(ctx, reaction)
		return nil
	})
}

// Wait дожидается завершения всех начатых обработчиков.
func (h *Handler) Wait() {
	_ = h.pool.Wait()
}

// HandleMessage распознаёт команду по префиксу сервера и исполняет цепочку.
func (h *Handler) HandleMessage(ctx context.Context, msg domain.InboundMessage) {
	if msg.AuthorID == "" || strings.TrimSpace(msg.Content) == "" {
		return
	}
	server, err := h.servers.Ensure(ctx, msg.ServerID)
	if err != nil {
		h.log.Error().Err(err).Str("server", msg.ServerID).Msg("не удалось получить настройки сервера")
		return
	}
	word, _, ok := commands.SplitCommand(msg.Content, server.Prefix)
	if !ok {
		return
	}
	h.log.Debug().Str("user", msg.AuthorID).Str("server", server.ID).Str("command", word).Msg("входящая команда")
	h.runner.Handle(ctx, msg.AuthorID, func() domain.CommandChain {
		return h.router.Execute(ctx, word, server, msg)
	})
}

// HandleReaction обрабатывает реакцию на отслеживаемое сообщение бота.
func (h *Handler) HandleReaction(ctx context.Context, reaction domain.InboundReaction) {
	if !isControlEmoji(reaction.Emoji) || reaction.UserID == "" {
		return
	}
	entry, err := h.tracker.Lookup(reaction.Ref)
	if err != nil {
		return
	}
	serverID := reaction.ServerID
	if serverID == "" {
		serverID = entry.ServerID
	}
	server, err := h.servers.Ensure(ctx, serverID)
	if err != nil {
		h.log.Error().Err(err).Str("server", serverID).Msg("не удалось получить настройки сервера")
		return
	}
	h.runner.Handle(ctx, reaction.UserID, func() domain.CommandChain {
		return h.router.ExecuteReaction(ctx, entry, server, reaction)
	})
}

func isControlEmoji(emoji string) bool {
	switch emoji {
	case domain.ReactionPrevious, domain.ReactionNext, domain.ReactionReroll:
		return true
	}
	return false
}
