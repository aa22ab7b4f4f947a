package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

// UserResolver возвращает сессию пользователя, создавая её при необходимости.
type UserResolver interface {
	Ensure(ctx context.Context, id, name string) (*domain.User, error)
}

// Limits задаёт кулдауны команд.
type Limits struct {
	CommandCooldown time.Duration
	RecsCooldown    time.Duration
}

// DefaultLimits — 3 секунды на любую команду и минута на построение списка.
var DefaultLimits = Limits{CommandCooldown: 3 * time.Second, RecsCooldown: 60 * time.Second}

// Parser превращает сообщения и реакции в цепочки команд. Построение сериализовано глобальной блокировкой.
type Parser struct {
	mu         sync.Mutex
	processors []Processor
	users      UserResolver
	sink       domain.MessageSink
	ownerID    string
	limits     Limits
	now        func() time.Time
	log        zerolog.Logger
}

// NewParser создаёт роутер команд.
func NewParser(users UserResolver, sink domain.MessageSink, ownerID string, limits Limits, log zerolog.Logger) *Parser {
	return &Parser{
		processors: DefaultProcessors(),
		users:      users,
		sink:       sink,
		ownerID:    ownerID,
		limits:     limits,
		now:        time.Now,
		log:        log,
	}
}

// SplitCommand отделяет префикс и возвращает слово команды с аргументами.
func SplitCommand(content, prefix string) (word string, args []string, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// Execute строит цепочку для сообщения и отправляет предварительные уведомления.
func (p *Parser) Execute(ctx context.Context, word string, server *domain.Server, msg domain.InboundMessage) domain.CommandChain {
	chain := p.build(ctx, word, server, msg)
	p.sendPreExecution(ctx, chain)
	return chain
}

func (p *Parser) build(ctx context.Context, word string, server *domain.Server, msg domain.InboundMessage) domain.CommandChain {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result domain.CommandChain
	user, err := p.users.Ensure(ctx, msg.AuthorID, msg.AuthorName)
	if err != nil {
		p.log.Error().Err(err).Str("user", msg.AuthorID).Msg("parser: не удалось получить пользователя")
		result.StopExecution = true
		result.Push(domain.NewCommand(domain.CommandNull, domain.NullParams{Reason: "Could not load your profile, please try again later."}))
		attach(&result, nil, server, msg.Ref)
		return result
	}

	now := p.now()
	cooldown := cooldownSeconds(p.limits.CommandCooldown)
	if secs := user.SecsSinceLastEasyQuery(now); secs < cooldown {
		remaining := cooldown - secs
		result.StopExecution = true
		result.Push(domain.NewCommand(domain.CommandTimeoutActive, domain.TimeoutParams{
			RemainingSeconds: remaining,
			Reason:           fmt.Sprintf("One command can be issued each %d seconds. Please wait %d more seconds.", cooldown, remaining),
		}))
		metrics.IncCooldown("command")
		attach(&result, user, server, msg.Ref)
		return result
	}

	_, args, _ := SplitCommand(msg.Content, server.Prefix)
	for _, proc := range p.processors {
		if !proc.IsThisCommand(word) {
			continue
		}
		out := proc.ProcessInput(Input{
			User:         *user,
			Server:       *server,
			Message:      msg,
			Args:         args,
			Role:         domain.ResolveRole(msg.AuthorID, p.ownerID, msg.AuthorIsAdmin),
			Now:          now,
			RecsCooldown: p.limits.RecsCooldown,
		})
		result.Append(out.Chain)
		out.Patch.Apply(user)
		metrics.IncCommand(proc.Name())
		if out.Chain.Len() > 0 && out.Chain.Commands[0].Type == domain.CommandTimeoutActive {
			metrics.IncCooldown("recs")
		}
		break
	}
	if result.Len() > 0 {
		user.InitNewEasyQuery(now)
	}
	attach(&result, user, server, msg.Ref)
	return result
}

// ExecuteReaction строит цепочку для реакции владельца на сообщение бота.
func (p *Parser) ExecuteReaction(ctx context.Context, entry domain.TrackedMessage, server *domain.Server, reaction domain.InboundReaction) domain.CommandChain {
	if entry.UserID != reaction.UserID {
		return domain.CommandChain{}
	}
	chain := func() domain.CommandChain {
		p.mu.Lock()
		defer p.mu.Unlock()
		user, err := p.users.Ensure(ctx, reaction.UserID, "")
		if err != nil {
			p.log.Error().Err(err).Str("user", reaction.UserID).Msg("parser: не удалось получить пользователя для реакции")
			return domain.CommandChain{}
		}
		chain := ReactionChain(entry.Type, reaction.Emoji, *user, reaction.Ref)
		attach(&chain, user, server, reaction.Ref)
		return chain
	}()
	p.sendPreExecution(ctx, chain)
	return chain
}

func attach(chain *domain.CommandChain, user *domain.User, server *domain.Server, origin domain.MessageRef) {
	chain.AddUser(user)
	for i := range chain.Commands {
		chain.Commands[i].Server = server
		chain.Commands[i].Origin = origin
	}
}

func (p *Parser) sendPreExecution(ctx context.Context, chain domain.CommandChain) {
	if p.sink == nil {
		return
	}
	for _, cmd := range chain.Commands {
		if cmd.PreExecutionText == "" {
			continue
		}
		if _, err := p.sink.SendMessage(ctx, cmd.Origin.ChannelID, domain.MessageContent{Text: cmd.PreExecutionText}); err != nil {
			metrics.BotSendErrors.Inc()
			p.log.Warn().Err(err).Str("command", cmd.Type.String()).Msg("parser: не удалось отправить предварительное сообщение")
		}
	}
}
