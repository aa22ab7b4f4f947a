package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
)

type serversStub struct {
	mu     sync.Mutex
	prefix string
	err    error
	seen   []string
}

func (s *serversStub) Ensure(_ context.Context, id string) (*domain.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, id)
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Server{ID: id, Prefix: s.prefix}, nil
}

type trackerStub struct {
	entries map[string]domain.TrackedMessage
}

func (t trackerStub) Lookup(ref domain.MessageRef) (domain.TrackedMessage, error) {
	entry, ok := t.entries[ref.MessageID]
	if !ok {
		return domain.TrackedMessage{}, errors.New("not tracked")
	}
	return entry, nil
}

type routerStub struct {
	mu        sync.Mutex
	words     []string
	reactions []domain.InboundReaction
	servers   []string
}

func (r *routerStub) Execute(_ context.Context, word string, server *domain.Server, _ domain.InboundMessage) domain.CommandChain {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.words = append(r.words, word)
	r.servers = append(r.servers, server.ID)
	return domain.CommandChain{}
}

func (r *routerStub) ExecuteReaction(_ context.Context, _ domain.TrackedMessage, server *domain.Server, reaction domain.InboundReaction) domain.CommandChain {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reactions = append(r.reactions, reaction)
	r.servers = append(r.servers, server.ID)
	return domain.CommandChain{}
}

type runnerStub struct {
	mu    sync.Mutex
	users []string
}

func (r *runnerStub) Handle(_ context.Context, userID string, build func() domain.CommandChain) {
	r.mu.Lock()
	r.users = append(r.users, userID)
	r.mu.Unlock()
	build()
}

func newTestHandler(servers *serversStub, tracker trackerStub) (*Handler, *routerStub, *runnerStub) {
	router := &routerStub{}
	runner := &runnerStub{}
	return NewHandler(zerolog.Nop(), servers, tracker, router, runner, 2), router, runner
}

func TestHandleMessageRoutesPrefixedCommand(t *testing.T) {
	h, router, runner := newTestHandler(&serversStub{prefix: "?"}, trackerStub{})
	h.HandleMessage(context.Background(), domain.InboundMessage{ServerID: "g1", AuthorID: "u1", Content: "?Recs 12345"})

	if len(router.words) != 1 || router.words[0] != "recs" {
		t.Fatalf("ожидали команду recs, получили %v", router.words)
	}
	if len(runner.users) != 1 || runner.users[0] != "u1" {
		t.Fatalf("цепочка должна исполняться под пользователем u1: %v", runner.users)
	}
}

func TestHandleMessageIgnoresForeignPrefix(t *testing.T) {
	h, router, runner := newTestHandler(&serversStub{prefix: "?"}, trackerStub{})
	h.HandleMessage(context.Background(), domain.InboundMessage{ServerID: "g1", AuthorID: "u1", Content: "!recs 12345"})
	h.HandleMessage(context.Background(), domain.InboundMessage{ServerID: "g1", AuthorID: "u1", Content: "   "})

	if len(router.words) != 0 || len(runner.users) != 0 {
		t.Fatalf("сообщения без префикса не должны доходить до роутера")
	}
}

func TestHandleMessageStopsOnServerError(t *testing.T) {
	h, router, _ := newTestHandler(&serversStub{prefix: "!", err: errors.New("db down")}, trackerStub{})
	h.HandleMessage(context.Background(), domain.InboundMessage{ServerID: "g1", AuthorID: "u1", Content: "!recs 1"})
	if len(router.words) != 0 {
		t.Fatalf("без настроек сервера команда не исполняется")
	}
}

func TestHandleReactionUsesTrackedServer(t *testing.T) {
	tracker := trackerStub{entries: map[string]domain.TrackedMessage{
		"m1": {UserID: "u1", ServerID: "g7", Type: domain.CommandDisplayPage},
	}}
	h, router, runner := newTestHandler(&serversStub{prefix: "!"}, tracker)
	h.HandleReaction(context.Background(), domain.InboundReaction{
		Ref:    domain.MessageRef{ChannelID: "c", MessageID: "m1"},
		UserID: "u1",
		Emoji:  domain.ReactionNext,
	})

	if len(router.reactions) != 1 {
		t.Fatalf("ожидали одну реакцию, получили %d", len(router.reactions))
	}
	if router.servers[0] != "g7" {
		t.Fatalf("ожидали сервер из трекера, получили %s", router.servers[0])
	}
	if runner.users[0] != "u1" {
		t.Fatalf("реакция исполняется под пользователем, который её поставил")
	}
}

func TestHandleReactionSkipsUnknown(t *testing.T) {
	tracker := trackerStub{entries: map[string]domain.TrackedMessage{"m1": {UserID: "u1"}}}
	h, router, _ := newTestHandler(&serversStub{prefix: "!"}, tracker)

	h.HandleReaction(context.Background(), domain.InboundReaction{Ref: domain.MessageRef{MessageID: "m1"}, UserID: "u1", Emoji: "❤️"})
	h.HandleReaction(context.Background(), domain.InboundReaction{Ref: domain.MessageRef{MessageID: "m2"}, UserID: "u1", Emoji: domain.ReactionNext})

	if len(router.reactions) != 0 {
		t.Fatalf("посторонние реакции и сообщения не обрабатываются: %v", router.reactions)
	}
}

func TestDispatchRunsAllEvents(t *testing.T) {
	h, router, _ := newTestHandler(&serversStub{prefix: "!"}, trackerStub{})
	for i := 0; i < 10; i++ {
		h.DispatchMessage(context.Background(), domain.InboundMessage{ServerID: "g", AuthorID: "u", Content: "!help"})
	}
	h.Wait()

	router.mu.Lock()
	defer router.mu.Unlock()
	if len(router.words) != 10 {
		t.Fatalf("ожидали 10 обработанных сообщений, получили %d", len(router.words))
	}
}
