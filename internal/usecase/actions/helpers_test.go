package actions

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fic-recs-bot/internal/adapters/repo"
	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/usecase/recs"
	"fic-recs-bot/internal/usecase/session"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubFics struct {
	mu       sync.Mutex
	internal map[int]int
	respond  func(list *domain.RecommendationList)
	page     []domain.Fic
	total    int
	filters  []domain.StoryFilter
	cleared  []string
}

func (s *stubFics) ResolveIdentities(_ context.Context, ids []domain.Identity) ([]domain.Identity, error) {
	out := make([]domain.Identity, len(ids))
	for i, id := range ids {
		out[i] = id
		out[i].InternalID = domain.InvalidID
		if internal, ok := s.internal[id.FFNID]; ok {
			out[i].InternalID = internal
		}
	}
	return out, nil
}

func (s *stubFics) RequestRecommendations(_ context.Context, list *domain.RecommendationList) error {
	if s.respond != nil {
		s.respond(list)
	}
	return nil
}

func (s *stubFics) FetchPage(_ context.Context, filter domain.StoryFilter) ([]domain.Fic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filter)
	return append([]domain.Fic(nil), s.page...), nil
}

func (s *stubFics) FetchPageCount(_ context.Context, filter domain.StoryFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filter)
	return s.total, nil
}

func (s *stubFics) ClearUserData(_ context.Context, token string) error {
	s.cleared = append(s.cleared, token)
	return nil
}

type stubFavourites struct {
	result domain.FavouritesResult
	err    error
	modes  []domain.CacheMode
	full   int
}

func (s *stubFavourites) FetchFavourites(_ context.Context, _ string, mode domain.CacheMode) (domain.FavouritesResult, error) {
	s.modes = append(s.modes, mode)
	return s.result, s.err
}

func (s *stubFavourites) FetchFullFavourites(context.Context, string) (domain.FavouritesResult, error) {
	s.full++
	return s.result, s.err
}

func links(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}

type sessions struct {
	removed []string
}

func (s *sessions) Remove(id string) {
	s.removed = append(s.removed, id)
}

type fixture struct {
	env        *Environment
	store      *repo.Memory
	fics       *stubFics
	favourites *stubFavourites
	sessions   *sessions
	servers    *session.Servers
	user       *domain.User
	server     *domain.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repo.NewMemory(map[int]string{1: "Harry Potter", 2: "Naruto", 3: "Worm"})
	f := &fixture{
		store:      store,
		fics:       &stubFics{internal: map[int]int{}},
		favourites: &stubFavourites{},
		sessions:   &sessions{},
		servers:    session.NewServers(store, "!"),
		user:       domain.NewUser("u1", "reader", "token-1"),
	}
	require.NoError(t, store.WriteUser(context.Background(), f.user))
	srv, err := f.servers.Ensure(context.Background(), "guild")
	require.NoError(t, err)
	f.server = srv

	f.env = &Environment{
		Fics:               f.fics,
		Fandoms:            store,
		Favourites:         f.favourites,
		Users:              store,
		Servers:            f.servers,
		Sessions:           f.sessions,
		Engine:             recs.NewEngine(f.fics, store, zerolog.Nop()),
		Log:                zerolog.Nop(),
		Now:                func() time.Time { return testNow },
		PageSize:           10,
		FullParseThreshold: 500,
	}
	return f
}

// stored возвращает пользователя в том виде, в каком он лежит в хранилище.
func (f *fixture) stored(t *testing.T) *domain.User {
	t.Helper()
	u, err := f.store.LoadUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u
}

func (f *fixture) run(t domain.CommandType, params domain.CommandParams) domain.OutgoingMessage {
	return Execute(context.Background(), f.env, command(f, t, params))
}

func command(f *fixture, t domain.CommandType, params domain.CommandParams) domain.Command {
	cmd := domain.NewCommand(t, params)
	cmd.User = f.user
	cmd.Server = f.server
	cmd.Origin = domain.MessageRef{ChannelID: "chan", MessageID: "origin"}
	return cmd
}

func withActiveSet(u *domain.User) {
	u.ActiveSet = &domain.RecommendationList{
		Sources: map[int]struct{}{},
		FicData: domain.FicData{Fics: []int{10, 11}, SourceFics: []int{1, 2}, MatchCounts: []int{3, 2}},
	}
	u.PerfectCutoff = 3
	u.GoodCutoff = 2
}

