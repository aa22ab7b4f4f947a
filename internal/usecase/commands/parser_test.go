package commands

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fic-recs-bot/internal/domain"
)

type stubUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func (s *stubUsers) Ensure(_ context.Context, id, name string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = domain.NewUser(id, name, "tok-"+id)
		s.users[id] = u
	}
	return u, nil
}

type recordingSink struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSink) SendMessage(_ context.Context, _ string, content domain.MessageContent) (domain.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, content.Text)
	return domain.MessageRef{ChannelID: "c", MessageID: "sent"}, nil
}

func (s *recordingSink) EditMessage(context.Context, domain.MessageRef, domain.MessageContent) error {
	return nil
}

func (s *recordingSink) AddReaction(context.Context, domain.MessageRef, string) error {
	return nil
}

type harness struct {
	parser *Parser
	users  *stubUsers
	sink   *recordingSink
	server *domain.Server
	now    time.Time
}

func newHarness() *harness {
	h := &harness{
		users:  &stubUsers{users: map[string]*domain.User{}},
		sink:   &recordingSink{},
		server: &domain.Server{ID: "g", Prefix: "!"},
		now:    time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	h.parser = NewParser(h.users, h.sink, "owner", DefaultLimits, zerolog.Nop())
	h.parser.now = func() time.Time { return h.now }
	return h
}

func (h *harness) user(id string) *domain.User {
	u, _ := h.users.Ensure(context.Background(), id, id)
	return u
}

// send отправляет команду от имени автора, предварительно сдвигая часы за пределы кулдауна.
func (h *harness) send(author, content string) domain.CommandChain {
	h.now = h.now.Add(5 * time.Second)
	return h.sendNow(author, content, false)
}

func (h *harness) sendNow(author, content string, admin bool) domain.CommandChain {
	word, _, _ := SplitCommand(content, h.server.Prefix)
	return h.parser.Execute(context.Background(), word, h.server, domain.InboundMessage{
		Ref:           domain.MessageRef{ChannelID: "chan", MessageID: "m1"},
		ServerID:      h.server.ID,
		AuthorID:      author,
		AuthorName:    author,
		AuthorIsAdmin: admin,
		Content:       content,
	})
}

func withActiveSet(u *domain.User) {
	u.FFNID = "777"
	u.ActiveSet = &domain.RecommendationList{FicData: domain.FicData{Fics: []int{1}, SourceFics: []int{1}, MatchCounts: []int{3}}}
}

func nullReason(t *testing.T, chain domain.CommandChain) string {
	t.Helper()
	require.Equal(t, 1, chain.Len())
	require.Equal(t, domain.CommandNull, chain.Commands[0].Type)
	return chain.Commands[0].Params.(domain.NullParams).Reason
}

func TestSplitCommand(t *testing.T) {
	word, args, ok := SplitCommand("  !Recs  12345 ", "!")
	require.True(t, ok)
	assert.Equal(t, "recs", word)
	assert.Equal(t, []string{"12345"}, args)

	_, _, ok = SplitCommand("recs 1", "!")
	assert.False(t, ok)
	_, _, ok = SplitCommand("!", "!")
	assert.False(t, ok)
}

func TestRecsWithIDBuildsFillAndDisplay(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!recs 12345")

	require.Equal(t, []domain.CommandType{domain.CommandFillRecommendations, domain.CommandDisplayPage}, chain.Types())
	assert.True(t, chain.HasParseCommand)
	fill := chain.Commands[0].Params.(domain.FillParams)
	assert.Equal(t, "12345", fill.FFNID)
	assert.True(t, fill.Refresh)
	assert.Equal(t, domain.PageParams{Page: 0}, chain.Commands[1].Params)

	require.Len(t, h.sink.sent, 1)
	assert.Contains(t, h.sink.sent[0], "Creating recommendations for ffn user 12345")

	for _, cmd := range chain.Commands {
		assert.Same(t, h.user("u1"), cmd.User)
		assert.Same(t, h.server, cmd.Server)
		assert.Equal(t, "m1", cmd.Origin.MessageID)
	}
}

func TestRecsAcceptsProfileURL(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!recs https://www.fanfiction.net/u/4242/someone")
	require.Equal(t, domain.CommandFillRecommendations, chain.Commands[0].Type)
	fill := chain.Commands[0].Params.(domain.FillParams)
	assert.Equal(t, "4242", fill.FFNID)
	assert.NotEmpty(t, fill.URL)
}

func TestRecsInvalidID(t *testing.T) {
	h := newHarness()
	assert.Equal(t, "Not a valid ID or user url.", nullReason(t, h.send("u1", "!recs nonsense")))
	assert.Equal(t, "Not a valid ID or user url.", nullReason(t, h.send("u2", "!recs")))
}

func TestRecsWithoutIDRefreshesStoredProfile(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	u.FFNID = "555"
	u.CurrentPage = 3
	chain := h.send("u1", "!recs")
	require.Equal(t, []domain.CommandType{domain.CommandFillRecommendations, domain.CommandDisplayPage}, chain.Types())
	assert.Equal(t, "555", chain.Commands[0].Params.(domain.FillParams).FFNID)
	assert.Equal(t, 3, chain.Commands[1].Params.(domain.PageParams).Page)
}

func TestRecsRefreshFlagForcesAutomaticParams(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!recs >refresh 12345")
	assert.Equal(t, []domain.CommandType{domain.CommandForceListParams, domain.CommandFillRecommendations, domain.CommandDisplayPage}, chain.Types())
	assert.Equal(t, domain.ListParamsOverride{}, chain.Commands[0].Params)
}

func TestRecsCooldown(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	u.LastRecsQuery = h.now.Add(-5 * time.Second)

	chain := h.send("u1", "!recs 12345")
	require.Equal(t, []domain.CommandType{domain.CommandTimeoutActive}, chain.Types())
	assert.True(t, chain.StopExecution)
	timeout := chain.Commands[0].Params.(domain.TimeoutParams)
	assert.Equal(t, 50, timeout.RemainingSeconds)
	assert.Contains(t, timeout.Reason, "Please wait 50 more seconds")
	assert.Empty(t, h.sink.sent)
}

func TestRecsCooldownBypassedByOwner(t *testing.T) {
	h := newHarness()
	h.user("owner").LastRecsQuery = h.now
	chain := h.send("owner", "!recs 12345")
	assert.Equal(t, domain.CommandFillRecommendations, chain.Commands[0].Type)
}

func TestGlobalCooldown(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))

	first := h.send("u1", "!next")
	require.Equal(t, domain.CommandDisplayPage, first.Commands[0].Type)

	h.now = h.now.Add(2 * time.Second)
	second := h.sendNow("u1", "!next", false)
	require.Equal(t, []domain.CommandType{domain.CommandTimeoutActive}, second.Types())
	assert.True(t, second.StopExecution)
	assert.Equal(t, 1, second.Commands[0].Params.(domain.TimeoutParams).RemainingSeconds)
	assert.Same(t, h.user("u1"), second.Commands[0].User)

	h.now = h.now.Add(2 * time.Second)
	third := h.sendNow("u1", "!next", false)
	assert.Equal(t, domain.CommandDisplayPage, third.Commands[0].Type)
}

func TestUnknownCommandIsIgnoredWithoutCooldown(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!dance")
	assert.Zero(t, chain.Len())
	assert.True(t, h.user("u1").LastEasyQuery.IsZero())
}

func TestFilterIsPlacedBeforeRestore(t *testing.T) {
	h := newHarness()
	h.user("u1").FFNID = "777"

	chain := h.send("u1", "!fandom Harry Potter")
	require.Equal(t, []domain.CommandType{domain.CommandSetFandoms, domain.CommandFillRecommendations, domain.CommandDisplayPage}, chain.Types())
	assert.Equal(t, domain.FandomParams{Fandom: "Harry Potter", Crossovers: true}, chain.Commands[0].Params)
	assert.False(t, chain.Commands[1].Params.(domain.FillParams).Refresh, "восстановление не должно обходить кэш")
	assert.Equal(t, domain.PageParams{Page: 0, RefreshPrevious: true}, chain.Commands[2].Params)
	require.Len(t, h.sink.sent, 1)
	assert.Contains(t, h.sink.sent[0], "Restoring recommendations for user 777")
}

func TestFilterWithActiveSetAppends(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))
	chain := h.send("u1", "!fandom >pure Naruto")
	require.Equal(t, []domain.CommandType{domain.CommandSetFandoms, domain.CommandDisplayPage}, chain.Types())
	assert.False(t, chain.Commands[0].Params.(domain.FandomParams).Crossovers)
}

func TestFilterRedisplaysLastRoll(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	withActiveSet(u)
	u.LastPageType = domain.CommandDisplayRng
	u.LastUsedRoll = "best"
	chain := h.send("u1", "!complete")
	require.Equal(t, []domain.CommandType{domain.CommandFilterComplete, domain.CommandDisplayRng}, chain.Types())
	assert.Equal(t, domain.RngParams{Quality: "best"}, chain.Commands[1].Params)
}

func TestFilterWithoutProfileAsksForRecs(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!xfandom Naruto")
	assert.Equal(t, []domain.CommandType{domain.CommandNoUserFFN}, chain.Types())
	assert.True(t, chain.StopExecution)
}

func TestFandomRequiresName(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))
	assert.Contains(t, nullReason(t, h.send("u1", "!fandom")), "Fandom name is required")

	chain := h.send("u1", "!xfandom >reset")
	assert.Equal(t, domain.FandomParams{Reset: true}, chain.Commands[0].Params)
}

func TestPagingCommands(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	withActiveSet(u)

	assert.Equal(t, domain.PageParams{Page: 0}, h.send("u1", "!prev").Commands[0].Params)
	u.CurrentPage = 4
	assert.Equal(t, domain.PageParams{Page: 5}, h.send("u1", "!next").Commands[0].Params)
	assert.Equal(t, domain.PageParams{Page: 3}, h.send("u1", "!prev").Commands[0].Params)
	assert.Equal(t, domain.PageParams{Page: 4}, h.send("u1", "!page").Commands[0].Params)
	assert.Equal(t, domain.PageParams{Page: 9}, h.send("u1", "!page 9").Commands[0].Params)
	assert.Contains(t, nullReason(t, h.send("u1", "!page 99999999999999999999")), "must be a non-negative number")
}

func TestHideDeadValidation(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))

	assert.Equal(t, "Number of days must be greater than 0", nullReason(t, h.send("u1", "!dead 0")))
	assert.Equal(t, "Number of days must be a number.", nullReason(t, h.send("u1", "!dead soon")))
	assert.Equal(t, domain.DeadParams{Days: 36500}, h.send("u1", "!dead 99999").Commands[0].Params)
	assert.Equal(t, domain.DeadParams{Days: 0}, h.send("u1", "!dead").Commands[0].Params)
}

func TestWordcount(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))

	assert.Equal(t, "`less` and `more` commands require a desired wordcount after them.", nullReason(t, h.send("u1", "!words less")))
	assert.Contains(t, nullReason(t, h.send("u1", "!words between 100")), "`between` command requires both")

	chain := h.send("u1", "!words between 5000 1000")
	require.Equal(t, []domain.CommandType{domain.CommandSetWordcountLimit, domain.CommandDisplayPage}, chain.Types())
	assert.Equal(t, domain.WordcountParams{Min: 1000, Max: 5000}, chain.Commands[0].Params)

	assert.Equal(t, domain.WordcountParams{Min: 100, Max: math.MaxInt32}, h.send("u1", "!words more 100").Commands[0].Params)
	assert.Equal(t, domain.WordcountParams{Min: 0, Max: 100}, h.send("u1", "!words less 100").Commands[0].Params)
	assert.Equal(t, domain.WordcountParams{}, h.send("u1", "!words").Commands[0].Params)
}

func TestIgnoreFic(t *testing.T) {
	h := newHarness()
	withActiveSet(h.user("u1"))

	silent := h.send("u1", "!nfic >silent 1 0 3")
	require.Equal(t, []domain.CommandType{domain.CommandIgnoreFics}, silent.Types())
	assert.Equal(t, domain.IgnoreFicsParams{Positions: []int{1, 3}}, silent.Commands[0].Params)

	all := h.send("u1", "!nfic >all")
	assert.Equal(t, []domain.CommandType{domain.CommandIgnoreFics, domain.CommandDisplayPage}, all.Types())
	assert.True(t, all.Commands[0].Params.(domain.IgnoreFicsParams).Everything)

	assert.Contains(t, nullReason(t, h.send("u1", "!nfic")), "Specify fic positions")
	assert.Contains(t, nullReason(t, h.send("u1", "!nfic one")), "must be numbers")
}

func TestRollClearsSimilarFics(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	withActiveSet(u)
	u.SimilarFicsID = 42

	chain := h.send("u1", "!roll good")
	assert.Equal(t, domain.RngParams{Quality: "good"}, chain.Commands[0].Params)
	assert.Zero(t, u.SimilarFicsID)

	assert.Equal(t, domain.RngParams{Quality: "all"}, h.send("u1", "!roll whatever").Commands[0].Params)
}

func TestSimilarFics(t *testing.T) {
	h := newHarness()
	u := h.user("u1")
	u.FFNID = "777"

	chain := h.send("u1", "!similar 42")
	require.Equal(t, []domain.CommandType{domain.CommandCreateSimilarFicsList, domain.CommandDisplayPage}, chain.Types())
	assert.Equal(t, 42, u.SimilarFicsID)

	back := h.send("u1", "!similar")
	require.Equal(t, []domain.CommandType{domain.CommandFillRecommendations, domain.CommandDisplayPage}, back.Types())
	assert.Zero(t, u.SimilarFicsID)

	assert.Contains(t, nullReason(t, h.send("u1", "!similar")), "Specify a fic ID")
	assert.Equal(t, "Not a valid fic ID or url.", nullReason(t, h.send("u1", "!similar abc")))
}

func TestChangePrefixPermissions(t *testing.T) {
	h := newHarness()

	denied := h.send("u1", "!prefix ?")
	assert.Equal(t, []domain.CommandType{domain.CommandInsufficientPermissions}, denied.Types())

	h.now = h.now.Add(5 * time.Second)
	assert.Equal(t, "Prefix cannot be empty.", nullReason(t, h.sendNow("admin", "!prefix", true)))

	h.now = h.now.Add(5 * time.Second)
	ok := h.sendNow("admin", "!prefix ?", true)
	require.Equal(t, []domain.CommandType{domain.CommandChangeServerPrefix}, ok.Types())
	assert.Equal(t, domain.PrefixParams{Prefix: "?"}, ok.Commands[0].Params)

	owner := h.send("owner", "!prefix $")
	assert.Equal(t, domain.CommandChangeServerPrefix, owner.Commands[0].Type)
}

func TestHelpStripsPrefix(t *testing.T) {
	h := newHarness()
	chain := h.send("u1", "!help !roll")
	assert.Equal(t, domain.HelpParams{Page: HelpPageForTopic("roll")}, chain.Commands[0].Params)
	assert.NotZero(t, HelpPageForTopic("roll"))
	assert.Zero(t, HelpPageForTopic("unknown"))
}

func TestPurge(t *testing.T) {
	h := newHarness()
	assert.Equal(t, []domain.CommandType{domain.CommandPurge}, h.send("u1", "!purge").Types())
}
