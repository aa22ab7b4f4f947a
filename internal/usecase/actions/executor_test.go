package actions

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
)

type sinkRecord struct {
	op      string
	ref     domain.MessageRef
	content domain.MessageContent
	emoji   string
}

type recordingSink struct {
	mu      sync.Mutex
	records []sinkRecord
	next    int
}

func (s *recordingSink) SendMessage(_ context.Context, channelID string, content domain.MessageContent) (domain.MessageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	ref := domain.MessageRef{ChannelID: channelID, MessageID: "bot-" + strconv.Itoa(s.next)}
	s.records = append(s.records, sinkRecord{op: "send", ref: ref, content: content})
	return ref, nil
}

func (s *recordingSink) EditMessage(_ context.Context, target domain.MessageRef, content domain.MessageContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{op: "edit", ref: target, content: content})
	return nil
}

func (s *recordingSink) AddReaction(_ context.Context, target domain.MessageRef, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, sinkRecord{op: "react", ref: target, emoji: emoji})
	return nil
}

func (s *recordingSink) ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.records))
	for i, r := range s.records {
		out[i] = r.op
	}
	return out
}

type trackerStub struct {
	entries map[string]domain.TrackedMessage
}

func (t *trackerStub) Track(ref domain.MessageRef, entry domain.TrackedMessage) error {
	t.entries[ref.MessageID] = entry
	return nil
}

type queueStub struct {
	mu   sync.Mutex
	jobs []domain.ContinuationJob
}

func (q *queueStub) Enqueue(_ context.Context, job domain.ContinuationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) Receive(ctx context.Context) (domain.ContinuationJob, domain.AckFunc, error) {
	<-ctx.Done()
	return domain.ContinuationJob{}, nil, ctx.Err()
}

type onceCache struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (c *onceCache) Once(key string, _ time.Duration, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.keys[key] {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	c.keys[key] = true
	return nil
}

func (c *onceCache) Set(string, []byte, time.Duration) error { return nil }

func (c *onceCache) Get(string) ([]byte, error) { return nil, nil }

type executorFixture struct {
	*fixture
	exec    *Executor
	sink    *recordingSink
	tracker *trackerStub
	queue   *queueStub
}

func newExecutorFixture(t *testing.T) *executorFixture {
	f := newFixture(t)
	ef := &executorFixture{
		fixture: f,
		sink:    &recordingSink{},
		tracker: &trackerStub{entries: map[string]domain.TrackedMessage{}},
		queue:   &queueStub{},
	}
	ef.exec = NewExecutor(f.env, ef.sink, ef.tracker, ef.queue, &onceCache{keys: map[string]bool{}}, zerolog.Nop())
	ef.exec.newID = func() string { return "job-1" }
	return ef
}

func (ef *executorFixture) chain(cmds ...domain.Command) func() domain.CommandChain {
	return func() domain.CommandChain {
		var chain domain.CommandChain
		for _, cmd := range cmds {
			chain.Push(cmd)
		}
		return chain
	}
}

func TestExecutorStopsChainOnFailure(t *testing.T) {
	ef := newExecutorFixture(t)
	withActiveSet(ef.user)
	ef.exec.Handle(context.Background(), "u1", ef.chain(
		command(ef.fixture, domain.CommandNull, domain.NullParams{Reason: "bad input"}),
		command(ef.fixture, domain.CommandDisplayPage, domain.PageParams{}),
	))

	require.Equal(t, []string{"send"}, ef.sink.ops())
	assert.Equal(t, "bad input", ef.sink.records[0].content.Text)
	assert.Empty(t, ef.fics.filters, "страница не должна запрашиваться после остановки")
}

func TestExecutorCountsAbortedChainOnce(t *testing.T) {
	ef := newExecutorFixture(t)
	aborted := metrics.ChainsAborted.WithLabelValues(domain.CommandNull.String())
	before := testutil.ToFloat64(aborted)

	ef.exec.Handle(context.Background(), "u1", ef.chain(
		command(ef.fixture, domain.CommandNull, domain.NullParams{Reason: "bad input"}),
	))

	assert.Equal(t, before+1, testutil.ToFloat64(aborted))
}

func TestExecutorSendsAndTracksPage(t *testing.T) {
	ef := newExecutorFixture(t)
	withActiveSet(ef.user)
	ef.fics.total = 1
	ef.fics.page = []domain.Fic{{ID: 10, Title: "Only"}}

	ef.exec.Handle(context.Background(), "u1", ef.chain(
		command(ef.fixture, domain.CommandSetWordcountLimit, domain.WordcountParams{Min: 1, Max: 2}),
		command(ef.fixture, domain.CommandDisplayPage, domain.PageParams{}),
	))

	assert.Equal(t, []string{"send", "react", "react"}, ef.sink.ops())
	sent := ef.sink.records[0]
	require.NotNil(t, sent.content.Embed)
	assert.Equal(t, "chan", sent.ref.ChannelID)
	assert.Equal(t, domain.TrackedMessage{UserID: "u1", ServerID: "guild", Type: domain.CommandDisplayPage}, ef.tracker.entries[sent.ref.MessageID])
	assert.Equal(t, sent.ref, ef.user.LastPageMessage)
}

func TestExecutorEditsReactionTarget(t *testing.T) {
	ef := newExecutorFixture(t)
	withActiveSet(ef.user)
	target := domain.MessageRef{ChannelID: "chan", MessageID: "page-msg"}
	cmd := command(ef.fixture, domain.CommandDisplayPage, domain.PageParams{Page: 0})
	cmd.Target = target

	ef.exec.Handle(context.Background(), "u1", ef.chain(cmd))

	assert.Equal(t, []string{"edit"}, ef.sink.ops())
	assert.Equal(t, target, ef.sink.records[0].ref)
	assert.Contains(t, ef.tracker.entries, "page-msg")
}

func TestExecutorSendsDiagnosticsSeparately(t *testing.T) {
	ef := newExecutorFixture(t)
	ef.favourites.result = domain.FavouritesResult{Links: []string{"1", "2"}, HasFavourites: true}
	ef.fics.internal = map[int]int{1: 101}
	ef.fics.respond = func(list *domain.RecommendationList) {
		list.FicData = domain.FicData{Fics: []int{10}, SourceFics: []int{201}, MatchCounts: []int{2}}
	}

	ef.exec.Handle(context.Background(), "u1", ef.chain(
		command(ef.fixture, domain.CommandFillRecommendations, domain.FillParams{FFNID: "42", Refresh: true}),
	))

	require.Equal(t, []string{"send", "send"}, ef.sink.ops())
	assert.Contains(t, ef.sink.records[0].content.Text, "has been created")
	assert.Contains(t, ef.sink.records[1].content.Text, "not in the database yet")
}

func TestExecutorReschedulesOversizedListOnce(t *testing.T) {
	ef := newExecutorFixture(t)
	ef.favourites.result = domain.FavouritesResult{Links: links(700), HasFavourites: true}
	build := ef.chain(
		command(ef.fixture, domain.CommandFillRecommendations, domain.FillParams{FFNID: "42", Refresh: true}),
		command(ef.fixture, domain.CommandDisplayPage, domain.PageParams{}),
	)

	ef.exec.Handle(context.Background(), "u1", build)
	ef.exec.Handle(context.Background(), "u1", build)

	require.Len(t, ef.queue.jobs, 1)
	job := ef.queue.jobs[0]
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, "42", job.FFNID)
	assert.Equal(t, testNow, job.RequestedAt)
	assert.Equal(t, []string{"send", "send"}, ef.sink.ops(), "пользователь получает уведомление, страница не показывается")
}

func TestExecutorSerializesSameUser(t *testing.T) {
	ef := newExecutorFixture(t)
	var inflight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ef.exec.Handle(context.Background(), "u1", func() domain.CommandChain {
				n := atomic.AddInt32(&inflight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inflight, -1)
				return domain.CommandChain{}
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
	assert.Zero(t, ef.exec.locks.len())
}
