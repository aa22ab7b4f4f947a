package actions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
	"fic-recs-bot/internal/usecase/commands"
)

const continuationDedupeTTL = 10 * time.Minute

// Tracker запоминает сообщения бота, управляемые реакциями.
type Tracker interface {
	Track(ref domain.MessageRef, entry domain.TrackedMessage) error
}

// Executor исполняет цепочки команд и доставляет результаты на платформу.
type Executor struct {
	env     *Environment
	sink    domain.MessageSink
	tracker Tracker
	queue   domain.ContinuationQueue
	dedupe  domain.Cache
	locks   *userLocks
	log     zerolog.Logger
	newID   func() string
}

// NewExecutor создаёт исполнитель. queue и dedupe могут быть nil: тогда большие списки не откладываются.
func NewExecutor(env *Environment, sink domain.MessageSink, tracker Tracker, queue domain.ContinuationQueue, dedupe domain.Cache, log zerolog.Logger) *Executor {
	return &Executor{
		env:     env,
		sink:    sink,
		tracker: tracker,
		queue:   queue,
		dedupe:  dedupe,
		locks:   newUserLocks(),
		log:     log,
		newID:   uuid.NewString,
	}
}

// Handle строит и исполняет цепочку под блокировкой пользователя.
// Цепочки одного пользователя не пересекаются, разные пользователи обслуживаются параллельно.
func (e *Executor) Handle(ctx context.Context, userID string, build func() domain.CommandChain) {
	unlock := e.locks.Lock(userID)
	defer unlock()
	e.run(ctx, build())
}

func (e *Executor) run(ctx context.Context, chain domain.CommandChain) {
	for {
		cmd, ok := chain.Pop()
		if !ok {
			return
		}
		out := Execute(ctx, e.env, cmd)
		e.deliver(ctx, cmd, out)
		e.reschedule(ctx, out.Reemit)
		if out.StopChain {
			e.log.Debug().Str("command", cmd.Type.String()).Int("skipped", chain.Len()).Msg("executor: цепочка прервана")
			return
		}
	}
}

func (e *Executor) deliver(ctx context.Context, cmd domain.Command, out domain.OutgoingMessage) {
	content := out.Content()
	if !out.Empty && !content.IsEmpty() {
		ref, edited, err := e.publish(ctx, out, content)
		if err != nil {
			e.sendFailed(err, cmd, "executor: не удалось отправить ответ")
		} else {
			e.decorate(ctx, cmd, out, ref, edited)
		}
	}

	extra := append([]string(nil), out.Errors...)
	if out.Diagnostic != "" {
		extra = append(extra, out.Diagnostic)
	}
	for _, text := range extra {
		if _, err := e.sink.SendMessage(ctx, out.Origin.ChannelID, domain.MessageContent{Text: text}); err != nil {
			e.sendFailed(err, cmd, "executor: не удалось отправить служебное сообщение")
		}
	}
}

func (e *Executor) publish(ctx context.Context, out domain.OutgoingMessage, content domain.MessageContent) (domain.MessageRef, bool, error) {
	if !out.Target.IsZero() {
		return out.Target, true, e.sink.EditMessage(ctx, out.Target, content)
	}
	ref, err := e.sink.SendMessage(ctx, out.Origin.ChannelID, content)
	return ref, false, err
}

// decorate добавляет реакции и запоминает сообщение для листания.
func (e *Executor) decorate(ctx context.Context, cmd domain.Command, out domain.OutgoingMessage, ref domain.MessageRef, edited bool) {
	if ref.IsZero() || out.User == nil || !out.SourceType.IsPageLike() {
		return
	}
	if !edited {
		for _, emoji := range out.Reactions {
			if err := e.sink.AddReaction(ctx, ref, emoji); err != nil {
				e.sendFailed(err, cmd, "executor: не удалось добавить реакцию")
			}
		}
	}
	entry := domain.TrackedMessage{UserID: out.User.ID, Type: out.SourceType}
	if cmd.Server != nil {
		entry.ServerID = cmd.Server.ID
	}
	if e.tracker != nil {
		if err := e.tracker.Track(ref, entry); err != nil {
			e.log.Warn().Err(err).Str("message", ref.MessageID).Msg("executor: не удалось запомнить сообщение")
		}
	}
	if out.SourceType != domain.CommandDisplayHelp {
		out.User.LastPageMessage = ref
	}
}

func (e *Executor) reschedule(ctx context.Context, chains []domain.CommandChain) {
	for _, chain := range chains {
		job, ok := commands.ContinuationJobFor(chain, e.newID(), e.env.now())
		if !ok {
			continue
		}
		if e.queue == nil {
			e.log.Warn().Str("user", job.UserID).Msg("executor: очередь отложенных задач не настроена")
			continue
		}
		enqueue := func() error { return e.queue.Enqueue(ctx, job) }
		var err error
		if e.dedupe != nil {
			err = e.dedupe.Once("continuation:"+job.UserID+":"+job.FFNID, continuationDedupeTTL, enqueue)
		} else {
			err = enqueue()
		}
		if err != nil {
			metrics.ContinuationJobs.WithLabelValues("enqueue_failed").Inc()
			e.log.Error().Err(err).Str("user", job.UserID).Str("ffn_id", job.FFNID).Msg("executor: не удалось поставить задачу в очередь")
			continue
		}
		metrics.ContinuationJobs.WithLabelValues("enqueued").Inc()
		e.log.Info().Str("job_id", job.ID).Str("user", job.UserID).Str("ffn_id", job.FFNID).Msg("executor: задача отложена")
	}
}

func (e *Executor) sendFailed(err error, cmd domain.Command, msg string) {
	metrics.BotSendErrors.Inc()
	e.log.Warn().Err(err).Str("command", cmd.Type.String()).Msg(msg)
}
