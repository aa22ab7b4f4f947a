package continuation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/metrics"
	"fic-recs-bot/internal/usecase/commands"
)

const (
	maxDeliveryAttempts = 5
	doneTTL             = 24 * time.Hour
	retryPause          = time.Second
)

// Runner исполняет цепочку под блокировкой пользователя.
type Runner interface {
	Handle(ctx context.Context, userID string, build func() domain.CommandChain)
}

// UserResolver возвращает сессию пользователя из общего реестра.
type UserResolver interface {
	Ensure(ctx context.Context, id, name string) (*domain.User, error)
}

// ServerResolver возвращает настройки сервера.
type ServerResolver interface {
	Ensure(ctx context.Context, id string) (*domain.Server, error)
}

type jobOutcome int

const (
	jobOutcomeCompleted jobOutcome = iota
	jobOutcomeRetry
)

// Worker читает отложенные задачи и выполняет вторую фазу построения больших списков.
type Worker struct {
	log     zerolog.Logger
	queue   domain.ContinuationQueue
	users   UserResolver
	servers ServerResolver
	runner  Runner
	done    domain.Cache

	mu       sync.Mutex
	attempts map[string]int
	pause    time.Duration
}

// NewWorker создаёт обработчик очереди. done хранит идентификаторы завершённых задач и может быть nil.
func NewWorker(log zerolog.Logger, queue domain.ContinuationQueue, users UserResolver, servers ServerResolver, runner Runner, done domain.Cache) *Worker {
	return &Worker{
		log:      log,
		queue:    queue,
		users:    users,
		servers:  servers,
		runner:   runner,
		done:     done,
		attempts: make(map[string]int),
		pause:    retryPause,
	}
}

// Run обрабатывает задачи до отмены контекста.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			w.log.Error().Err(err).Msg("continuation: ошибка чтения очереди")
			w.sleep(ctx)
			continue
		}

		jobLog := w.log.With().
			Str("job_id", job.ID).
			Str("user", job.UserID).
			Str("ffn_id", job.FFNID).
			Logger()

		if job.ID == "" {
			jobLog.Error().Msg("continuation: получена задача без идентификатора, подтверждаем и пропускаем")
			w.ack(ack, true, jobLog)
			continue
		}
		if w.isDone(job.ID) {
			jobLog.Info().Msg("continuation: задача уже выполнена, подтверждаем")
			w.ack(ack, true, jobLog)
			continue
		}

		attempt := w.nextAttempt(job.ID)
		jobLog = jobLog.With().Int("attempt", attempt).Logger()

		outcome := w.handleJob(ctx, job, jobLog)
		if outcome == jobOutcomeRetry && attempt < maxDeliveryAttempts {
			metrics.ContinuationJobs.WithLabelValues("retried").Inc()
			jobLog.Warn().Msg("continuation: задача завершилась ошибкой, повторим позже")
			w.ack(ack, false, jobLog)
			w.sleep(ctx)
			continue
		}
		if outcome == jobOutcomeRetry {
			metrics.ContinuationJobs.WithLabelValues("dropped").Inc()
			jobLog.Error().Msg("continuation: достигнут предел попыток, снимаем задачу")
		} else {
			metrics.ContinuationJobs.WithLabelValues("completed").Inc()
		}

		w.forget(job.ID)
		w.markDone(job.ID, jobLog)
		w.ack(ack, true, jobLog)
	}
}

func (w *Worker) handleJob(ctx context.Context, job domain.ContinuationJob, jobLog zerolog.Logger) jobOutcome {
	user, err := w.users.Ensure(ctx, job.UserID, "")
	if err != nil {
		jobLog.Error().Err(err).Msg("continuation: не удалось загрузить пользователя")
		return jobOutcomeRetry
	}
	var server *domain.Server
	if job.ServerID != "" {
		server, err = w.servers.Ensure(ctx, job.ServerID)
		if err != nil {
			jobLog.Error().Err(err).Msg("continuation: не удалось загрузить сервер")
			return jobOutcomeRetry
		}
	}

	start := time.Now()
	metrics.ContinuationJobs.WithLabelValues("started").Inc()
	w.runner.Handle(ctx, job.UserID, func() domain.CommandChain {
		return commands.BindContinuation(job, user, server)
	})
	jobLog.Info().Dur("duration", time.Since(start)).Dur("waited", start.Sub(job.RequestedAt)).Msg("continuation: большой список обработан")
	return jobOutcomeCompleted
}

// nextAttempt считает попытки доставки; Run может работать в нескольких горутинах.
func (w *Worker) nextAttempt(id string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[id]++
	return w.attempts[id]
}

func (w *Worker) forget(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, id)
}

func (w *Worker) isDone(id string) bool {
	if w.done == nil {
		return false
	}
	data, err := w.done.Get(doneKey(id))
	return err == nil && len(data) > 0
}

func (w *Worker) markDone(id string, jobLog zerolog.Logger) {
	if w.done == nil {
		return
	}
	if err := w.done.Set(doneKey(id), []byte("1"), doneTTL); err != nil {
		jobLog.Warn().Err(err).Msg("continuation: не удалось отметить задачу выполненной")
	}
}

func (w *Worker) ack(ack domain.AckFunc, success bool, jobLog zerolog.Logger) {
	if err := ack(success); err != nil {
		jobLog.Error().Err(err).Bool("success", success).Msg("continuation: не удалось подтвердить задачу")
	}
}

func (w *Worker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pause):
	}
}

func doneKey(id string) string {
	return "continuation:done:" + id
}
