package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_commands_total",
		Help: "Распознанные команды по виду",
	}, []string{"command"})

	CooldownRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_cooldown_rejections_total",
		Help: "Команды, отклонённые кулдауном",
	}, []string{"kind"})

	ActionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bot_action_duration_seconds",
		Help:    "Длительность исполнения действий",
		Buckets: prometheus.DefBuckets,
	}, []string{"action", "status"})

	ChainsAborted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_chains_aborted_total",
		Help: "Цепочки команд, прерванные действием",
	}, []string{"action"})

	RecommendationListsBuilt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_lists_built_total",
		Help: "Построенные списки рекомендаций",
	}, []string{"status"})

	ContinuationJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "continuation_jobs_total",
		Help: "Отложенные задачи построения списков",
	}, []string{"stage"})

	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 20, 30, 45, 60, 90, 120},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		CommandsTotal,
		CooldownRejections,
		ActionDuration,
		ChainsAborted,
		RecommendationListsBuilt,
		ContinuationJobs,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveAction записывает длительность действия и прерывание цепочки.
func ObserveAction(action string, start time.Time, stopped bool) {
	status := "ok"
	if stopped {
		status = "stopped"
		ChainsAborted.WithLabelValues(action).Inc()
	}
	ActionDuration.WithLabelValues(action, status).Observe(time.Since(start).Seconds())
}

// IncCommand увеличивает счётчик распознанных команд.
func IncCommand(command string) {
	CommandsTotal.WithLabelValues(command).Inc()
}

// IncCooldown увеличивает счётчик отказов по кулдауну.
func IncCooldown(kind string) {
	CooldownRejections.WithLabelValues(kind).Inc()
}
