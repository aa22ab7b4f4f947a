package main

import (
	"context"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fic-recs-bot/internal/adapters/bot"
	"fic-recs-bot/internal/adapters/discord"
	"fic-recs-bot/internal/adapters/favourites"
	"fic-recs-bot/internal/adapters/ficsource"
	"fic-recs-bot/internal/adapters/remote"
	"fic-recs-bot/internal/adapters/repo"
	"fic-recs-bot/internal/adapters/telegram"
	"fic-recs-bot/internal/domain"
	"fic-recs-bot/internal/infra/cache"
	"fic-recs-bot/internal/infra/config"
	"fic-recs-bot/internal/infra/db"
	httpserver "fic-recs-bot/internal/infra/http"
	applog "fic-recs-bot/internal/infra/log"
	"fic-recs-bot/internal/infra/metrics"
	"fic-recs-bot/internal/infra/queue"
	"fic-recs-bot/internal/usecase/actions"
	"fic-recs-bot/internal/usecase/commands"
	"fic-recs-bot/internal/usecase/continuation"
	"fic-recs-bot/internal/usecase/recs"
	"fic-recs-bot/internal/usecase/session"
)

// storage объединяет хранилища, которые выбираются по наличию PG_DSN.
type storage interface {
	domain.UserStore
	domain.ServerStore
	domain.FandomLookup
}

// runner — транспорт, который держит соединение с платформой до отмены контекста.
type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, applog.Component(logger, "metrics"), cfg.MetricsAddr)

	var (
		store     storage
		pageCache favourites.PageCache
	)
	if cfg.PGDSN != "" {
		pool, err := db.Connect(cfg.PGDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
		}
		defer pool.Close()
		vendor := db.NewVendor(pool)
		store = repo.NewPostgres(vendor)
		pageCache = favourites.NewPostgresCache(vendor)
	} else {
		logger.Warn().Msg("PG_DSN не задан, данные хранятся в памяти процесса")
		store = repo.NewMemory(nil)
		pageCache = favourites.NewMemoryCache()
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	ttlCache := cache.NewRedis(redisClient, "ficrecs:")

	var jobs domain.ContinuationQueue
	switch cfg.Queues.Backend {
	case "rabbitmq":
		if cfg.RabbitURL == "" {
			logger.Fatal().Msg("не указан адрес RabbitMQ (RABBITMQ_URL)")
		}
		rabbit, err := queue.NewRabbitContinuationQueue(cfg.RabbitURL, cfg.Queues.Continuation)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось инициализировать очередь RabbitMQ")
		}
		defer rabbit.Close()
		jobs = rabbit
	default:
		jobs = queue.NewRedisContinuationQueue(redisClient, cfg.Queues.Continuation)
	}

	ficsAPI := newServiceClient(logger, "fic_source", cfg.Services.FicSourceURL, cfg)
	favouritesAPI := newServiceClient(logger, "favourites", cfg.Services.FavouritesURL, cfg)
	fics := ficsource.New(ficsAPI)
	fetcher := favourites.NewFetcher(favouritesAPI, pageCache, applog.Component(logger, "favourites"))

	users := session.NewRegistry(store, applog.Component(logger, "sessions"))
	servers := session.NewServers(store, cfg.Discord.DefaultPrefix)
	tracker := session.NewMessageTracker(ttlCache, cfg.Limits.TrackedMessageTTL)

	env := &actions.Environment{
		Fics:               fics,
		Fandoms:            store,
		Favourites:         fetcher,
		Users:              store,
		Servers:            servers,
		Sessions:           users,
		Engine:             recs.NewEngine(fics, store, applog.Component(logger, "recs")),
		Log:                applog.Component(logger, "actions"),
		PageSize:           cfg.Limits.PageSize,
		FullParseThreshold: cfg.Limits.FullParseThreshold,
	}

	var (
		sink      domain.MessageSink
		transport func(dispatcher *bot.Handler) runner
		httpSrv   = httpserver.NewServer(applog.Component(logger, "http"))
	)
	switch cfg.Transport {
	case "telegram":
		botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать telegram бота")
		}
		sink = telegram.NewSink(botAPI)
		transport = func(dispatcher *bot.Handler) runner {
			gateway := telegram.NewGateway(botAPI, dispatcher, applog.Component(logger, "telegram"))
			if cfg.Telegram.WebhookURL == "" {
				return gateway
			}
			httpSrv.Router.With(httpserver.WebhookSecretMiddleware(cfg.Telegram.WebhookSecret)).
				Post("/bot/webhook", gateway.WebhookHandler(ctx))
			return nil
		}
	default:
		discordSession, err := discord.NewSession(cfg.Discord.Token)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось создать discord сессию")
		}
		sink = discord.NewSink(discordSession)
		transport = func(dispatcher *bot.Handler) runner {
			return discord.NewGateway(discordSession, dispatcher, applog.Component(logger, "discord"))
		}
	}

	executor := actions.NewExecutor(env, sink, tracker, jobs, ttlCache, applog.Component(logger, "executor"))
	parser := commands.NewParser(users, sink, cfg.OwnerID(), commands.Limits{
		CommandCooldown: cfg.Limits.CommandCooldown,
		RecsCooldown:    cfg.Limits.RecsCooldown,
	}, applog.Component(logger, "parser"))
	handler := bot.NewHandler(applog.Component(logger, "handler"), servers, tracker, parser, executor, cfg.Limits.Workers)
	gateway := transport(handler)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < max(cfg.Queues.Consumers, 1); i++ {
		worker := continuation.NewWorker(applog.Component(logger, "continuation"), jobs, users, servers, executor, ttlCache)
		g.Go(func() error { return worker.Run(gctx) })
	}
	if gateway != nil {
		g.Go(func() error { return gateway.Run(gctx) })
	}
	g.Go(func() error {
		return httpSrv.Start(":" + strconv.Itoa(cfg.Port))
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	logger.Info().Str("transport", cfg.Transport).Msg("бот-гейтвей запущен")
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("бот-гейтвей остановлен с ошибкой")
	}
	handler.Wait()
	logger.Info().Msg("остановка бота")
}

func newServiceClient(logger zerolog.Logger, name, url string, cfg config.AppConfig) *remote.Client {
	client, err := remote.New(name, url,
		remote.WithTimeout(cfg.Services.Timeout),
		remote.WithRateLimit(cfg.Services.RPS),
		remote.WithRetries(cfg.Services.Retries),
		remote.WithLogger(applog.Component(logger, name)),
	)
	if err != nil {
		logger.Fatal().Err(err).Str("service", name).Msg("некорректный адрес сервиса")
	}
	return client
}
