package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"pulsecheck/internal/adapters/dispatch"
	"pulsecheck/internal/adapters/repo"
	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/cache"
	"pulsecheck/internal/infra/config"
	"pulsecheck/internal/infra/db"
	"pulsecheck/internal/infra/log"
	"pulsecheck/internal/infra/metrics"
	openaiinfra "pulsecheck/internal/infra/openai"
	"pulsecheck/internal/infra/queue"
	"pulsecheck/internal/usecase/detect"
	"pulsecheck/internal/usecase/engage"
	"pulsecheck/internal/usecase/persona"
)

func main() {
	cfg := config.Load()
	logger := log.ForComponent(log.NewLogger(cfg.AppEnv), "worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := cache.NewClient(cfg.RedisAddr)
	cacheAdapter := cache.NewRedis(redisClient)
	passQueue, err := queue.New(cfg.Queues.Backend, cfg.Queues.PassKey, cfg.Queues.AMQPURL, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: очередь недоступна")
	}

	repoAdapter := repo.NewPostgres(pool)

	var dispatcher domain.Dispatcher
	if cfg.OpenAI.APIKey != "" {
		client := openaiinfra.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout)
		dispatcher = dispatch.NewOpenAI(client, repoAdapter, cfg.OpenAI.Model)
	} else {
		logger.Warn().Msg("worker: ключ OpenAI не задан, используется эвристический шлюз")
		dispatcher = dispatch.NewSimple(repoAdapter)
	}

	detector := detect.NewService(detect.Config{
		MinEntryAge:   cfg.Engage.MinEntryAge,
		FollowUpAfter: cfg.Engage.FollowUpAfter,
		Horizon:       cfg.Engage.Horizon,
	})
	engageService := engage.NewService(
		repoAdapter, repoAdapter, repoAdapter,
		detector, persona.NewService(), dispatcher,
		cacheAdapter, repoAdapter,
		engage.Config{
			Horizon:         cfg.Engage.Horizon,
			FollowUpAfter:   cfg.Engage.FollowUpAfter,
			DispatchTimeout: cfg.Engage.DispatchTimeout,
			RetryBackoff:    cfg.Engage.RetryBackoff,
			MaxPerPass:      cfg.Engage.MaxPerPass,
		},
		logger,
	)

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))
	logger.Info().Msg("worker: запущен")

	for {
		job, err := passQueue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("worker: остановка")
				return
			}
			logger.Error().Err(err).Msg("worker: ошибка чтения очереди")
			continue
		}

		report, err := engageService.RunPass(ctx, job.UserID)
		if err != nil {
			logger.Error().Err(err).Int64("user", job.UserID).Str("job", job.ID).Msg("worker: проход не выполнен")
			continue
		}
		logger.Info().
			Int64("user", report.UserID).
			Str("job", job.ID).
			Str("cause", string(job.Cause)).
			Int("delivered", report.Delivered).
			Int("failed", report.Failed).
			Int("skipped", report.Skipped).
			Int("malformed", report.DetectorSkipped).
			Msg("worker: проход завершён")
	}
}
