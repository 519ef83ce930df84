package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"pulsecheck/internal/adapters/repo"
	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/cache"
	"pulsecheck/internal/infra/config"
	"pulsecheck/internal/infra/db"
	"pulsecheck/internal/infra/log"
	"pulsecheck/internal/infra/metrics"
	"pulsecheck/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := log.ForComponent(log.NewLogger(cfg.AppEnv), "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := cache.NewClient(cfg.RedisAddr)
	cacheAdapter := cache.NewRedis(redisClient)
	passQueue, err := queue.New(cfg.Queues.Backend, cfg.Queues.PassKey, cfg.Queues.AMQPURL, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: очередь недоступна")
	}

	repoAdapter := repo.NewPostgres(pool)

	metrics.StartServer(ctx, logger, fmt.Sprintf(":%d", cfg.Port))

	ticker := time.NewTicker(cfg.Engage.PassInterval)
	defer ticker.Stop()
	logger.Info().Dur("interval", cfg.Engage.PassInterval).Msg("scheduler: запущен")

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("scheduler: остановка")
			return
		case now := <-ticker.C:
			schedulePasses(ctx, logger, repoAdapter, cacheAdapter, passQueue, cfg, now.UTC())
		}
	}
}

// schedulePasses ставит по одной задаче на каждого пользователя с кандидатами.
// Ключ в кэше защищает от дублей при перекрытии тиков и нескольких репликах.
func schedulePasses(ctx context.Context, logger zerolog.Logger, users domain.UserRepo, cacheAdapter domain.Cache, passQueue domain.PassQueue, cfg config.AppConfig, now time.Time) {
	since := now.Add(-cfg.Engage.Horizon)
	userIDs, err := users.ListUsersWithCandidates(ctx, since)
	if err != nil {
		logger.Error().Err(err).Msg("scheduler: ошибка выборки пользователей")
		return
	}

	window := now.Truncate(cfg.Engage.PassInterval).Unix()
	for _, userID := range userIDs {
		key := fmt.Sprintf("engage:scheduled:%d:%d", userID, window)
		err := cacheAdapter.Once(key, cfg.Engage.PassInterval, func() error {
			job := domain.PassJob{
				ID:          uuid.NewString(),
				UserID:      userID,
				RequestedAt: now,
				Cause:       domain.PassCauseScheduled,
			}
			if err := passQueue.Enqueue(ctx, job); err != nil {
				return err
			}
			metrics.IncPassJob(domain.PassCauseScheduled)
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Int64("user", userID).Msg("scheduler: не удалось поставить задачу")
		}
	}
}
