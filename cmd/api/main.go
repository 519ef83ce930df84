package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"pulsecheck/internal/adapters/repo"
	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/cache"
	"pulsecheck/internal/infra/config"
	"pulsecheck/internal/infra/db"
	httpinfra "pulsecheck/internal/infra/http"
	"pulsecheck/internal/infra/log"
	"pulsecheck/internal/infra/metrics"
	"pulsecheck/internal/infra/queue"
)

func main() {
	cfg := config.Load()
	logger := log.ForComponent(log.NewLogger(cfg.AppEnv), "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()

	redisClient := cache.NewClient(cfg.RedisAddr)
	passQueue, err := queue.New(cfg.Queues.Backend, cfg.Queues.PassKey, cfg.Queues.AMQPURL, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: очередь недоступна")
	}

	repoAdapter := repo.NewPostgres(pool)

	server := httpinfra.NewServer(logger)
	registerRoutes(server.Router, repoAdapter, passQueue)

	go func() {
		if err := server.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("api: HTTP сервер остановлен")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("api: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

type triggerPassRequest struct {
	UserID int64 `json:"user_id"`
}

func registerRoutes(r chi.Router, repoAdapter *repo.Postgres, passQueue domain.PassQueue) {
	// Ручной запуск прохода: задача уходит в ту же очередь, что и плановые.
	r.Post("/api/v1/passes", func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		var body triggerPassRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.UserID == 0 {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if _, err := repoAdapter.GetUser(req.Context(), body.UserID); err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "user lookup failed")
			return
		}
		job := domain.PassJob{
			ID:          uuid.NewString(),
			UserID:      body.UserID,
			RequestedAt: time.Now().UTC(),
			Cause:       domain.PassCauseManual,
		}
		if err := passQueue.Enqueue(req.Context(), job); err != nil {
			writeError(w, http.StatusInternalServerError, "enqueue failed")
			return
		}
		metrics.IncPassJob(domain.PassCauseManual)
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
	})

	r.Get("/api/v1/users/{id}/quota", func(w http.ResponseWriter, req *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(req, "id"), 10, 64)
		if err != nil || userID == 0 {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		user, err := repoAdapter.GetUser(req.Context(), userID)
		if err != nil {
			if errors.Is(err, repo.ErrUserNotFound) {
				writeError(w, http.StatusNotFound, "user not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "user lookup failed")
			return
		}
		plan := user.Plan()
		remaining, err := repoAdapter.Remaining(req.Context(), user.ID, time.Now().UTC(), plan.DailyResponses)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "quota lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tier":      string(user.Tier),
			"limit":     plan.DailyResponses,
			"remaining": remaining,
		})
	})

	r.Get("/api/v1/personas", func(w http.ResponseWriter, req *http.Request) {
		out := make([]map[string]any, 0, len(domain.AllPersonas))
		for _, p := range domain.AllPersonas {
			tags := make([]string, 0, len(p.Tags))
			for _, tag := range p.Tags {
				tags = append(tags, string(tag))
			}
			out = append(out, map[string]any{
				"id":   string(p.ID),
				"name": p.Name,
				"tags": tags,
			})
		}
		writeJSON(w, http.StatusOK, out)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
