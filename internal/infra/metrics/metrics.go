package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pulsecheck/internal/domain"
)

var (
	PassDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "engage_pass_duration_seconds",
		Help:    "Длительность одного прохода планировщика",
		Buckets: prometheus.DefBuckets,
	})
	EngagementOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_outcomes_total",
		Help: "Терминальные итоги кандидатов по состоянию и причине",
	}, []string{"state", "reason"})
	DetectorSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engage_detector_skipped_total",
		Help: "Записи, пропущенные детектором как некорректные",
	})
	QuotaRollbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "engage_quota_rollbacks_total",
		Help: "Откаты квоты после неудачной доставки",
	})
	PassJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_pass_jobs_total",
		Help: "Задачи на проходы по источнику запроса",
	}, []string{"cause"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		PassDurationSeconds,
		EngagementOutcomes,
		DetectorSkippedTotal,
		QuotaRollbacksTotal,
		PassJobsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
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
		shutdownTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

// ObservePassDuration записывает длительность прохода.
func ObservePassDuration(d time.Duration) {
	PassDurationSeconds.Observe(d.Seconds())
}

// IncEngagementOutcome увеличивает счётчик терминальных итогов.
func IncEngagementOutcome(state domain.OpportunityState, reason domain.SkipReason) {
	EngagementOutcomes.WithLabelValues(string(state), string(reason)).Inc()
}

// AddDetectorSkipped учитывает пропущенные детектором записи.
func AddDetectorSkipped(n int) {
	if n > 0 {
		DetectorSkippedTotal.Add(float64(n))
	}
}

// IncQuotaRollback учитывает откат квоты.
func IncQuotaRollback() {
	QuotaRollbacksTotal.Inc()
}

// IncPassJob учитывает постановку задачи на проход.
func IncPassJob(cause domain.PassCause) {
	PassJobsTotal.WithLabelValues(string(cause)).Inc()
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

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}
