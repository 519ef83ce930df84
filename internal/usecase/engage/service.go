package engage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/metrics"
	"pulsecheck/internal/usecase/persona"
)

// Config задаёт параметры прохода планировщика.
type Config struct {
	// Horizon — окно отбора записей-кандидатов.
	Horizon time.Duration
	// FollowUpAfter — возраст ответа, после которого запись отбирается повторно.
	FollowUpAfter time.Duration
	// DispatchTimeout ограничивает обращение к шлюзу доставки.
	// Таймаут — это вид отказа, а не зависание.
	DispatchTimeout time.Duration
	// RetryBackoff — минимальный интервал между повторами после отказа шлюза.
	RetryBackoff time.Duration
	// MaxPerPass ограничивает число кандидатов за проход. 0 — без ограничения.
	MaxPerPass int
}

func (c Config) withDefaults() Config {
	if c.Horizon <= 0 {
		c.Horizon = 72 * time.Hour
	}
	if c.FollowUpAfter <= 0 {
		c.FollowUpAfter = 48 * time.Hour
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 8 * time.Second
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 30 * time.Minute
	}
	return c
}

// Service реализует машину состояний планировщика вовлечения:
// CANDIDATE → QUOTA_CHECKED → PERSONA_ASSIGNED → DISPATCHED → {DELIVERED, FAILED, SKIPPED}.
type Service struct {
	users      domain.UserRepo
	entries    domain.EntryRepo
	ledger     domain.QuotaLedger
	detector   domain.OpportunityDetector
	selector   domain.PersonaSelector
	dispatcher domain.Dispatcher
	cache      domain.Cache
	events     domain.EngagementEventRepo
	cfg        Config
	log        zerolog.Logger
}

// NewService создаёт планировщик. Cache и events могут быть nil.
func NewService(users domain.UserRepo, entries domain.EntryRepo, ledger domain.QuotaLedger, detector domain.OpportunityDetector, selector domain.PersonaSelector, dispatcher domain.Dispatcher, cache domain.Cache, events domain.EngagementEventRepo, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		users:      users,
		entries:    entries,
		ledger:     ledger,
		detector:   detector,
		selector:   selector,
		dispatcher: dispatcher,
		cache:      cache,
		events:     events,
		cfg:        cfg.withDefaults(),
		log:        logger,
	}
}

// RunPass выполняет один проход по пользователю. Ошибки отдельных кандидатов
// не фатальны: каждый деградирует до собственного терминального итога.
func (s *Service) RunPass(ctx context.Context, userID int64) (domain.PassReport, error) {
	start := time.Now()
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.PassReport{}, fmt.Errorf("получение пользователя: %w", err)
	}
	plan := user.Plan()

	now := time.Now().UTC()
	entries, err := s.entries.ListCandidateEntries(ctx, user.ID, now.Add(-s.cfg.Horizon), now.Add(-s.cfg.FollowUpAfter))
	if err != nil {
		return domain.PassReport{}, fmt.Errorf("выборка записей: %w", err)
	}

	opportunities, malformed := s.detector.Detect(now, user, entries)
	if s.cfg.MaxPerPass > 0 && len(opportunities) > s.cfg.MaxPerPass {
		opportunities = opportunities[:s.cfg.MaxPerPass]
	}

	report := domain.PassReport{UserID: user.ID, DetectorSkipped: malformed}
	if malformed > 0 {
		metrics.AddDetectorSkipped(malformed)
		s.log.Warn().Int64("user", user.ID).Int("skipped", malformed).Msg("engage: детектор пропустил некорректные записи")
	}

	day := domain.QuotaDay(now)
	quotaExhausted := false
	for _, opp := range opportunities {
		outcome := s.process(ctx, user, plan, day, opp, &quotaExhausted)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.State {
		case domain.StateDelivered:
			report.Delivered++
		case domain.StateFailed:
			report.Failed++
		case domain.StateSkipped:
			report.Skipped++
		}
		metrics.IncEngagementOutcome(outcome.State, outcome.Reason)
		s.recordEvent(ctx, user.ID, opp.Entry.ID, outcome)
	}

	metrics.ObservePassDuration(time.Since(start))
	return report, nil
}

// process доводит одного кандидата до терминального состояния.
// Внутри прохода кандидат не пересматривается.
func (s *Service) process(ctx context.Context, user domain.User, plan domain.TierPlan, day time.Time, opp domain.Opportunity, quotaExhausted *bool) domain.Outcome {
	entry := opp.Entry

	if s.inBackoff(entry.ID) {
		return domain.Outcome{EntryID: entry.ID, State: domain.StateSkipped, Reason: domain.SkipRetryBackoff}
	}

	// Если квота уже исчерпана в этом проходе, остаток известен — ноль,
	// к леджеру больше не обращаемся.
	if *quotaExhausted {
		return domain.Outcome{EntryID: entry.ID, State: domain.StateSkipped, Reason: domain.SkipQuotaExhausted}
	}

	ok, err := s.ledger.TryConsume(ctx, user.ID, day, plan.DailyResponses)
	if err != nil {
		s.log.Error().Err(err).Int64("entry", entry.ID).Msg("engage: леджер квот недоступен")
		return domain.Outcome{EntryID: entry.ID, State: domain.StateFailed, Err: fmt.Errorf("квота: %w", err)}
	}
	if !ok {
		*quotaExhausted = true
		return domain.Outcome{EntryID: entry.ID, State: domain.StateSkipped, Reason: domain.SkipQuotaExhausted}
	}

	personaID, err := s.selector.Select(opp, user.Tier)
	if err != nil {
		// Квота не тратится на кандидата, который не дошёл до доставки.
		s.rollback(ctx, user.ID, day, entry.ID)
		if errors.Is(err, persona.ErrNoEligiblePersona) {
			s.log.Warn().Int64("user", user.ID).Str("tier", string(user.Tier)).Msg("engage: тариф без персон, проверьте конфигурацию")
			return domain.Outcome{EntryID: entry.ID, State: domain.StateSkipped, Reason: domain.SkipNoPersona}
		}
		return domain.Outcome{EntryID: entry.ID, State: domain.StateFailed, Err: fmt.Errorf("выбор персоны: %w", err)}
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	artifact, err := s.dispatcher.Dispatch(dispatchCtx, entry, personaID)
	cancel()
	if err != nil {
		kind := domain.DispatchKind(err)
		if errors.Is(err, context.DeadlineExceeded) {
			kind = domain.DispatchErrTimeout
		}
		// Неудачная попытка не должна стоить пользователю дневного лимита.
		s.rollback(ctx, user.ID, day, entry.ID)
		s.setBackoff(entry.ID)
		s.log.Error().Err(err).Int64("entry", entry.ID).Str("persona", string(personaID)).Str("kind", string(kind)).Msg("engage: доставка не удалась")
		return domain.Outcome{EntryID: entry.ID, State: domain.StateFailed, Persona: personaID, Err: err}
	}

	if err := s.entries.MarkResponded(ctx, entry.ID, time.Now().UTC()); err != nil {
		// Артефакт уже сохранён шлюзом, доставка состоялась.
		s.log.Error().Err(err).Int64("entry", entry.ID).Msg("engage: не удалось отметить запись отвеченной")
	}
	s.log.Info().Int64("entry", entry.ID).Str("persona", string(personaID)).Int64("artifact", artifact.ID).Msg("engage: ответ доставлен")
	return domain.Outcome{EntryID: entry.ID, State: domain.StateDelivered, Persona: personaID}
}

func (s *Service) rollback(ctx context.Context, userID int64, day time.Time, entryID int64) {
	metrics.IncQuotaRollback()
	if err := s.ledger.Rollback(ctx, userID, day); err != nil {
		s.log.Error().Err(err).Int64("user", userID).Int64("entry", entryID).Msg("engage: откат квоты не удался")
	}
}

func (s *Service) inBackoff(entryID int64) bool {
	if s.cache == nil {
		return false
	}
	if _, err := s.cache.Get(backoffKey(entryID)); err == nil {
		return true
	}
	return false
}

func (s *Service) setBackoff(entryID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(backoffKey(entryID), []byte("1"), s.cfg.RetryBackoff); err != nil {
		s.log.Warn().Err(err).Int64("entry", entryID).Msg("engage: не удалось поставить маркер бэкоффа")
	}
}

func (s *Service) recordEvent(ctx context.Context, userID, entryID int64, outcome domain.Outcome) {
	if s.events == nil {
		return
	}
	event := domain.EngagementEvent{
		UserID:     userID,
		EntryID:    entryID,
		State:      outcome.State,
		Reason:     outcome.Reason,
		Persona:    outcome.Persona,
		OccurredAt: time.Now().UTC(),
	}
	if outcome.Err != nil {
		event.Metadata = map[string]any{"error": outcome.Err.Error()}
	}
	if err := s.events.RecordEngagementEvent(ctx, event); err != nil {
		s.log.Warn().Err(err).Int64("entry", entryID).Msg("engage: событие не записано")
	}
}

func backoffKey(entryID int64) string {
	return fmt.Sprintf("engage:backoff:%d", entryID)
}
