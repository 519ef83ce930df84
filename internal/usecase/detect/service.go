package detect

import (
	"sort"
	"time"

	"pulsecheck/internal/domain"
)

// Config задаёт окно и веса скоринга детектора.
type Config struct {
	// MinEntryAge — минимальный возраст записи до первого ответа.
	// Игнорируется в режиме тестирования пользователя.
	MinEntryAge time.Duration
	// FollowUpAfter — возраст существующего ответа, после которого запись
	// снова становится кандидатом.
	FollowUpAfter time.Duration
	// Horizon нормализует вклад свежести в оценку.
	Horizon time.Duration

	RecencyWeight     float64
	UnrespondedWeight float64
	SignalWeight      float64
}

func (c Config) withDefaults() Config {
	if c.MinEntryAge <= 0 {
		c.MinEntryAge = 10 * time.Minute
	}
	if c.FollowUpAfter <= 0 {
		c.FollowUpAfter = 48 * time.Hour
	}
	if c.Horizon <= 0 {
		c.Horizon = 72 * time.Hour
	}
	if c.RecencyWeight <= 0 {
		c.RecencyWeight = 0.3
	}
	if c.UnrespondedWeight <= 0 {
		c.UnrespondedWeight = 0.4
	}
	if c.SignalWeight <= 0 {
		c.SignalWeight = 0.3
	}
	return c
}

// Service реализует детектор кандидатов на AI-ответ.
// Состояния между вызовами нет: каждый вызов — детерминированный пересчёт.
type Service struct {
	cfg Config
}

var _ domain.OpportunityDetector = (*Service)(nil)

// NewService создаёт детектор.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg.withDefaults()}
}

var signalStrength = map[domain.Signal]float64{
	domain.SignalDistress:   1.0,
	domain.SignalLowMood:    0.8,
	domain.SignalEngagement: 0.6,
	domain.SignalReflection: 0.4,
	domain.SignalGratitude:  0.2,
}

// Detect строит упорядоченный список кандидатов, лучшие первыми.
// Некорректные записи пропускаются и считаются, пустой вход даёт пустой результат.
func (s *Service) Detect(now time.Time, user domain.User, entries []domain.JournalEntry) ([]domain.Opportunity, int) {
	skipped := 0
	opportunities := make([]domain.Opportunity, 0, len(entries))

	for _, entry := range entries {
		if !validEntry(entry, now) {
			skipped++
			continue
		}
		age := now.Sub(entry.CreatedAt)

		followUp := false
		if entry.Responded {
			if entry.RespondedAt == nil || now.Sub(*entry.RespondedAt) < s.cfg.FollowUpAfter {
				continue
			}
			followUp = true
		} else if !user.TestingMode && age < s.cfg.MinEntryAge {
			continue
		}

		signals := domain.ExtractSignals(entry)
		opportunities = append(opportunities, domain.Opportunity{
			Entry:       entry,
			Age:         age,
			HasArtifact: entry.Responded,
			FollowUp:    followUp,
			Signals:     signals,
			Score:       s.score(age, entry.Responded, signals),
		})
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		// При равных оценках первой идёт более старая запись,
		// чтобы ни один кандидат не голодал.
		if !a.Entry.CreatedAt.Equal(b.Entry.CreatedAt) {
			return a.Entry.CreatedAt.Before(b.Entry.CreatedAt)
		}
		return a.Entry.ID < b.Entry.ID
	})

	return opportunities, skipped
}

func (s *Service) score(age time.Duration, responded bool, signals []domain.Signal) float64 {
	freshness := 1 - minFloat(age.Hours()/s.cfg.Horizon.Hours(), 1)

	strength := 0.0
	for _, sig := range signals {
		strength += signalStrength[sig]
	}
	strength = minFloat(strength, 1)

	score := s.cfg.RecencyWeight*freshness + s.cfg.SignalWeight*strength
	if !responded {
		score += s.cfg.UnrespondedWeight
	}
	return score
}

func validEntry(entry domain.JournalEntry, now time.Time) bool {
	if entry.ID == 0 || entry.UserID == 0 {
		return false
	}
	if entry.CreatedAt.IsZero() || entry.CreatedAt.After(now) {
		return false
	}
	return entry.Content != ""
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
