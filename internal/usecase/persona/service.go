package persona

import (
	"errors"

	"pulsecheck/internal/domain"
)

// ErrNoEligiblePersona возвращается, если тариф не разрешает ни одной персоны.
// Планировщик трактует это как неповторяемый пропуск кандидата.
var ErrNoEligiblePersona = errors.New("нет доступной персоны для тарифа")

// Service выбирает персону по пересечению её специализации с сигналами записи.
// Выбор детерминирован: одинаковый кандидат и конфигурация дают одну персону.
type Service struct{}

var _ domain.PersonaSelector = (*Service)(nil)

// NewService создаёт селектор.
func NewService() *Service {
	return &Service{}
}

var tagWeights = map[domain.Signal]float64{
	domain.SignalDistress:   2.0,
	domain.SignalLowMood:    1.5,
	domain.SignalEngagement: 1.0,
	domain.SignalReflection: 1.0,
	domain.SignalGratitude:  0.5,
}

// Select возвращает ровно одну персону или ErrNoEligiblePersona.
func (s *Service) Select(opp domain.Opportunity, tier domain.Tier) (domain.PersonaID, error) {
	return s.SelectForPlan(opp, domain.PlanForTier(tier))
}

// SelectForPlan выбирает персону по уже известному плану тарифа.
func (s *Service) SelectForPlan(opp domain.Opportunity, plan domain.TierPlan) (domain.PersonaID, error) {
	var (
		best      domain.Persona
		bestScore = -1.0
		found     bool
	)
	for _, p := range domain.AllPersonas {
		if !plan.AllowsPersona(p.ID) {
			continue
		}
		score := overlapScore(p, opp.Signals)
		// AllPersonas отсортирован по приоритету, поэтому при равной
		// оценке побеждает уже найденная персона.
		if !found || score > bestScore {
			best = p
			bestScore = score
			found = true
		}
	}
	if !found {
		return "", ErrNoEligiblePersona
	}
	return best.ID, nil
}

func overlapScore(p domain.Persona, signals []domain.Signal) float64 {
	present := make(map[domain.Signal]bool, len(signals))
	for _, sig := range signals {
		present[sig] = true
	}
	score := 0.0
	for _, tag := range p.Tags {
		if present[tag] {
			score += tagWeights[tag]
		}
	}
	return score
}
