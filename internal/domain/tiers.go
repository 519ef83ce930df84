package domain

import "strings"

// Tier описывает тариф подписки пользователя.
type Tier string

const (
	TierFree      Tier = "free"
	TierPremium   Tier = "premium"
	TierDeveloper Tier = "developer"
)

// TierPlan описывает ограничения тарифа.
type TierPlan struct {
	Tier           Tier
	Name           string
	DailyResponses int
	Personas       []PersonaID
}

var plans = map[Tier]TierPlan{
	TierFree: {
		Tier:           TierFree,
		Name:           "Free",
		DailyResponses: 5,
		Personas:       []PersonaID{PersonaPulse},
	},
	TierPremium: {
		Tier:           TierPremium,
		Name:           "Premium",
		DailyResponses: 50,
		Personas:       []PersonaID{PersonaPulse, PersonaSage, PersonaSpark, PersonaAnchor},
	},
	TierDeveloper: {
		Tier:           TierDeveloper,
		Name:           "Developer",
		DailyResponses: 200,
		Personas:       []PersonaID{PersonaPulse, PersonaSage, PersonaSpark, PersonaAnchor},
	},
}

// PlanForTier возвращает план тарифа. Неизвестный тариф трактуется как Free.
func PlanForTier(tier Tier) TierPlan {
	if plan, ok := plans[Tier(strings.ToLower(string(tier)))]; ok {
		return plan
	}
	return plans[TierFree]
}

// Plan возвращает план тарифа пользователя.
func (u User) Plan() TierPlan {
	return PlanForTier(u.Tier)
}

// AllowsPersona сообщает, доступна ли персона на этом тарифе.
func (p TierPlan) AllowsPersona(id PersonaID) bool {
	for _, allowed := range p.Personas {
		if allowed == id {
			return true
		}
	}
	return false
}
