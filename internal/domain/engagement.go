package domain

// OpportunityState — состояние кандидата в машине состояний планировщика.
type OpportunityState string

const (
	StateCandidate       OpportunityState = "candidate"
	StateQuotaChecked    OpportunityState = "quota_checked"
	StatePersonaAssigned OpportunityState = "persona_assigned"
	StateDispatched      OpportunityState = "dispatched"
	StateDelivered       OpportunityState = "delivered"
	StateFailed          OpportunityState = "failed"
	StateSkipped         OpportunityState = "skipped"
)

// SkipReason объясняет терминальный SKIPPED.
type SkipReason string

const (
	SkipQuotaExhausted SkipReason = "quota_exhausted"
	SkipNoPersona      SkipReason = "no_persona"
	SkipRetryBackoff   SkipReason = "retry_backoff"
)

// Outcome — терминальный итог обработки одного кандидата в проходе.
type Outcome struct {
	EntryID int64
	State   OpportunityState
	Reason  SkipReason
	Persona PersonaID
	Err     error
}

// PassReport — итог одного прохода планировщика по пользователю.
type PassReport struct {
	UserID          int64
	Outcomes        []Outcome
	Delivered       int
	Failed          int
	Skipped         int
	DetectorSkipped int
}

// Count возвращает число итогов в заданном состоянии.
func (r PassReport) Count(state OpportunityState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}
