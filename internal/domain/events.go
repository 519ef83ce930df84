package domain

import (
	"context"
	"time"
)

// EngagementEvent — аудит-запись о терминальном итоге обработки кандидата.
// Сохраняется асинхронно и не влияет на решение планировщика.
type EngagementEvent struct {
	UserID     int64
	EntryID    int64
	State      OpportunityState
	Reason     SkipReason
	Persona    PersonaID
	Metadata   map[string]any
	OccurredAt time.Time
}

// EngagementEventRepo сохраняет события планировщика для аналитики.
type EngagementEventRepo interface {
	RecordEngagementEvent(ctx context.Context, event EngagementEvent) error
}
