package domain

import (
	"context"
	"time"
)

// PassCause описывает источник запроса на проход планировщика.
type PassCause string

const (
	// PassCauseManual — проход запрошен вручную через API.
	PassCauseManual PassCause = "manual"
	// PassCauseScheduled — проход запланирован по таймеру.
	PassCauseScheduled PassCause = "scheduled"
)

// PassJob содержит информацию о задаче на проход планировщика.
type PassJob struct {
	ID          string    `json:"job_id,omitempty"`
	UserID      int64     `json:"user_id"`
	RequestedAt time.Time `json:"requested_at"`
	Cause       PassCause `json:"cause"`
}

// PassQueue описывает очередь задач на проходы планировщика.
type PassQueue interface {
	Enqueue(ctx context.Context, job PassJob) error
	Pop(ctx context.Context) (PassJob, error)
}
