package domain

import (
	"context"
	"time"
)

// UserRepo управляет пользователями.
type UserRepo interface {
	GetUser(ctx context.Context, userID int64) (User, error)
	// ListUsersWithCandidates возвращает идентификаторы пользователей,
	// у которых есть неотвеченные записи новее указанного момента.
	ListUsersWithCandidates(ctx context.Context, since time.Time) ([]int64, error)
}

// EntryRepo управляет записями дневника.
type EntryRepo interface {
	// ListCandidateEntries возвращает неотвеченные записи новее since,
	// а также отвеченные, чей ответ старше followUpBefore.
	ListCandidateEntries(ctx context.Context, userID int64, since, followUpBefore time.Time) ([]JournalEntry, error)
	// MarkResponded выставляет флаг ровно один раз, после успешной доставки.
	MarkResponded(ctx context.Context, entryID int64, at time.Time) error
}

// QuotaLedger — единственный разделяемый изменяемый ресурс ядра.
// TryConsume обязан быть атомарным по ключу (user, day): из двух одновременных
// вызовов при остатке 1 успешным может быть только один.
type QuotaLedger interface {
	Remaining(ctx context.Context, userID int64, day time.Time, limit int) (int, error)
	TryConsume(ctx context.Context, userID int64, day time.Time, limit int) (bool, error)
	// Rollback возвращает единицу квоты после неудачной доставки. Не уходит ниже нуля.
	Rollback(ctx context.Context, userID int64, day time.Time) error
}

// ArtifactRepo сохраняет артефакты ответов. Принадлежит шлюзу доставки.
type ArtifactRepo interface {
	SaveArtifact(ctx context.Context, artifact InsightArtifact) (InsightArtifact, error)
}

// OpportunityDetector строит упорядоченный список кандидатов на ответ.
// Детерминирован: одинаковый вход даёт одинаковый порядок.
type OpportunityDetector interface {
	Detect(now time.Time, user User, entries []JournalEntry) (opportunities []Opportunity, skipped int)
}

// PersonaSelector выбирает персону для кандидата с учётом тарифа.
type PersonaSelector interface {
	Select(opp Opportunity, tier Tier) (PersonaID, error)
}

// Dispatcher — шлюз доставки: вызывает LLM и сохраняет артефакт.
// Ошибки классифицируются через DispatchError.
type Dispatcher interface {
	Dispatch(ctx context.Context, entry JournalEntry, persona PersonaID) (InsightArtifact, error)
}

// Cache используется для простых TTL-хранилищ: маркеры бэкоффа и
// идемпотентность планирования.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}
