package domain

import "time"

// JournalEntry описывает запись дневника пользователя.
// Запись неизменяема после создания, кроме флага Responded:
// его ровно один раз выставляет планировщик после успешной доставки.
type JournalEntry struct {
	ID          int64
	UserID      int64
	CreatedAt   time.Time
	Content     string
	Mood        *int
	Responded   bool
	RespondedAt *time.Time
}

// User описывает пользователя продукта.
type User struct {
	ID          int64
	Tier        Tier
	TestingMode bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Opportunity — кандидат на AI-ответ в рамках одного прохода планировщика.
// Нигде не сохраняется, живёт только внутри прохода.
type Opportunity struct {
	Entry       JournalEntry
	Age         time.Duration
	HasArtifact bool
	FollowUp    bool
	Signals     []Signal
	Score       float64
}

// InsightArtifact — результат обращения к LLM для одной записи.
// Артефактом владеет Dispatch Gateway, планировщик видит только успех или ошибку.
type InsightArtifact struct {
	ID        int64
	EntryID   int64
	Persona   PersonaID
	Insight   string
	Action    string
	Question  string
	Model     string
	CreatedAt time.Time
}

// QuotaRecord — счётчик выданных AI-ответов за календарный день.
// Создаётся лениво при первом ответе дня, никогда не удаляется.
type QuotaRecord struct {
	UserID    int64
	Day       time.Time
	Used      int
	UpdatedAt time.Time
}

// QuotaDay нормализует момент времени к ключу календарного дня (UTC).
func QuotaDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
