package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/metrics"
)

// ErrUserNotFound возвращается, если пользователь отсутствует.
var ErrUserNotFound = errors.New("пользователь не найден")

// ErrEntryNotFound возвращается, если запись отсутствует или уже отвечена.
var ErrEntryNotFound = errors.New("запись не найдена")

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.UserRepo = (*Postgres)(nil)
var _ domain.EntryRepo = (*Postgres)(nil)
var _ domain.ArtifactRepo = (*Postgres)(nil)
var _ domain.EngagementEventRepo = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetUser реализует domain.UserRepo.
func (p *Postgres) GetUser(ctx context.Context, userID int64) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var u domain.User
	var tier string
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, tier, testing_mode, created_at, updated_at
FROM users
WHERE id = $1
`, userID).Scan(&u.ID, &tier, &u.TestingMode, &u.CreatedAt, &u.UpdatedAt)
	metrics.ObserveNetworkRequest("postgres", "users_get", "users", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	u.Tier = domain.Tier(tier)
	return u, nil
}

// ListUsersWithCandidates возвращает пользователей с неотвеченными записями новее since.
func (p *Postgres) ListUsersWithCandidates(ctx context.Context, since time.Time) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT DISTINCT user_id
FROM journal_entries
WHERE responded = false AND created_at > $1
ORDER BY user_id
`, since)
	metrics.ObserveNetworkRequest("postgres", "users_with_candidates", "journal_entries", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListCandidateEntries реализует domain.EntryRepo: неотвеченные записи новее since
// и отвеченные, чей ответ старше followUpBefore.
func (p *Postgres) ListCandidateEntries(ctx context.Context, userID int64, since, followUpBefore time.Time) ([]domain.JournalEntry, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, user_id, created_at, content, mood, responded, responded_at
FROM journal_entries
WHERE user_id = $1
  AND created_at > $2
  AND (responded = false OR responded_at < $3)
ORDER BY created_at
`, userID, since, followUpBefore)
	metrics.ObserveNetworkRequest("postgres", "entries_list_candidates", "journal_entries", start, err)
	if err != nil {
		return nil, fmt.Errorf("выборка записей: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var mood sql.NullInt64
		var respondedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.UserID, &e.CreatedAt, &e.Content, &mood, &e.Responded, &respondedAt); err != nil {
			return nil, err
		}
		if mood.Valid {
			v := int(mood.Int64)
			e.Mood = &v
		}
		if respondedAt.Valid {
			t := respondedAt.Time
			e.RespondedAt = &t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkResponded выставляет флаг ровно один раз: повторная отметка — ошибка.
func (p *Postgres) MarkResponded(ctx context.Context, entryID int64, at time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `
UPDATE journal_entries
SET responded = true, responded_at = $2
WHERE id = $1 AND responded = false
`, entryID, at)
	metrics.ObserveNetworkRequest("postgres", "entries_mark_responded", "journal_entries", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// SaveArtifact сохраняет артефакт ответа. Вызывается только шлюзом доставки.
func (p *Postgres) SaveArtifact(ctx context.Context, artifact domain.InsightArtifact) (domain.InsightArtifact, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO insight_artifacts (entry_id, persona, insight, action, question, model, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`, artifact.EntryID, string(artifact.Persona), artifact.Insight, artifact.Action, artifact.Question, artifact.Model, artifact.CreatedAt).Scan(&artifact.ID)
	metrics.ObserveNetworkRequest("postgres", "artifacts_insert", "insight_artifacts", start, err)
	if err != nil {
		return domain.InsightArtifact{}, fmt.Errorf("сохранение артефакта: %w", err)
	}
	return artifact, nil
}

// RecordEngagementEvent сохраняет аудит-событие планировщика.
func (p *Postgres) RecordEngagementEvent(ctx context.Context, event domain.EngagementEvent) error {
	if event.State == "" {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var payload []byte
	if event.Metadata != nil {
		if data, err := json.Marshal(event.Metadata); err == nil {
			payload = data
		}
	}

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO engagement_events (user_id, entry_id, state, reason, persona, metadata, occurred_at)
VALUES ($1, $2, $3, NULLIF($4,''), NULLIF($5,''), $6, $7)
`, event.UserID, event.EntryID, string(event.State), string(event.Reason), string(event.Persona), payload, event.OccurredAt)
	metrics.ObserveNetworkRequest("postgres", "engagement_events_insert", "engagement_events", start, err)
	return err
}
