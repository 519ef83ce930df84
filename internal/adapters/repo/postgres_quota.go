package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"pulsecheck/internal/domain"
	"pulsecheck/internal/infra/metrics"
)

var _ domain.QuotaLedger = (*Postgres)(nil)

// Remaining возвращает остаток квоты за день, не меньше нуля.
func (p *Postgres) Remaining(ctx context.Context, userID int64, day time.Time, limit int) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var used int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT used
FROM quota_records
WHERE user_id = $1 AND day = $2
`, userID, domain.QuotaDay(day)).Scan(&used)
	metrics.ObserveNetworkRequest("postgres", "quota_remaining", "quota_records", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return limit, nil
		}
		return 0, err
	}
	remaining := limit - used
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// TryConsume атомарно увеличивает дневной счётчик, если остаток положителен.
// Атомарность обеспечивает условный UPDATE в одном операторе: при остатке 1
// из двух конкурентных вызовов строку изменит только один.
func (p *Postgres) TryConsume(ctx context.Context, userID int64, day time.Time, limit int) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var used int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO quota_records (user_id, day, used, updated_at)
VALUES ($1, $2, 1, now())
ON CONFLICT (user_id, day) DO UPDATE
SET used = quota_records.used + 1, updated_at = now()
WHERE quota_records.used < $3
RETURNING used
`, userID, domain.QuotaDay(day), limit).Scan(&used)
	metrics.ObserveNetworkRequest("postgres", "quota_try_consume", "quota_records", start, err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if limit <= 0 {
		// Лениво созданная строка при нулевом лимите: потребление не засчитывается.
		_ = p.Rollback(ctx, userID, day)
		return false, nil
	}
	return true, nil
}

// Rollback возвращает единицу квоты после неудачной доставки.
func (p *Postgres) Rollback(ctx context.Context, userID int64, day time.Time) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
UPDATE quota_records
SET used = GREATEST(used - 1, 0), updated_at = now()
WHERE user_id = $1 AND day = $2
`, userID, domain.QuotaDay(day))
	metrics.ObserveNetworkRequest("postgres", "quota_rollback", "quota_records", start, err)
	return err
}
