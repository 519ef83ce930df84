package quota

import (
	"context"
	"sync"
	"time"

	"pulsecheck/internal/domain"
)

type dayKey struct {
	userID int64
	day    time.Time
}

// Memory — леджер квот в памяти процесса. Счётчики сериализованы мьютексом,
// поэтому TryConsume атомарен по ключу (user, day). Записи не удаляются:
// новый день начинается с нового ключа.
type Memory struct {
	mu   sync.Mutex
	used map[dayKey]int
}

var _ domain.QuotaLedger = (*Memory)(nil)

// NewMemory создаёт пустой леджер.
func NewMemory() *Memory {
	return &Memory{used: make(map[dayKey]int)}
}

// Remaining возвращает остаток квоты, не меньше нуля.
func (m *Memory) Remaining(_ context.Context, userID int64, day time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := limit - m.used[key(userID, day)]
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

// TryConsume атомарно проверяет остаток и увеличивает счётчик.
func (m *Memory) TryConsume(_ context.Context, userID int64, day time.Time, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, day)
	if m.used[k] >= limit {
		return false, nil
	}
	m.used[k]++
	return true, nil
}

// Rollback возвращает единицу квоты. Ниже нуля счётчик не опускается.
func (m *Memory) Rollback(_ context.Context, userID int64, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(userID, day)
	if m.used[k] > 0 {
		m.used[k]--
	}
	return nil
}

func key(userID int64, day time.Time) dayKey {
	return dayKey{userID: userID, day: domain.QuotaDay(day)}
}
