package quota

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestTryConsumeUpToLimit(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC()
	m := NewMemory()

	for i := 0; i < 5; i++ {
		ok, err := m.TryConsume(ctx, 1, day, 5)
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if !ok {
			t.Fatalf("потребление %d должно пройти", i+1)
		}
	}
	ok, _ := m.TryConsume(ctx, 1, day, 5)
	if ok {
		t.Fatalf("шестое потребление при лимите 5 должно отказать")
	}
	remaining, _ := m.Remaining(ctx, 1, day, 5)
	if remaining != 0 {
		t.Fatalf("ожидали остаток 0, получили %d", remaining)
	}
}

func TestRemainingClampedAtZero(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		if ok, _ := m.TryConsume(ctx, 1, day, 3); !ok {
			t.Fatalf("потребление должно пройти")
		}
	}
	// Лимит уменьшился (даунгрейд тарифа): остаток не становится отрицательным.
	remaining, _ := m.Remaining(ctx, 1, day, 2)
	if remaining != 0 {
		t.Fatalf("ожидали остаток 0, получили %d", remaining)
	}
}

func TestRollbackRestoresAndFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC()
	m := NewMemory()

	if ok, _ := m.TryConsume(ctx, 1, day, 5); !ok {
		t.Fatalf("потребление должно пройти")
	}
	if err := m.Rollback(ctx, 1, day); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	remaining, _ := m.Remaining(ctx, 1, day, 5)
	if remaining != 5 {
		t.Fatalf("ожидали восстановленный остаток 5, получили %d", remaining)
	}
	// Повторный откат не уводит счётчик ниже нуля.
	_ = m.Rollback(ctx, 1, day)
	remaining, _ = m.Remaining(ctx, 1, day, 5)
	if remaining != 5 {
		t.Fatalf("ожидали остаток 5 после лишнего отката, получили %d", remaining)
	}
}

func TestNewDayStartsFresh(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 8, 29, 23, 59, 0, 0, time.UTC)
	next := day.Add(2 * time.Minute)
	m := NewMemory()

	if ok, _ := m.TryConsume(ctx, 1, day, 1); !ok {
		t.Fatalf("потребление должно пройти")
	}
	if ok, _ := m.TryConsume(ctx, 1, day, 1); ok {
		t.Fatalf("лимит дня исчерпан")
	}
	// Новый календарный день — новый ключ, явного сброса нет.
	if ok, _ := m.TryConsume(ctx, 1, next, 1); !ok {
		t.Fatalf("новый день должен начинаться с нуля")
	}
}

func TestConcurrentConsumeLastUnit(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC()
	m := NewMemory()
	for i := 0; i < 4; i++ {
		if ok, _ := m.TryConsume(ctx, 1, day, 5); !ok {
			t.Fatalf("потребление должно пройти")
		}
	}

	// Остаток ровно 1: из двух одновременных вызовов выигрывает один.
	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryConsume(ctx, 1, day, 5)
			if err != nil {
				t.Errorf("не ожидали ошибку: %v", err)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for ok := range results {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Fatalf("ожидали ровно один успех, получили %d", successes)
	}
}

func TestConcurrentConsumeNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	day := time.Now().UTC()
	m := NewMemory()

	const limit = 5
	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := m.TryConsume(ctx, 7, day, limit); ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != limit {
		t.Fatalf("ожидали ровно %d успехов из %d, получили %d", limit, workers, successes)
	}
}
