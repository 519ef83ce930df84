package engage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pulsecheck/internal/adapters/quota"
	"pulsecheck/internal/domain"
	"pulsecheck/internal/usecase/detect"
	"pulsecheck/internal/usecase/persona"
)

type stubUsers struct {
	user domain.User
}

func (s *stubUsers) GetUser(context.Context, int64) (domain.User, error) { return s.user, nil }
func (s *stubUsers) ListUsersWithCandidates(context.Context, time.Time) ([]int64, error) {
	return []int64{s.user.ID}, nil
}

type stubEntries struct {
	entries   []domain.JournalEntry
	responded []int64
}

func (s *stubEntries) ListCandidateEntries(context.Context, int64, time.Time, time.Time) ([]domain.JournalEntry, error) {
	return s.entries, nil
}

func (s *stubEntries) MarkResponded(_ context.Context, entryID int64, _ time.Time) error {
	s.responded = append(s.responded, entryID)
	return nil
}

type stubLedger struct {
	mu        sync.Mutex
	used      int
	consumes  int
	rollbacks int
}

func (l *stubLedger) Remaining(_ context.Context, _ int64, _ time.Time, limit int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if remaining := limit - l.used; remaining > 0 {
		return remaining, nil
	}
	return 0, nil
}

func (l *stubLedger) TryConsume(_ context.Context, _ int64, _ time.Time, limit int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumes++
	if l.used >= limit {
		return false, nil
	}
	l.used++
	return true, nil
}

func (l *stubLedger) Rollback(context.Context, int64, time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollbacks++
	if l.used > 0 {
		l.used--
	}
	return nil
}

type stubDispatcher struct {
	err     error
	calls   int
	persona domain.PersonaID
}

func (d *stubDispatcher) Dispatch(_ context.Context, entry domain.JournalEntry, p domain.PersonaID) (domain.InsightArtifact, error) {
	d.calls++
	d.persona = p
	if d.err != nil {
		return domain.InsightArtifact{}, d.err
	}
	return domain.InsightArtifact{ID: 100, EntryID: entry.ID, Persona: p, Insight: "ок"}, nil
}

type stubCache struct {
	values map[string][]byte
}

func newStubCache() *stubCache { return &stubCache{values: map[string][]byte{}} }

func (c *stubCache) Once(key string, _ time.Duration, fn func() error) error {
	if _, ok := c.values[key]; ok {
		return nil
	}
	c.values[key] = []byte("1")
	return fn()
}

func (c *stubCache) Set(key string, value []byte, _ time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *stubCache) Get(key string) ([]byte, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return nil, errors.New("cache miss")
}

type noPersonaSelector struct{}

func (noPersonaSelector) Select(domain.Opportunity, domain.Tier) (domain.PersonaID, error) {
	return "", persona.ErrNoEligiblePersona
}

func testEntries(now time.Time, n int) []domain.JournalEntry {
	entries := make([]domain.JournalEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, domain.JournalEntry{
			ID:        int64(i + 1),
			UserID:    1,
			CreatedAt: now.Add(-time.Duration(i+1) * time.Hour),
			Content:   "today was stressful and I feel overwhelmed",
		})
	}
	return entries
}

func newTestService(users domain.UserRepo, entries domain.EntryRepo, ledger domain.QuotaLedger, selector domain.PersonaSelector, dispatcher domain.Dispatcher, cache domain.Cache) *Service {
	return NewService(users, entries, ledger, detect.NewService(detect.Config{}), selector, dispatcher, cache, nil, Config{}, zerolog.Nop())
}

func TestRunPassDelivers(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierPremium}}
	entries := &stubEntries{entries: testEntries(now, 1)}
	ledger := &stubLedger{}
	dispatcher := &stubDispatcher{}

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, newStubCache())
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Delivered != 1 || report.Failed != 0 || report.Skipped != 0 {
		t.Fatalf("ожидали 1 доставку, получили %+v", report)
	}
	if len(entries.responded) != 1 || entries.responded[0] != 1 {
		t.Fatalf("ожидали отметку responded у записи 1, получили %v", entries.responded)
	}
	if ledger.used != 1 {
		t.Fatalf("ожидали счётчик квоты 1, получили %d", ledger.used)
	}
	if dispatcher.persona == "" {
		t.Fatalf("ожидали назначенную персону")
	}
}

func TestRunPassQuotaExhausted(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierFree}}
	entries := &stubEntries{entries: testEntries(now, 3)}
	ledger := &stubLedger{used: 5} // лимит Free уже выбран
	dispatcher := &stubDispatcher{}

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, newStubCache())
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Skipped != 3 || report.Delivered != 0 {
		t.Fatalf("ожидали 3 пропуска, получили %+v", report)
	}
	for _, o := range report.Outcomes {
		if o.State != domain.StateSkipped || o.Reason != domain.SkipQuotaExhausted {
			t.Fatalf("ожидали пропуск по квоте, получили %+v", o)
		}
	}
	if dispatcher.calls != 0 {
		t.Fatalf("не ожидали обращений к шлюзу")
	}
	// После первого отказа остаток известен, леджер больше не опрашивается.
	if ledger.consumes != 1 {
		t.Fatalf("ожидали один вызов TryConsume, получили %d", ledger.consumes)
	}
}

func TestRunPassGatewayFailureRollsBack(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierFree}}
	entries := &stubEntries{entries: testEntries(now, 1)}
	ledger := &stubLedger{used: 4} // остаток ровно 1
	dispatcher := &stubDispatcher{err: domain.NewDispatchError(domain.DispatchErrUpstream, errors.New("503"))}
	cache := newStubCache()

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, cache)
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("ожидали 1 отказ, получили %+v", report)
	}
	if ledger.used != 4 || ledger.rollbacks != 1 {
		t.Fatalf("ожидали откат квоты к 4, получили used=%d rollbacks=%d", ledger.used, ledger.rollbacks)
	}
	if len(entries.responded) != 0 {
		t.Fatalf("запись не должна быть отмечена отвеченной")
	}
	if _, err := cache.Get(backoffKey(1)); err != nil {
		t.Fatalf("ожидали маркер бэкоффа для записи 1")
	}
}

func TestRunPassRetryBackoffSkips(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierPremium}}
	entries := &stubEntries{entries: testEntries(now, 1)}
	ledger := &stubLedger{}
	dispatcher := &stubDispatcher{}
	cache := newStubCache()
	_ = cache.Set(backoffKey(1), []byte("1"), time.Minute)

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, cache)
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Skipped != 1 || report.Outcomes[0].Reason != domain.SkipRetryBackoff {
		t.Fatalf("ожидали пропуск по бэкоффу, получили %+v", report)
	}
	if ledger.consumes != 0 {
		t.Fatalf("квота не должна трогаться при бэкоффе")
	}
}

func TestRunPassNoPersonaRollsBack(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierFree}}
	entries := &stubEntries{entries: testEntries(now, 1)}
	ledger := &stubLedger{used: 4}
	dispatcher := &stubDispatcher{}

	s := newTestService(users, entries, ledger, noPersonaSelector{}, dispatcher, newStubCache())
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Skipped != 1 || report.Outcomes[0].Reason != domain.SkipNoPersona {
		t.Fatalf("ожидали пропуск без персоны, получили %+v", report)
	}
	if ledger.used != 4 || ledger.rollbacks != 1 {
		t.Fatalf("квота должна вернуться к 4, получили used=%d", ledger.used)
	}
	if dispatcher.calls != 0 {
		t.Fatalf("не ожидали обращений к шлюзу")
	}
}

func TestRunPassTestingModeKeepsQuota(t *testing.T) {
	now := time.Now().UTC()
	users := &stubUsers{user: domain.User{ID: 1, Tier: domain.TierFree, TestingMode: true}}
	// Запись моложе кулдауна: без режима тестирования кандидатов бы не было.
	entries := &stubEntries{entries: []domain.JournalEntry{{
		ID: 1, UserID: 1, CreatedAt: now.Add(-10 * time.Second), Content: "fresh entry",
	}}}
	ledger := &stubLedger{used: 5}
	dispatcher := &stubDispatcher{}

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, newStubCache())
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(report.Outcomes) != 1 {
		t.Fatalf("режим тестирования должен пропустить кулдаун: %+v", report)
	}
	// Но лимит тарифа действует и в режиме тестирования.
	if report.Outcomes[0].Reason != domain.SkipQuotaExhausted {
		t.Fatalf("ожидали пропуск по квоте, получили %+v", report.Outcomes[0])
	}
}

func TestRunPassTimeoutClassifiedAsFailure(t *testing.T) {
	now := time.Now().UTC()
	user := domain.User{ID: 1, Tier: domain.TierPremium}
	users := &stubUsers{user: user}
	entries := &stubEntries{entries: testEntries(now, 1)}
	ledger := quota.NewMemory()
	dispatcher := &stubDispatcher{err: context.DeadlineExceeded}

	s := newTestService(users, entries, ledger, persona.NewService(), dispatcher, newStubCache())
	report, err := s.RunPass(context.Background(), 1)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if report.Failed != 1 {
		t.Fatalf("таймаут должен стать отказом, получили %+v", report)
	}
	limit := user.Plan().DailyResponses
	remaining, err := ledger.Remaining(context.Background(), 1, domain.QuotaDay(now), limit)
	if err != nil {
		t.Fatalf("остаток квоты: %v", err)
	}
	if remaining != limit {
		t.Fatalf("квота после таймаута должна быть возвращена: остаток %d из %d", remaining, limit)
	}
}
