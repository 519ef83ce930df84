package dispatch

import (
	"context"
	"strings"
	"time"

	"pulsecheck/internal/domain"
)

// OpenAIStub имитирует работу LLM-шлюза: артефакт собирается из первой
// строки записи, ничего не сохраняется и не отправляется наружу.
type OpenAIStub struct{}

var _ domain.Dispatcher = (*OpenAIStub)(nil)

// NewOpenAIStub создаёт заглушку.
func NewOpenAIStub() *OpenAIStub {
	return &OpenAIStub{}
}

// Dispatch возвращает шаблонный артефакт.
func (d *OpenAIStub) Dispatch(_ context.Context, entry domain.JournalEntry, persona domain.PersonaID) (domain.InsightArtifact, error) {
	firstLine := strings.TrimSpace(strings.SplitN(entry.Content, "\n", 2)[0])
	if len([]rune(firstLine)) > 120 {
		firstLine = string([]rune(firstLine)[:120]) + "…"
	}
	return domain.InsightArtifact{
		EntryID:   entry.ID,
		Persona:   persona,
		Insight:   "Заглушка: " + firstLine,
		Action:    "Перечитать запись позже.",
		Question:  "Что изменилось с момента записи?",
		Model:     "stub",
		CreatedAt: time.Now().UTC(),
	}, nil
}
