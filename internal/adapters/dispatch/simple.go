package dispatch

import (
	"context"
	"strings"
	"time"

	"pulsecheck/internal/domain"
)

// Simple реализует шлюз доставки эвристикой, без LLM.
// Используется локально и в окружениях без ключа API.
type Simple struct {
	artifacts domain.ArtifactRepo
}

var _ domain.Dispatcher = (*Simple)(nil)

// NewSimple создаёт шлюз.
func NewSimple(artifacts domain.ArtifactRepo) *Simple {
	return &Simple{artifacts: artifacts}
}

// Dispatch собирает шаблонный артефакт из сигналов записи.
func (d *Simple) Dispatch(ctx context.Context, entry domain.JournalEntry, persona domain.PersonaID) (domain.InsightArtifact, error) {
	signals := domain.ExtractSignals(entry)

	insight := "You took time to put your day into words, and that already counts."
	action := "Reread this entry tomorrow and note what changed."
	question := "What part of today do you want to carry into tomorrow?"
	// Сигналы упорядочены по значимости, текст выбирается по первому.
	if len(signals) > 0 {
		switch signals[0] {
		case domain.SignalDistress, domain.SignalLowMood:
			insight = "This entry carries a lot of weight; the pressure you describe is real."
			action = "Pick one small thing from the list and let the rest wait until tomorrow."
			question = "What is the one thing that would ease the load most right now?"
		case domain.SignalEngagement:
			insight = "There is clear momentum in what you wrote."
			action = "Write down the very next step while the energy is here."
			question = "What would make this goal feel inevitable?"
		case domain.SignalGratitude:
			insight = "Noticing what went well is a habit worth keeping."
			action = "Tell one person mentioned here what they meant to you."
			question = "What made this moment stand out from the rest of the day?"
		}
	}

	artifact := domain.InsightArtifact{
		EntryID:   entry.ID,
		Persona:   persona,
		Insight:   insight,
		Action:    action,
		Question:  question,
		Model:     "heuristic",
		CreatedAt: time.Now().UTC(),
	}
	if strings.TrimSpace(entry.Content) == "" {
		artifact.Insight = "An empty page is also a signal."
		artifact.Action = "Try a single sentence about how today felt."
	}
	if d.artifacts == nil {
		return artifact, nil
	}
	return d.artifacts.SaveArtifact(ctx, artifact)
}
