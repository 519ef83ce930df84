package domain

import "strings"

// Signal — содержательный признак записи, выведенный из текста и настроения.
type Signal string

const (
	// SignalDistress — явные слова о тревоге или перегрузке.
	SignalDistress Signal = "distress"
	// SignalEngagement — цели, планы, энтузиазм.
	SignalEngagement Signal = "engagement"
	// SignalReflection — размышления о причинах и смысле.
	SignalReflection Signal = "reflection"
	// SignalGratitude — благодарность и позитивные итоги.
	SignalGratitude Signal = "gratitude"
	// SignalLowMood — низкая оценка настроения.
	SignalLowMood Signal = "low_mood"
)

const lowMoodThreshold = 4

var signalKeywords = map[Signal][]string{
	SignalDistress: {
		"overwhelmed", "anxious", "anxiety", "stressed", "stress",
		"exhausted", "burned out", "burnout", "can't cope", "panic",
	},
	SignalEngagement: {
		"goal", "plan", "excited", "motivated", "progress",
		"started", "finally", "challenge", "learning",
	},
	SignalReflection: {
		"why do i", "i wonder", "i realized", "i noticed",
		"thinking about", "looking back", "makes me feel",
	},
	SignalGratitude: {
		"grateful", "thankful", "appreciate", "glad that", "lucky",
	},
}

// ExtractSignals детерминированно выводит сигналы из записи.
// Порядок сигналов фиксирован, чтобы скоринг был воспроизводим.
func ExtractSignals(entry JournalEntry) []Signal {
	text := strings.ToLower(entry.Content)
	ordered := []Signal{SignalDistress, SignalEngagement, SignalReflection, SignalGratitude}

	var out []Signal
	for _, sig := range ordered {
		for _, kw := range signalKeywords[sig] {
			if strings.Contains(text, kw) {
				out = append(out, sig)
				break
			}
		}
	}
	if entry.Mood != nil && *entry.Mood <= lowMoodThreshold {
		out = append(out, SignalLowMood)
	}
	return out
}
