package domain

// PersonaID идентифицирует одну из фиксированных AI-персон.
// Набор закрыт: новый идентификатор требует записи в AllPersonas.
type PersonaID string

const (
	PersonaPulse  PersonaID = "pulse"
	PersonaSage   PersonaID = "sage"
	PersonaSpark  PersonaID = "spark"
	PersonaAnchor PersonaID = "anchor"
)

// Persona — статическая конфигурация персоны: специализация и приоритет.
// Не изменяется во время работы.
type Persona struct {
	ID   PersonaID
	Name string
	// Tags — сигналы, на которые персона специализируется.
	Tags []Signal
	// Priority разрешает ничьи при выборе: меньше — раньше. Стабилен между запусками.
	Priority int
}

// AllPersonas перечисляет персоны в порядке приоритета.
var AllPersonas = []Persona{
	{
		ID:       PersonaPulse,
		Name:     "Pulse",
		Tags:     []Signal{SignalDistress, SignalLowMood},
		Priority: 1,
	},
	{
		ID:       PersonaSage,
		Name:     "Sage",
		Tags:     []Signal{SignalReflection, SignalGratitude},
		Priority: 2,
	},
	{
		ID:       PersonaSpark,
		Name:     "Spark",
		Tags:     []Signal{SignalEngagement},
		Priority: 3,
	},
	{
		ID:       PersonaAnchor,
		Name:     "Anchor",
		Tags:     []Signal{SignalDistress, SignalReflection, SignalLowMood},
		Priority: 4,
	},
}

// PersonaByID возвращает конфигурацию персоны.
func PersonaByID(id PersonaID) (Persona, bool) {
	for _, p := range AllPersonas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
