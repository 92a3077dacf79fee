package city

const (
	HoursPerDay  = 24.0
	MaxTimeScale = 3.0
)

// Coverage holds the four service coverage fractions, each in [0,1].
type Coverage struct {
	Police     float64 `json:"police"`
	Fire       float64 `json:"fire"`
	Education  float64 `json:"education"`
	Healthcare float64 `json:"healthcare"`
}

// State is the city-wide ledger. Population is derived from residential
// occupancy and is never written directly by callers.
type State struct {
	GameTime  float64 `json:"game_time"`
	Day       int     `json:"day"`
	TimeScale float64 `json:"time_scale"`

	Budget     float64 `json:"budget"`
	Population int     `json:"population"`
	Happiness  float64 `json:"happiness"`

	Coverage Coverage `json:"coverage"`
}

func (s State) Paused() bool { return s.TimeScale == 0 }
