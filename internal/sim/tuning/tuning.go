package tuning

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DaySkipEachBoundary = "each_boundary"
	DaySkipCollapse     = "collapse"

	CoverageStatic       = "static"
	CoverageServiceCount = "service_count"

	// MaxHoursPerSecond caps the clock rate at 60 game days per real second.
	MaxHoursPerSecond = 24 * 60
)

// BuildingKinds lists the tuning keys every table must define.
var BuildingKinds = []string{
	"RESIDENTIAL",
	"COMMERCIAL",
	"INDUSTRIAL",
	"POLICE_STATION",
	"FIRE_STATION",
	"SCHOOL",
	"HOSPITAL",
}

type Tuning struct {
	FrameRateHz       int     `yaml:"frame_rate_hz"`
	HoursPerSecond    float64 `yaml:"hours_per_second"`
	DaySkipPolicy     string  `yaml:"day_skip_policy"`
	StateEveryFrames  int     `yaml:"state_every_frames"`
	AutosaveEveryDays int     `yaml:"autosave_every_days"`

	StartBudget       float64 `yaml:"start_budget"`
	StartHappiness    float64 `yaml:"start_happiness"`
	StartTimeScale    float64 `yaml:"start_time_scale"`
	TaxPerCitizen     float64 `yaml:"tax_per_citizen"`
	CityExpensePerDay float64 `yaml:"city_expense_per_day"`

	Coverage  CoverageTuning            `yaml:"coverage"`
	Buildings map[string]BuildingTuning `yaml:"buildings"`
}

type CoverageTuning struct {
	Policy      string  `yaml:"policy"`
	PerBuilding float64 `yaml:"per_building"`
}

type BuildingTuning struct {
	Name        string  `yaml:"name"`
	Cost        float64 `yaml:"cost"`
	Maintenance float64 `yaml:"maintenance"`
	Energy      float64 `yaml:"energy"`
	Water       float64 `yaml:"water"`

	// Variant fields; only read for the matching kind.
	MaxResidents         int     `yaml:"max_residents,omitempty"`
	MaxWorkers           int     `yaml:"max_workers,omitempty"`
	TaxRate              float64 `yaml:"tax_rate,omitempty"`
	ProductionRate       float64 `yaml:"production_rate,omitempty"`
	CustomerSatisfaction float64 `yaml:"customer_satisfaction,omitempty"`
}

func Defaults() Tuning {
	return Tuning{
		FrameRateHz:       30,
		HoursPerSecond:    1,
		DaySkipPolicy:     DaySkipEachBoundary,
		StateEveryFrames:  30,
		AutosaveEveryDays: 0,

		StartBudget:       1_000_000,
		StartHappiness:    50,
		StartTimeScale:    1,
		TaxPerCitizen:     10,
		CityExpensePerDay: 0,

		Coverage: CoverageTuning{
			Policy:      CoverageStatic,
			PerBuilding: 0.25,
		},
		Buildings: defaultBuildings(),
	}
}

func defaultBuildings() map[string]BuildingTuning {
	return map[string]BuildingTuning{
		"RESIDENTIAL": {
			Name: "Residential Building", Cost: 50000, Maintenance: 1000, Energy: 50, Water: 30,
			MaxResidents: 100,
		},
		"COMMERCIAL": {
			Name: "Commercial Building", Cost: 75000, Maintenance: 1500, Energy: 75, Water: 40,
			MaxWorkers: 50, TaxRate: 0.1, CustomerSatisfaction: 50,
		},
		"INDUSTRIAL": {
			Name: "Industrial Building", Cost: 100000, Maintenance: 2000, Energy: 150, Water: 80,
			MaxWorkers: 100, ProductionRate: 100,
		},
		"POLICE_STATION": {Name: "Police Station", Cost: 60000, Maintenance: 1200, Energy: 60, Water: 20},
		"FIRE_STATION":   {Name: "Fire Station", Cost: 60000, Maintenance: 1200, Energy: 60, Water: 60},
		"SCHOOL":         {Name: "School", Cost: 80000, Maintenance: 1500, Energy: 70, Water: 40},
		"HOSPITAL":       {Name: "Hospital", Cost: 120000, Maintenance: 2500, Energy: 120, Water: 80},
	}
}

// Load reads a tuning file on top of Defaults. Missing keys keep their default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := mergeBuildings(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// mergeBuildings decodes each building entry over its kind's default, so an
// entry only overrides the keys it names and an explicit 0 stays 0.
func mergeBuildings(raw []byte, t *Tuning) error {
	var doc struct {
		Buildings map[string]yaml.Node `yaml:"buildings"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc.Buildings == nil {
		return nil
	}
	def := defaultBuildings()
	t.Buildings = make(map[string]BuildingTuning, len(doc.Buildings))
	for k, node := range doc.Buildings {
		key := strings.ToUpper(strings.TrimSpace(k))
		b := def[key]
		if err := node.Decode(&b); err != nil {
			return fmt.Errorf("buildings.%s: %w", key, err)
		}
		t.Buildings[key] = b
	}
	return nil
}

// Normalize fills unset scalars and missing building kinds from Defaults.
// Stats of a building that is present are kept as given.
func (t *Tuning) Normalize() {
	def := Defaults()
	if t.FrameRateHz <= 0 {
		t.FrameRateHz = def.FrameRateHz
	}
	if t.HoursPerSecond <= 0 {
		t.HoursPerSecond = def.HoursPerSecond
	}
	t.DaySkipPolicy = strings.ToLower(strings.TrimSpace(t.DaySkipPolicy))
	if t.DaySkipPolicy == "" {
		t.DaySkipPolicy = def.DaySkipPolicy
	}
	if t.StateEveryFrames <= 0 {
		t.StateEveryFrames = def.StateEveryFrames
	}
	if t.AutosaveEveryDays < 0 {
		t.AutosaveEveryDays = 0
	}
	if t.StartHappiness < 0 {
		t.StartHappiness = 0
	}
	if t.StartHappiness > 100 {
		t.StartHappiness = 100
	}
	if t.StartTimeScale < 0 {
		t.StartTimeScale = 0
	}
	if t.StartTimeScale > 3 {
		t.StartTimeScale = 3
	}
	t.Coverage.Policy = strings.ToLower(strings.TrimSpace(t.Coverage.Policy))
	if t.Coverage.Policy == "" {
		t.Coverage.Policy = def.Coverage.Policy
	}
	if t.Coverage.PerBuilding <= 0 {
		t.Coverage.PerBuilding = def.Coverage.PerBuilding
	}

	norm := make(map[string]BuildingTuning, len(def.Buildings))
	for k, v := range t.Buildings {
		norm[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	for k, d := range def.Buildings {
		b, ok := norm[k]
		if !ok {
			norm[k] = d
			continue
		}
		if strings.TrimSpace(b.Name) == "" {
			b.Name = d.Name
		}
		norm[k] = b
	}
	t.Buildings = norm
}

func (t Tuning) Validate() error {
	if !(t.HoursPerSecond > 0 && t.HoursPerSecond <= MaxHoursPerSecond) {
		return fmt.Errorf("hours_per_second must be in (0, %d] (got %v)", MaxHoursPerSecond, t.HoursPerSecond)
	}
	switch t.DaySkipPolicy {
	case DaySkipEachBoundary, DaySkipCollapse:
	default:
		return fmt.Errorf("unknown day_skip_policy %q", t.DaySkipPolicy)
	}
	switch t.Coverage.Policy {
	case CoverageStatic, CoverageServiceCount:
	default:
		return fmt.Errorf("unknown coverage policy %q", t.Coverage.Policy)
	}
	if t.Coverage.PerBuilding > 1 {
		return fmt.Errorf("coverage.per_building must be <= 1 (got %v)", t.Coverage.PerBuilding)
	}
	if t.TaxPerCitizen < 0 || t.CityExpensePerDay < 0 {
		return fmt.Errorf("tax_per_citizen and city_expense_per_day must be >= 0")
	}

	known := map[string]bool{}
	for _, k := range BuildingKinds {
		known[k] = true
	}
	keys := make([]string, 0, len(t.Buildings))
	for k := range t.Buildings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !known[k] {
			return fmt.Errorf("buildings: unknown kind %q", k)
		}
		b := t.Buildings[k]
		if b.Cost < 0 || b.Maintenance < 0 || b.Energy < 0 || b.Water < 0 {
			return fmt.Errorf("buildings.%s: negative stat", k)
		}
		if b.MaxResidents < 0 || b.MaxWorkers < 0 || b.TaxRate < 0 || b.ProductionRate < 0 {
			return fmt.Errorf("buildings.%s: negative variant stat", k)
		}
	}
	for _, k := range BuildingKinds {
		if _, ok := t.Buildings[k]; !ok {
			return fmt.Errorf("buildings: missing kind %q", k)
		}
	}
	return nil
}
