package city

import (
	"citysim/internal/sim/tuning"
)

const (
	MaxCondition         = 100.0
	MaxEfficiency        = 150.0
	OperationalThreshold = 20.0
	ConditionDecayPerDay = 0.1

	RepairCostPerPoint  = 100.0
	UpgradeCostFraction = 0.5
	UpgradeEfficiency   = 10.0
	UpgradeCapacity     = 1.2
)

type Vec3 struct{ X, Y, Z float64 }

// Quat is an orientation passed through unchanged; the core never reads it.
type Quat struct{ X, Y, Z, W float64 }

var IdentityQuat = Quat{W: 1}

type Stats struct {
	Name        string
	Cost        float64
	Maintenance float64
	Energy      float64
	Water       float64
}

// DailyCost is the upkeep deducted every operational day.
func (s Stats) DailyCost() float64 {
	return s.Maintenance + s.Energy*0.1 + s.Water*0.05
}

type Building struct {
	ID    string
	Kind  Kind
	Pos   Vec3
	Rot   Quat
	Stats Stats

	Condition   float64
	Efficiency  float64
	Operational bool
	Preview     bool

	// At most one is set, matching Kind. Service kinds have none.
	Residential *Residential
	Commercial  *Commercial
	Industrial  *Industrial
}

type Residential struct {
	MaxResidents   int
	Residents      int
	HappinessBonus float64
	CrimeRate      float64
	Efficiency     float64
}

type Commercial struct {
	MaxWorkers           int
	Workers              int
	TaxRate              float64
	Efficiency           float64
	CustomerSatisfaction float64
	DailyIncome          float64
}

type Industrial struct {
	MaxWorkers      int
	Workers         int
	ProductionRate  float64
	Pollution       float64
	Efficiency      float64
	DailyProduction float64
	DailyPollution  float64
}

func newBuilding(id string, kind Kind, bt tuning.BuildingTuning) *Building {
	b := &Building{
		ID:   id,
		Kind: kind,
		Rot:  IdentityQuat,
		Stats: Stats{
			Name:        bt.Name,
			Cost:        bt.Cost,
			Maintenance: bt.Maintenance,
			Energy:      bt.Energy,
			Water:       bt.Water,
		},
		Condition:   MaxCondition,
		Efficiency:  100,
		Operational: true,
	}
	switch kind {
	case KindResidential:
		b.Residential = &Residential{MaxResidents: bt.MaxResidents, Efficiency: 100}
	case KindCommercial:
		b.Commercial = &Commercial{
			MaxWorkers:           bt.MaxWorkers,
			TaxRate:              bt.TaxRate,
			Efficiency:           100,
			CustomerSatisfaction: bt.CustomerSatisfaction,
		}
	case KindIndustrial:
		b.Industrial = &Industrial{
			MaxWorkers:     bt.MaxWorkers,
			ProductionRate: bt.ProductionRate,
			Efficiency:     100,
		}
	}
	return b
}

// VariantEfficiency returns the efficiency that feeds the kind's economics,
// or the base efficiency for service buildings.
func (b *Building) VariantEfficiency() float64 {
	switch {
	case b.Residential != nil:
		return b.Residential.Efficiency
	case b.Commercial != nil:
		return b.Commercial.Efficiency
	case b.Industrial != nil:
		return b.Industrial.Efficiency
	}
	return b.Efficiency
}

func (b *Building) RepairCost() float64 {
	return (MaxCondition - b.Condition) * RepairCostPerPoint
}

func (b *Building) UpgradeCost() float64 {
	return b.Stats.Cost * UpgradeCostFraction
}

func (b *Building) clone() Building {
	out := *b
	if b.Residential != nil {
		r := *b.Residential
		out.Residential = &r
	}
	if b.Commercial != nil {
		c := *b.Commercial
		out.Commercial = &c
	}
	if b.Industrial != nil {
		in := *b.Industrial
		out.Industrial = &in
	}
	return out
}

// dailyUpdate is phase one of the daily pass: it mutates only the building's own
// state and reports the effect on the city as a Delta. Non-operational
// buildings return ok=false and are untouched.
func (b *Building) dailyUpdate(cov Coverage) (d Delta, ok bool) {
	d = Delta{BuildingID: b.ID, Kind: b.Kind}
	if !b.Operational {
		return d, false
	}

	d.Upkeep = b.Stats.DailyCost()

	b.Condition -= ConditionDecayPerDay
	if b.Condition < 0 {
		b.Condition = 0
	}
	if b.Condition < OperationalThreshold {
		b.Operational = false
		b.Efficiency = 0
		d.WentDown = true
		return d, true
	}

	if fn := economics[b.Kind]; fn != nil {
		fn(b, cov, &d)
	}
	return d, true
}

func (b *Building) repair() {
	b.Condition = MaxCondition
	b.Operational = true
	b.Efficiency = 100
	switch {
	case b.Residential != nil:
		b.Residential.Efficiency = 100
	case b.Commercial != nil:
		b.Commercial.Efficiency = 100
	case b.Industrial != nil:
		b.Industrial.Efficiency = 100
	}
}

// upgrade boosts variant capacity. Base efficiency only rises while the
// building is operational; a downed building stays at 0 until repaired.
func (b *Building) upgrade() {
	if b.Operational {
		b.Efficiency = min(MaxEfficiency, b.Efficiency+UpgradeEfficiency)
	}
	if fn := upgrades[b.Kind]; fn != nil {
		fn(b)
	}
}
