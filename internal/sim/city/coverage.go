package city

import (
	"fmt"

	"github.com/samber/lo"

	"citysim/internal/sim/tuning"
)

// CoveragePolicy derives service coverage from the placed buildings. It runs
// after placement, after removal and once per daily pass.
type CoveragePolicy interface {
	Name() string
	Recompute(prev Coverage, buildings []*Building) Coverage
}

// StaticCoverage keeps whatever coverage the city already has.
type StaticCoverage struct{}

func (StaticCoverage) Name() string { return tuning.CoverageStatic }

func (StaticCoverage) Recompute(prev Coverage, _ []*Building) Coverage { return prev }

// ServiceCountCoverage gives each operational service building PerBuilding
// coverage for its service, capped at 1.
type ServiceCountCoverage struct {
	PerBuilding float64
}

func (ServiceCountCoverage) Name() string { return tuning.CoverageServiceCount }

func (p ServiceCountCoverage) Recompute(_ Coverage, buildings []*Building) Coverage {
	count := func(k Kind) float64 {
		n := lo.CountBy(buildings, func(b *Building) bool {
			return b.Kind == k && b.Operational
		})
		return min(1, float64(n)*p.PerBuilding)
	}
	return Coverage{
		Police:     count(KindPoliceStation),
		Fire:       count(KindFireStation),
		Education:  count(KindSchool),
		Healthcare: count(KindHospital),
	}
}

func CoveragePolicyFor(ct tuning.CoverageTuning) (CoveragePolicy, error) {
	switch ct.Policy {
	case "", tuning.CoverageStatic:
		return StaticCoverage{}, nil
	case tuning.CoverageServiceCount:
		return ServiceCountCoverage{PerBuilding: ct.PerBuilding}, nil
	}
	return nil, fmt.Errorf("unknown coverage policy %q", ct.Policy)
}
