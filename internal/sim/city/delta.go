package city

import "github.com/samber/lo"

// Delta is one building's effect on the city for one day. Buildings produce
// deltas without touching State; reduce applies them in building order.
type Delta struct {
	BuildingID string
	Kind       Kind

	Upkeep        float64
	CommercialTax float64
	IndustrialTax float64

	HappinessAdd  float64
	AddsHappiness bool
	HappinessDrag float64

	WentDown bool
}

type reduction struct {
	Upkeep        float64
	CommercialTax float64
	IndustrialTax float64
	WentDown      []string
}

// reduce applies deltas to s. Happiness effects are applied one at a time so
// that each residential add is clamped and each pollution drag is floored the
// same way a sequential pass would. Population is re-summed, not accumulated.
func reduce(s *State, deltas []Delta, buildings []*Building) reduction {
	var r reduction
	for _, d := range deltas {
		r.Upkeep += d.Upkeep
		r.CommercialTax += d.CommercialTax
		r.IndustrialTax += d.IndustrialTax

		s.Budget -= d.Upkeep
		s.Budget += d.CommercialTax + d.IndustrialTax

		if d.AddsHappiness {
			s.Happiness = lo.Clamp(s.Happiness+d.HappinessAdd, 0, 100)
		}
		if d.HappinessDrag > 0 {
			s.Happiness = max(0, s.Happiness-d.HappinessDrag)
		}
		if d.WentDown {
			r.WentDown = append(r.WentDown, d.BuildingID)
		}
	}
	s.Population = residents(buildings)
	return r
}

func residents(buildings []*Building) int {
	return lo.SumBy(buildings, func(b *Building) int {
		if b.Residential == nil {
			return 0
		}
		return b.Residential.Residents
	})
}
