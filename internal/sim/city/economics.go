package city

import (
	"math"

	"github.com/samber/lo"
)

const (
	IndustrialTaxRate   = 0.15
	CommercialUnitValue = 100.0
	MaxPollution        = 100.0

	residentStep       = 2
	commercialWorkStep = 1
	industrialWorkStep = 2
)

type economicsFunc func(b *Building, cov Coverage, d *Delta)

var economics = map[Kind]economicsFunc{
	KindResidential: residentialDay,
	KindCommercial:  commercialDay,
	KindIndustrial:  industrialDay,
}

var upgrades = map[Kind]func(b *Building){
	KindResidential: func(b *Building) {
		r := b.Residential
		r.MaxResidents = scaleCapacity(r.MaxResidents)
		r.HappinessBonus += 5
	},
	KindCommercial: func(b *Building) {
		c := b.Commercial
		c.MaxWorkers = scaleCapacity(c.MaxWorkers)
		c.TaxRate += 0.02
	},
	KindIndustrial: func(b *Building) {
		in := b.Industrial
		in.MaxWorkers = scaleCapacity(in.MaxWorkers)
		in.ProductionRate *= 1.1
	},
}

func residentialDay(b *Building, cov Coverage, d *Delta) {
	r := b.Residential
	eff := b.Condition * (1 + cov.Police*0.2) * (1 + cov.Healthcare*0.2) * (1 + cov.Education*0.1)
	r.Efficiency = lo.Clamp(eff, 0, 100)

	target := roundInt(float64(r.MaxResidents) * r.Efficiency / 100)
	r.Residents = approach(r.Residents, target, residentStep)

	f := (b.Condition-50)*0.2 +
		cov.Police*0.3 +
		cov.Healthcare*0.3 +
		cov.Education*0.2 +
		r.HappinessBonus
	d.HappinessAdd = lo.Clamp(f, -10, 10)
	d.AddsHappiness = true
}

func commercialDay(b *Building, cov Coverage, d *Delta) {
	c := b.Commercial
	eff := b.Condition * (1 + cov.Police*0.15) * (1 + cov.Fire*0.15) * (1 + cov.Education*0.1)
	c.Efficiency = lo.Clamp(eff, 0, 100)

	target := roundInt(float64(c.MaxWorkers) * c.Efficiency / 100)
	c.Workers = approach(c.Workers, target, commercialWorkStep)

	c.DailyIncome = float64(c.Workers) * CommercialUnitValue * (c.Efficiency / 100)
	d.CommercialTax = c.DailyIncome * c.TaxRate

	// Tracked only; nothing reads customer satisfaction.
	s := (b.Condition-50)*0.2 + cov.Police*0.2 + cov.Fire*0.2 + cov.Education*0.1
	c.CustomerSatisfaction = lo.Clamp(c.CustomerSatisfaction+s, 0, 100)
}

func industrialDay(b *Building, cov Coverage, d *Delta) {
	in := b.Industrial
	eff := b.Condition * (1 + cov.Fire*0.2) * (1 + cov.Education*0.1)
	in.Efficiency = lo.Clamp(eff, 0, 100)

	target := roundInt(float64(in.MaxWorkers) * in.Efficiency / 100)
	in.Workers = approach(in.Workers, target, industrialWorkStep)

	in.DailyProduction = float64(in.Workers) * in.ProductionRate * (in.Efficiency / 100)
	d.IndustrialTax = in.DailyProduction * IndustrialTaxRate

	// Pollution only accumulates.
	in.DailyPollution = in.DailyProduction * 0.1 * (1 - in.Efficiency/100)
	in.Pollution = min(MaxPollution, in.Pollution+in.DailyPollution)
	d.HappinessDrag = in.Pollution * 0.1
}

// approach moves cur toward target by at most step without overshooting.
func approach(cur, target, step int) int {
	switch {
	case target > cur:
		return min(target, cur+step)
	case target < cur:
		return max(target, cur-step)
	}
	return cur
}

// roundInt rounds half to even.
func roundInt(v float64) int {
	return int(math.RoundToEven(v))
}

func scaleCapacity(n int) int {
	return roundInt(float64(n) * UpgradeCapacity)
}
