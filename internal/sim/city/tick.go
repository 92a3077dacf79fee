package city

import (
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// DayReport summarizes one daily pass.
type DayReport struct {
	City string `json:"city"`
	Day  int    `json:"day"`

	BudgetBefore  float64 `json:"budget_before"`
	BudgetAfter   float64 `json:"budget_after"`
	Upkeep        float64 `json:"upkeep"`
	CommercialTax float64 `json:"commercial_tax"`
	IndustrialTax float64 `json:"industrial_tax"`
	CitizenTax    float64 `json:"citizen_tax"`
	Expenses      float64 `json:"expenses"`

	Population int      `json:"population"`
	Happiness  float64  `json:"happiness"`
	Coverage   Coverage `json:"coverage"`

	Buildings            int      `json:"buildings"`
	Operational          int      `json:"operational"`
	BecameNonOperational []string `json:"became_non_operational,omitempty"`

	Digest string `json:"digest"`
}

type DaySink interface {
	WriteDay(DayReport) error
}

// DaySinkFunc adapts a function to DaySink.
type DaySinkFunc func(DayReport) error

func (f DaySinkFunc) WriteDay(r DayReport) error { return f(r) }

// dailyPass runs one day's update for the day already stored in c.state.Day.
// Phase one updates each building in isolation; phase two reduces the deltas
// into State; then city-level aggregation runs on the post-tick population.
func (c *City) dailyPass() DayReport {
	cov := c.state.Coverage
	rep := DayReport{
		City:         c.cfg.Name,
		Day:          c.state.Day,
		BudgetBefore: c.state.Budget,
	}

	deltas := make([]Delta, 0, len(c.buildings))
	for _, b := range c.buildings {
		if d, ok := b.dailyUpdate(cov); ok {
			deltas = append(deltas, d)
		}
	}
	red := reduce(&c.state, deltas, c.buildings)

	rep.CitizenTax = float64(c.state.Population) * c.cfg.Tuning.TaxPerCitizen
	rep.Expenses = c.cfg.Tuning.CityExpensePerDay
	c.state.Budget += rep.CitizenTax - rep.Expenses
	c.recomputeCoverage()
	c.state.Happiness = lo.Clamp(c.state.Happiness, 0, 100)

	rep.BudgetAfter = c.state.Budget
	rep.Upkeep = red.Upkeep
	rep.CommercialTax = red.CommercialTax
	rep.IndustrialTax = red.IndustrialTax
	rep.Population = c.state.Population
	rep.Happiness = c.state.Happiness
	rep.Coverage = c.state.Coverage
	rep.Buildings = len(c.buildings)
	rep.Operational = lo.CountBy(c.buildings, func(b *Building) bool { return b.Operational })
	rep.BecameNonOperational = red.WentDown
	rep.Digest = c.Digest()

	log := c.log.WithFields(logrus.Fields{
		"day":        rep.Day,
		"budget":     rep.BudgetAfter,
		"population": rep.Population,
		"happiness":  rep.Happiness,
	})
	log.Debug("day complete")
	for _, id := range red.WentDown {
		c.log.WithFields(logrus.Fields{"day": rep.Day, "building_id": id}).Info("building no longer operational")
	}
	for _, s := range c.cfg.DaySinks {
		if err := s.WriteDay(rep); err != nil {
			log.WithError(err).Warn("day sink failed")
		}
	}
	return rep
}

func (c *City) maybeAutosave(dayBefore, dayAfter int) {
	n := c.cfg.Tuning.AutosaveEveryDays
	if n <= 0 || c.cfg.Autosave == nil {
		return
	}
	if dayAfter/n == dayBefore/n {
		return
	}
	select {
	case c.cfg.Autosave <- c.Snapshot():
	default:
		c.log.WithField("day", dayAfter).Warn("autosave dropped")
	}
}
