package city

import (
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citysim/internal/sim/tuning"
)

const oneDay = 24 * time.Second // one game day at 1 hour per second, scale 1

func newCityForTest(t *testing.T, mutate func(*Config)) (*City, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	n := 0
	cfg := Config{
		Name:   "springfield",
		Tuning: tuning.Defaults(),
		Logger: logger,
		Now:    func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			n++
			return fmt.Sprintf("b%03d", n)
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return c, hook
}

func TestNew_StartState(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	s := c.State()
	assert.Equal(t, 1, s.Day)
	assert.Equal(t, 1_000_000.0, s.Budget)
	assert.Equal(t, 50.0, s.Happiness)
	assert.Equal(t, 0, s.Population)
	assert.Equal(t, 1.0, s.TimeScale)
	assert.Equal(t, Coverage{}, s.Coverage)
	assert.Equal(t, tuning.CoverageStatic, c.CoveragePolicy())
}

func TestPlaceBuilding_DeductsCost(t *testing.T) {
	c, _ := newCityForTest(t, nil)

	b, err := c.PlaceBuilding(KindResidential, Vec3{X: 4, Z: 8}, Quat{})
	require.NoError(t, err)

	assert.Equal(t, 950_000.0, c.State().Budget)
	assert.Len(t, c.Buildings(), 1)
	assert.Equal(t, "b001", b.ID)
	assert.Equal(t, IdentityQuat, b.Rot)
	assert.Equal(t, Vec3{X: 4, Z: 8}, b.Pos)
	require.NotNil(t, b.Residential)
	assert.Equal(t, 100, b.Residential.MaxResidents)
	assert.Nil(t, b.Commercial)
	assert.Nil(t, b.Industrial)
}

func TestPlaceBuilding_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	c, hook := newCityForTest(t, func(cfg *Config) { cfg.Tuning.StartBudget = 49_999 })
	before := c.Digest()

	_, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, before, c.Digest())
	assert.Empty(t, c.Buildings())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "placement rejected", hook.LastEntry().Message)
}

func TestPlaceBuilding_UnknownKind(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	_, err := c.PlaceBuilding(Kind("CASINO"), Vec3{}, Quat{})
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDailyPass_ResidentialFirstDay(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)

	var reports []DayReport
	c.cfg.DaySinks = append(c.cfg.DaySinks, DaySinkFunc(func(r DayReport) error {
		reports = append(reports, r)
		return nil
	}))

	require.Equal(t, 1, c.Tick(oneDay))

	got, ok := c.Building(b.ID)
	require.True(t, ok)
	assert.InDelta(t, 99.9, got.Condition, 1e-9)
	assert.True(t, got.Operational)
	assert.InDelta(t, 99.9, got.Residential.Efficiency, 1e-9)
	assert.Equal(t, 2, got.Residential.Residents)

	s := c.State()
	assert.Equal(t, 2, s.Day)
	assert.Equal(t, 0.0, s.GameTime)
	assert.Equal(t, 2, s.Population)
	// 950000 - 1006.5 upkeep + 2 citizens * 10.
	assert.InDelta(t, 949_013.5, s.Budget, 1e-6)
	assert.InDelta(t, 59.98, s.Happiness, 1e-9)

	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, 2, r.Day)
	assert.InDelta(t, 1006.5, r.Upkeep, 1e-9)
	assert.InDelta(t, 20.0, r.CitizenTax, 1e-9)
	assert.Equal(t, 950_000.0, r.BudgetBefore)
	assert.Equal(t, s.Budget, r.BudgetAfter)
	assert.Equal(t, 1, r.Operational)
	assert.Equal(t, c.Digest(), r.Digest)
}

func TestDailyPass_NoTickNoBudgetChange(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	_, err := c.PlaceBuilding(KindIndustrial, Vec3{}, Quat{})
	require.NoError(t, err)

	assert.Equal(t, 0, c.Tick(23*time.Second))
	assert.Equal(t, 900_000.0, c.State().Budget)
	assert.Equal(t, 23.0, c.State().GameTime)
}

func TestDailyPass_ResidentsGrowTwoPerDayWithoutOvershoot(t *testing.T) {
	c, _ := newCityForTest(t, func(cfg *Config) {
		bt := cfg.Tuning.Buildings["RESIDENTIAL"]
		bt.MaxResidents = 5
		cfg.Tuning.Buildings["RESIDENTIAL"] = bt
	})
	b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)

	want := []int{2, 4, 5, 5}
	for i, w := range want {
		c.Tick(oneDay)
		got, _ := c.Building(b.ID)
		assert.Equal(t, w, got.Residential.Residents, "day %d", i+1)
		assert.Equal(t, w, c.State().Population, "day %d", i+1)
	}
}

func TestDailyPass_CommercialFirstDay(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindCommercial, Vec3{}, Quat{})
	require.NoError(t, err)
	before := c.State().Budget

	c.Tick(oneDay)

	got, _ := c.Building(b.ID)
	cm := got.Commercial
	require.NotNil(t, cm)
	assert.Equal(t, 1, cm.Workers)
	assert.InDelta(t, 99.9, cm.DailyIncome, 1e-9)
	assert.InDelta(t, 59.98, cm.CustomerSatisfaction, 1e-9)

	upkeep := 1500 + 75*0.1 + 40*0.05
	assert.InDelta(t, before-upkeep+99.9*0.1, c.State().Budget, 1e-6)
	// Commercial buildings do not touch happiness.
	assert.Equal(t, 50.0, c.State().Happiness)
}

func TestDailyPass_IndustrialPollutionMonotonicAndCapped(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindIndustrial, Vec3{}, Quat{})
	require.NoError(t, err)

	prev := 0.0
	for day := 1; day <= 250; day++ {
		c.Tick(oneDay)
		got, _ := c.Building(b.ID)
		in := got.Industrial
		require.True(t, got.Operational, "day %d", day)
		require.Less(t, in.Efficiency, 100.0, "day %d", day)
		require.GreaterOrEqual(t, in.Pollution, prev, "day %d", day)
		require.LessOrEqual(t, in.Pollution, MaxPollution, "day %d", day)
		prev = in.Pollution
	}
	assert.Equal(t, MaxPollution, prev)
	// A capped factory drags happiness by 10 per day.
	assert.Equal(t, 0.0, c.State().Happiness)
}

func TestDailyPass_BuildingGoesDownBelowThreshold(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	c.byID[b.ID].Condition = 20.05
	c.byID[b.ID].Residential.Residents = 10

	var last DayReport
	c.cfg.DaySinks = []DaySink{DaySinkFunc(func(r DayReport) error { last = r; return nil })}

	budget := c.State().Budget
	c.Tick(oneDay)

	got, _ := c.Building(b.ID)
	assert.False(t, got.Operational)
	assert.Equal(t, 0.0, got.Efficiency)
	assert.InDelta(t, 19.95, got.Condition, 1e-9)
	// Upkeep is still paid on the day it goes down; residents stay put.
	assert.InDelta(t, budget-1006.5+100, c.State().Budget, 1e-6)
	assert.Equal(t, []string{b.ID}, last.BecameNonOperational)
	assert.Equal(t, 0, last.Operational)

	budget = c.State().Budget
	c.Tick(oneDay)
	after, _ := c.Building(b.ID)
	assert.Equal(t, got.Condition, after.Condition)
	assert.Equal(t, budget+100, c.State().Budget)
}

func TestDailyPass_ConditionNeverBelowZero(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindSchool, Vec3{}, Quat{})
	require.NoError(t, err)
	c.byID[b.ID].Condition = 0.05
	c.byID[b.ID].Operational = true

	c.Tick(oneDay)
	got, _ := c.Building(b.ID)
	assert.Equal(t, 0.0, got.Condition)
	assert.False(t, got.Operational)
}

func TestRepair(t *testing.T) {
	t.Run("no-op without funds", func(t *testing.T) {
		c, _ := newCityForTest(t, nil)
		b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
		require.NoError(t, err)
		c.byID[b.ID].Condition = 50
		c.state.Budget = 0

		require.ErrorIs(t, c.Repair(b.ID), ErrInsufficientFunds)
		got, _ := c.Building(b.ID)
		assert.Equal(t, 50.0, got.Condition)
		assert.Equal(t, 0.0, c.State().Budget)
	})

	t.Run("restores a downed building", func(t *testing.T) {
		c, _ := newCityForTest(t, nil)
		b, err := c.PlaceBuilding(KindCommercial, Vec3{}, Quat{})
		require.NoError(t, err)
		mb := c.byID[b.ID]
		mb.Condition = 10
		mb.Operational = false
		mb.Efficiency = 0
		mb.Commercial.Efficiency = 0
		budget := c.State().Budget

		require.NoError(t, c.Repair(b.ID))
		got, _ := c.Building(b.ID)
		assert.Equal(t, MaxCondition, got.Condition)
		assert.True(t, got.Operational)
		assert.Equal(t, 100.0, got.Efficiency)
		assert.Equal(t, 100.0, got.Commercial.Efficiency)
		assert.Equal(t, budget-9000, c.State().Budget)
	})

	t.Run("unknown id", func(t *testing.T) {
		c, _ := newCityForTest(t, nil)
		require.ErrorIs(t, c.Repair("nope"), ErrBuildingNotFound)
	})
}

func TestUpgrade(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	res, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	com, err := c.PlaceBuilding(KindCommercial, Vec3{X: 1}, Quat{})
	require.NoError(t, err)
	ind, err := c.PlaceBuilding(KindIndustrial, Vec3{X: 2}, Quat{})
	require.NoError(t, err)

	budget := c.State().Budget
	require.NoError(t, c.Upgrade(res.ID))
	require.NoError(t, c.Upgrade(com.ID))
	require.NoError(t, c.Upgrade(ind.ID))
	assert.Equal(t, budget-25_000-37_500-50_000, c.State().Budget)

	r, _ := c.Building(res.ID)
	assert.Equal(t, 110.0, r.Efficiency)
	assert.Equal(t, 120, r.Residential.MaxResidents)
	assert.Equal(t, 5.0, r.Residential.HappinessBonus)

	cm, _ := c.Building(com.ID)
	assert.Equal(t, 60, cm.Commercial.MaxWorkers)
	assert.InDelta(t, 0.12, cm.Commercial.TaxRate, 1e-12)

	in, _ := c.Building(ind.ID)
	assert.Equal(t, 120, in.Industrial.MaxWorkers)
	assert.InDelta(t, 110, in.Industrial.ProductionRate, 1e-9)

	for i := 0; i < 10; i++ {
		c.state.Budget = 1e9
		require.NoError(t, c.Upgrade(res.ID))
	}
	r, _ = c.Building(res.ID)
	assert.Equal(t, MaxEfficiency, r.Efficiency)

	c.state.Budget = 10
	before := c.Digest()
	require.ErrorIs(t, c.Upgrade(res.ID), ErrInsufficientFunds)
	assert.Equal(t, before, c.Digest())
}

func TestUpgrade_DownedBuildingKeepsZeroEfficiency(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	c.byID[b.ID].Condition = 20.05
	c.Tick(oneDay)

	require.NoError(t, c.Upgrade(b.ID))
	c.Tick(oneDay)

	got, _ := c.Building(b.ID)
	assert.False(t, got.Operational)
	assert.Less(t, got.Condition, OperationalThreshold)
	assert.Equal(t, 0.0, got.Efficiency)
	assert.Equal(t, 120, got.Residential.MaxResidents)

	require.NoError(t, c.Repair(b.ID))
	require.NoError(t, c.Upgrade(b.ID))
	got, _ = c.Building(b.ID)
	assert.Equal(t, 110.0, got.Efficiency)
}

func TestSetPreview_HasNoEconomicEffect(t *testing.T) {
	a, _ := newCityForTest(t, nil)
	b, _ := newCityForTest(t, nil)
	for _, c := range []*City{a, b} {
		_, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
		require.NoError(t, err)
	}
	require.NoError(t, a.SetPreview("b001", true))
	require.ErrorIs(t, a.SetPreview("b999", true), ErrBuildingNotFound)

	for i := 0; i < 5; i++ {
		a.Tick(oneDay)
		b.Tick(oneDay)
	}
	assert.Equal(t, b.State(), a.State())
	got, _ := a.Building("b001")
	assert.True(t, got.Preview)
}

func TestRemoveBuilding(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	c.Tick(oneDay)
	require.Equal(t, 2, c.State().Population)

	require.NoError(t, c.RemoveBuilding(b.ID))
	assert.Empty(t, c.Buildings())
	assert.Equal(t, 0, c.State().Population)
	require.ErrorIs(t, c.RemoveBuilding(b.ID), ErrBuildingNotFound)
}

func TestDisplayStats(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	b, err := c.PlaceBuilding(KindHospital, Vec3{}, Quat{})
	require.NoError(t, err)

	got, err := c.DisplayStats(b.ID)
	require.NoError(t, err)
	assert.Equal(t, DisplayStats{
		ID: b.ID, Kind: KindHospital, Name: "Hospital", Cost: 120_000,
		Efficiency: 100, Condition: 100, Operational: true,
	}, got)

	_, err = c.DisplayStats("missing")
	require.ErrorIs(t, err, ErrBuildingNotFound)
}

func TestInvariants_HoldOverLongRun(t *testing.T) {
	c, _ := newCityForTest(t, func(cfg *Config) {
		cfg.Tuning.Coverage.Policy = tuning.CoverageServiceCount
	})
	for i, k := range Kinds {
		_, err := c.PlaceBuilding(k, Vec3{X: float64(i)}, Quat{})
		require.NoError(t, err)
	}
	for day := 0; day < 900; day++ {
		c.Tick(oneDay)
		s := c.State()
		require.GreaterOrEqual(t, s.Happiness, 0.0)
		require.LessOrEqual(t, s.Happiness, 100.0)
		pop := 0
		for _, b := range c.Buildings() {
			require.GreaterOrEqual(t, b.Condition, 0.0)
			require.LessOrEqual(t, b.Condition, MaxCondition)
			if b.Condition < OperationalThreshold {
				require.False(t, b.Operational)
				require.Equal(t, 0.0, b.Efficiency)
			}
			v := b.VariantEfficiency()
			require.GreaterOrEqual(t, v, 0.0)
			require.LessOrEqual(t, v, MaxEfficiency)
			if b.Residential != nil {
				pop += b.Residential.Residents
				require.LessOrEqual(t, b.Residential.Efficiency, 100.0)
			}
		}
		require.Equal(t, pop, s.Population)
	}
}
