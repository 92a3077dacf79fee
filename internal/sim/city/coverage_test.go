package city

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citysim/internal/sim/tuning"
)

func TestStaticCoverage_PersistsAcrossDays(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	_, err := c.PlaceBuilding(KindPoliceStation, Vec3{}, Quat{})
	require.NoError(t, err)
	assert.Equal(t, Coverage{}, c.State().Coverage)

	want := Coverage{Police: 0.4, Fire: 0.1, Education: 0.2, Healthcare: 0.3}
	c.SetCoverage(want)
	c.Tick(oneDay)
	assert.Equal(t, want, c.State().Coverage)
}

func TestServiceCountCoverage(t *testing.T) {
	c, _ := newCityForTest(t, func(cfg *Config) {
		cfg.Tuning.Coverage = tuning.CoverageTuning{Policy: tuning.CoverageServiceCount, PerBuilding: 0.25}
	})
	assert.Equal(t, tuning.CoverageServiceCount, c.CoveragePolicy())

	var police []string
	for i := 0; i < 5; i++ {
		b, err := c.PlaceBuilding(KindPoliceStation, Vec3{X: float64(i)}, Quat{})
		require.NoError(t, err)
		police = append(police, b.ID)
	}
	_, err := c.PlaceBuilding(KindSchool, Vec3{}, Quat{})
	require.NoError(t, err)

	cov := c.State().Coverage
	assert.Equal(t, 1.0, cov.Police)
	assert.Equal(t, 0.25, cov.Education)
	assert.Equal(t, 0.0, cov.Fire)
	assert.Equal(t, 0.0, cov.Healthcare)

	require.NoError(t, c.RemoveBuilding(police[0]))
	require.NoError(t, c.RemoveBuilding(police[1]))
	assert.Equal(t, 0.75, c.State().Coverage.Police)

	// A downed station stops counting at the next daily recompute.
	c.byID[police[2]].Condition = 20.05
	c.Tick(oneDay)
	assert.Equal(t, 0.5, c.State().Coverage.Police)

	require.NoError(t, c.Repair(police[2]))
	assert.Equal(t, 0.75, c.State().Coverage.Police)
}

func TestServiceCountCoverage_RaisesResidentialEfficiency(t *testing.T) {
	c, _ := newCityForTest(t, func(cfg *Config) {
		cfg.Tuning.Coverage = tuning.CoverageTuning{Policy: tuning.CoverageServiceCount, PerBuilding: 1}
	})
	res, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	c.byID[res.ID].Condition = 60.1

	_, err = c.PlaceBuilding(KindHospital, Vec3{X: 1}, Quat{})
	require.NoError(t, err)
	c.Tick(oneDay)

	got, _ := c.Building(res.ID)
	// 60 * 1.2 from full healthcare.
	assert.InDelta(t, 72, got.Residential.Efficiency, 1e-9)
	// (60-50)*0.2 + 1*0.3 = 2.3.
	assert.InDelta(t, 52.3, c.State().Happiness, 1e-9)
}

func TestCoveragePolicyFor(t *testing.T) {
	p, err := CoveragePolicyFor(tuning.CoverageTuning{})
	require.NoError(t, err)
	assert.IsType(t, StaticCoverage{}, p)

	p, err = CoveragePolicyFor(tuning.CoverageTuning{Policy: tuning.CoverageServiceCount, PerBuilding: 0.1})
	require.NoError(t, err)
	assert.Equal(t, ServiceCountCoverage{PerBuilding: 0.1}, p)

	_, err = CoveragePolicyFor(tuning.CoverageTuning{Policy: "distance"})
	require.Error(t, err)
}
