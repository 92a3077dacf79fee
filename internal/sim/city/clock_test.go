package city

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citysim/internal/persistence/snapshot"
	"citysim/internal/sim/tuning"
)

func countDays(c *City) *int {
	n := 0
	c.cfg.DaySinks = append(c.cfg.DaySinks, DaySinkFunc(func(DayReport) error { n++; return nil }))
	return &n
}

func TestTick_MultiDaySkip(t *testing.T) {
	cases := []struct {
		policy string
		passes int
	}{
		{tuning.DaySkipEachBoundary, 3},
		{tuning.DaySkipCollapse, 1},
	}
	for _, tc := range cases {
		t.Run(tc.policy, func(t *testing.T) {
			c, _ := newCityForTest(t, func(cfg *Config) { cfg.Tuning.DaySkipPolicy = tc.policy })
			_, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
			require.NoError(t, err)
			passes := countDays(c)

			c.SetTimeScale(3)
			// 25s at 3x is 75 hours: three crossings, remainder dropped.
			assert.Equal(t, 3, c.Tick(25*time.Second))
			assert.Equal(t, 4, c.State().Day)
			assert.Equal(t, 0.0, c.State().GameTime)
			assert.Equal(t, tc.passes, *passes)

			b := c.Buildings()[0]
			assert.InDelta(t, 100-0.1*float64(tc.passes), b.Condition, 1e-9)
		})
	}
}

func TestTick_PausedDoesNothing(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	c.Pause()
	assert.True(t, c.State().Paused())
	before := c.Digest()

	assert.Equal(t, 0, c.Tick(time.Hour))
	assert.Equal(t, before, c.Digest())

	c.Resume()
	assert.Equal(t, 1.0, c.State().TimeScale)
	assert.Equal(t, 1, c.Tick(oneDay))
}

func TestSetTimeScale_Clamps(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	for in, want := range map[float64]float64{9: 3, -1: 0, 0.5: 0.5, 3: 3} {
		c.SetTimeScale(in)
		assert.Equal(t, want, c.State().TimeScale, "input %v", in)
	}
}

func TestTick_HoursPerSecondScalesGameTime(t *testing.T) {
	c, _ := newCityForTest(t, func(cfg *Config) { cfg.Tuning.HoursPerSecond = 2 })
	c.SetTimeScale(0.5)
	c.Tick(10 * time.Second)
	assert.Equal(t, 10.0, c.State().GameTime)
}

func TestTick_AutosaveEveryNDays(t *testing.T) {
	saves := make(chan snapshot.SaveV1, 4)
	c, _ := newCityForTest(t, func(cfg *Config) {
		cfg.Tuning.AutosaveEveryDays = 2
		cfg.Autosave = saves
	})
	for i := 0; i < 4; i++ {
		c.Tick(oneDay)
	}
	require.Len(t, saves, 2)
	first := <-saves
	second := <-saves
	assert.Equal(t, 2, first.Day)
	assert.Equal(t, 4, second.Day)
	assert.Equal(t, "springfield", first.Header.CityName)
}

func TestTick_AutosaveDropsWhenFull(t *testing.T) {
	saves := make(chan snapshot.SaveV1)
	c, hook := newCityForTest(t, func(cfg *Config) {
		cfg.Tuning.AutosaveEveryDays = 1
		cfg.Autosave = saves
	})
	c.Tick(oneDay)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "autosave dropped", hook.LastEntry().Message)
}

func TestAdvanceDay_IgnoresPause(t *testing.T) {
	c, _ := newCityForTest(t, nil)
	_, err := c.PlaceBuilding(KindResidential, Vec3{}, Quat{})
	require.NoError(t, err)
	c.Pause()
	c.state.GameTime = 13

	rep := c.AdvanceDay()
	assert.Equal(t, 2, rep.Day)
	assert.Equal(t, 2, c.State().Day)
	assert.Equal(t, 0.0, c.State().GameTime)
	assert.True(t, c.State().Paused())
	assert.Equal(t, c.Digest(), rep.Digest)
}

func TestNew_RejectsUnboundedClockRate(t *testing.T) {
	cfg := Config{Tuning: tuning.Defaults()}
	cfg.Tuning.HoursPerSecond = 1e308
	_, err := New(cfg)
	require.Error(t, err)
}
