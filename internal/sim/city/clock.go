package city

import (
	"math"
	"time"

	"github.com/samber/lo"

	"citysim/internal/sim/tuning"
)

// Tick advances game time by realDelta scaled by the time scale and runs the
// daily pass for each day boundary crossed. Under the collapse policy several
// crossings in one step run a single pass. GameTime wraps to 0 on any
// crossing. It returns the number of days the calendar advanced.
func (c *City) Tick(realDelta time.Duration) int {
	days, _ := c.advance(realDelta)
	return days
}

func (c *City) advance(realDelta time.Duration) (int, []DayReport) {
	if c.state.Paused() || realDelta <= 0 {
		return 0, nil
	}
	c.state.GameTime += realDelta.Seconds() * c.cfg.Tuning.HoursPerSecond * c.state.TimeScale
	if c.state.GameTime < HoursPerDay {
		return 0, nil
	}
	crossings := int(c.state.GameTime / HoursPerDay)
	c.state.GameTime = 0

	before := c.state.Day
	var reps []DayReport
	switch c.cfg.Tuning.DaySkipPolicy {
	case tuning.DaySkipCollapse:
		c.state.Day += crossings
		reps = append(reps, c.dailyPass())
	default:
		for i := 0; i < crossings; i++ {
			c.state.Day++
			reps = append(reps, c.dailyPass())
		}
	}
	c.maybeAutosave(before, c.state.Day)
	return crossings, reps
}

// SetTimeScale clamps s to [0,3]; 0 pauses the clock.
func (c *City) SetTimeScale(s float64) {
	if math.IsNaN(s) {
		s = 0
	}
	c.state.TimeScale = lo.Clamp(s, 0, MaxTimeScale)
}

func (c *City) Pause()  { c.state.TimeScale = 0 }
func (c *City) Resume() { c.state.TimeScale = 1 }

// AdvanceDay runs the next day's pass immediately, ignoring the clock and
// pause state. Offline tools use it to project a city forward.
func (c *City) AdvanceDay() DayReport {
	c.state.GameTime = 0
	c.state.Day++
	return c.dailyPass()
}
