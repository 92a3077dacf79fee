package city

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/snapshot"
)

// Snapshot captures City State and the shared record of every building.
// Variant fields are not persisted; they rebuild on the next daily pass.
func (c *City) Snapshot() snapshot.SaveV1 {
	s := c.state
	out := snapshot.SaveV1{
		Header: snapshot.Header{
			Version:  snapshot.Version,
			CityName: c.cfg.Name,
			Day:      s.Day,
			SavedAt:  c.cfg.Now().UTC().Format(time.RFC3339),
		},
		GameTime:           s.GameTime,
		Day:                s.Day,
		TimeScale:          s.TimeScale,
		Budget:             s.Budget,
		Population:         s.Population,
		Happiness:          s.Happiness,
		PoliceCoverage:     s.Coverage.Police,
		FireCoverage:       s.Coverage.Fire,
		EducationCoverage:  s.Coverage.Education,
		HealthcareCoverage: s.Coverage.Healthcare,
		Buildings:          make([]snapshot.BuildingV1, 0, len(c.buildings)),
	}
	for _, b := range c.buildings {
		out.Buildings = append(out.Buildings, snapshot.BuildingV1{
			ID:          b.ID,
			Type:        b.Kind.String(),
			Pos:         [3]float64{b.Pos.X, b.Pos.Y, b.Pos.Z},
			Rot:         [4]float64{b.Rot.X, b.Rot.Y, b.Rot.Z, b.Rot.W},
			Condition:   b.Condition,
			Efficiency:  b.Efficiency,
			Operational: b.Operational,
		})
	}
	return out
}

// Restore replaces the whole city with save. The new building set is built
// and validated first; on any error the current city is left untouched.
func (c *City) Restore(save snapshot.SaveV1) error {
	st, bs, err := c.stage(save)
	if err != nil {
		c.log.WithError(err).WithField("slot_city", save.Header.CityName).Warn("restore rejected")
		return err
	}
	c.state = st
	c.buildings = bs
	c.byID = make(map[string]*Building, len(bs))
	for _, b := range bs {
		c.byID[b.ID] = b
	}
	c.log.WithFields(logrus.Fields{"day": st.Day, "buildings": len(bs)}).Info("city restored")
	return nil
}

func (c *City) stage(save snapshot.SaveV1) (State, []*Building, error) {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrMalformedSave, fmt.Sprintf(format, args...))
	}
	if save.Header.Version != 0 && save.Header.Version != snapshot.Version {
		return State{}, nil, bad("version %d", save.Header.Version)
	}
	if save.Day < 1 {
		return State{}, nil, bad("day %d", save.Day)
	}
	if save.Population < 0 {
		return State{}, nil, bad("population %d", save.Population)
	}
	for name, v := range map[string]float64{
		"game_time":           save.GameTime,
		"time_scale":          save.TimeScale,
		"budget":              save.Budget,
		"happiness":           save.Happiness,
		"police_coverage":     save.PoliceCoverage,
		"fire_coverage":       save.FireCoverage,
		"education_coverage":  save.EducationCoverage,
		"healthcare_coverage": save.HealthcareCoverage,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return State{}, nil, bad("%s is not finite", name)
		}
	}
	if save.GameTime < 0 || save.GameTime >= HoursPerDay {
		return State{}, nil, bad("game_time %v", save.GameTime)
	}

	st := State{
		GameTime:   save.GameTime,
		Day:        save.Day,
		TimeScale:  min(max(save.TimeScale, 0), MaxTimeScale),
		Budget:     save.Budget,
		Population: save.Population,
		Happiness:  min(max(save.Happiness, 0), 100),
		Coverage: Coverage{
			Police:     clamp01(save.PoliceCoverage),
			Fire:       clamp01(save.FireCoverage),
			Education:  clamp01(save.EducationCoverage),
			Healthcare: clamp01(save.HealthcareCoverage),
		},
	}

	seen := map[string]bool{}
	bs := make([]*Building, 0, len(save.Buildings))
	for i, rec := range save.Buildings {
		kind, err := ParseKind(rec.Type)
		if err != nil {
			return State{}, nil, fmt.Errorf("%w: building %d: %w", ErrMalformedSave, i, err)
		}
		if !finite(rec.Condition) || rec.Condition < 0 || rec.Condition > MaxCondition {
			return State{}, nil, fmt.Errorf("%w: building %d: condition %v", ErrMalformedSave, i, rec.Condition)
		}
		if !finite(rec.Efficiency) || rec.Efficiency < 0 || rec.Efficiency > MaxEfficiency {
			return State{}, nil, fmt.Errorf("%w: building %d: efficiency %v", ErrMalformedSave, i, rec.Efficiency)
		}
		if rec.Operational && rec.Condition < OperationalThreshold {
			return State{}, nil, fmt.Errorf("%w: building %d: operational at condition %v", ErrMalformedSave, i, rec.Condition)
		}
		if rec.Condition < OperationalThreshold && rec.Efficiency != 0 {
			return State{}, nil, fmt.Errorf("%w: building %d: efficiency %v at condition %v", ErrMalformedSave, i, rec.Efficiency, rec.Condition)
		}
		id := rec.ID
		if id == "" {
			id = c.cfg.NewID()
		}
		if seen[id] {
			return State{}, nil, fmt.Errorf("%w: duplicate building id %q", ErrMalformedSave, id)
		}
		seen[id] = true

		b := newBuilding(id, kind, c.cfg.Tuning.Buildings[kind.String()])
		b.Pos = Vec3{X: rec.Pos[0], Y: rec.Pos[1], Z: rec.Pos[2]}
		b.Rot = Quat{X: rec.Rot[0], Y: rec.Rot[1], Z: rec.Rot[2], W: rec.Rot[3]}
		b.Condition = rec.Condition
		b.Efficiency = rec.Efficiency
		b.Operational = rec.Operational
		bs = append(bs, b)
	}
	return st, bs, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func clamp01(v float64) float64 { return min(max(v, 0), 1) }
