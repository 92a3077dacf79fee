package city

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/snapshot"
	"citysim/internal/sim/tuning"
)

type Config struct {
	Name   string
	Tuning tuning.Tuning

	// Coverage defaults to the policy named in Tuning.Coverage.
	Coverage CoveragePolicy

	Logger logrus.FieldLogger
	Now    func() time.Time
	NewID  func() string

	// DaySinks receive a report after every daily pass. Errors are logged, not returned.
	DaySinks []DaySink
	// StateSinks are published from Run after daily passes and every StateEveryFrames frames.
	StateSinks []StateSink
	// Autosave receives a snapshot every AutosaveEveryDays days. Sends never block.
	Autosave chan<- snapshot.SaveV1
}

func (c *Config) applyDefaults() error {
	if c.Name == "" {
		c.Name = "city"
	}
	if c.Tuning.Buildings == nil {
		c.Tuning = tuning.Defaults()
	}
	c.Tuning.Normalize()
	if err := c.Tuning.Validate(); err != nil {
		return err
	}
	if c.Coverage == nil {
		p, err := CoveragePolicyFor(c.Tuning.Coverage)
		if err != nil {
			return err
		}
		c.Coverage = p
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	return nil
}

// City owns one city's state and building registry. It is not safe for
// concurrent use: while Run is active, other goroutines go through Exec.
type City struct {
	cfg Config
	log logrus.FieldLogger

	state     State
	buildings []*Building
	byID      map[string]*Building

	frame    uint64
	reqs     chan request
	stop     chan struct{}
	stopOnce sync.Once
}

func New(cfg Config) (*City, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	c := &City{
		cfg:  cfg,
		log:  cfg.Logger.WithField("city", cfg.Name),
		byID: map[string]*Building{},
		reqs: make(chan request, 64),
		stop: make(chan struct{}),
	}
	c.state = State{
		Day:       1,
		TimeScale: cfg.Tuning.StartTimeScale,
		Budget:    cfg.Tuning.StartBudget,
		Happiness: cfg.Tuning.StartHappiness,
	}
	c.state.Coverage = cfg.Coverage.Recompute(Coverage{}, nil)
	return c, nil
}

func (c *City) Name() string           { return c.cfg.Name }
func (c *City) Tuning() tuning.Tuning  { return c.cfg.Tuning }
func (c *City) State() State           { return c.state }
func (c *City) Frame() uint64          { return c.frame }
func (c *City) CoveragePolicy() string { return c.cfg.Coverage.Name() }

// SetCoverage overrides the stored coverage. With the static policy the value
// persists; other policies replace it on their next recompute.
func (c *City) SetCoverage(cov Coverage) {
	c.state.Coverage = cov
}

// Buildings returns copies in placement order.
func (c *City) Buildings() []Building {
	out := make([]Building, 0, len(c.buildings))
	for _, b := range c.buildings {
		out = append(out, b.clone())
	}
	return out
}

func (c *City) Building(id string) (Building, bool) {
	b, ok := c.byID[id]
	if !ok {
		return Building{}, false
	}
	return b.clone(), true
}

func (c *City) recomputeCoverage() {
	c.state.Coverage = c.cfg.Coverage.Recompute(c.state.Coverage, c.buildings)
}
