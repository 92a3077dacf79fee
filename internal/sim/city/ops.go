package city

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"
)

// DisplayStats is what a presentation layer shows for one building.
type DisplayStats struct {
	ID          string  `json:"id"`
	Kind        Kind    `json:"kind"`
	Name        string  `json:"name"`
	Cost        float64 `json:"cost"`
	Efficiency  float64 `json:"efficiency"`
	Condition   float64 `json:"condition"`
	Operational bool    `json:"operational"`
}

// PlaceBuilding deducts the kind's cost and registers a new building at pos.
// Position is expected to be grid-snapped already.
func (c *City) PlaceBuilding(kind Kind, pos Vec3, rot Quat) (Building, error) {
	bt, ok := c.cfg.Tuning.Buildings[kind.String()]
	if !ok {
		return Building{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if c.state.Budget < bt.Cost {
		c.log.WithFields(logrus.Fields{"kind": kind, "cost": bt.Cost, "budget": c.state.Budget}).Info("placement rejected")
		return Building{}, fmt.Errorf("place %s: %w", kind, ErrInsufficientFunds)
	}
	b := newBuilding(c.cfg.NewID(), kind, bt)
	b.Pos = pos
	if rot != (Quat{}) {
		b.Rot = rot
	}
	c.state.Budget -= bt.Cost
	c.register(b)
	c.recomputeCoverage()
	c.log.WithFields(logrus.Fields{"building_id": b.ID, "kind": kind}).Debug("building placed")
	return b.clone(), nil
}

// RemoveBuilding drops a building without refund.
func (c *City) RemoveBuilding(id string) error {
	i := slices.IndexFunc(c.buildings, func(b *Building) bool { return b.ID == id })
	if i < 0 {
		return fmt.Errorf("remove %q: %w", id, ErrBuildingNotFound)
	}
	c.buildings = slices.Delete(c.buildings, i, i+1)
	delete(c.byID, id)
	c.state.Population = residents(c.buildings)
	c.recomputeCoverage()
	c.log.WithField("building_id", id).Debug("building removed")
	return nil
}

// Repair restores a building to full condition if the budget covers
// (100-condition)*100. There are no partial repairs.
func (c *City) Repair(id string) error {
	b, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("repair %q: %w", id, ErrBuildingNotFound)
	}
	cost := b.RepairCost()
	if c.state.Budget < cost {
		c.log.WithFields(logrus.Fields{"building_id": id, "cost": cost, "budget": c.state.Budget}).Info("repair rejected")
		return fmt.Errorf("repair %q: %w", id, ErrInsufficientFunds)
	}
	c.state.Budget -= cost
	b.repair()
	c.recomputeCoverage()
	return nil
}

func (c *City) Upgrade(id string) error {
	b, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("upgrade %q: %w", id, ErrBuildingNotFound)
	}
	cost := b.UpgradeCost()
	if c.state.Budget < cost {
		c.log.WithFields(logrus.Fields{"building_id": id, "cost": cost, "budget": c.state.Budget}).Info("upgrade rejected")
		return fmt.Errorf("upgrade %q: %w", id, ErrInsufficientFunds)
	}
	c.state.Budget -= cost
	b.upgrade()
	return nil
}

// SetPreview toggles the presentational preview flag. It has no economic effect.
func (c *City) SetPreview(id string, on bool) error {
	b, ok := c.byID[id]
	if !ok {
		return fmt.Errorf("preview %q: %w", id, ErrBuildingNotFound)
	}
	b.Preview = on
	return nil
}

func (c *City) DisplayStats(id string) (DisplayStats, error) {
	b, ok := c.byID[id]
	if !ok {
		return DisplayStats{}, fmt.Errorf("stats %q: %w", id, ErrBuildingNotFound)
	}
	return DisplayStats{
		ID:          b.ID,
		Kind:        b.Kind,
		Name:        b.Stats.Name,
		Cost:        b.Stats.Cost,
		Efficiency:  b.Efficiency,
		Condition:   b.Condition,
		Operational: b.Operational,
	}, nil
}

func (c *City) register(b *Building) {
	c.buildings = append(c.buildings, b)
	c.byID[b.ID] = b
}
