// Package control turns wire commands into city operations. It owns the
// boundary between the simulation goroutine and slot storage: snapshots are
// taken inside the loop, disk and database work happens outside it.
package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"citysim/internal/persistence/slots"
	"citysim/internal/persistence/snapshot"
	"citysim/internal/protocol"
	"citysim/internal/sim/city"
)

// SaveRecorder is told about every successful slot write (indexdb.SQLiteIndex).
type SaveRecorder interface {
	RecordSave(slot string, save snapshot.SaveV1)
}

type Config struct {
	City  *city.City
	Slots slots.Store
	Index SaveRecorder
	// Publish, if set, receives a fresh view after commands that change the city.
	Publish func(city.StateView)
	Logger  logrus.FieldLogger
}

type Controller struct {
	city    *city.City
	slots   slots.Store
	index   SaveRecorder
	publish func(city.StateView)
	log     logrus.FieldLogger
}

func New(cfg Config) (*Controller, error) {
	if cfg.City == nil {
		return nil, fmt.Errorf("control: nil city")
	}
	if cfg.Slots == nil {
		return nil, fmt.Errorf("control: nil slot store")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Controller{
		city:    cfg.City,
		slots:   cfg.Slots,
		index:   cfg.Index,
		publish: cfg.Publish,
		log:     cfg.Logger.WithField("component", "control"),
	}, nil
}

func (c *Controller) City() *city.City { return c.city }

// Handle runs one validated command and builds its RESULT.
func (c *Controller) Handle(ctx context.Context, cmd protocol.Command) protocol.ResultMsg {
	res, _ := c.Dispatch(ctx, cmd)
	return res
}

// Dispatch is Handle that also returns the underlying error, for callers that
// distinguish failures the wire codes do not, such as a stopped loop.
func (c *Controller) Dispatch(ctx context.Context, cmd protocol.Command) (protocol.ResultMsg, error) {
	var (
		res   protocol.ResultMsg
		err   error
		built *city.Building
		saves []string
	)
	switch cmd.Type {
	case protocol.TypePlace:
		var b city.Building
		b, err = c.Place(ctx, cmd.Kind, cmd.Pos, cmd.Rot)
		if err == nil {
			built = &b
		}
	case protocol.TypeRemove:
		err = c.mutate(ctx, func(cy *city.City) error { return cy.RemoveBuilding(cmd.BuildingID) })
	case protocol.TypeRepair:
		err = c.mutate(ctx, func(cy *city.City) error { return cy.Repair(cmd.BuildingID) })
	case protocol.TypeUpgrade:
		err = c.mutate(ctx, func(cy *city.City) error { return cy.Upgrade(cmd.BuildingID) })
	case protocol.TypePreview:
		err = c.mutate(ctx, func(cy *city.City) error { return cy.SetPreview(cmd.BuildingID, cmd.On) })
	case protocol.TypeSetTimeScale:
		err = c.mutate(ctx, func(cy *city.City) error { cy.SetTimeScale(cmd.Scale); return nil })
	case protocol.TypePause:
		err = c.mutate(ctx, func(cy *city.City) error { cy.Pause(); return nil })
	case protocol.TypeResume:
		err = c.mutate(ctx, func(cy *city.City) error { cy.Resume(); return nil })
	case protocol.TypeSave:
		_, err = c.Save(ctx, cmd.Slot)
	case protocol.TypeLoad:
		err = c.Load(ctx, cmd.Slot)
	case protocol.TypeListSaves:
		saves, err = c.slots.List()
	case protocol.TypeDeleteSave:
		err = c.slots.Delete(cmd.Slot)
	default:
		err = fmt.Errorf("%w: unknown command %q", protocol.ErrInvalidMessage, cmd.Type)
	}

	res = protocol.NewResult(cmd, err)
	if built != nil {
		v := protocol.NewBuildingView(*built)
		res.Building = &v
	}
	if cmd.Type == protocol.TypeListSaves && err == nil {
		res.Saves = saves
		if res.Saves == nil {
			res.Saves = []string{}
		}
	}
	if err != nil && res.Code == protocol.ErrInternal {
		c.log.WithError(err).WithField("command", cmd.Type).Error("command failed")
	}
	return res, err
}

// Place parses kind and places a building through the city loop.
func (c *Controller) Place(ctx context.Context, kind string, pos [3]float64, rot [4]float64) (city.Building, error) {
	k, err := city.ParseKind(kind)
	if err != nil {
		return city.Building{}, err
	}
	var b city.Building
	err = c.mutate(ctx, func(cy *city.City) error {
		var perr error
		b, perr = cy.PlaceBuilding(k, city.Vec3{X: pos[0], Y: pos[1], Z: pos[2]}, city.Quat{X: rot[0], Y: rot[1], Z: rot[2], W: rot[3]})
		return perr
	})
	return b, err
}

// Save snapshots the city between frames and writes it to slot.
func (c *Controller) Save(ctx context.Context, slot string) (snapshot.SaveV1, error) {
	slot = strings.TrimSpace(slot)
	if err := slots.ValidateName(slot); err != nil {
		return snapshot.SaveV1{}, err
	}
	var save snapshot.SaveV1
	if err := c.city.Exec(ctx, func(cy *city.City) error {
		save = cy.Snapshot()
		return nil
	}); err != nil {
		return snapshot.SaveV1{}, err
	}
	if err := c.StoreSave(slot, save); err != nil {
		return snapshot.SaveV1{}, err
	}
	return save, nil
}

// StoreSave writes an already captured snapshot; used for autosaves too.
func (c *Controller) StoreSave(slot string, save snapshot.SaveV1) error {
	if err := c.slots.Save(slot, save); err != nil {
		c.log.WithError(err).WithField("slot", slot).Warn("save failed")
		return err
	}
	if c.index != nil {
		c.index.RecordSave(slot, save)
	}
	c.log.WithFields(logrus.Fields{"slot": slot, "day": save.Day}).Info("city saved")
	return nil
}

// Load reads slot and restores it between frames. A rejected save leaves the
// running city untouched.
func (c *Controller) Load(ctx context.Context, slot string) error {
	save, err := c.slots.Load(strings.TrimSpace(slot))
	if err != nil {
		return err
	}
	return c.mutate(ctx, func(cy *city.City) error {
		if err := cy.Restore(save); err != nil {
			return fmt.Errorf("load %q: %w", slot, err)
		}
		return nil
	})
}

// RunAutosave stores every snapshot from ch under the city's autosave slot
// until ctx is done or ch is closed.
func (c *Controller) RunAutosave(ctx context.Context, ch <-chan snapshot.SaveV1) {
	slot := slots.AutosaveName(c.city.Name())
	for {
		select {
		case <-ctx.Done():
			return
		case save, ok := <-ch:
			if !ok {
				return
			}
			_ = c.StoreSave(slot, save)
		}
	}
}

// View reads the current state between frames.
func (c *Controller) View(ctx context.Context) (city.StateView, error) {
	var v city.StateView
	err := c.city.Exec(ctx, func(cy *city.City) error {
		v = cy.View()
		return nil
	})
	return v, err
}

// Building reads one building and its display stats between frames.
func (c *Controller) Building(ctx context.Context, id string) (city.Building, city.DisplayStats, error) {
	var (
		b  city.Building
		ds city.DisplayStats
	)
	err := c.city.Exec(ctx, func(cy *city.City) error {
		var err error
		if ds, err = cy.DisplayStats(id); err != nil {
			return err
		}
		b, _ = cy.Building(id)
		return nil
	})
	return b, ds, err
}

func (c *Controller) Slots() slots.Store { return c.slots }

// mutate runs fn in the loop and, on success, publishes the new view.
func (c *Controller) mutate(ctx context.Context, fn func(*city.City) error) error {
	var v city.StateView
	err := c.city.Exec(ctx, func(cy *city.City) error {
		if err := fn(cy); err != nil {
			return err
		}
		v = cy.View()
		return nil
	})
	if err == nil && c.publish != nil {
		c.publish(v)
	}
	return err
}
