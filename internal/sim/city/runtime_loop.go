package city

import (
	"context"
	"errors"
	"time"
)

var ErrStopped = errors.New("city stopped")

type request struct {
	fn   func(*City) error
	done chan error
}

// StateView is published to StateSinks from Run.
type StateView struct {
	City      string      `json:"city"`
	Frame     uint64      `json:"frame"`
	State     State       `json:"state"`
	Buildings []Building  `json:"-"`
	Reports   []DayReport `json:"reports,omitempty"`
}

type StateSink interface {
	PublishState(StateView)
}

// Run advances the clock at FrameRateHz until ctx is done or Stop is called.
// Requests queued through Exec run between frames, so they never observe a
// half-finished daily pass.
func (c *City) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.cfg.Tuning.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	c.log.WithField("frame_rate_hz", c.cfg.Tuning.FrameRateHz).Info("city running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stop:
			return nil
		case req := <-c.reqs:
			req.done <- req.fn(c)
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			c.step(dt)
		}
	}
}

func (c *City) step(dt time.Duration) {
	c.frame++
	_, reps := c.advance(dt)
	every := uint64(c.cfg.Tuning.StateEveryFrames)
	if len(reps) > 0 || (every > 0 && c.frame%every == 0) {
		c.publish(reps)
	}
}

func (c *City) publish(reps []DayReport) {
	if len(c.cfg.StateSinks) == 0 {
		return
	}
	v := StateView{
		City:      c.cfg.Name,
		Frame:     c.frame,
		State:     c.state,
		Buildings: c.Buildings(),
		Reports:   reps,
	}
	for _, s := range c.cfg.StateSinks {
		s.PublishState(v)
	}
}

// View returns the current state view without publishing it.
func (c *City) View() StateView {
	return StateView{City: c.cfg.Name, Frame: c.frame, State: c.state, Buildings: c.Buildings()}
}

// Exec runs fn on the goroutine that owns the city and returns its error.
// It blocks until Run picks the request up, ctx is done, or the city stops.
func (c *City) Exec(ctx context.Context, fn func(*City) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case c.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stop:
		return ErrStopped
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stop:
		return ErrStopped
	}
}

// Stop ends Run. It is safe to call more than once.
func (c *City) Stop() { c.stopOnce.Do(func() { close(c.stop) }) }
