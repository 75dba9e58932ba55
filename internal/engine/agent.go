package engine

import (
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/roach88/dining/internal/ring"
	"github.com/roach88/dining/internal/trace"
)

// agent is one philosopher. All fields except meals and done are owned by
// the agent's goroutine.
type agent struct {
	id       int
	pair     ring.Pair
	table    *ring.Ring
	thinkMax time.Duration
	eatMax   time.Duration
	stop     *StopSignal
	emit     func(trace.Event)
	rng      *rand.Rand
	logger   *slog.Logger

	state trace.State
	held  []int

	meals atomic.Int64
	done  atomic.Bool
}

func newAgent(id int, r *run) *agent {
	return &agent{
		id:       id,
		pair:     r.table.Pair(id),
		table:    r.table,
		thinkMax: r.cfg.ThinkMax,
		eatMax:   r.cfg.EatMax,
		stop:     r.stop,
		emit:     r.emit,
		rng:      rand.New(rand.NewPCG(r.seed, uint64(id))),
		logger:   r.logger.With("agent", id),
		state:    trace.StateIdle,
		held:     make([]int, 0, 2),
	}
}

// run drives the state machine until the stop signal is observed at a
// safe point. It returns a *FaultError if the agent leaves the state
// machine abnormally; whatever it still holds is put back first.
func (a *agent) run() (err error) {
	defer a.done.Store(true)
	// Install panic handler before executing agent code.
	defer func() {
		if x := recover(); x != nil {
			err = newPanicFault(a.id, x)
		}
	}()
	defer a.dropAll()

	a.transition(trace.StateThinking)
	for {
		a.pause(a.thinkMax, true)
		if a.stop.Stopped() {
			a.transition(trace.StateStopped)
			return nil
		}

		a.transition(trace.StateHungry)
		if err := a.take(a.pair.Low); err != nil {
			return newAgentFault(a.id, err)
		}
		if err := a.take(a.pair.High); err != nil {
			return newAgentFault(a.id, err)
		}
		if a.stop.Stopped() {
			if err := a.putBack(); err != nil {
				return newAgentFault(a.id, err)
			}
			a.transition(trace.StateStopped)
			return nil
		}

		a.transition(trace.StateEating)
		a.meals.Add(1)
		a.pause(a.eatMax, false)
		if err := a.putBack(); err != nil {
			return newAgentFault(a.id, err)
		}
		if a.stop.Stopped() {
			a.transition(trace.StateStopped)
			return nil
		}
		a.transition(trace.StateThinking)
	}
}

func (a *agent) transition(to trace.State) {
	from := a.state
	a.state = to
	a.emit(trace.Transition(a.id, from, to))
}

func (a *agent) take(idx int) error {
	if err := a.table.Acquire(a.id, idx); err != nil {
		return err
	}
	a.held = append(a.held, idx)
	return nil
}

// putBack releases every held utensil, most recently taken first.
func (a *agent) putBack() error {
	for len(a.held) > 0 {
		idx := a.held[len(a.held)-1]
		if err := a.table.Release(a.id, idx); err != nil {
			return err
		}
		a.held = a.held[:len(a.held)-1]
	}
	return nil
}

// dropAll is the abnormal-exit path: neighbours must not be left waiting
// on a utensil held by a dead agent.
func (a *agent) dropAll() {
	if len(a.held) == 0 {
		return
	}
	a.logger.Warn("agent exiting while holding utensils", "held", a.held)
	for _, idx := range a.held {
		if err := a.table.Release(a.id, idx); err != nil {
			a.logger.Error("could not put utensil back", "utensil", idx, "error", err)
		}
	}
	a.held = a.held[:0]
}

// pause sleeps for a random duration in (0, limit]. Only pauses that hold
// no utensil may be interrupted by the stop signal.
func (a *agent) pause(limit time.Duration, interruptible bool) {
	d := randomDuration(a.rng, limit)
	timer := time.NewTimer(d)
	defer timer.Stop()
	if !interruptible {
		<-timer.C
		return
	}
	select {
	case <-timer.C:
	case <-a.stop.Done():
	}
}

// randomDuration draws uniformly from (0, limit].
func randomDuration(rng *rand.Rand, limit time.Duration) time.Duration {
	return time.Duration(1 + rng.Int64N(int64(limit)))
}
