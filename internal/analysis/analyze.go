package analysis

import (
	"fmt"

	"github.com/roach88/dining/internal/ring"
	"github.com/roach88/dining/internal/trace"
)

// legal lists every transition of the agent state machine.
var legal = map[[2]trace.State]bool{
	{trace.StateIdle, trace.StateThinking}:    true,
	{trace.StateThinking, trace.StateHungry}:  true,
	{trace.StateThinking, trace.StateStopped}: true,
	{trace.StateHungry, trace.StateEating}:    true,
	{trace.StateHungry, trace.StateStopped}:   true,
	{trace.StateEating, trace.StateThinking}:  true,
	{trace.StateEating, trace.StateStopped}:   true,
}

type agentState struct {
	state trace.State
	// dining is true from hungry -> eating until the first utensil is put
	// back. Releases are emitted before the eating -> thinking transition,
	// so the state alone would overstate the meal.
	dining  bool
	episode []int
}

// Analyze checks a trace of a run with the given number of agents. If
// agents is not positive it is inferred from the highest agent index seen.
// The events need not be sorted; they are replayed in seq order.
func Analyze(events []trace.Event, agents int) *Report {
	events = append([]trace.Event(nil), events...)
	trace.SortBySeq(events)
	if agents <= 0 {
		for _, e := range events {
			agents = max(agents, e.Agent+1)
		}
	}

	rep := &Report{
		Agents:   agents,
		Events:   len(events),
		Meals:    make([]int64, agents),
		Findings: []Finding{},
	}
	if len(events) > 0 {
		rep.RunID = events[0].RunID
		rep.Span = events[len(events)-1].At.Sub(events[0].At)
	}

	a := &analyzer{
		rep:     rep,
		n:       agents,
		agents:  make([]agentState, agents),
		holders: make([]int, agents),
	}
	for i := range a.holders {
		a.holders[i] = ring.Free
	}
	for _, e := range events {
		a.step(e)
	}
	a.finish()
	return rep
}

type analyzer struct {
	rep     *Report
	n       int
	agents  []agentState
	holders []int
}

func (a *analyzer) report(kind FindingKind, e trace.Event, format string, args ...any) {
	a.rep.Findings = append(a.rep.Findings, Finding{
		Kind:   kind,
		Seq:    e.Seq,
		Agent:  e.Agent,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (a *analyzer) step(e trace.Event) {
	if e.Agent < 0 || e.Agent >= a.n {
		a.report(OutOfRange, e, "no such agent in a ring of %d", a.n)
		return
	}
	switch e.Kind {
	case trace.KindTransition:
		a.transition(e)
	case trace.KindAcquire, trace.KindRelease:
		if e.Resource < 0 || e.Resource >= a.n {
			a.report(OutOfRange, e, "no utensil %d in a ring of %d", e.Resource, a.n)
			return
		}
		if e.Kind == trace.KindAcquire {
			a.acquire(e)
		} else {
			a.release(e)
		}
	}
}

func (a *analyzer) transition(e trace.Event) {
	ag := &a.agents[e.Agent]
	if e.From != ag.state {
		a.report(IllegalTransition, e, "%s -> %s while %s", e.From, e.To, ag.state)
	} else if !legal[[2]trace.State{e.From, e.To}] {
		a.report(IllegalTransition, e, "%s -> %s", e.From, e.To)
	}

	switch {
	case e.To == trace.StateHungry:
		ag.episode = ag.episode[:0]
	case e.To == trace.StateEating:
		a.rep.Meals[e.Agent]++
		for _, nb := range a.neighbours(e.Agent) {
			if a.agents[nb].dining {
				a.report(NeighbourOverlap, e, "started eating while agent %d eats", nb)
			}
		}
		ag.dining = true
	case e.From == trace.StateEating:
		ag.dining = false
	}
	ag.state = e.To
}

func (a *analyzer) acquire(e trace.Event) {
	ag := &a.agents[e.Agent]
	switch holder := a.holders[e.Resource]; {
	case holder == e.Agent:
		a.report(Reacquire, e, "utensil %d acquired twice", e.Resource)
	case holder != ring.Free:
		a.report(UtensilOverlap, e, "utensil %d acquired while held by agent %d", e.Resource, holder)
	}
	a.holders[e.Resource] = e.Agent

	if ag.state != trace.StateHungry {
		a.report(AcquisitionOrder, e, "utensil %d acquired while %s", e.Resource, ag.state)
	}
	pair := ring.PairFor(e.Agent, a.n)
	switch len(ag.episode) {
	case 0:
		if e.Resource != pair.Low {
			a.report(AcquisitionOrder, e, "took utensil %d first, pair is %s", e.Resource, pair)
		}
	case 1:
		if e.Resource != pair.High {
			a.report(AcquisitionOrder, e, "took utensil %d second, pair is %s", e.Resource, pair)
		}
	default:
		a.report(AcquisitionOrder, e, "took utensil %d after already holding two", e.Resource)
	}
	ag.episode = append(ag.episode, e.Resource)
}

func (a *analyzer) release(e trace.Event) {
	if holder := a.holders[e.Resource]; holder != e.Agent {
		if holder == ring.Free {
			a.report(ForeignRelease, e, "released free utensil %d", e.Resource)
		} else {
			a.report(ForeignRelease, e, "released utensil %d held by agent %d", e.Resource, holder)
		}
		return
	}
	a.holders[e.Resource] = ring.Free
	a.agents[e.Agent].dining = false
}

func (a *analyzer) finish() {
	for i, ag := range a.agents {
		if ag.state != trace.StateStopped {
			a.rep.Findings = append(a.rep.Findings, Finding{
				Kind:   NotStopped,
				Agent:  i,
				Detail: fmt.Sprintf("last state %s", ag.state),
			})
		}
	}
	for res, holder := range a.holders {
		if holder != ring.Free {
			a.rep.Findings = append(a.rep.Findings, Finding{
				Kind:   HoldingAtEnd,
				Agent:  holder,
				Detail: fmt.Sprintf("still holds utensil %d", res),
			})
		}
	}
}

// neighbours returns the distinct agents sharing a utensil with agent.
func (a *analyzer) neighbours(agent int) []int {
	left := (agent + a.n - 1) % a.n
	right := (agent + 1) % a.n
	switch {
	case a.n < 2:
		return nil
	case left == right:
		return []int{left}
	default:
		return []int{left, right}
	}
}
