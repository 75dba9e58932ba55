package analysis

import (
	"fmt"
	"time"
)

// FindingKind classifies something a correct run cannot produce.
type FindingKind string

const (
	// UtensilOverlap is an acquisition of a utensil another agent holds.
	UtensilOverlap FindingKind = "utensil_overlap"
	// Reacquire is an acquisition of a utensil the agent already holds.
	Reacquire FindingKind = "reacquire"
	// ForeignRelease is a release by an agent that does not hold the utensil.
	ForeignRelease FindingKind = "foreign_release"
	// NeighbourOverlap is an agent starting to eat while a neighbour eats.
	NeighbourOverlap FindingKind = "neighbour_overlap"
	// AcquisitionOrder is an acquisition that breaks the ascending order,
	// takes a utensil outside the agent's pair, or happens outside Hungry.
	AcquisitionOrder FindingKind = "acquisition_order"
	// IllegalTransition is a state change the agent state machine lacks, or
	// one that does not start from the agent's current state.
	IllegalTransition FindingKind = "illegal_transition"
	// OutOfRange is an event naming an agent or utensil that does not exist.
	OutOfRange FindingKind = "out_of_range"
	// NotStopped is an agent whose last state is not Stopped.
	NotStopped FindingKind = "not_stopped"
	// HoldingAtEnd is a utensil still held when the trace ends.
	HoldingAtEnd FindingKind = "holding_at_end"
)

// Finding is one problem in a trace. Seq is the offending event, or 0 for
// findings about the end of the trace.
type Finding struct {
	Kind   FindingKind `json:"kind"`
	Seq    int64       `json:"seq"`
	Agent  int         `json:"agent"`
	Detail string      `json:"detail"`
}

func (f Finding) String() string {
	if f.Seq == 0 {
		return fmt.Sprintf("end %s (agent %d): %s", f.Kind, f.Agent, f.Detail)
	}
	return fmt.Sprintf("#%d %s (agent %d): %s", f.Seq, f.Kind, f.Agent, f.Detail)
}

// Report is the result of analysing one trace.
type Report struct {
	RunID    string        `json:"run_id,omitempty"`
	Agents   int           `json:"agents"`
	Events   int           `json:"events"`
	Span     time.Duration `json:"span"`
	Meals    []int64       `json:"meals"`
	Findings []Finding     `json:"findings"`
}

// OK reports whether the trace is free of findings.
func (r *Report) OK() bool { return len(r.Findings) == 0 }

// TotalMeals sums Meals.
func (r *Report) TotalMeals() int64 {
	var total int64
	for _, m := range r.Meals {
		total += m
	}
	return total
}

// MealRange returns the fewest and most meals any agent had.
func (r *Report) MealRange() (lo, hi int64) {
	for i, m := range r.Meals {
		if i == 0 || m < lo {
			lo = m
		}
		if i == 0 || m > hi {
			hi = m
		}
	}
	return lo, hi
}

// Count returns how many findings are of the given kind.
func (r *Report) Count(kind FindingKind) int {
	n := 0
	for _, f := range r.Findings {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
