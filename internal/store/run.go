package store

import (
	"time"
)

// Status is the outcome recorded for a run.
type Status string

const (
	// StatusRunning marks a run that has started but not finished. A run left
	// in this state was interrupted before it could be completed.
	StatusRunning Status = "running"
	// StatusOK is a run whose agents all stopped cleanly.
	StatusOK Status = "ok"
	// StatusFault is a run that ended with an agent fault or a shutdown
	// timeout.
	StatusFault Status = "fault"
)

// Run is the recorded header of one simulation.
type Run struct {
	ID          string        `json:"id"`
	Agents      int           `json:"agents"`
	RunDuration time.Duration `json:"run_duration"`
	ThinkMax    time.Duration `json:"think_max"`
	EatMax      time.Duration `json:"eat_max"`
	Seed        uint64        `json:"seed"`
	Started     time.Time     `json:"started"`
	Finished    time.Time     `json:"finished,omitzero"`
	Status      Status        `json:"status"`
	Cause       string        `json:"cause,omitempty"`
	Error       string        `json:"error,omitempty"`
	Meals       []int64       `json:"meals"`
	Events      int64         `json:"events"`
}

// Outcome is what becomes known about a run once it has finished.
type Outcome struct {
	Finished time.Time
	Status   Status
	Cause    string
	Error    string
	Meals    []int64
	Events   int64
}

// TotalMeals sums Meals.
func (r Run) TotalMeals() int64 {
	var total int64
	for _, m := range r.Meals {
		total += m
	}
	return total
}
