package harness

import (
	"github.com/roach88/dining/internal/runner"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass indicates overall success: every run satisfied every assertion.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Runs holds each run's result. Empty for a rejected configuration.
	Runs []*runner.Result `json:"-"`

	// RunIDs lists the runs in order, for looking them up in the store.
	RunIDs []string `json:"run_ids,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
