package harness

import (
	"github.com/roach88/stocklog/internal/intake"
	"github.com/roach88/stocklog/internal/record"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Units holds one summary per applied unit, in order.
	Units []intake.Summary `json:"units"`

	// Records are the records written by the units, in id order.
	Records []record.Record `json:"records"`

	// Errors holds one message per failed expectation.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Units:   []intake.Summary{},
		Records: []record.Record{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
