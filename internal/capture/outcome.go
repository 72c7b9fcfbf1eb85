package capture

// Outcome is the result of evaluating one entity.
type Outcome int

const (
	// OutcomeSkipped: the notification was malformed or not ours.
	OutcomeSkipped Outcome = iota + 1
	// OutcomeNoOp: the quantity did not change.
	OutcomeNoOp
	// OutcomeCommitted: a record was written.
	OutcomeCommitted
	// OutcomeFailed: the record could not be written.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoOp:
		return "noop"
	case OutcomeCommitted:
		return "committed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
