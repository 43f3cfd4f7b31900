package model

// OutcomeKind tags the result of a session action.
type OutcomeKind string

const (
	OutcomeApplied          OutcomeKind = "applied"
	OutcomePartial          OutcomeKind = "partial"
	OutcomeFailed           OutcomeKind = "failed"
	OutcomeEscalationFailed OutcomeKind = "escalation-failed"
	OutcomeNotApplicable    OutcomeKind = "not-applicable"
	OutcomeBusy             OutcomeKind = "busy"
	OutcomeInvalid          OutcomeKind = "invalid"
	OutcomeRestarted        OutcomeKind = "restarted"
)

// OutcomeKinds lists every outcome tag.
var OutcomeKinds = []OutcomeKind{
	OutcomeApplied,
	OutcomePartial,
	OutcomeFailed,
	OutcomeEscalationFailed,
	OutcomeNotApplicable,
	OutcomeBusy,
	OutcomeInvalid,
	OutcomeRestarted,
}

// Succeeded reports whether the action took effect, fully or partially.
func (k OutcomeKind) Succeeded() bool {
	return k == OutcomeApplied || k == OutcomePartial || k == OutcomeRestarted
}
