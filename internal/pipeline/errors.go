package pipeline

import "errors"

// Sentinel errors for the orchestration core. Plan-repair failures are not
// errors at all: malformed oracle output degrades to an empty plan, and
// unknown stage names degrade by omission.
var (
	// ErrOracleUnavailable wraps network, auth, or HTTP failures from the
	// planning oracle. Fatal for the current plan-generation attempt; the
	// retry policy belongs to the caller.
	ErrOracleUnavailable = errors.New("planning oracle unavailable")

	// ErrEmptyPlan is returned by the dispatcher when, defensively, a plan
	// with no steps reaches it. Normalized plans always carry at least the
	// finalize step.
	ErrEmptyPlan = errors.New("task plan has no steps")
)
