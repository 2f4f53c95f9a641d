package progression

import "fmt"

// ValidationError marks malformed input. Fatal to the request; no partial
// state is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PersistenceError marks a failed write to the event store. The event is not
// recorded and the client may safely retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// RaceConflict marks a concurrent first-completion submission that lost the
// race. Resolved internally by downgrading to a review; never surfaced to
// the caller.
type RaceConflict struct {
	UserID int64
	Unit   string
}

func (e *RaceConflict) Error() string {
	return fmt.Sprintf("concurrent first completion for user %d unit %s", e.UserID, e.Unit)
}

// PartialAggregateFailure records rollup scopes that failed to update after
// the event was durably recorded. The request still reports success; the
// drift is left for the verifier.
type PartialAggregateFailure struct {
	Scopes []string
}

func (e *PartialAggregateFailure) Error() string {
	return fmt.Sprintf("aggregate update failed for scopes %v", e.Scopes)
}
