// Package track polls a batch of computations until every job reaches a
// terminal state.
//
// The Probe wraps one status lookup: a transport or lookup failure never
// escapes it; the job is reported as unknown for that poll and retried on
// the next interval. The Tracker owns the job set for the duration of a
// run: one cooperative polling pass per interval, no overlap between
// passes, one transition event per observed state change.
//
// Terminal-state policy: a job settles the first time a poll observes a
// terminal state (completed, failed, stopped); the recorded state is frozen
// from then on and the job is never probed again. Unknown is a transient
// probe failure, never terminal, so a flaky status source keeps the batch
// polling rather than ending it early.
package track
