package models

import "time"

// UserStatus is the terminal status of one user's backup attempt.
type UserStatus string

const (
	StatusOK     UserStatus = "OK"
	StatusFailed UserStatus = "FAIL"
)

// FailReason tags why a user's backup attempt failed.
type FailReason string

const (
	ReasonEmptyCredentials FailReason = "empty-credentials"
	ReasonTransferError    FailReason = "transfer-error"
)

// UserResult is the outcome of one user's backup attempt.
type UserResult struct {
	Username string
	Size     string // human-readable, "unknown" when not determinable
	Status   UserStatus
	Reason   FailReason // empty when Status is OK
}

// RunSummary aggregates the per-user results of a run. Results keep the
// users-list order.
type RunSummary struct {
	Results     []UserResult
	OK          int
	Failed      int
	FailedUsers []string
}

// Summarize folds an ordered result sequence into a RunSummary.
func Summarize(results []UserResult) RunSummary {
	s := RunSummary{Results: results}
	for _, r := range results {
		if r.Status == StatusOK {
			s.OK++
			continue
		}
		s.Failed++
		s.FailedUsers = append(s.FailedUsers, r.Username)
	}
	return s
}

// OutcomeKind is the terminal state of a run.
type OutcomeKind string

const (
	// OutcomeAborted means pre-flight or the mount guard failed before any
	// per-user work.
	OutcomeAborted OutcomeKind = "aborted"
	// OutcomeFullSuccess means at least one user succeeded and none failed.
	OutcomeFullSuccess OutcomeKind = "full-success"
	// OutcomeNoUsers means the users list yielded no records.
	OutcomeNoUsers OutcomeKind = "no-users"
	// OutcomeFailed means at least one user failed.
	OutcomeFailed OutcomeKind = "failed"
)

// RunOutcome is the single terminal value of a run, consumed by the
// notifier and the stdout summary.
type RunOutcome struct {
	Kind     OutcomeKind
	Start    time.Time
	End      time.Time
	Duration time.Duration

	// AbortReason is set only for OutcomeAborted.
	AbortReason string

	// FreeSpace at the destination, human-readable; "unknown" when the
	// probe failed or the run did not reach the destination.
	FreeSpace string

	// DaysSinceSuccess is derived from the last-success record; -1 when no
	// run has ever fully succeeded.
	DaysSinceSuccess int

	Summary RunSummary
}
