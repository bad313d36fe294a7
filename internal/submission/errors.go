package submission

import "errors"

var (
	// ErrAttemptExhausted is returned by StartAttempt when the learner
	// has no attempts left on the assessment.
	ErrAttemptExhausted = errors.New("assessment attempts exhausted")

	// ErrSubmissionWindowClosed is returned for a manual submit after
	// the due date when late submissions are not allowed. Forced
	// submissions (timer, escalation) always go through.
	ErrSubmissionWindowClosed = errors.New("submission window closed")

	// ErrNoActiveDraft is returned when submit is called with no draft
	// in progress.
	ErrNoActiveDraft = errors.New("no active draft submission")

	// ErrPersistFailed wraps a final-submit store failure that survived
	// all retries. The submission has been stashed for reconciliation.
	ErrPersistFailed = errors.New("submission persist failed, stashed for reconciliation")

	// ErrNotAwaitingReview is returned by MarkGraded when the current
	// submission is not in the submitted state.
	ErrNotAwaitingReview = errors.New("submission is not awaiting review")
)
