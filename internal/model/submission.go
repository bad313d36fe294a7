package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmissionStatus is a one-way progression. No back-transitions.
type SubmissionStatus string

const (
	SubmissionStatusDraft     SubmissionStatus = "draft"
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
	SubmissionStatusReturned  SubmissionStatus = "returned"
)

// SubmitReason records what triggered a submission.
type SubmitReason string

const (
	SubmitReasonManual              SubmitReason = "manual"
	SubmitReasonTimerExpired        SubmitReason = "timer_expired"
	SubmitReasonViolationEscalation SubmitReason = "violation_escalation"
)

// Forced reports whether the reason is a system-triggered submission.
func (r SubmitReason) Forced() bool {
	return r == SubmitReasonTimerExpired || r == SubmitReasonViolationEscalation
}

// Answer captures a learner's response to one question. Value holds one
// string for single-valued kinds and multiple strings for multi-select,
// ordering, matching and fill_in_blank.
type Answer struct {
	QuestionIndex    int      `json:"question_index"`
	Value            []string `json:"value"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
	Attempts         int      `json:"attempts"`
}

// Submission is one attempt at an assessment.
type Submission struct {
	ID                 uuid.UUID        `json:"id"`
	SessionID          uuid.UUID        `json:"session_id"`
	AssessmentID       uuid.UUID        `json:"assessment_id"`
	LearnerID          int              `json:"learner_id"`
	AttemptNumber      int              `json:"attempt_number"`
	Status             SubmissionStatus `json:"status"`
	Answers            []Answer         `json:"answers"`
	QuestionOrder      []uuid.UUID      `json:"question_order,omitempty"`
	StartedAt          time.Time        `json:"started_at"`
	SubmittedAt        *time.Time       `json:"submitted_at,omitempty"`
	TimeSpentSeconds   int              `json:"time_spent_seconds"`
	IsLate             bool             `json:"is_late"`
	IsAutoSubmitted    bool             `json:"is_auto_submitted"`
	SubmitReason       SubmitReason     `json:"submit_reason,omitempty"`
	ViolationsAtSubmit []ViolationEvent `json:"violations_at_submit,omitempty"`

	// Grading outcome. Populated once Status reaches graded.
	Score                float64 `json:"score"`
	Percentage           float64 `json:"percentage"`
	Grade                string  `json:"grade,omitempty"`
	Feedback             string  `json:"feedback,omitempty"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}

// GradeResult is what the grading collaborator returns.
type GradeResult struct {
	Score                float64 `json:"score"`
	Percentage           float64 `json:"percentage"`
	Grade                string  `json:"grade"`
	Feedback             string  `json:"feedback"`
	RequiresManualReview bool    `json:"requires_manual_review"`
}
