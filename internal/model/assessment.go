package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionTypeMultipleChoice     QuestionType = "multiple_choice"
	QuestionTypeMultipleChoiceMany QuestionType = "multiple_choice_multiple"
	QuestionTypeTrueFalse          QuestionType = "true_false"
	QuestionTypeShortAnswer        QuestionType = "short_answer"
	QuestionTypeEssay              QuestionType = "essay"
	QuestionTypeFillInBlank        QuestionType = "fill_in_blank"
	QuestionTypeNumerical          QuestionType = "numerical"
	QuestionTypeCode               QuestionType = "code"
	QuestionTypeMatching           QuestionType = "matching"
	QuestionTypeOrdering           QuestionType = "ordering"
)

// Question is read-only to the session core; it is owned by the
// assessment store. CorrectAnswer is never sent to learners before
// submission.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	QuestionText  string       `json:"question_text"`
	QuestionType  QuestionType `json:"question_type"`
	Options       []string     `json:"options,omitempty"`
	Points        float64      `json:"points"`
	CorrectAnswer []string     `json:"-"`
}

// Assessment holds the exam configuration the session core needs.
type Assessment struct {
	ID                    uuid.UUID  `json:"id"`
	Title                 string     `json:"title"`
	Questions             []Question `json:"questions"`
	DurationMinutes       int        `json:"duration_minutes"`
	Attempts              int        `json:"attempts"`
	DueDate               *time.Time `json:"due_date,omitempty"`
	AllowLateSubmission   bool       `json:"allow_late_submission"`
	LateSubmissionPenalty float64    `json:"late_submission_penalty"`
	RequireProctoring     bool       `json:"require_proctoring"`
	RandomizeQuestions    bool       `json:"randomize_questions"`
	RandomizeOptions      bool       `json:"randomize_options"`
}

// QuestionForLearner is a question with the correct answer stripped,
// as delivered to the client at session start.
type QuestionForLearner struct {
	ID           uuid.UUID    `json:"id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	Options      []string     `json:"options,omitempty"`
	Points       float64      `json:"points"`
}

// ForLearner strips grading-only fields from a question list.
func ForLearner(questions []Question) []QuestionForLearner {
	out := make([]QuestionForLearner, len(questions))
	for i, q := range questions {
		out[i] = QuestionForLearner{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			QuestionType: q.QuestionType,
			Options:      q.Options,
			Points:       q.Points,
		}
	}
	return out
}
