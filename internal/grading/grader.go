// Package grading implements the deterministic auto-grader. Kinds that
// cannot be objectively checked (essay, short answer, code) defer the
// whole submission to manual review.
package grading

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/question"
)

// AutoGrader scores submissions question-kind by question-kind.
type AutoGrader struct {
	log zerolog.Logger
}

// NewAutoGrader creates an AutoGrader.
func NewAutoGrader(log zerolog.Logger) *AutoGrader {
	return &AutoGrader{log: log.With().Str("component", "grader").Logger()}
}

// Grade scores the submission against the assessment. Answers are
// matched to questions through the attempt's question order. When any
// question kind requires human judgment, the partial auto-score is
// computed but the result is flagged for manual review.
func (g *AutoGrader) Grade(ctx context.Context, a *model.Assessment, sub *model.Submission) (*model.GradeResult, error) {
	byID := make(map[string]model.Question, len(a.Questions))
	for _, q := range a.Questions {
		byID[q.ID.String()] = q
	}

	var (
		earned       float64
		total        float64
		manualReview bool
	)

	for _, ans := range sub.Answers {
		if ans.QuestionIndex < 0 || ans.QuestionIndex >= len(sub.QuestionOrder) {
			return nil, fmt.Errorf("answer index %d outside question order", ans.QuestionIndex)
		}
		q, ok := byID[sub.QuestionOrder[ans.QuestionIndex].String()]
		if !ok {
			return nil, fmt.Errorf("question %s not found in assessment", sub.QuestionOrder[ans.QuestionIndex])
		}

		total += q.Points

		kind, err := question.For(q.QuestionType)
		if err != nil {
			return nil, err
		}
		if !kind.AutoGradable() {
			manualReview = true
			continue
		}
		if len(ans.Value) == 0 {
			continue
		}
		earned += kind.Score(q, ans.Value)
	}

	if sub.IsLate && a.AllowLateSubmission && a.LateSubmissionPenalty > 0 {
		earned = earned * (1 - a.LateSubmissionPenalty/100)
		if earned < 0 {
			earned = 0
		}
	}

	percentage := 0.0
	if total > 0 {
		percentage = earned / total * 100
	}

	result := &model.GradeResult{
		Score:                earned,
		Percentage:           percentage,
		Grade:                letterGrade(percentage),
		RequiresManualReview: manualReview,
	}

	if manualReview {
		result.Feedback = "Some answers require manual review. Your final grade is pending."
	}

	g.log.Info().
		Str("session_id", sub.SessionID.String()).
		Float64("score", earned).
		Float64("percentage", percentage).
		Bool("manual_review", manualReview).
		Msg("Submission graded")

	return result, nil
}

func letterGrade(pct float64) string {
	switch {
	case pct >= 90:
		return "A"
	case pct >= 80:
		return "B"
	case pct >= 70:
		return "C"
	case pct >= 60:
		return "D"
	default:
		return "F"
	}
}
