package grading

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/model"
)

func gradeAssessment(questions ...model.Question) *model.Assessment {
	return &model.Assessment{
		ID:        uuid.New(),
		Title:     "Graded quiz",
		Questions: questions,
	}
}

func submissionFor(a *model.Assessment, answers []model.Answer) *model.Submission {
	order := make([]uuid.UUID, len(a.Questions))
	for i, q := range a.Questions {
		order[i] = q.ID
	}
	return &model.Submission{
		ID:            uuid.New(),
		SessionID:     uuid.New(),
		AssessmentID:  a.ID,
		QuestionOrder: order,
		Answers:       answers,
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestGradeAllAutoGradable(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 4, CorrectAnswer: []string{"paris"}},
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeTrueFalse, Points: 2, CorrectAnswer: []string{"true"}},
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeNumerical, Points: 4, CorrectAnswer: []string{"3.14"}},
	)
	sub := submissionFor(a, []model.Answer{
		{QuestionIndex: 0, Value: []string{"Paris"}},
		{QuestionIndex: 1, Value: []string{"false"}},
		{QuestionIndex: 2, Value: []string{"3.14"}},
	})

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}

	if !approx(result.Score, 8) {
		t.Errorf("score: got %v, want 8", result.Score)
	}
	if !approx(result.Percentage, 80) {
		t.Errorf("percentage: got %v, want 80", result.Percentage)
	}
	if result.Grade != "B" {
		t.Errorf("grade: got %s, want B", result.Grade)
	}
	if result.RequiresManualReview {
		t.Error("fully auto-gradable submission flagged for manual review")
	}
}

func TestGradeManualKindsDeferReview(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 5, CorrectAnswer: []string{"a"}},
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeEssay, Points: 5},
	)
	sub := submissionFor(a, []model.Answer{
		{QuestionIndex: 0, Value: []string{"a"}},
		{QuestionIndex: 1, Value: []string{"my long essay"}},
	})

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}

	if !result.RequiresManualReview {
		t.Fatal("essay must flag manual review")
	}
	if result.Feedback == "" {
		t.Error("manual review result should carry learner-facing feedback")
	}
	// The auto-gradable part is still scored.
	if !approx(result.Score, 5) {
		t.Errorf("partial score: got %v, want 5", result.Score)
	}
}

func TestGradeFollowsQuestionOrder(t *testing.T) {
	q0 := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeTrueFalse, Points: 1, CorrectAnswer: []string{"true"}}
	q1 := model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeTrueFalse, Points: 1, CorrectAnswer: []string{"false"}}
	a := gradeAssessment(q0, q1)

	// The attempt saw the questions shuffled: index 0 is q1.
	sub := submissionFor(a, []model.Answer{
		{QuestionIndex: 0, Value: []string{"false"}},
		{QuestionIndex: 1, Value: []string{"true"}},
	})
	sub.QuestionOrder = []uuid.UUID{q1.ID, q0.ID}

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(result.Score, 2) {
		t.Errorf("score: got %v, want 2 (answers mapped through the attempt order)", result.Score)
	}
}

func TestGradeLatePenalty(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: []string{"a"}},
	)
	due := time.Now().Add(-time.Hour)
	a.DueDate = &due
	a.AllowLateSubmission = true
	a.LateSubmissionPenalty = 20

	sub := submissionFor(a, []model.Answer{{QuestionIndex: 0, Value: []string{"a"}}})
	sub.IsLate = true

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(result.Score, 8) {
		t.Errorf("score after 20%% penalty: got %v, want 8", result.Score)
	}
	if !approx(result.Percentage, 80) {
		t.Errorf("percentage: got %v, want 80", result.Percentage)
	}
}

func TestGradePenaltyOnlyWhenLate(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 10, CorrectAnswer: []string{"a"}},
	)
	a.AllowLateSubmission = true
	a.LateSubmissionPenalty = 50

	sub := submissionFor(a, []model.Answer{{QuestionIndex: 0, Value: []string{"a"}}})

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(result.Score, 10) {
		t.Errorf("on-time score: got %v, want 10", result.Score)
	}
}

func TestGradeEmptyAnswerEarnsNothing(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 5, CorrectAnswer: []string{"a"}},
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Points: 5, CorrectAnswer: []string{"b"}},
	)
	sub := submissionFor(a, []model.Answer{
		{QuestionIndex: 0, Value: nil},
		{QuestionIndex: 1, Value: []string{"b"}},
	})

	result, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(result.Score, 5) {
		t.Errorf("score: got %v, want 5", result.Score)
	}
	if !approx(result.Percentage, 50) {
		t.Errorf("percentage: got %v, want 50", result.Percentage)
	}
	if result.Grade != "F" {
		t.Errorf("grade: got %s, want F", result.Grade)
	}
}

func TestGradeRejectsOutOfRangeIndex(t *testing.T) {
	a := gradeAssessment(
		model.Question{ID: uuid.New(), QuestionType: model.QuestionTypeTrueFalse, Points: 1, CorrectAnswer: []string{"true"}},
	)
	sub := submissionFor(a, []model.Answer{{QuestionIndex: 3, Value: []string{"true"}}})

	if _, err := NewAutoGrader(zerolog.Nop()).Grade(context.Background(), a, sub); err == nil {
		t.Fatal("expected error for answer index outside the question order")
	}
}

func TestLetterGradeBoundaries(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{100, "A"}, {90, "A"}, {89.9, "B"}, {80, "B"},
		{79.9, "C"}, {70, "C"}, {69.9, "D"}, {60, "D"},
		{59.9, "F"}, {0, "F"},
	}
	for _, c := range cases {
		if got := letterGrade(c.pct); got != c.want {
			t.Errorf("letterGrade(%v): got %s, want %s", c.pct, got, c.want)
		}
	}
}
