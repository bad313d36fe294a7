package question

import (
	"testing"

	"github.com/excellencehub/proctor-backend/internal/model"
)

func TestSingleChoiceScore(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeMultipleChoice,
		Options:       []string{"Paris", "London", "Berlin"},
		Points:        4,
		CorrectAnswer: []string{"Paris"},
	}
	k, err := For(q.QuestionType)
	if err != nil {
		t.Fatal(err)
	}

	if got := k.Score(q, []string{"Paris"}); got != 4 {
		t.Errorf("exact match: got %v, want 4", got)
	}
	if got := k.Score(q, []string{"  paris "}); got != 4 {
		t.Errorf("case and whitespace should not matter: got %v, want 4", got)
	}
	if got := k.Score(q, []string{"London"}); got != 0 {
		t.Errorf("wrong answer: got %v, want 0", got)
	}
}

func TestSingleChoiceValidateShape(t *testing.T) {
	q := model.Question{
		QuestionType: model.QuestionTypeMultipleChoice,
		Options:      []string{"A", "B"},
	}
	k, _ := For(q.QuestionType)

	if err := k.ValidateShape(q, []string{"A"}); err != nil {
		t.Errorf("valid option rejected: %v", err)
	}
	if err := k.ValidateShape(q, []string{"C"}); err == nil {
		t.Error("expected error for value outside options")
	}
	if err := k.ValidateShape(q, []string{"A", "B"}); err == nil {
		t.Error("expected error for multiple values")
	}
}

func TestTrueFalse(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeTrueFalse,
		Points:        2,
		CorrectAnswer: []string{"true"},
	}
	k, _ := For(q.QuestionType)

	if err := k.ValidateShape(q, []string{"maybe"}); err == nil {
		t.Error("expected error for non-boolean value")
	}
	if got := k.Score(q, []string{"TRUE"}); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
}

func TestMultiChoiceExactSet(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeMultipleChoiceMany,
		Options:       []string{"a", "b", "c", "d"},
		Points:        3,
		CorrectAnswer: []string{"a", "c"},
	}
	k, _ := For(q.QuestionType)

	if got := k.Score(q, []string{"c", "a"}); got != 3 {
		t.Errorf("order should not matter: got %v, want 3", got)
	}
	if got := k.Score(q, []string{"a"}); got != 0 {
		t.Errorf("partial selection scores zero: got %v", got)
	}
	if got := k.Score(q, []string{"a", "c", "d"}); got != 0 {
		t.Errorf("extra selection scores zero: got %v", got)
	}
}

func TestFillInBlankPartialCredit(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeFillInBlank,
		QuestionText:  "The ___ jumps over the ___",
		Points:        2,
		CorrectAnswer: []string{"fox", "dog"},
	}
	k, _ := For(q.QuestionType)

	if err := k.ValidateShape(q, []string{"fox"}); err == nil {
		t.Error("expected error: two blanks need two values")
	}
	if got := k.Score(q, []string{"fox", "dog"}); got != 2 {
		t.Errorf("got %v, want 2", got)
	}
	if got := k.Score(q, []string{"fox", "cat"}); got != 1 {
		t.Errorf("one of two correct: got %v, want 1", got)
	}
	// Positional: right words in the wrong blanks score nothing.
	if got := k.Score(q, []string{"dog", "fox"}); got != 0 {
		t.Errorf("swapped blanks: got %v, want 0", got)
	}
}

func TestNumericalTolerance(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeNumerical,
		Points:        1,
		CorrectAnswer: []string{"3.14159"},
	}
	k, _ := For(q.QuestionType)

	if err := k.ValidateShape(q, []string{"abc"}); err == nil {
		t.Error("expected error for non-numeric value")
	}
	if got := k.Score(q, []string{"3.14159"}); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := k.Score(q, []string{"3.1415900001"}); got != 1 {
		t.Errorf("within tolerance: got %v, want 1", got)
	}
	if got := k.Score(q, []string{"3.15"}); got != 0 {
		t.Errorf("outside tolerance: got %v, want 0", got)
	}
}

func TestMatchingPartialCredit(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeMatching,
		Points:        4,
		CorrectAnswer: []string{"1-a", "2-b", "3-c", "4-d"},
	}
	k, _ := For(q.QuestionType)

	if got := k.Score(q, []string{"1-a", "2-b", "3-c", "4-d"}); got != 4 {
		t.Errorf("got %v, want 4", got)
	}
	if got := k.Score(q, []string{"1-a", "2-x", "3-c", "4-x"}); got != 2 {
		t.Errorf("half correct: got %v, want 2", got)
	}
}

func TestOrderingAllOrNothing(t *testing.T) {
	q := model.Question{
		QuestionType:  model.QuestionTypeOrdering,
		Points:        3,
		CorrectAnswer: []string{"first", "second", "third"},
	}
	k, _ := For(q.QuestionType)

	if got := k.Score(q, []string{"first", "second", "third"}); got != 3 {
		t.Errorf("got %v, want 3", got)
	}
	if got := k.Score(q, []string{"first", "third", "second"}); got != 0 {
		t.Errorf("wrong order scores zero: got %v", got)
	}
}

func TestFreeTextNotAutoGradable(t *testing.T) {
	for _, typ := range []model.QuestionType{
		model.QuestionTypeShortAnswer,
		model.QuestionTypeEssay,
		model.QuestionTypeCode,
	} {
		k, err := For(typ)
		if err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
		if k.AutoGradable() {
			t.Errorf("%s should not be auto-gradable", typ)
		}
	}
}

func TestForUnknownType(t *testing.T) {
	if _, err := For(model.QuestionType("riddle")); err == nil {
		t.Error("expected error for unknown question type")
	}
}
