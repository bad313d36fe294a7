package session

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/excellencehub/proctor-backend/internal/model"
)

func testQuestions() []model.Question {
	return []model.Question{
		{
			ID:            uuid.New(),
			QuestionType:  model.QuestionTypeMultipleChoice,
			Options:       []string{"a", "b", "c"},
			Points:        1,
			CorrectAnswer: []string{"a"},
		},
		{
			ID:            uuid.New(),
			QuestionType:  model.QuestionTypeShortAnswer,
			Points:        2,
			CorrectAnswer: []string{"anything"},
		},
		{
			ID:            uuid.New(),
			QuestionType:  model.QuestionTypeTrueFalse,
			Points:        1,
			CorrectAnswer: []string{"true"},
		},
	}
}

func TestAnswerStoreRecord(t *testing.T) {
	s := NewAnswerStore(testQuestions())

	if err := s.Record(0, []string{"b"}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if got := snap[0].Value; len(got) != 1 || got[0] != "b" {
		t.Fatalf("got %v, want [b]", got)
	}
	if snap[0].Attempts != 1 {
		t.Fatalf("attempts: got %d, want 1", snap[0].Attempts)
	}

	// Changing an answer replaces the value and bumps attempts.
	if err := s.Record(0, []string{"c"}); err != nil {
		t.Fatal(err)
	}
	snap = s.Snapshot()
	if snap[0].Value[0] != "c" || snap[0].Attempts != 2 {
		t.Fatalf("got value=%v attempts=%d", snap[0].Value, snap[0].Attempts)
	}
}

func TestAnswerStoreRejectsBadShape(t *testing.T) {
	s := NewAnswerStore(testQuestions())

	if err := s.Record(0, []string{"not-an-option"}); err == nil {
		t.Error("expected error for value outside options")
	}
	if err := s.Record(2, []string{"perhaps"}); err == nil {
		t.Error("expected error for non-boolean true_false answer")
	}
	if err := s.Record(7, []string{"a"}); err == nil {
		t.Error("expected error for out-of-range index")
	}

	// Nothing was stored.
	for i, a := range s.Snapshot() {
		if len(a.Value) != 0 || a.Attempts != 0 {
			t.Errorf("question %d mutated by rejected answer: %+v", i, a)
		}
	}
}

func TestAnswerStoreSnapshotIsolation(t *testing.T) {
	s := NewAnswerStore(testQuestions())
	if err := s.Record(1, []string{"my essay"}); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	snap[1].Value[0] = "tampered"

	if got := s.Snapshot()[1].Value[0]; got != "my essay" {
		t.Fatalf("snapshot mutation leaked into store: %q", got)
	}
}

func TestAnswerStoreTimeAccrual(t *testing.T) {
	s := NewAnswerStore(testQuestions())

	s.AddTime(0, 90*time.Second)
	s.AddTime(1, 30*time.Second)
	s.AddTime(0, 10*time.Second)
	s.AddTime(0, -5*time.Second) // Ignored.

	snap := s.Snapshot()
	if snap[0].TimeSpentSeconds != 100 {
		t.Errorf("question 0: got %d, want 100", snap[0].TimeSpentSeconds)
	}
	if snap[1].TimeSpentSeconds != 30 {
		t.Errorf("question 1: got %d, want 30", snap[1].TimeSpentSeconds)
	}
	if got := s.TotalTimeSpent(); got != 130 {
		t.Errorf("total: got %d, want 130", got)
	}
}
