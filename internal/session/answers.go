package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/question"
)

// AnswerStore is the in-memory source of truth for the learner's
// answers during a session. Single writer (the orchestrator), read by
// the autosave controller and the submission manager; reads always see
// a consistent snapshot, never a half-applied mutation.
type AnswerStore struct {
	mu        sync.RWMutex
	questions []model.Question
	answers   []model.Answer
}

// NewAnswerStore initializes one empty answer per question, indexed in
// the attempt's question order.
func NewAnswerStore(questions []model.Question) *AnswerStore {
	answers := make([]model.Answer, len(questions))
	for i := range answers {
		answers[i] = model.Answer{QuestionIndex: i}
	}
	return &AnswerStore{questions: questions, answers: answers}
}

// Record replaces the answer value for a question, after validating the
// value shape against the question kind. Every mutation increments the
// answer's attempt counter. Answers are never removed.
func (s *AnswerStore) Record(index int, values []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.answers) {
		return fmt.Errorf("question index %d out of range [0,%d)", index, len(s.answers))
	}

	q := s.questions[index]
	kind, err := question.For(q.QuestionType)
	if err != nil {
		return err
	}
	if err := kind.ValidateShape(q, values); err != nil {
		return fmt.Errorf("answer shape for question %d: %w", index, err)
	}

	ans := &s.answers[index]
	ans.Value = append([]string(nil), values...)
	ans.Attempts++
	return nil
}

// AddTime accrues focused wall time on a question. The elapsed duration
// is tracked by the orchestrator, not the store.
func (s *AnswerStore) AddTime(index int, elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.answers) {
		return
	}
	s.answers[index].TimeSpentSeconds += int(elapsed / time.Second)
}

// Snapshot returns a deep copy of all answers.
func (s *AnswerStore) Snapshot() []model.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Answer, len(s.answers))
	for i, a := range s.answers {
		out[i] = a
		out[i].Value = append([]string(nil), a.Value...)
	}
	return out
}

// TotalTimeSpent sums focused seconds across all questions.
func (s *AnswerStore) TotalTimeSpent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, a := range s.answers {
		total += a.TimeSpentSeconds
	}
	return total
}

// Len returns the number of questions.
func (s *AnswerStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}
