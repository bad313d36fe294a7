package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/proctor"
	"github.com/excellencehub/proctor-backend/internal/submission"
)

// ─── fakes ──────────────────────────────────────────────────────────

type stubStore struct {
	mu         sync.Mutex
	drafts     int
	draftSaves int
	saves      []*model.Submission
}

func (s *stubStore) CountAttempts(ctx context.Context, assessmentID uuid.UUID, learnerID int) (int, error) {
	return 0, nil
}

func (s *stubStore) CreateDraft(ctx context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts++
	return nil
}

func (s *stubStore) SaveDraft(ctx context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draftSaves++
	return nil
}

func (s *stubStore) Save(ctx context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.saves = append(s.saves, &cp)
	return nil
}

func (s *stubStore) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	return nil, submission.ErrNoActiveDraft
}

type stubGrader struct{}

func (stubGrader) Grade(ctx context.Context, a *model.Assessment, sub *model.Submission) (*model.GradeResult, error) {
	return &model.GradeResult{Score: 1, Percentage: 100, Grade: "A"}, nil
}

type stubCache struct{}

func (stubCache) Stash(ctx context.Context, sub *model.Submission) error { return nil }

type stubViolations struct {
	mu       sync.Mutex
	appended []model.ViolationEvent
}

func (v *stubViolations) Append(ctx context.Context, sessionID uuid.UUID, learnerID int, ev model.ViolationEvent) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.appended = append(v.appended, ev)
	return nil
}

func (v *stubViolations) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.appended)
}

type stubFocus struct {
	ch   chan proctor.FocusEvent
	once sync.Once
}

func newStubFocus() *stubFocus {
	return &stubFocus{ch: make(chan proctor.FocusEvent, 16)}
}

func (f *stubFocus) Events() <-chan proctor.FocusEvent { return f.ch }
func (f *stubFocus) Close()                            { f.once.Do(func() { close(f.ch) }) }

func sessionAssessment() *model.Assessment {
	return &model.Assessment{
		ID:              uuid.New(),
		Title:           "Final exam",
		DurationMinutes: 30,
		Attempts:        1,
		Questions: []model.Question{
			{ID: uuid.New(), QuestionType: model.QuestionTypeMultipleChoice, Options: []string{"a", "b"}, Points: 1, CorrectAnswer: []string{"a"}},
			{ID: uuid.New(), QuestionType: model.QuestionTypeTrueFalse, Points: 1, CorrectAnswer: []string{"true"}},
			{ID: uuid.New(), QuestionType: model.QuestionTypeShortAnswer, Points: 1},
		},
	}
}

func startSession(t *testing.T, a *model.Assessment, clk clock.Clock, env HostEnv, sink ViolationSink) (*Orchestrator, *stubStore) {
	t.Helper()
	store := &stubStore{}
	mgr := submission.NewManager(store, stubGrader{}, stubCache{}, clk, submission.Config{
		MaxRetries:   1,
		RetryBackoff: time.Millisecond,
	}, zerolog.Nop())

	orch := NewOrchestrator(a, 42, mgr, sink, Options{}, clk, zerolog.Nop())
	if _, err := orch.Start(context.Background(), env); err != nil {
		t.Fatal(err)
	}
	return orch, store
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func lastSubmissionUpdate(t *testing.T, orch *Orchestrator) *model.Submission {
	t.Helper()
	var sub *model.Submission
	for u := range orch.Updates() {
		if u.Submission != nil {
			sub = u.Submission
		}
	}
	if sub == nil {
		t.Fatal("update stream closed without a submission update")
	}
	return sub
}

// ─── tests ──────────────────────────────────────────────────────────

func TestSessionManualSubmit(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, store := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	if err := orch.RecordAnswer(0, []string{"a"}); err != nil {
		t.Fatal(err)
	}

	sub, err := orch.RequestSubmit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != model.SubmissionStatusGraded {
		t.Errorf("status: got %s, want graded", sub.Status)
	}
	if sub.SubmitReason != model.SubmitReasonManual {
		t.Errorf("reason: got %s", sub.SubmitReason)
	}

	streamed := lastSubmissionUpdate(t, orch)
	if streamed.SessionID != sub.SessionID {
		t.Error("streamed submission does not match the returned one")
	}

	select {
	case <-orch.Done():
	default:
		t.Error("Done not closed after submit")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.drafts != 1 || len(store.saves) == 0 {
		t.Errorf("store: drafts=%d saves=%d", store.drafts, len(store.saves))
	}
}

func TestSessionSecondSubmitIsIdempotent(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	first, err := orch.RequestSubmit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	second, err := orch.RequestSubmit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.SubmitReason != first.SubmitReason || second.SessionID != first.SessionID {
		t.Error("second submit must return the already-finalized submission")
	}
}

func TestSessionTimerExpiryForcesSubmit(t *testing.T) {
	clk := clock.NewFake(time.Now())
	a := sessionAssessment()
	a.DurationMinutes = 1
	orch, _ := startSession(t, a, clk, HostEnv{}, nil)

	if err := orch.RecordAnswer(1, []string{"true"}); err != nil {
		t.Fatal(err)
	}

	clk.Advance(time.Minute)

	sub := lastSubmissionUpdate(t, orch)
	if sub.SubmitReason != model.SubmitReasonTimerExpired {
		t.Errorf("reason: got %s, want timer_expired", sub.SubmitReason)
	}
	if !sub.IsAutoSubmitted {
		t.Error("timer expiry must mark the submission auto-submitted")
	}
	if len(sub.Answers) != 3 {
		t.Fatalf("answers at expiry: got %d entries, want 3", len(sub.Answers))
	}
	if got := sub.Answers[1].Value; len(got) != 1 || got[0] != "true" {
		t.Errorf("recorded answer lost at expiry: %v", got)
	}
}

func TestSessionViolationEscalation(t *testing.T) {
	clk := clock.NewFake(time.Now())
	a := sessionAssessment()
	a.RequireProctoring = true
	focus := newStubFocus()
	sink := &stubViolations{}

	orch, _ := startSession(t, a, clk, HostEnv{Focus: focus}, sink)

	for i := 0; i < proctor.DefaultWarningThreshold; i++ {
		focus.ch <- proctor.FocusEvent{Kind: proctor.FocusPageHidden}
	}
	waitUntil(t, func() bool {
		return orch.ProctoringStatus().WarningCount >= proctor.DefaultWarningThreshold
	})

	// The grace countdown is pending; the session is still live.
	select {
	case <-orch.Done():
		t.Fatal("session ended before the grace period elapsed")
	default:
	}

	clk.Advance(proctor.DefaultGracePeriod)

	sub := lastSubmissionUpdate(t, orch)
	if sub.SubmitReason != model.SubmitReasonViolationEscalation {
		t.Errorf("reason: got %s, want violation_escalation", sub.SubmitReason)
	}
	if len(sub.ViolationsAtSubmit) != proctor.DefaultWarningThreshold {
		t.Errorf("violations snapshot: got %d, want %d", len(sub.ViolationsAtSubmit), proctor.DefaultWarningThreshold)
	}
	if sink.count() != proctor.DefaultWarningThreshold {
		t.Errorf("durable appends: got %d, want %d", sink.count(), proctor.DefaultWarningThreshold)
	}
}

func TestSessionLeaveSavesDraftWithoutSubmitting(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, store := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	if err := orch.RecordAnswer(0, []string{"b"}); err != nil {
		t.Fatal(err)
	}

	orch.Leave(context.Background())

	select {
	case <-orch.Done():
	default:
		t.Fatal("Done not closed after Leave")
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.draftSaves == 0 {
		t.Error("Leave must save the draft")
	}
	if len(store.saves) != 0 {
		t.Error("Leave must not finalize the submission")
	}
}

func TestSessionNavigationAccruesFocusTime(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	clk.Advance(10 * time.Second)
	if got := orch.NavigateQuestion(1); got != 1 {
		t.Fatalf("navigate: got index %d, want 1", got)
	}

	clk.Advance(5 * time.Second)
	if err := orch.RecordAnswer(1, []string{"true"}); err != nil {
		t.Fatal(err)
	}

	snap := orch.AnswerSnapshot()
	if snap[0].TimeSpentSeconds != 10 {
		t.Errorf("question 0 focus: got %d, want 10", snap[0].TimeSpentSeconds)
	}
	if snap[1].TimeSpentSeconds != 5 {
		t.Errorf("question 1 focus: got %d, want 5", snap[1].TimeSpentSeconds)
	}
}

func TestSessionNavigationClampsToRange(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	if got := orch.NavigateQuestion(-5); got != 0 {
		t.Errorf("below range: got %d, want 0", got)
	}
	if got := orch.NavigateQuestion(99); got != 2 {
		t.Errorf("above range: got %d, want 2", got)
	}
}

func TestSessionQuestionsStripCorrectAnswers(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)
	defer orch.Leave(context.Background())

	qs := orch.Questions()
	if len(qs) != 3 {
		t.Fatalf("got %d questions, want 3", len(qs))
	}
}

// Submission closes the update stream while the timer may still be
// publishing ticks; the stream must absorb that overlap without a send
// on the closed channel.
func TestSessionSubmitDuringTimerTicks(t *testing.T) {
	for i := 0; i < 50; i++ {
		clk := clock.NewFake(time.Now())
		orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				clk.Advance(time.Second)
			}
		}()

		if _, err := orch.RequestSubmit(context.Background()); err != nil {
			t.Fatal(err)
		}
		wg.Wait()

		select {
		case <-orch.Done():
		default:
			t.Fatal("Done not closed after submit")
		}
	}
}

func TestSessionRejectsAnswersAfterEnd(t *testing.T) {
	clk := clock.NewFake(time.Now())
	orch, _ := startSession(t, sessionAssessment(), clk, HostEnv{}, nil)

	if _, err := orch.RequestSubmit(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := orch.RecordAnswer(0, []string{"a"}); err == nil {
		t.Error("expected error recording an answer after the session ended")
	}
}
