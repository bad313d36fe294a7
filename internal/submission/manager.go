// Package submission owns the one-way submission state machine
// (draft → submitted → graded → returned) and attempt accounting.
package submission

import (
	"context"
	"encoding/binary"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// Store is the external submission store contract.
type Store interface {
	CountAttempts(ctx context.Context, assessmentID uuid.UUID, learnerID int) (int, error)
	CreateDraft(ctx context.Context, sub *model.Submission) error
	SaveDraft(ctx context.Context, sub *model.Submission) error
	Save(ctx context.Context, sub *model.Submission) error
	GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error)
}

// Grader is the external grading collaborator. It may resolve
// immediately (auto-gradable kinds only) or defer by marking the result
// as requiring manual review.
type Grader interface {
	Grade(ctx context.Context, a *model.Assessment, sub *model.Submission) (*model.GradeResult, error)
}

// FailedSubmissionCache stashes submissions whose final persist failed
// after all retries, so a forced submission never silently vanishes.
type FailedSubmissionCache interface {
	Stash(ctx context.Context, sub *model.Submission) error
}

// Config tunes the bounded retry loop around the final persist.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff < 0 {
		c.RetryBackoff = 0
	} else if c.RetryBackoff == 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	return c
}

// Manager runs the submission lifecycle for one session. Submit is
// idempotent: duplicate triggers (timer and escalation racing) resolve
// inside the state machine, not by caller coordination.
type Manager struct {
	store  Store
	grader Grader
	cache  FailedSubmissionCache
	clk    clock.Clock
	cfg    Config
	log    zerolog.Logger

	mu         sync.Mutex
	assessment *model.Assessment
	questions  []model.Question
	current    *model.Submission
	inFlight   atomic.Bool
}

// NewManager creates a Manager.
func NewManager(store Store, grader Grader, cache FailedSubmissionCache, clk clock.Clock, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{
		store:  store,
		grader: grader,
		cache:  cache,
		clk:    clk,
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "submission_manager").Logger(),
	}
}

// StartAttempt creates a new draft submission, or fails with
// ErrAttemptExhausted when the learner has used all attempts. Question
// and option randomization is deterministic per attempt, seeded by the
// session ID, so a page reload never reshuffles.
func (m *Manager) StartAttempt(ctx context.Context, a *model.Assessment, learnerID int) (*model.Submission, error) {
	used, err := m.store.CountAttempts(ctx, a.ID, learnerID)
	if err != nil {
		return nil, err
	}
	if used >= a.Attempts {
		return nil, ErrAttemptExhausted
	}

	sessionID := uuid.New()
	questions := arrangeQuestions(a, sessionID)

	order := make([]uuid.UUID, len(questions))
	for i, q := range questions {
		order[i] = q.ID
	}

	sub := &model.Submission{
		ID:            uuid.New(),
		SessionID:     sessionID,
		AssessmentID:  a.ID,
		LearnerID:     learnerID,
		AttemptNumber: used + 1,
		Status:        model.SubmissionStatusDraft,
		QuestionOrder: order,
		StartedAt:     m.clk.Now(),
	}

	if err := m.store.CreateDraft(ctx, sub); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.assessment = a
	m.questions = questions
	m.current = sub
	m.mu.Unlock()

	m.log.Info().
		Str("session_id", sessionID.String()).
		Int("attempt", sub.AttemptNumber).
		Int("learner_id", learnerID).
		Msg("Attempt started")

	return cloneSubmission(sub), nil
}

// Questions returns the attempt's question sequence in its randomized
// order.
func (m *Manager) Questions() []model.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Question, len(m.questions))
	copy(out, m.questions)
	return out
}

// SaveDraft persists the given answers as the current draft. No-op once
// the submission has left the draft state.
func (m *Manager) SaveDraft(ctx context.Context, answers []model.Answer) error {
	m.mu.Lock()
	if m.current == nil || m.current.Status != model.SubmissionStatusDraft {
		m.mu.Unlock()
		return nil
	}
	m.current.Answers = answers
	snap := cloneSubmission(m.current)
	m.mu.Unlock()

	return m.store.SaveDraft(ctx, snap)
}

// InFlight reports whether a submit is currently in progress. Autosave
// ticks check this before running.
func (m *Manager) InFlight() bool { return m.inFlight.Load() }

// Current returns a copy of the current submission, or nil.
func (m *Manager) Current() *model.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return cloneSubmission(m.current)
}

// Submit transitions draft → submitted, freezes answers, stamps times,
// snapshots violations, persists with bounded retries, then hands the
// submission to the grader. Calling Submit when already submitted or
// graded returns the existing submission with no side effects.
func (m *Manager) Submit(ctx context.Context, reason model.SubmitReason, answers []model.Answer, violations []model.ViolationEvent, timeSpentSeconds int) (*model.Submission, error) {
	m.mu.Lock()

	if m.current == nil {
		m.mu.Unlock()
		return nil, ErrNoActiveDraft
	}
	if m.current.Status != model.SubmissionStatusDraft {
		sub := cloneSubmission(m.current)
		m.mu.Unlock()
		return sub, nil
	}

	now := m.clk.Now()
	isLate := m.assessment.DueDate != nil && now.After(*m.assessment.DueDate)

	// Forced submissions always go through; the learner's session is
	// ending involuntarily either way.
	if isLate && !m.assessment.AllowLateSubmission && reason == model.SubmitReasonManual {
		m.mu.Unlock()
		return nil, ErrSubmissionWindowClosed
	}

	// Set synchronously before the store call begins so concurrent
	// autosave ticks are suppressed.
	m.inFlight.Store(true)
	defer m.inFlight.Store(false)

	m.current.Answers = answers
	m.current.SubmittedAt = &now
	m.current.TimeSpentSeconds = timeSpentSeconds
	m.current.IsLate = isLate
	m.current.SubmitReason = reason
	m.current.IsAutoSubmitted = reason.Forced()
	m.current.ViolationsAtSubmit = append([]model.ViolationEvent(nil), violations...)
	m.current.Status = model.SubmissionStatusSubmitted

	sub := cloneSubmission(m.current)
	m.mu.Unlock()

	m.log.Info().
		Str("session_id", sub.SessionID.String()).
		Str("reason", string(reason)).
		Bool("is_late", isLate).
		Int("violations", len(sub.ViolationsAtSubmit)).
		Msg("Submission accepted")

	if err := m.persistWithRetry(ctx, sub); err != nil {
		// Never discard: stash for reconciliation and surface the failure.
		if stashErr := m.cache.Stash(ctx, sub); stashErr != nil {
			m.log.Error().Err(stashErr).Msg("CRITICAL: failed to stash unsaved submission")
		}
		return sub, ErrPersistFailed
	}

	return m.gradeAndPersist(ctx, sub)
}

// MarkGraded applies an externally produced grade (manual review) to a
// submitted submission.
func (m *Manager) MarkGraded(ctx context.Context, result *model.GradeResult) (*model.Submission, error) {
	m.mu.Lock()
	if m.current == nil || m.current.Status != model.SubmissionStatusSubmitted {
		m.mu.Unlock()
		return nil, ErrNotAwaitingReview
	}
	applyGrade(m.current, result)
	m.current.Status = model.SubmissionStatusGraded
	sub := cloneSubmission(m.current)
	m.mu.Unlock()

	if err := m.store.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// MarkReturned transitions graded → returned.
func (m *Manager) MarkReturned(ctx context.Context) (*model.Submission, error) {
	m.mu.Lock()
	if m.current == nil || m.current.Status != model.SubmissionStatusGraded {
		m.mu.Unlock()
		return nil, ErrNotAwaitingReview
	}
	m.current.Status = model.SubmissionStatusReturned
	sub := cloneSubmission(m.current)
	m.mu.Unlock()

	if err := m.store.Save(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (m *Manager) persistWithRetry(ctx context.Context, sub *model.Submission) error {
	var err error
	for attempt := 1; attempt <= m.cfg.MaxRetries; attempt++ {
		if err = m.store.Save(ctx, sub); err == nil {
			return nil
		}
		m.log.Warn().Err(err).Int("attempt", attempt).Msg("Submission persist failed")
		if attempt < m.cfg.MaxRetries {
			time.Sleep(m.cfg.RetryBackoff * time.Duration(attempt))
		}
	}
	return err
}

func (m *Manager) gradeAndPersist(ctx context.Context, sub *model.Submission) (*model.Submission, error) {
	m.mu.Lock()
	assessment := m.assessment
	m.mu.Unlock()

	result, err := m.grader.Grade(ctx, assessment, sub)
	if err != nil {
		// Grading unavailable: stay submitted, flag for manual review.
		m.log.Warn().Err(err).Msg("Auto-grade unavailable, deferring to manual review")
		result = &model.GradeResult{RequiresManualReview: true}
	}

	m.mu.Lock()
	applyGrade(m.current, result)
	if !result.RequiresManualReview {
		m.current.Status = model.SubmissionStatusGraded
	}
	out := cloneSubmission(m.current)
	m.mu.Unlock()

	if err := m.store.Save(ctx, out); err != nil {
		m.log.Error().Err(err).Msg("Failed to persist grading outcome")
	}
	return out, nil
}

func applyGrade(sub *model.Submission, result *model.GradeResult) {
	sub.Score = result.Score
	sub.Percentage = result.Percentage
	sub.Grade = result.Grade
	sub.Feedback = result.Feedback
	sub.RequiresManualReview = result.RequiresManualReview
}

// arrangeQuestions applies the assessment's randomization settings,
// seeded by the session ID so the arrangement is stable for the whole
// attempt.
func arrangeQuestions(a *model.Assessment, sessionID uuid.UUID) []model.Question {
	questions := make([]model.Question, len(a.Questions))
	copy(questions, a.Questions)

	seed := int64(binary.BigEndian.Uint64(sessionID[:8]))
	rng := rand.New(rand.NewSource(seed))

	if a.RandomizeQuestions {
		rng.Shuffle(len(questions), func(i, j int) {
			questions[i], questions[j] = questions[j], questions[i]
		})
	}

	if a.RandomizeOptions {
		for i := range questions {
			q := &questions[i]
			if len(q.Options) < 2 || !shuffleSafe(q.QuestionType) {
				continue
			}
			opts := append([]string(nil), q.Options...)
			rng.Shuffle(len(opts), func(x, y int) {
				opts[x], opts[y] = opts[y], opts[x]
			})
			q.Options = opts
		}
	}

	return questions
}

// shuffleSafe reports whether option order carries no meaning for the
// kind. Ordering and matching options must keep their authored order.
func shuffleSafe(t model.QuestionType) bool {
	switch t {
	case model.QuestionTypeOrdering, model.QuestionTypeMatching, model.QuestionTypeTrueFalse:
		return false
	default:
		return true
	}
}

func cloneSubmission(sub *model.Submission) *model.Submission {
	out := *sub
	out.Answers = make([]model.Answer, len(sub.Answers))
	for i, a := range sub.Answers {
		out.Answers[i] = a
		out.Answers[i].Value = append([]string(nil), a.Value...)
	}
	out.ViolationsAtSubmit = append([]model.ViolationEvent(nil), sub.ViolationsAtSubmit...)
	out.QuestionOrder = append([]uuid.UUID(nil), sub.QuestionOrder...)
	return &out
}
