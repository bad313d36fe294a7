package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/proctor"
	"github.com/excellencehub/proctor-backend/internal/submission"
)

// Update is one entry in the session's status stream. Exactly one field
// is set per update.
type Update struct {
	Proctoring           *model.ProctoringStatus `json:"proctoring,omitempty"`
	Warning              *proctor.Warning        `json:"warning,omitempty"`
	TimeRemainingSeconds *int                    `json:"time_remaining_seconds,omitempty"`
	Submission           *model.Submission       `json:"submission,omitempty"`
}

// HostEnv bundles the host environment primitives a session monitors.
// Camera may be nil when proctoring is not required.
type HostEnv struct {
	Camera proctor.CameraSource
	Focus  proctor.FocusSource
}

// ViolationSink receives each violation event for durable persistence,
// independent of the in-memory log. Best-effort.
type ViolationSink interface {
	Append(ctx context.Context, sessionID uuid.UUID, learnerID int, ev model.ViolationEvent) error
}

// Options tunes a session's monitoring and autosave behavior.
type Options struct {
	Classifier       proctor.Config
	Policy           proctor.Policy
	AutosaveInterval time.Duration
}

// Orchestrator composes the session core: classifier → aggregator →
// (timer ∪ escalation) → submission manager, plus the answer store and
// autosave controller. It is the only component that knows all the
// others.
type Orchestrator struct {
	assessment *model.Assessment
	learnerID  int
	opts       Options
	clk        clock.Clock
	log        zerolog.Logger

	manager    *submission.Manager
	answers    *AnswerStore
	timer      *Timer
	classifier *proctor.Classifier
	aggregator *proctor.Aggregator
	autosaver  *Autosaver
	violations ViolationSink

	sessionID uuid.UUID

	mu           sync.Mutex
	currentIndex int
	focusedAt    time.Time
	ended        bool

	// pubMu serializes sends on updates against its close, so a late
	// timer tick can never hit a closed channel.
	pubMu     sync.Mutex
	updates   chan Update
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// NewOrchestrator builds a session for one learner and assessment.
func NewOrchestrator(assessment *model.Assessment, learnerID int, manager *submission.Manager, violations ViolationSink, opts Options, clk clock.Clock, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		assessment: assessment,
		learnerID:  learnerID,
		opts:       opts,
		clk:        clk,
		log:        log.With().Str("component", "session").Logger(),
		manager:    manager,
		violations: violations,
		updates:    make(chan Update, 256),
		done:       make(chan struct{}),
	}
}

// Start creates the attempt and brings up the timer, monitoring and
// autosave. Returns the draft submission for the client.
func (o *Orchestrator) Start(ctx context.Context, env HostEnv) (*model.Submission, error) {
	sub, err := o.manager.StartAttempt(ctx, o.assessment, o.learnerID)
	if err != nil {
		return nil, err
	}
	o.sessionID = sub.SessionID
	o.log = o.log.With().Str("session_id", o.sessionID.String()).Logger()

	o.answers = NewAnswerStore(o.manager.Questions())
	o.focusedAt = o.clk.Now()

	o.aggregator = proctor.NewAggregator(
		o.opts.Policy, o.clk, o.log,
		o.publishProctoring,
		o.publishWarning,
		func() { o.ForceSubmit(model.SubmitReasonViolationEscalation) },
	)

	if o.assessment.RequireProctoring {
		o.classifier = proctor.NewClassifier(env.Camera, env.Focus, o, o.clk, o.opts.Classifier, o.log)
		o.aggregator.Begin()
		o.classifier.Start()
	}

	o.timer = NewTimer(o.clk, o.publishTime, func() { o.ForceSubmit(model.SubmitReasonTimerExpired) })
	o.timer.Start(time.Duration(o.assessment.DurationMinutes) * time.Minute)

	o.autosaver = NewAutosaver(o.answers, o.manager.SaveDraft, o.manager.InFlight, o.opts.AutosaveInterval, o.clk, o.log)
	o.autosaver.Start()

	o.log.Info().
		Int("questions", o.answers.Len()).
		Msg("Session started")

	return sub, nil
}

// ID returns the session ID.
func (o *Orchestrator) ID() uuid.UUID { return o.sessionID }

// Questions returns the attempt's questions with correct answers
// stripped.
func (o *Orchestrator) Questions() []model.QuestionForLearner {
	return model.ForLearner(o.manager.Questions())
}

// Updates is the session's status stream: proctoring changes, time
// ticks, warnings and submission transitions. Closed when the session
// ends.
func (o *Orchestrator) Updates() <-chan Update { return o.updates }

// Done is closed when the session ends, for observers that do not
// consume the update stream.
func (o *Orchestrator) Done() <-chan struct{} { return o.done }

// TimeRemaining returns whole seconds left on the countdown.
func (o *Orchestrator) TimeRemaining() int { return o.timer.Remaining() }

// ProctoringStatus returns a snapshot of the monitoring state.
func (o *Orchestrator) ProctoringStatus() model.ProctoringStatus {
	return o.aggregator.Status()
}

// AnswerSnapshot returns a copy of all answers recorded so far.
func (o *Orchestrator) AnswerSnapshot() []model.Answer {
	return o.answers.Snapshot()
}

// RecordAnswer stores a learner answer for the question at index,
// accruing focused time on it first.
func (o *Orchestrator) RecordAnswer(index int, values []string) error {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return errors.New("session has ended")
	}
	o.flushFocusTimeLocked()
	o.mu.Unlock()

	return o.answers.Record(index, values)
}

// NavigateQuestion moves focus by delta (+1 next, -1 previous), bounded
// to the question range, and restarts the focus stopwatch.
func (o *Orchestrator) NavigateQuestion(delta int) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.flushFocusTimeLocked()

	next := o.currentIndex + delta
	if next < 0 {
		next = 0
	}
	if max := o.answers.Len() - 1; next > max {
		next = max
	}
	o.currentIndex = next
	return next
}

// SaveDraft persists the current answers immediately, surfacing any
// failure to the caller. This is the explicit "Save Draft" action.
func (o *Orchestrator) SaveDraft(ctx context.Context) error {
	return o.autosaver.SaveNow(ctx)
}

// RequestSubmit is the learner-initiated submission path.
func (o *Orchestrator) RequestSubmit(ctx context.Context) (*model.Submission, error) {
	return o.submit(ctx, model.SubmitReasonManual)
}

// ForceSubmit is the system-initiated path shared by timer expiry and
// violation escalation. Errors are logged, not returned; the trigger
// has no caller to report to.
func (o *Orchestrator) ForceSubmit(reason model.SubmitReason) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := o.submit(ctx, reason); err != nil {
		o.log.Error().Err(err).Str("reason", string(reason)).Msg("Forced submission failed")
	}
}

// Leave ends the session without submitting: the draft is saved
// best-effort and every monitor is unwound.
func (o *Orchestrator) Leave(ctx context.Context) {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.flushFocusTimeLocked()
	o.mu.Unlock()

	if err := o.manager.SaveDraft(ctx, o.answers.Snapshot()); err != nil {
		o.log.Warn().Err(err).Msg("Draft save on leave failed")
	}
	o.teardown()
	o.closeUpdates()
	o.log.Info().Msg("Session left without submitting")
}

// RecordViolation implements proctor.Sink, forwarding to the aggregator
// and durably appending the event.
func (o *Orchestrator) RecordViolation(ev model.ViolationEvent) {
	o.aggregator.RecordViolation(ev)

	if o.violations != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.violations.Append(ctx, o.sessionID, o.learnerID, ev); err != nil {
			o.log.Warn().Err(err).Msg("Violation persist enqueue failed")
		}
	}
}

// SetFaceDetected implements proctor.Sink.
func (o *Orchestrator) SetFaceDetected(ok bool) { o.aggregator.SetFaceDetected(ok) }

// SetCameraEnabled implements proctor.Sink.
func (o *Orchestrator) SetCameraEnabled(ok bool) { o.aggregator.SetCameraEnabled(ok) }

func (o *Orchestrator) submit(ctx context.Context, reason model.SubmitReason) (*model.Submission, error) {
	o.mu.Lock()
	o.flushFocusTimeLocked()
	o.mu.Unlock()

	answers := o.answers.Snapshot()
	violations := o.aggregator.Status().Violations
	timeSpent := o.answers.TotalTimeSpent()

	sub, err := o.manager.Submit(ctx, reason, answers, violations, timeSpent)
	if err != nil {
		if errors.Is(err, submission.ErrPersistFailed) {
			// The attempt is stashed for reconciliation; the session
			// still ends.
			o.teardown()
			o.publish(Update{Submission: sub})
			o.closeUpdates()
		}
		return sub, err
	}

	o.teardown()
	o.publish(Update{Submission: sub})
	o.closeUpdates()
	return sub, nil
}

// teardown unwinds the timer, the classifier (camera + watchers) and
// any pending grace countdown. Leaving any of them running would be a
// resource leak.
func (o *Orchestrator) teardown() {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	o.ended = true
	o.mu.Unlock()

	o.timer.Stop()
	if o.classifier != nil {
		o.classifier.Stop()
	}
	o.aggregator.End()
	o.autosaver.Stop()
}

func (o *Orchestrator) closeUpdates() {
	o.closeOnce.Do(func() {
		o.pubMu.Lock()
		o.closed = true
		close(o.updates)
		o.pubMu.Unlock()
		close(o.done)
	})
}

func (o *Orchestrator) flushFocusTimeLocked() {
	now := o.clk.Now()
	if !o.focusedAt.IsZero() && o.answers != nil {
		o.answers.AddTime(o.currentIndex, now.Sub(o.focusedAt))
	}
	o.focusedAt = now
}

func (o *Orchestrator) publishProctoring(status model.ProctoringStatus) {
	o.publish(Update{Proctoring: &status})
}

func (o *Orchestrator) publishWarning(w proctor.Warning) {
	o.publish(Update{Warning: &w})
}

func (o *Orchestrator) publishTime(remaining int) {
	o.publish(Update{TimeRemainingSeconds: &remaining})
}

func (o *Orchestrator) publish(u Update) {
	o.pubMu.Lock()
	defer o.pubMu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.updates <- u:
	default:
		// Slow consumer: drop rather than block the session.
	}
}
