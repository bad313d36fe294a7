package proctor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// Policy configures when accumulated violations terminate a session.
type Policy struct {
	WarningThreshold int           // violations before escalation
	GracePeriod      time.Duration // countdown before forced submit
	WarningDisplay   time.Duration // learner-facing toast duration
}

const (
	DefaultWarningThreshold = 3
	DefaultGracePeriod      = 10 * time.Second
	DefaultWarningDisplay   = 5 * time.Second
)

func (p Policy) withDefaults() Policy {
	if p.WarningThreshold <= 0 {
		p.WarningThreshold = DefaultWarningThreshold
	}
	if p.GracePeriod <= 0 {
		p.GracePeriod = DefaultGracePeriod
	}
	if p.WarningDisplay <= 0 {
		p.WarningDisplay = DefaultWarningDisplay
	}
	return p
}

// Warning is the learner-facing surface of a violation. Final warnings
// announce the grace countdown and cannot be dismissed.
type Warning struct {
	Event      model.ViolationEvent `json:"event"`
	DisplayFor time.Duration        `json:"display_for"`
	Final      bool                 `json:"final"`
}

// Aggregator owns ProctoringStatus for one session: it appends
// violations, surfaces warnings, and runs the escalation policy. The
// violation log is append-only; nothing is ever deleted or mutated.
type Aggregator struct {
	mu     sync.Mutex
	status model.ProctoringStatus
	policy Policy
	clk    clock.Clock
	log    zerolog.Logger

	onStatus  func(model.ProctoringStatus)
	onWarning func(Warning)
	escalate  func()

	graceTimer   clock.Timer
	graceStarted bool
	ended        bool
}

// NewAggregator creates an Aggregator. onStatus republishes the updated
// status to subscribers, onWarning surfaces learner-facing warnings,
// and escalate fires once if the grace countdown elapses.
func NewAggregator(policy Policy, clk clock.Clock, log zerolog.Logger, onStatus func(model.ProctoringStatus), onWarning func(Warning), escalate func()) *Aggregator {
	return &Aggregator{
		status:    model.ProctoringStatus{CameraEnabled: true},
		policy:    policy.withDefaults(),
		clk:       clk,
		log:       log.With().Str("component", "aggregator").Logger(),
		onStatus:  onStatus,
		onWarning: onWarning,
		escalate:  escalate,
	}
}

// Begin marks monitoring active.
func (a *Aggregator) Begin() {
	a.mu.Lock()
	a.status.IsActive = true
	snap := a.status.Clone()
	a.mu.Unlock()
	a.publish(snap)
}

// RecordViolation appends the event, bumps the warning count, surfaces
// the warning and re-evaluates the escalation policy.
func (a *Aggregator) RecordViolation(ev model.ViolationEvent) {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}

	a.status.Violations = append(a.status.Violations, ev)
	a.status.WarningCount = len(a.status.Violations)
	snap := a.status.Clone()

	warning := Warning{Event: ev, DisplayFor: a.policy.WarningDisplay}

	startGrace := a.status.WarningCount >= a.policy.WarningThreshold && !a.graceStarted
	if startGrace {
		a.graceStarted = true
		a.graceTimer = a.clk.AfterFunc(a.policy.GracePeriod, a.fireEscalation)
	}
	a.mu.Unlock()

	a.log.Warn().
		Str("kind", string(ev.Kind)).
		Str("severity", string(ev.Severity)).
		Int("warning_count", snap.WarningCount).
		Msg("Violation recorded")

	if a.onWarning != nil {
		a.onWarning(warning)
		if startGrace {
			a.onWarning(Warning{
				Event: model.ViolationEvent{
					Kind:        ev.Kind,
					Severity:    model.SeverityHigh,
					Timestamp:   ev.Timestamp,
					Description: "Too many violations. Your assessment will be submitted automatically.",
				},
				DisplayFor: a.policy.GracePeriod,
				Final:      true,
			})
		}
	}
	a.publish(snap)
}

// SetFaceDetected updates the face presence flag.
func (a *Aggregator) SetFaceDetected(ok bool) {
	a.mu.Lock()
	if a.ended || a.status.FaceDetected == ok {
		a.mu.Unlock()
		return
	}
	a.status.FaceDetected = ok
	snap := a.status.Clone()
	a.mu.Unlock()
	a.publish(snap)
}

// SetCameraEnabled updates the camera availability flag. Once disabled
// it stays disabled for the rest of the session.
func (a *Aggregator) SetCameraEnabled(ok bool) {
	a.mu.Lock()
	if a.ended || a.status.CameraEnabled == ok {
		a.mu.Unlock()
		return
	}
	a.status.CameraEnabled = ok
	snap := a.status.Clone()
	a.mu.Unlock()
	a.publish(snap)
}

// Status returns a snapshot copy of the current proctoring state.
func (a *Aggregator) Status() model.ProctoringStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Clone()
}

// End terminates monitoring: cancels any pending grace countdown and
// resets the warning count. The violation log is kept for the audit
// report. Ending is the only thing that cancels escalation.
func (a *Aggregator) End() {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}
	a.ended = true
	a.status.IsActive = false
	a.status.WarningCount = 0
	if a.graceTimer != nil {
		a.graceTimer.Stop()
		a.graceTimer = nil
	}
	snap := a.status.Clone()
	a.mu.Unlock()
	a.publish(snap)
}

func (a *Aggregator) fireEscalation() {
	a.mu.Lock()
	if a.ended {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	a.log.Warn().Msg("Grace period elapsed, forcing submission")
	if a.escalate != nil {
		a.escalate()
	}
}

func (a *Aggregator) publish(snap model.ProctoringStatus) {
	if a.onStatus != nil {
		a.onStatus(snap)
	}
}
