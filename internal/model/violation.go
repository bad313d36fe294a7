package model

import (
	"time"
)

// ViolationKind enumerates the classified irregular signals a proctored
// session can produce.
type ViolationKind string

const (
	ViolationCameraAbsent       ViolationKind = "camera_absent"
	ViolationFaceNotDetected    ViolationKind = "face_not_detected"
	ViolationMultipleFaces      ViolationKind = "multiple_faces"
	ViolationTabSwitched        ViolationKind = "tab_switched"
	ViolationWindowBlurred      ViolationKind = "window_blurred"
	ViolationFullscreenExited   ViolationKind = "fullscreen_exited"
	ViolationSuspiciousMovement ViolationKind = "suspicious_movement"
)

// Severity grades how serious a violation is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ViolationEvent is a single classified irregularity. Immutable once
// created; the session's violation log is strictly append-only.
type ViolationEvent struct {
	Kind        ViolationKind `json:"kind"`
	Severity    Severity      `json:"severity"`
	Timestamp   time.Time     `json:"timestamp"`
	Description string        `json:"description"`
}

// ProctoringStatus is the derived, mutable monitoring state of one
// session. Mutated only by the violation aggregator.
type ProctoringStatus struct {
	IsActive      bool             `json:"is_active"`
	CameraEnabled bool             `json:"camera_enabled"`
	FaceDetected  bool             `json:"face_detected"`
	Violations    []ViolationEvent `json:"violations"`
	WarningCount  int              `json:"warning_count"`
}

// Clone returns a deep copy safe to hand to other goroutines or to
// snapshot at submit time.
func (p *ProctoringStatus) Clone() ProctoringStatus {
	out := *p
	out.Violations = make([]ViolationEvent, len(p.Violations))
	copy(out.Violations, p.Violations)
	return out
}
