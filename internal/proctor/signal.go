package proctor

import "time"

// Frame is one RGBA camera sample captured by the host environment.
// Pixels holds 4 bytes per pixel (R, G, B, A), row-major.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// FocusKind enumerates window/document state changes reported by the
// host environment.
type FocusKind string

const (
	FocusPageHidden         FocusKind = "page_hidden"
	FocusWindowBlurred      FocusKind = "window_blurred"
	FocusFullscreenExited   FocusKind = "fullscreen_exited"
	FocusSuspiciousShortcut FocusKind = "suspicious_shortcut"
	FocusCameraLost         FocusKind = "camera_lost"
)

// FocusEvent is a single focus/visibility signal.
type FocusEvent struct {
	Kind   FocusKind
	At     time.Time
	Detail string
}

// CameraSource grants exclusive access to the session's camera stream.
// Acquire fails when the learner denied camera permission or no stream
// is available; the classifier treats that as a one-shot high-severity
// violation and never retries.
type CameraSource interface {
	Acquire() (FrameStream, error)
}

// FrameStream exposes the most recent camera sample. Latest never
// blocks; ok is false until the first frame arrives. Release frees the
// underlying stream and must be called exactly once.
type FrameStream interface {
	Latest() (Frame, bool)
	Release()
}

// FocusSource delivers focus/visibility events. The channel is closed
// by Close; senders are best-effort and never block the host.
type FocusSource interface {
	Events() <-chan FocusEvent
	Close()
}
