package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/excellencehub/proctor-backend/internal/proctor"
)

// ErrCameraUnavailable is returned by Acquire when the client reported
// no usable camera.
var ErrCameraUnavailable = errors.New("camera unavailable")

// SignalBridge adapts a WebSocket connection to the camera and focus
// source contracts. The connection's read loop pushes frames and focus
// events in; the session's classifier pulls them out.
type SignalBridge struct {
	cameraAvailable bool

	mu       sync.Mutex
	frame    proctor.Frame
	hasFrame bool
	closed   bool

	focus chan proctor.FocusEvent
}

// NewSignalBridge creates a bridge. cameraAvailable reflects whether
// the client granted camera permission when opening the stream.
func NewSignalBridge(cameraAvailable bool) *SignalBridge {
	return &SignalBridge{
		cameraAvailable: cameraAvailable,
		focus:           make(chan proctor.FocusEvent, 64),
	}
}

// Acquire implements proctor.CameraSource.
func (b *SignalBridge) Acquire() (proctor.FrameStream, error) {
	if !b.cameraAvailable {
		return nil, ErrCameraUnavailable
	}
	return b, nil
}

// Latest implements proctor.FrameStream.
func (b *SignalBridge) Latest() (proctor.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame, b.hasFrame
}

// Release implements proctor.FrameStream. Frames pushed afterwards are
// dropped.
func (b *SignalBridge) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame = proctor.Frame{}
	b.hasFrame = false
	b.cameraAvailable = false
}

// Events implements proctor.FocusSource.
func (b *SignalBridge) Events() <-chan proctor.FocusEvent { return b.focus }

// Close implements proctor.FocusSource. Safe to call more than once.
func (b *SignalBridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.focus)
}

// PushFrame records the newest camera sample from the client.
func (b *SignalBridge) PushFrame(width, height int, pixels []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.cameraAvailable {
		return
	}
	b.frame = proctor.Frame{Width: width, Height: height, Pixels: pixels}
	b.hasFrame = true
}

// PushFocus forwards a focus event without ever blocking the read
// loop. Events are dropped when the classifier lags or has stopped.
func (b *SignalBridge) PushFocus(kind, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.focus <- proctor.FocusEvent{
		Kind:   proctor.FocusKind(kind),
		At:     time.Now(),
		Detail: detail,
	}:
	default:
	}
}
