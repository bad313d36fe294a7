package proctor

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// Config holds the classifier thresholds. Zero values are replaced by
// the reference defaults.
type Config struct {
	FrameInterval      time.Duration // camera sampling cadence
	SkinRatioThreshold float64       // min skin-pixel fraction counted as a face
	RequireFullscreen  bool
}

const (
	DefaultFrameInterval      = 2 * time.Second
	DefaultSkinRatioThreshold = 0.02
)

func (c Config) withDefaults() Config {
	if c.FrameInterval <= 0 {
		c.FrameInterval = DefaultFrameInterval
	}
	if c.SkinRatioThreshold <= 0 {
		c.SkinRatioThreshold = DefaultSkinRatioThreshold
	}
	return c
}

// Sink receives classifier output. Calls are made from the classifier's
// goroutines; implementations serialize them onto the session loop.
type Sink interface {
	RecordViolation(ev model.ViolationEvent)
	SetFaceDetected(ok bool)
	SetCameraEnabled(ok bool)
}

// Classifier samples environmental signals and emits typed violations.
// It holds no cross-event state beyond the previous frame's skin ratio;
// deduplication and escalation belong to the aggregator.
type Classifier struct {
	camera CameraSource
	focus  FocusSource
	sink   Sink
	clk    clock.Clock
	cfg    Config
	log    zerolog.Logger

	stream         FrameStream
	cameraDisabled atomic.Bool
	stop           chan struct{}
	wg             sync.WaitGroup
	started        bool
}

// NewClassifier creates a Classifier. camera may be nil when the
// assessment does not require a camera.
func NewClassifier(camera CameraSource, focus FocusSource, sink Sink, clk clock.Clock, cfg Config, log zerolog.Logger) *Classifier {
	return &Classifier{
		camera: camera,
		focus:  focus,
		sink:   sink,
		clk:    clk,
		cfg:    cfg.withDefaults(),
		log:    log.With().Str("component", "classifier").Logger(),
	}
}

// Start acquires the camera and begins the frame and focus watchers.
// Camera failure is not fatal: it degrades to a single high-severity
// violation and disables camera checks for the rest of the session.
func (c *Classifier) Start() {
	if c.started {
		return
	}
	c.started = true
	c.stop = make(chan struct{})

	if c.camera != nil {
		stream, err := c.camera.Acquire()
		if err != nil {
			c.log.Warn().Err(err).Msg("Camera unavailable, disabling camera checks")
			c.cameraDisabled.Store(true)
			c.sink.SetCameraEnabled(false)
			c.sink.RecordViolation(model.ViolationEvent{
				Kind:        model.ViolationFaceNotDetected,
				Severity:    model.SeverityHigh,
				Timestamp:   c.clk.Now(),
				Description: "Camera access denied or stream unavailable",
			})
		} else {
			c.stream = stream
			c.sink.SetCameraEnabled(true)
			// The ticker must exist before Start returns so callers can
			// rely on the sampling schedule being in place.
			ticker := c.clk.NewTicker(c.cfg.FrameInterval)
			c.wg.Add(1)
			go c.frameLoop(ticker)
		}
	} else {
		c.cameraDisabled.Store(true)
		c.sink.SetCameraEnabled(false)
	}

	if c.focus != nil {
		c.wg.Add(1)
		go c.focusLoop()
	}
}

// Stop releases the camera stream and unsubscribes all watchers. Safe
// to call once; the classifier cannot be restarted.
func (c *Classifier) Stop() {
	if !c.started {
		return
	}
	c.started = false
	close(c.stop)
	if c.focus != nil {
		c.focus.Close()
	}
	c.wg.Wait()
	if c.stream != nil {
		c.stream.Release()
		c.stream = nil
	}
}

func (c *Classifier) frameLoop(ticker clock.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C():
			if c.cameraDisabled.Load() {
				return
			}
			c.sampleFrame()
		}
	}
}

func (c *Classifier) sampleFrame() {
	frame, ok := c.stream.Latest()
	if !ok {
		return
	}

	ratio := SkinRatio(frame)
	detected := ratio >= c.cfg.SkinRatioThreshold
	c.sink.SetFaceDetected(detected)

	if !detected {
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationFaceNotDetected,
			Severity:    model.SeverityMedium,
			Timestamp:   c.clk.Now(),
			Description: "Learner face not detected in camera view",
		})
	}
}

func (c *Classifier) focusLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.stop:
			return
		case ev, ok := <-c.focus.Events():
			if !ok {
				return
			}
			c.classifyFocus(ev)
		}
	}
}

func (c *Classifier) classifyFocus(ev FocusEvent) {
	at := ev.At
	if at.IsZero() {
		at = c.clk.Now()
	}

	switch ev.Kind {
	case FocusPageHidden:
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationTabSwitched,
			Severity:    model.SeverityHigh,
			Timestamp:   at,
			Description: "Learner switched to another tab or application",
		})
	case FocusWindowBlurred:
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationWindowBlurred,
			Severity:    model.SeverityMedium,
			Timestamp:   at,
			Description: "Exam window lost focus",
		})
	case FocusFullscreenExited:
		if !c.cfg.RequireFullscreen {
			return
		}
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationFullscreenExited,
			Severity:    model.SeverityHigh,
			Timestamp:   at,
			Description: "Learner exited fullscreen mode",
		})
	case FocusSuspiciousShortcut:
		desc := "Suspicious keyboard shortcut detected"
		if ev.Detail != "" {
			desc += ": " + ev.Detail
		}
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationSuspiciousMovement,
			Severity:    model.SeverityMedium,
			Timestamp:   at,
			Description: desc,
		})
	case FocusCameraLost:
		// One-shot. The camera is never reacquired mid-session.
		if c.cameraDisabled.Swap(true) {
			return
		}
		c.sink.SetCameraEnabled(false)
		c.sink.SetFaceDetected(false)
		c.sink.RecordViolation(model.ViolationEvent{
			Kind:        model.ViolationCameraAbsent,
			Severity:    model.SeverityHigh,
			Timestamp:   at,
			Description: "Camera stream was lost during the session",
		})
	default:
		c.log.Debug().Str("kind", string(ev.Kind)).Msg("Unknown focus signal")
	}
}
