package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/middleware"
	"github.com/excellencehub/proctor-backend/internal/service"
	"github.com/excellencehub/proctor-backend/internal/session"
	"github.com/excellencehub/proctor-backend/internal/submission"
	ws "github.com/excellencehub/proctor-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs assessment sessions over WebSocket: camera frames and
// focus signals flow in, status updates flow out.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/learner/assessments/:assessment_id/stream?camera=true
// Upgrades to WebSocket and starts an assessment attempt bound to this
// connection. The connection closing without a submit leaves the draft
// recoverable.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	cameraAvailable := c.Query("camera") == "true"

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	safe := ws.NewSafeConn(conn)
	bridge := ws.NewSignalBridge(cameraAvailable)

	orch, sub, err := h.sessions.StartSession(c.Request.Context(), claims.LearnerID, assessmentID, session.HostEnv{
		Camera: bridge,
		Focus:  bridge,
	})
	if err != nil {
		safe.WriteError(startErrorMessage(err))
		return
	}

	wsLog := h.log.With().
		Int("learner_id", claims.LearnerID).
		Str("session_id", orch.ID().String()).
		Logger()

	wsLog.Info().Msg("Learner connected")

	// Initial payload: the draft, the question sequence and the clock.
	safe.WriteTyped(ws.PushEvent{Event: ws.EventStatus, Payload: gin.H{
		"submission":             sub,
		"questions":              orch.Questions(),
		"time_remaining_seconds": orch.TimeRemaining(),
		"proctoring":             orch.ProctoringStatus(),
	}})

	// Push stream: session updates → client.
	go h.pushUpdates(orch, safe, wsLog)

	submitted := h.readLoop(conn, safe, bridge, orch, wsLog)

	// A dropped connection is not a submission. Save the draft and let
	// the learner resume; the timer keeps running server-side.
	if !submitted {
		select {
		case <-orch.Done():
			// Session already ended (timer expiry or escalation).
		default:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			orch.Leave(ctx)
			cancel()
		}
	}

	wsLog.Info().Bool("submitted", submitted).Msg("Learner disconnected")
}

// pushUpdates forwards the orchestrator's update stream until it closes.
func (h *WSHandler) pushUpdates(orch *session.Orchestrator, safe *ws.SafeConn, wsLog zerolog.Logger) {
	for update := range orch.Updates() {
		var ev ws.PushEvent
		switch {
		case update.TimeRemainingSeconds != nil:
			ev = ws.PushEvent{Event: ws.EventTime, Payload: gin.H{"seconds": *update.TimeRemainingSeconds}}
		case update.Warning != nil:
			ev = ws.PushEvent{Event: ws.EventWarning, Payload: update.Warning}
		case update.Proctoring != nil:
			ev = ws.PushEvent{Event: ws.EventStatus, Payload: gin.H{"proctoring": update.Proctoring}}
		case update.Submission != nil:
			ev = ws.PushEvent{Event: ws.EventSubmitted, Payload: update.Submission}
		default:
			continue
		}
		if err := safe.WriteTyped(ev); err != nil {
			wsLog.Debug().Err(err).Msg("Push write failed")
			return
		}
	}
}

// readLoop dispatches client actions until the connection closes.
// Returns true when the session ended with a submission.
func (h *WSHandler) readLoop(conn *websocket.Conn, safe *ws.SafeConn, bridge *ws.SignalBridge, orch *session.Orchestrator, wsLog zerolog.Logger) bool {
	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return false
		}

		switch msg.Action {
		case ws.ActionAnswer:
			if err := orch.RecordAnswer(msg.QuestionIndex, msg.Value); err != nil {
				safe.WriteError(err.Error())
				continue
			}
			safe.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Status: "recorded"})

		case ws.ActionNavigate:
			index := orch.NavigateQuestion(msg.Delta)
			safe.WriteTyped(ws.NavigatedResponse{Event: ws.EventNavigated, QuestionIndex: index})

		case ws.ActionFrame:
			bridge.PushFrame(msg.Width, msg.Height, msg.Pixels)

		case ws.ActionFocus:
			bridge.PushFocus(msg.Kind, msg.Detail)

		case ws.ActionSaveDraft:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := orch.SaveDraft(ctx)
			cancel()
			if err != nil {
				wsLog.Warn().Err(err).Msg("Explicit draft save failed")
				safe.WriteError("draft save failed")
				continue
			}
			safe.WriteTyped(ws.SavedResponse{Event: ws.EventSaved, Status: "draft_saved"})

		case ws.ActionSubmit:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			_, err := orch.RequestSubmit(ctx)
			cancel()
			if err != nil && !errors.Is(err, submission.ErrPersistFailed) {
				safe.WriteError(submitErrorMessage(err))
				continue
			}
			// The submitted event arrives through the push stream.
			return true

		case ws.ActionLeave:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			orch.Leave(ctx)
			cancel()
			return false

		case ws.ActionPing:
			safe.WriteTyped(ws.PongResponse{Event: ws.EventPong})

		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			safe.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

func startErrorMessage(err error) string {
	switch {
	case errors.Is(err, submission.ErrAttemptExhausted):
		return "all attempts for this assessment have been used"
	case errors.Is(err, service.ErrSessionInUse):
		return "another session is already in progress"
	case errors.Is(err, service.ErrAssessmentClosed):
		return "this assessment is past due"
	default:
		return "failed to start session"
	}
}

func submitErrorMessage(err error) string {
	switch {
	case errors.Is(err, submission.ErrSubmissionWindowClosed):
		return "the submission window has closed"
	case errors.Is(err, submission.ErrNoActiveDraft):
		return "no active draft to submit"
	default:
		return "submission failed"
	}
}
