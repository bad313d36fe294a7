package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/middleware"
	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/response"
	"github.com/excellencehub/proctor-backend/internal/service"
	"github.com/excellencehub/proctor-backend/internal/submission"
)

// SessionHandler exposes session state, submission and reporting over
// REST. The live session itself runs over the WebSocket stream.
type SessionHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		log:      log.With().Str("component", "session_handler").Logger(),
	}
}

// GetState godoc
// GET /api/v1/learner/sessions/:session_id
// Returns the submission and, when the session is live, the remaining
// time. Used by clients reconnecting after a page reload.
func (h *SessionHandler) GetState(c *gin.Context) {
	sessionID, learnerID, ok := h.sessionAccess(c)
	if !ok {
		return
	}

	sub, err := h.sessions.GetSubmission(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Get session state failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	if sub.LearnerID != learnerID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	state := gin.H{"submission": sub}

	if orch, err := h.sessions.Get(sessionID); err == nil {
		state["time_remaining_seconds"] = orch.TimeRemaining()
		state["proctoring"] = orch.ProctoringStatus()
		state["answers"] = orch.AnswerSnapshot()
		state["questions"] = orch.Questions()
	} else {
		// The in-memory session is gone (restart or ended). Rebuild what
		// the caches still know.
		if remaining, rerr := h.sessions.RecoverRemaining(c.Request.Context(), sessionID); rerr == nil {
			state["time_remaining_seconds"] = remaining
		}
		if questions, qerr := h.sessions.LearnerQuestions(c.Request.Context(), sub.AssessmentID); qerr == nil {
			state["questions"] = questions
		}
		if sub.Status == model.SubmissionStatusDraft {
			if answers, aerr := h.sessions.DraftAnswers(c.Request.Context(), sessionID); aerr == nil {
				state["answers"] = answers
			}
		}
	}

	response.Success(c, http.StatusOK, state)
}

// Submit godoc
// POST /api/v1/learner/sessions/:session_id/submit
// Finalizes a live session outside the WebSocket stream. Idempotent.
func (h *SessionHandler) Submit(c *gin.Context) {
	sessionID, learnerID, ok := h.sessionAccess(c)
	if !ok {
		return
	}

	orch, err := h.sessions.Get(sessionID)
	if err != nil {
		// Session already ended: return the persisted outcome so a
		// retried submit stays idempotent.
		sub, gerr := h.sessions.GetSubmission(c.Request.Context(), sessionID)
		if gerr != nil {
			response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
			return
		}
		if sub.LearnerID != learnerID {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return
		}
		response.Success(c, http.StatusOK, sub)
		return
	}

	sub, err := orch.RequestSubmit(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, submission.ErrSubmissionWindowClosed):
			response.Fail(c, http.StatusConflict, response.ErrSubmissionWindowClosed)
		case errors.Is(err, submission.ErrNoActiveDraft):
			response.Fail(c, http.StatusConflict, response.ErrNoActiveDraft)
		case errors.Is(err, submission.ErrPersistFailed):
			// The attempt is stashed for reconciliation. The learner's
			// work is safe even though the store is down.
			response.Success(c, http.StatusAccepted, sub)
		default:
			h.log.Error().Err(err).Msg("Submit failed")
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	response.Success(c, http.StatusOK, sub)
}

// SaveDraft godoc
// POST /api/v1/learner/sessions/:session_id/draft
// Explicitly persists the current draft, surfacing failures.
func (h *SessionHandler) SaveDraft(c *gin.Context) {
	sessionID, _, ok := h.sessionAccess(c)
	if !ok {
		return
	}

	orch, err := h.sessions.Get(sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}

	if err := orch.SaveDraft(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("Draft save failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "draft_saved"})
}

// ViolationReport godoc
// GET /api/v1/learner/sessions/:session_id/violations
// Returns the persisted violation log for a session.
func (h *SessionHandler) ViolationReport(c *gin.Context) {
	sessionID, learnerID, ok := h.sessionAccess(c)
	if !ok {
		return
	}

	sub, err := h.sessions.GetSubmission(c.Request.Context(), sessionID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrSessionNotFound)
		return
	}
	if sub.LearnerID != learnerID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return
	}

	events, err := h.sessions.ViolationReport(c.Request.Context(), sessionID)
	if err != nil {
		h.log.Error().Err(err).Msg("Violation report failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	page, perPage := paginationParams(c)
	total := len(events)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{
		"session_id": sessionID,
		"violations": events[start:end],
	}, &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	})
}

// paginationParams reads page/per_page query values with safe bounds.
func paginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if err != nil || perPage < 1 || perPage > 200 {
		perPage = 50
	}
	return page, perPage
}

// sessionAccess parses the session ID and resolves the caller's
// learner ID from the JWT claims.
func (h *SessionHandler) sessionAccess(c *gin.Context) (uuid.UUID, int, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return uuid.Nil, 0, false
	}

	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, 0, false
	}

	return sessionID, claims.LearnerID, true
}
