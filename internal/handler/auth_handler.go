package handler

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/response"
	"github.com/excellencehub/proctor-backend/internal/service"
	"github.com/excellencehub/proctor-backend/internal/validator"
)

// AuthHandler exposes learner token provisioning to the identity
// service. Learner identity itself lives elsewhere; these endpoints
// only mint and revoke session tokens for already-authenticated
// learners, guarded by a shared provisioning key.
type AuthHandler struct {
	cfg  *config.Config
	auth *service.AuthService
	log  zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(cfg *config.Config, auth *service.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:  cfg,
		auth: auth,
		log:  log.With().Str("component", "auth_handler").Logger(),
	}
}

type issueTokenRequest struct {
	LearnerID int `json:"learner_id" binding:"required,gt=0"`
}

// IssueToken godoc
// POST /api/v1/auth/tokens
// Mints a learner JWT and registers the login session. Rejects the
// request while the learner already has an active session.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	var req issueTokenRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	token, err := h.auth.GenerateLearnerToken(c.Request.Context(), req.LearnerID)
	if err != nil {
		if errors.Is(err, service.ErrSessionAlreadyActive) {
			response.Fail(c, http.StatusConflict, response.ErrSessionActive)
			return
		}
		h.log.Error().Err(err).Int("learner_id", req.LearnerID).Msg("Token issuance failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"token": token})
}

// ResetSession godoc
// DELETE /api/v1/auth/tokens/:learner_id
// Revokes a learner's active login session so a new token can be
// minted, e.g. after a device change.
func (h *AuthHandler) ResetSession(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	learnerID, err := strconv.Atoi(c.Param("learner_id"))
	if err != nil || learnerID <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	if err := h.auth.ResetLearnerSession(c.Request.Context(), learnerID); err != nil {
		h.log.Error().Err(err).Int("learner_id", learnerID).Msg("Session reset failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "session_reset"})
}

func (h *AuthHandler) authorized(c *gin.Context) bool {
	if h.cfg.ProvisionKey == "" {
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return false
	}
	key := c.GetHeader("X-Provision-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(h.cfg.ProvisionKey)) != 1 {
		response.Fail(c, http.StatusUnauthorized, response.ErrForbidden)
		return false
	}
	return true
}
