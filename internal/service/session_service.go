package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/grading"
	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/proctor"
	"github.com/excellencehub/proctor-backend/internal/repository"
	"github.com/excellencehub/proctor-backend/internal/session"
	"github.com/excellencehub/proctor-backend/internal/submission"
)

// Session service errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionInUse     = errors.New("learner already has an active session")
	ErrAssessmentClosed = errors.New("assessment is past due and late submissions are not allowed")
)

// SessionService owns the registry of live assessment sessions and
// wires each one: assessment load, submission manager, orchestrator.
type SessionService struct {
	cfg         *config.Config
	assessments *repository.AssessmentRepository
	submissions *repository.SubmissionRepository
	violations  *repository.ViolationRepository
	rdb         *redis.Client
	clk         clock.Clock
	log         zerolog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*session.Orchestrator
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	assessments *repository.AssessmentRepository,
	submissions *repository.SubmissionRepository,
	violations *repository.ViolationRepository,
	rdb *redis.Client,
	clk clock.Clock,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:         cfg,
		assessments: assessments,
		submissions: submissions,
		violations:  violations,
		rdb:         rdb,
		clk:         clk,
		log:         log.With().Str("component", "session_service").Logger(),
		active:      make(map[uuid.UUID]*session.Orchestrator),
	}
}

// StartSession begins a new attempt for the learner. One active
// session per learner; a second start while one is live is rejected.
func (s *SessionService) StartSession(ctx context.Context, learnerID int, assessmentID uuid.UUID, env session.HostEnv) (*session.Orchestrator, *model.Submission, error) {
	activeKey := config.CacheKey.LearnerActiveSessionKey(learnerID)
	existing, err := s.rdb.Get(ctx, activeKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("check active session: %w", err)
	}
	if existing != "" {
		if id, parseErr := uuid.Parse(existing); parseErr == nil {
			s.mu.Lock()
			_, live := s.active[id]
			s.mu.Unlock()
			if live {
				return nil, nil, ErrSessionInUse
			}
		}
		// Stale marker from a crashed session. Clear and continue.
		_ = s.rdb.Del(ctx, activeKey).Err()
	}

	assessment, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		return nil, nil, err
	}

	// Past due with no late window means there is nothing to start.
	if assessment.DueDate != nil && s.clk.Now().After(*assessment.DueDate) && !assessment.AllowLateSubmission {
		return nil, nil, ErrAssessmentClosed
	}

	manager := submission.NewManager(
		s.submissions,
		grading.NewAutoGrader(s.log),
		s.submissions,
		s.clk,
		submission.Config{
			MaxRetries:   s.cfg.SubmitMaxRetries,
			RetryBackoff: s.cfg.SubmitRetryBackoff,
		},
		s.log,
	)

	orch := session.NewOrchestrator(assessment, learnerID, manager, s.violations, session.Options{
		Classifier: proctor.Config{
			FrameInterval:      s.cfg.FrameInterval,
			SkinRatioThreshold: s.cfg.SkinRatioThreshold,
			RequireFullscreen:  true,
		},
		Policy: proctor.Policy{
			WarningThreshold: s.cfg.WarningThreshold,
			GracePeriod:      s.cfg.GracePeriod,
			WarningDisplay:   s.cfg.WarningDisplay,
		},
		AutosaveInterval: s.cfg.AutosaveInterval,
	}, s.clk, s.log)

	sub, err := orch.Start(ctx, env)
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.active[sub.SessionID] = orch
	s.mu.Unlock()

	// Marker expires with the session's maximum possible duration plus
	// slack, so a crash cannot lock the learner out forever.
	ttl := time.Duration(assessment.DurationMinutes)*time.Minute + 10*time.Minute
	if err := s.rdb.Set(ctx, activeKey, sub.SessionID.String(), ttl).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to set active session marker")
	}

	// Cache session duration for remaining-time recovery.
	_ = s.rdb.Set(ctx, config.CacheKey.SessionDurationKey(sub.SessionID.String()), assessment.DurationMinutes, ttl).Err()

	// Cache the answer-stripped questions so a reconnecting client can
	// rebuild its view even after a server restart.
	if err := s.assessments.CacheLearnerPayload(ctx, assessmentID, model.ForLearner(assessment.Questions)); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache learner question payload")
	}

	go s.reapOnEnd(orch, learnerID)

	return orch, sub, nil
}

// Get returns the live orchestrator for a session ID.
func (s *SessionService) Get(sessionID uuid.UUID) (*session.Orchestrator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orch, ok := s.active[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return orch, nil
}

// GetSubmission returns the persisted submission for a session,
// regardless of whether the session is still live.
func (s *SessionService) GetSubmission(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	sub, err := s.submissions.GetBySession(ctx, sessionID)
	if errors.Is(err, repository.ErrSubmissionNotFound) {
		return nil, ErrSessionNotFound
	}
	return sub, err
}

// DraftAnswers returns the autosaved answers for a session, Redis-first
// with Postgres failover.
func (s *SessionService) DraftAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	return s.submissions.GetDraftAnswers(ctx, sessionID)
}

// LearnerQuestions returns the answer-stripped question payload for an
// assessment, Redis-first.
func (s *SessionService) LearnerQuestions(ctx context.Context, assessmentID uuid.UUID) ([]model.QuestionForLearner, error) {
	return s.assessments.GetLearnerPayload(ctx, assessmentID)
}

// ViolationReport returns the persisted violation log for a session.
func (s *SessionService) ViolationReport(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error) {
	return s.violations.ListBySession(ctx, sessionID)
}

// RecoverRemaining computes the seconds left for a session from the
// cached start time and duration. Used when a client reconnects before
// the in-memory session has been located.
func (s *SessionService) RecoverRemaining(ctx context.Context, sessionID uuid.UUID) (int, error) {
	startRaw, err := s.rdb.Get(ctx, config.CacheKey.SessionStartKey(sessionID.String())).Result()
	if err != nil {
		return 0, fmt.Errorf("session start not cached: %w", err)
	}
	durRaw, err := s.rdb.Get(ctx, config.CacheKey.SessionDurationKey(sessionID.String())).Result()
	if err != nil {
		return 0, fmt.Errorf("session duration not cached: %w", err)
	}

	startUnix, err := strconv.ParseInt(startRaw, 10, 64)
	if err != nil {
		return 0, err
	}
	durationMinutes, err := strconv.Atoi(durRaw)
	if err != nil {
		return 0, err
	}

	deadline := time.Unix(startUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := int(deadline.Sub(s.clk.Now()).Seconds())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// reapOnEnd removes the session from the registry and clears the
// learner's active marker once its update stream closes.
func (s *SessionService) reapOnEnd(orch *session.Orchestrator, learnerID int) {
	<-orch.Done()

	s.mu.Lock()
	delete(s.active, orch.ID())
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, config.CacheKey.LearnerActiveSessionKey(learnerID)).Err(); err != nil {
		s.log.Warn().Err(err).Int("learner_id", learnerID).Msg("Failed to clear active session marker")
	}

	s.log.Info().Str("session_id", orch.ID().String()).Msg("Session reaped")
}
