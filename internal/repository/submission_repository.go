package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// ErrSubmissionNotFound is returned when no submission exists for a session.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionRepository implements the submission store contract.
// Drafts go Redis-first with a queue for asynchronous PostgreSQL
// persistence (the DraftWorker consumes it); final submissions are
// written to PostgreSQL synchronously.
type SubmissionRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool, rdb *redis.Client) *SubmissionRepository {
	return &SubmissionRepository{pool: pool, rdb: rdb}
}

// CountAttempts returns how many attempts the learner has started for
// the assessment, in any status.
func (r *SubmissionRepository) CountAttempts(ctx context.Context, assessmentID uuid.UUID, learnerID int) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions
		 WHERE assessment_id = $1 AND learner_id = $2`,
		assessmentID, learnerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return count, nil
}

// CreateDraft inserts the initial draft row and caches the session
// start time in Redis for fast remaining-time computation.
func (r *SubmissionRepository) CreateDraft(ctx context.Context, sub *model.Submission) error {
	order, err := json.Marshal(sub.QuestionOrder)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO submissions
		   (id, session_id, assessment_id, learner_id, attempt_number, status, question_order, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sub.ID, sub.SessionID, sub.AssessmentID, sub.LearnerID,
		sub.AttemptNumber, sub.Status, order, sub.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}

	// Best-effort: the DB row is the source of truth if this fails.
	startKey := config.CacheKey.SessionStartKey(sub.SessionID.String())
	_ = r.rdb.Set(ctx, startKey, sub.StartedAt.Unix(), 0).Err()

	return nil
}

// SaveDraft writes the answers to Redis and queues them for
// asynchronous UPSERT into PostgreSQL.
func (r *SubmissionRepository) SaveDraft(ctx context.Context, sub *model.Submission) error {
	raw, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}

	answersKey := config.CacheKey.SessionAnswersKey(sub.SessionID.String())
	if err := r.rdb.Set(ctx, answersKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("cache draft: %w", err)
	}

	payload, err := json.Marshal(draftPayload{
		SessionID: sub.SessionID.String(),
		Answers:   raw,
		SavedAt:   time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, config.WorkerKey.PersistDraftsQueue, payload).Err()
}

// draftPayload is the queue message consumed by the DraftWorker.
type draftPayload struct {
	SessionID string          `json:"session_id"`
	Answers   json.RawMessage `json:"answers"`
	SavedAt   int64           `json:"saved_at"`
}

// Save persists the full submission state. Used for the final submit
// and for grading outcomes.
func (r *SubmissionRepository) Save(ctx context.Context, sub *model.Submission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	violations, err := json.Marshal(sub.ViolationsAtSubmit)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = $1,
		     answers = $2,
		     submitted_at = $3,
		     time_spent_seconds = $4,
		     is_late = $5,
		     is_auto_submitted = $6,
		     submit_reason = $7,
		     violations_at_submit = $8,
		     score = $9,
		     percentage = $10,
		     grade = $11,
		     feedback = $12,
		     requires_manual_review = $13,
		     updated_at = NOW()
		 WHERE session_id = $14`,
		sub.Status, answers, sub.SubmittedAt, sub.TimeSpentSeconds,
		sub.IsLate, sub.IsAutoSubmitted, sub.SubmitReason, violations,
		sub.Score, sub.Percentage, sub.Grade, sub.Feedback,
		sub.RequiresManualReview, sub.SessionID,
	)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}

	// The draft buffer is stale once the submission leaves draft.
	if sub.Status != model.SubmissionStatusDraft {
		_ = r.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(sub.SessionID.String())).Err()
	}

	return nil
}

// GetBySession retrieves a submission by its session ID.
func (r *SubmissionRepository) GetBySession(ctx context.Context, sessionID uuid.UUID) (*model.Submission, error) {
	sub := &model.Submission{}
	var (
		answersRaw    []byte
		orderRaw      []byte
		violationsRaw []byte
	)

	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, assessment_id, learner_id, attempt_number, status,
		        COALESCE(answers, '[]'), COALESCE(question_order, '[]'),
		        started_at, submitted_at, time_spent_seconds, is_late,
		        is_auto_submitted, COALESCE(submit_reason, ''),
		        COALESCE(violations_at_submit, '[]'),
		        score, percentage, COALESCE(grade, ''), COALESCE(feedback, ''),
		        requires_manual_review
		 FROM submissions
		 WHERE session_id = $1`, sessionID,
	).Scan(
		&sub.ID, &sub.SessionID, &sub.AssessmentID, &sub.LearnerID,
		&sub.AttemptNumber, &sub.Status, &answersRaw, &orderRaw,
		&sub.StartedAt, &sub.SubmittedAt, &sub.TimeSpentSeconds, &sub.IsLate,
		&sub.IsAutoSubmitted, &sub.SubmitReason, &violationsRaw,
		&sub.Score, &sub.Percentage, &sub.Grade, &sub.Feedback,
		&sub.RequiresManualReview,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}

	if err := json.Unmarshal(answersRaw, &sub.Answers); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(orderRaw, &sub.QuestionOrder); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(violationsRaw, &sub.ViolationsAtSubmit); err != nil {
		return nil, err
	}

	return sub, nil
}

// Stash pushes a submission whose final persist failed onto the
// reconciliation queue. The ReconcileWorker replays it.
func (r *SubmissionRepository) Stash(ctx context.Context, sub *model.Submission) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, config.WorkerKey.ReconcileSubmissionsQueue, raw).Err()
}

// GetDraftAnswers returns the autosaved answers for a session from
// Redis, falling back to PostgreSQL when the cache is empty.
func (r *SubmissionRepository) GetDraftAnswers(ctx context.Context, sessionID uuid.UUID) ([]model.Answer, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.SessionAnswersKey(sessionID.String())).Bytes()
	if err == nil {
		var answers []model.Answer
		if jsonErr := json.Unmarshal(raw, &answers); jsonErr == nil {
			return answers, nil
		}
	} else if err != redis.Nil {
		return nil, fmt.Errorf("redis error getting draft: %w", err)
	}

	// Cache miss: fall back to the persisted row.
	sub, err := r.GetBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sub.Answers, nil
}
