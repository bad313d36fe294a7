package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// AssessmentRepository reads assessment configuration and questions.
type AssessmentRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool, rdb *redis.Client) *AssessmentRepository {
	return &AssessmentRepository{pool: pool, rdb: rdb}
}

// GetByID retrieves an assessment with its questions, including the
// grading key. Callers must strip correct answers before sending
// questions to learners.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, duration_minutes, attempts, due_date,
		        allow_late_submission, late_submission_penalty,
		        require_proctoring, randomize_questions, randomize_options
		 FROM assessments
		 WHERE id = $1`, id,
	).Scan(
		&a.ID, &a.Title, &a.DurationMinutes, &a.Attempts, &a.DueDate,
		&a.AllowLateSubmission, &a.LateSubmissionPenalty,
		&a.RequireProctoring, &a.RandomizeQuestions, &a.RandomizeOptions,
	)
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, question_text, question_type, options, points, correct_answer
		 FROM questions
		 WHERE assessment_id = $1
		 ORDER BY order_num ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q          model.Question
			optionsRaw []byte
			correctRaw []byte
		)
		if err := rows.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &optionsRaw, &q.Points, &correctRaw); err != nil {
			return nil, err
		}
		if len(optionsRaw) > 0 {
			if err := json.Unmarshal(optionsRaw, &q.Options); err != nil {
				return nil, fmt.Errorf("decode options for question %s: %w", q.ID, err)
			}
		}
		if len(correctRaw) > 0 {
			if err := json.Unmarshal(correctRaw, &q.CorrectAnswer); err != nil {
				return nil, fmt.Errorf("decode answer key for question %s: %w", q.ID, err)
			}
		}
		a.Questions = append(a.Questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return a, nil
}

// CacheLearnerPayload stores the answer-stripped question payload in
// Redis so session reloads bypass PostgreSQL.
func (r *AssessmentRepository) CacheLearnerPayload(ctx context.Context, id uuid.UUID, questions []model.QuestionForLearner) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, config.CacheKey.AssessmentPayloadKey(id.String()), raw, 0).Err()
}

// GetLearnerPayload returns the cached answer-stripped questions, or
// redis.Nil when not cached.
func (r *AssessmentRepository) GetLearnerPayload(ctx context.Context, id uuid.UUID) ([]model.QuestionForLearner, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.AssessmentPayloadKey(id.String())).Bytes()
	if err != nil {
		return nil, err
	}
	var questions []model.QuestionForLearner
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, err
	}
	return questions, nil
}
