package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// ViolationRepository records proctoring violations. Writes go through
// a Redis queue so the hot path never blocks on PostgreSQL; the
// ViolationWorker drains the queue in batches.
type ViolationRepository struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool, rdb *redis.Client) *ViolationRepository {
	return &ViolationRepository{pool: pool, rdb: rdb}
}

// ViolationQueuePayload is the queue message produced by Append and
// consumed by the ViolationWorker.
type ViolationQueuePayload struct {
	SessionID   string    `json:"session_id"`
	LearnerID   int       `json:"learner_id"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	Description string    `json:"description"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Append queues a violation event for asynchronous persistence.
func (r *ViolationRepository) Append(ctx context.Context, sessionID uuid.UUID, learnerID int, ev model.ViolationEvent) error {
	raw, err := json.Marshal(ViolationQueuePayload{
		SessionID:   sessionID.String(),
		LearnerID:   learnerID,
		Kind:        string(ev.Kind),
		Severity:    string(ev.Severity),
		Description: ev.Description,
		OccurredAt:  ev.Timestamp,
	})
	if err != nil {
		return err
	}
	return r.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, raw).Err()
}

// ListBySession returns all persisted violations for a session in
// chronological order. Recent events may still be in the queue.
func (r *ViolationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT kind, severity, description, occurred_at
		 FROM violation_events
		 WHERE session_id = $1
		 ORDER BY occurred_at ASC, id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var events []model.ViolationEvent
	for rows.Next() {
		var ev model.ViolationEvent
		if err := rows.Scan(&ev.Kind, &ev.Severity, &ev.Description, &ev.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
