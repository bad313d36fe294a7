package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/config"
	"github.com/excellencehub/proctor-backend/internal/model"
	"github.com/excellencehub/proctor-backend/internal/repository"
)

// ReconcileWorker replays finalized submissions whose synchronous
// persist failed. The submission manager stashes them in Redis so the
// learner's work survives a database outage; this worker retries until
// PostgreSQL accepts them.
type ReconcileWorker struct {
	subs *repository.SubmissionRepository
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewReconcileWorker creates a new ReconcileWorker.
func NewReconcileWorker(subs *repository.SubmissionRepository, rdb *redis.Client, log zerolog.Logger) *ReconcileWorker {
	return &ReconcileWorker{
		subs: subs,
		rdb:  rdb,
		log:  log.With().Str("component", "reconcile_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *ReconcileWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, config.WorkerKey.ReconcileSubmissionsQueue).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}

	if len(result) < 2 {
		return
	}

	var sub model.Submission
	if err := json.Unmarshal([]byte(result[1]), &sub); err != nil {
		w.log.Error().Err(err).Msg("Discarding malformed stashed submission")
		return
	}

	if err := w.subs.Save(ctx, &sub); err != nil {
		w.log.Error().Err(err).
			Str("session_id", sub.SessionID.String()).
			Msg("Replay failed, requeueing in 10s")
		w.rdb.RPush(ctx, config.WorkerKey.ReconcileSubmissionsQueue, result[1])
		// Back off hard; if the DB is still down every replay fails.
		time.Sleep(10 * time.Second)
		return
	}

	w.log.Info().
		Str("session_id", sub.SessionID.String()).
		Str("status", string(sub.Status)).
		Msg("Reconciled stashed submission")
}
