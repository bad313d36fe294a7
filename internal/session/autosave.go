package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/excellencehub/proctor-backend/internal/clock"
	"github.com/excellencehub/proctor-backend/internal/model"
)

// DefaultAutosaveInterval is the background draft persistence cadence.
const DefaultAutosaveInterval = 30 * time.Second

// Autosaver periodically persists the answer store as a draft,
// independent of learner activity. Ticks are best-effort: failures are
// logged and swallowed, never surfaced to the learner. Ticks are
// suppressed while a submit is in flight so autosave and submission
// cannot race.
type Autosaver struct {
	store    *AnswerStore
	save     func(ctx context.Context, answers []model.Answer) error
	inFlight func() bool
	interval time.Duration
	clk      clock.Clock
	log      zerolog.Logger

	mu      sync.Mutex
	ticker  clock.Ticker
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewAutosaver builds an Autosaver. inFlight reports whether a submit
// is currently in progress; save persists a snapshot as a draft.
func NewAutosaver(store *AnswerStore, save func(context.Context, []model.Answer) error, inFlight func() bool, interval time.Duration, clk clock.Clock, log zerolog.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{
		store:    store,
		save:     save,
		inFlight: inFlight,
		interval: interval,
		clk:      clk,
		log:      log.With().Str("component", "autosave").Logger(),
	}
}

// Start begins the autosave loop.
func (a *Autosaver) Start() {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return
	}
	a.running = true
	a.ticker = a.clk.NewTicker(a.interval)
	a.stop = make(chan struct{})
	a.mu.Unlock()

	a.wg.Add(1)
	go a.run()
}

// Stop halts the loop. Idempotent.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.ticker.Stop()
	close(a.stop)
	a.mu.Unlock()
	a.wg.Wait()
}

// SaveNow persists a snapshot immediately, surfacing any failure. Used
// for explicit "Save Draft" actions, where the learner should see an
// error, unlike background ticks.
func (a *Autosaver) SaveNow(ctx context.Context) error {
	if a.inFlight() {
		return nil
	}
	return a.save(ctx, a.store.Snapshot())
}

func (a *Autosaver) run() {
	defer a.wg.Done()

	for {
		select {
		case <-a.stop:
			return
		case <-a.ticker.C():
			a.tick()
		}
	}
}

func (a *Autosaver) tick() {
	if a.inFlight() {
		return
	}

	// The snapshot is taken before the save begins; any answers recorded
	// strictly before this point are included.
	snapshot := a.store.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.save(ctx, snapshot); err != nil {
		a.log.Warn().Err(err).Msg("Autosave tick failed")
	}
}
