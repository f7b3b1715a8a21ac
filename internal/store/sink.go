package store

import (
	"sync"
	"time"

	"github.com/ctavolazzi/novasystem/internal/event"
	"github.com/ctavolazzi/novasystem/internal/logging"
	"github.com/ctavolazzi/novasystem/internal/run"
)

// Sink subscribes to the event bus and materializes run records from
// the event stream. Records accumulate in memory while a run is live
// and are flushed to disk when the run completes.
type Sink struct {
	store  *Store
	bus    *event.Bus
	logger *logging.Logger

	mu      sync.Mutex
	records map[string]*RunRecord
	subIDs  []string
}

// NewSink creates a Sink and subscribes it to the bus. Call Close to
// detach the subscriptions.
func NewSink(s *Store, bus *event.Bus, logger *logging.Logger) *Sink {
	if logger == nil {
		logger = logging.NopLogger()
	}
	sink := &Sink{
		store:   s,
		bus:     bus,
		logger:  logger,
		records: make(map[string]*RunRecord),
	}
	sink.subIDs = []string{
		bus.Subscribe(event.TypeRunCreated, sink.onEvent),
		bus.Subscribe(event.TypeRunStatusChanged, sink.onEvent),
		bus.Subscribe(event.TypeStrategyDetected, sink.onEvent),
		bus.Subscribe(event.TypeCommandQueued, sink.onEvent),
		bus.Subscribe(event.TypeCommandCompleted, sink.onEvent),
		bus.Subscribe(event.TypePolicyViolation, sink.onEvent),
		bus.Subscribe(event.TypeRunCompleted, sink.onEvent),
	}
	return sink
}

// Close detaches the sink from the bus. In-memory records for runs that
// never completed are discarded.
func (k *Sink) Close() {
	for _, id := range k.subIDs {
		k.bus.Unsubscribe(id)
	}
	k.subIDs = nil
}

// Record returns the in-memory record for a live run, or nil if the
// sink has not seen the run.
func (k *Sink) Record(runID string) *RunRecord {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.records[runID]
}

func (k *Sink) onEvent(e event.Event) {
	k.mu.Lock()
	rec := k.records[e.RunID()]
	if rec == nil {
		rec = &RunRecord{Run: run.Run{ID: e.RunID(), State: run.StatePending}}
		k.records[e.RunID()] = rec
	}

	var flush bool
	switch ev := e.(type) {
	case event.RunCreatedEvent:
		rec.Run.RepoRef = ev.RepoRef
		rec.Run.CreatedAt = ev.Timestamp()
	case event.RunStatusChangedEvent:
		rec.Run.State = run.State(ev.To)
	case event.StrategyDetectedEvent:
		rec.Strategy = ev.Strategy
	case event.CommandQueuedEvent:
		rec.Commands = append(rec.Commands, run.ParsedCommand{
			ID:            ev.CommandID,
			Text:          ev.Command,
			SourceDocPath: ev.Source,
			Approved:      true,
		})
	case event.PolicyViolationEvent:
		// Rejected commands never get a CommandQueued event, so the
		// violation is usually the first and only sighting; append an
		// unapproved entry so the persisted record shows what was
		// blocked. A held command that was queued earlier is demoted
		// in place.
		found := false
		for i := range rec.Commands {
			if rec.Commands[i].ID == ev.CommandID {
				rec.Commands[i].Approved = false
				rec.Commands[i].RejectionReason = ev.Reason
				found = true
			}
		}
		if !found {
			rec.Commands = append(rec.Commands, run.ParsedCommand{
				ID:              ev.CommandID,
				Text:            ev.Command,
				RejectionReason: ev.Reason,
			})
		}
	case event.CommandCompletedEvent:
		rec.Logs = append(rec.Logs, run.CommandLog{
			CommandID:  ev.CommandID,
			Command:    ev.Command,
			ExitCode:   ev.ExitCode,
			DurationMs: ev.DurationMs,
			RunID:      ev.RunID(),
			StartedAt:  ev.Timestamp().Add(-time.Duration(ev.DurationMs) * time.Millisecond),
		})
	case event.RunCompletedEvent:
		rec.Run.State = run.State(ev.FinalState)
		rec.Run.Summary = ev.Summary
		ts := ev.Timestamp()
		rec.Run.FinishedAt = &ts
		flush = true
	}
	k.mu.Unlock()

	if flush {
		k.flush(e.RunID(), rec)
	}
}

// flush persists the completed record and the run's event history.
// Failures are logged, not propagated: persistence must never disturb
// the publisher.
func (k *Sink) flush(runID string, rec *RunRecord) {
	log := k.logger.WithRun(runID)
	if err := k.store.SaveRecord(rec); err != nil {
		log.Error("failed to persist run record", "error", err)
	}
	if err := k.store.SaveEvents(runID, k.bus.HistoryForRun(runID)); err != nil {
		log.Error("failed to persist event history", "error", err)
	}

	k.mu.Lock()
	delete(k.records, runID)
	k.mu.Unlock()
}
