// Package activity writes append-only audit records as a side effect of
// state-changing operations. Recording is best-effort: Record never returns
// an error and a full queue or failed write only produces a log line, so a
// broken audit trail cannot fail the primary operation.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/issuedeck/issuedeck/internal/models"
	"github.com/issuedeck/issuedeck/internal/store"
)

const queueSize = 256

// writeTimeout bounds each store write so a wedged database cannot block
// the drain on Close.
const writeTimeout = 5 * time.Second

// Recorder persists activity records through a buffered queue.
type Recorder struct {
	store  store.Store
	logger *slog.Logger

	ch   chan models.Activity
	wg   sync.WaitGroup
	once sync.Once
}

// NewRecorder starts a recorder with a single background writer.
func NewRecorder(s store.Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  s,
		logger: logger,
		ch:     make(chan models.Activity, queueSize),
	}
	r.wg.Add(1)
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer r.wg.Done()
	for a := range r.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.CreateActivity(ctx, &a); err != nil {
			r.logger.Warn("activity write failed", "type", a.Type, "error", err)
		}
		cancel()
	}
}

// Record enqueues an activity. It never blocks and never returns an error;
// if the queue is full the record is dropped with a log line.
func (r *Recorder) Record(a models.Activity) {
	select {
	case r.ch <- a:
	default:
		r.logger.Warn("activity queue full, dropping record", "type", a.Type)
	}
}

// Close drains the queue and stops the writer. Safe to call more than once.
func (r *Recorder) Close() {
	r.once.Do(func() {
		close(r.ch)
	})
	r.wg.Wait()
}
