package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/gitterbridge/internal/store"
)

// finalFlushTimeout bounds the export run by Stop after the loop exits.
const finalFlushTimeout = 30 * time.Second

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Scheduler periodically exports the activity store to one or more
// destinations. With the in-memory store this is the only durable copy, so
// Stop runs one last export before returning.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu      sync.Mutex // serializes exports
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger.With("component", "sync"),
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler, waits for the current sync (if any) to finish,
// and runs a final export.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.started = false

	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()
	if err := s.Flush(ctx); err != nil {
		s.logger.Error("final sync failed", "err", err)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.Flush(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("sync failed", "err", err)
	}
}

// Flush exports the store once and writes it to every destination. All
// destinations are attempted; the returned error joins their failures.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	var errs []error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			name := destinationName(i, dest)
			s.logger.Error("sync destination write failed", "destination", name, "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	s.logger.Info("sync completed", "destinations", len(s.destinations), "failed", len(errs), "bytes", len(data))
	return errors.Join(errs...)
}

func destinationName(i int, dest Destination) string {
	if st, ok := dest.(fmt.Stringer); ok {
		return st.String()
	}
	return fmt.Sprintf("destination-%d", i)
}
