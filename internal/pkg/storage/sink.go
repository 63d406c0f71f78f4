package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Vodeneev/matchscraper/internal/pkg/failure"
	"github.com/Vodeneev/matchscraper/internal/pkg/models"
)

// SinkStats counts what a Sink has written so far.
type SinkStats struct {
	Saved  int
	Failed int
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithRunID tags logged persistence failures with the run they happened in.
func WithRunID(runID string) SinkOption {
	return func(s *Sink) { s.runID = runID }
}

// WithFailureHook is called once per record that could not be saved.
func WithFailureHook(fn func(*failure.PersistenceError)) SinkOption {
	return func(s *Sink) { s.onFailure = fn }
}

// Sink buffers canonical records and upserts them in batches.
// Each record is saved on its own; one failed record never stops the rest of the batch.
type Sink struct {
	writer    RecordWriter
	batchSize int
	logger    *slog.Logger
	runID     string
	onFailure func(*failure.PersistenceError)

	pending []*models.MatchRecord
	stats   SinkStats
}

func NewSink(writer RecordWriter, batchSize int, logger *slog.Logger, opts ...SinkOption) *Sink {
	if batchSize <= 0 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Sink{
		writer:    writer,
		batchSize: batchSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add buffers rec and flushes once the batch is full.
func (s *Sink) Add(ctx context.Context, rec *models.MatchRecord) error {
	s.pending = append(s.pending, rec)
	if len(s.pending) >= s.batchSize {
		return s.Flush(ctx)
	}
	return nil
}

// Flush writes every buffered record. Per-record failures are logged to
// matches_error and counted; only a cancelled ctx is returned, with the
// unwritten records kept for the next Flush.
func (s *Sink) Flush(ctx context.Context) error {
	for len(s.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := s.pending[0]
		if err := s.writer.SaveMatch(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return err
			}
			s.recordFailure(ctx, rec, err)
		} else {
			s.stats.Saved++
		}
		s.pending = s.pending[1:]
	}
	s.pending = nil
	return nil
}

// Pending is the number of buffered records.
func (s *Sink) Pending() int {
	return len(s.pending)
}

func (s *Sink) Stats() SinkStats {
	return s.stats
}

func (s *Sink) recordFailure(ctx context.Context, rec *models.MatchRecord, err error) {
	s.stats.Failed++
	perr := &failure.PersistenceError{ItemID: rec.ID, Op: "save_match", Err: err}
	s.logger.Warn("Failed to persist match", "match_id", rec.ID, "error", err)
	if s.onFailure != nil {
		s.onFailure(perr)
	}

	entry := models.ErrorLogEntry{
		ItemID:    rec.ID,
		ErrorKind: failure.KindPersistence.String(),
		Message:   perr.Error(),
		SourceURL: rec.Link,
		Stage:     "persist",
		Timestamp: time.Now(),
	}
	if s.runID != "" {
		entry.Context = map[string]any{"run_id": s.runID}
	}
	if logErr := s.writer.LogError(ctx, entry); logErr != nil {
		s.logger.Error("Failed to log persistence error", "match_id", rec.ID, "error", logErr)
	}
}
