// Package writer owns the currently-active chunk and the monotonically
// advancing event id counter, and performs append-with-rotation.
package writer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventstore/internal/chunk"
	"eventstore/internal/index"
	"eventstore/internal/logging"
)

// Metrics is the subset of internal/metrics.Collector the writer reports
// to. A nil Metrics is valid and every call becomes a no-op, so the
// writer never requires a registry to function.
type Metrics interface {
	ObserveAppend(streamName string, n int, bytes int)
	ObserveRotation(newChunkID uint32)
	SetActiveChunkBytes(bytes int)
}

// Writer owns the active chunk exclusively; the engine serializes all
// calls into it.
type Writer struct {
	active  *chunk.Chunk
	nextID  uint64
	dir     string
	now     func() time.Time
	logger  *slog.Logger
	metrics Metrics
}

// New constructs a Writer over active and nextID. If active is nil (no
// chunk exists yet), New creates chunk 1 in dir before returning.
func New(active *chunk.Chunk, nextID uint64, dir string, now func() time.Time, logger *slog.Logger, metrics Metrics) (*Writer, error) {
	if now == nil {
		now = time.Now
	}
	logger = logging.Default(logger).With("component", "writer")

	if active == nil {
		created, err := chunk.Create(1, dir, now)
		if err != nil {
			return nil, fmt.Errorf("writer: create initial chunk: %w", err)
		}
		active = created
		logger.Info("created initial chunk", "chunk_id", 1)
	}

	return &Writer{
		active:  active,
		nextID:  nextID,
		dir:     dir,
		now:     now,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// AppendEvents writes payloads, in order, as events on streamName,
// indexing each as it commits, and returns the next event id to assign
// after this batch. Only the last event in the batch forces a durability
// flush (which also rewrites the header digest), so a crash mid-batch
// can leave trailing records the stored digest does not cover; the next
// startup then reports that chunk as corrupt.
func (w *Writer) AppendEvents(idx *index.Index, streamName string, payloads []string) (uint64, error) {
	totalBytes := 0
	for i, payload := range payloads {
		ev := chunk.Event{
			ID:        w.nextID,
			Timestamp: w.now().Unix(),
			Name:      streamName,
			Payload:   payload,
		}
		isLast := i == len(payloads)-1

		offset, err := w.active.AttemptToWriteEvent(ev, isLast)
		if errors.Is(err, chunk.ErrNoSpace) {
			if err := w.rotate(); err != nil {
				return 0, err
			}
			offset, err = w.active.AttemptToWriteEvent(ev, isLast)
			if err != nil {
				return 0, fmt.Errorf("%w: event of %d bytes does not fit in an empty chunk", chunk.ErrOversizedEvent, ev.EncodedLen())
			}
		} else if err != nil {
			return 0, fmt.Errorf("writer: append to %s: %w", streamName, err)
		}

		idx.Add(streamName, index.Element{ChunkID: w.active.ID, Offset: offset})
		totalBytes += 4 + ev.EncodedLen()
		w.nextID++
	}

	if w.metrics != nil {
		w.metrics.ObserveAppend(streamName, len(payloads), totalBytes)
		w.metrics.SetActiveChunkBytes(int(w.active.Size()))
	}

	return w.nextID, nil
}

func (w *Writer) rotate() error {
	nextChunkID := w.active.ID + 1
	w.logger.Info("rotating chunk", "from", w.active.ID, "to", nextChunkID)

	next, err := chunk.Create(nextChunkID, w.dir, w.now)
	if err != nil {
		return fmt.Errorf("writer: rotate to chunk %d: %w", nextChunkID, err)
	}

	if err := w.active.Close(); err != nil {
		w.logger.Warn("failed to close sealed chunk cleanly", "chunk_id", w.active.ID, "error", err)
	}
	w.active = next

	if w.metrics != nil {
		w.metrics.ObserveRotation(nextChunkID)
		w.metrics.SetActiveChunkBytes(int(w.active.Size()))
	}
	return nil
}

// Close releases the active chunk's file handle.
func (w *Writer) Close() error {
	return w.active.Close()
}
