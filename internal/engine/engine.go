// Package engine composes the index, writer, and reader into the
// public façade consumed by external collaborators (a CLI, an RPC
// layer, or a test): append a batch of payloads to a stream, or stream
// a named stream back from a position.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"eventstore/internal/index"
	"eventstore/internal/logging"
	"eventstore/internal/reader"
	"eventstore/internal/writer"
)

// ReadMetrics is the subset of internal/metrics.Collector the engine
// reports read activity to.
type ReadMetrics interface {
	ObserveRead(streamName string, n int, dur time.Duration)
}

// Metrics is the full set of instrumentation hooks an Engine can report
// to; internal/metrics.Collector satisfies this (and is nil-safe).
type Metrics interface {
	writer.Metrics
	ReadMetrics
}

// Config configures a new Engine.
type Config struct {
	// Dir is the directory holding chunk files. Defaults to "chunks".
	Dir string
	// Now is injected for deterministic tests; defaults to time.Now.
	Now func() time.Time
	// Logger is optional; a nil Logger discards all output.
	Logger *slog.Logger
	// Metrics is optional; a nil Metrics disables instrumentation.
	Metrics Metrics
}

// Engine is the mutually-exclusive façade over one event store
// directory. All operations that touch the writer or mutate the index
// serialize on mu.
type Engine struct {
	mu      sync.Mutex
	idx     *index.Index
	w       *writer.Writer
	dir     string
	logger  *slog.Logger
	metrics Metrics
}

// New rebuilds the index from dir's chunk files (verifying integrity of
// every chunk along the way) and opens a writer over the recovered
// active chunk, creating chunk 1 fresh if the store is empty.
func New(cfg Config) (*Engine, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "chunks"
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := logging.Default(cfg.Logger).With("component", "engine")

	idx := index.New(cfg.Logger)
	active, nextID, err := idx.Initialize(dir)
	if err != nil {
		return nil, fmt.Errorf("engine: initialize %s: %w", dir, err)
	}

	var writerMetrics writer.Metrics
	if cfg.Metrics != nil {
		writerMetrics = cfg.Metrics
	}
	w, err := writer.New(active, nextID, dir, now, cfg.Logger, writerMetrics)
	if err != nil {
		return nil, err
	}

	logger.Info("engine ready", "dir", dir, "next_id", nextID)

	return &Engine{
		idx:     idx,
		w:       w,
		dir:     dir,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Append writes payloads, in order, as events on streamName and returns
// the next event id to assign after this batch. Appending to the
// reserved $all stream is rejected with ErrReservedStream.
func (e *Engine) Append(streamName string, payloads []string) (uint64, error) {
	if streamName == index.AllStream {
		return 0, ErrReservedStream
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.AppendEvents(e.idx, streamName, payloads)
}

// ReadStream streams streamName to sink starting at startPosition, until
// the stream is exhausted, ctx is cancelled, or the sink reports it has
// dropped interest. The location snapshot is taken under the engine's
// lock and then released before any chunk file is decoded, so long
// reads do not block concurrent appends.
func (e *Engine) ReadStream(ctx context.Context, streamName string, startPosition uint64, sink reader.Sink) error {
	e.mu.Lock()
	snapshot := e.idx.Fetch(streamName)
	e.mu.Unlock()

	started := time.Now()
	counting := &countingSink{inner: sink}

	r := reader.New(streamName, snapshot, e.dir)
	err := r.Read(ctx, counting, startPosition)

	if e.metrics != nil {
		e.metrics.ObserveRead(streamName, counting.count, time.Since(started))
	}
	if err != nil {
		e.logger.Error("read failed", "stream", streamName, "error", err)
		return fmt.Errorf("engine: read %s: %w", streamName, err)
	}
	return nil
}

// Close releases the writer's active chunk file handle.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.w.Close()
}

type countingSink struct {
	inner reader.Sink
	count int
}

func (c *countingSink) Send(ctx context.Context, env reader.Envelope) error {
	if err := c.inner.Send(ctx, env); err != nil {
		return err
	}
	c.count++
	return nil
}
