// Package reader streams events of one stream to a consumer sink,
// decoding directly from chunk files using a point-in-time snapshot of
// that stream's locations.
package reader

import (
	"context"
	"fmt"

	"eventstore/internal/chunk"
	"eventstore/internal/index"
)

// Envelope is what the reader hands to a Sink for each matching event.
type Envelope struct {
	Event          string
	StreamPosition uint64
}

// Sink is a bounded asynchronous consumer of Envelopes. Send may
// suspend. A non-nil error from Send is treated as the consumer having
// dropped interest: the read ends without that error propagating as a
// read failure.
type Sink interface {
	Send(ctx context.Context, env Envelope) error
}

// Reader holds a value-copy snapshot of one stream's location list,
// taken by the caller (the engine) under its exclusive lock before
// constructing the Reader. Appends that happen after the snapshot is
// taken are not observed by this Reader.
type Reader struct {
	streamName string
	snapshot   []index.Element
	dir        string
}

// New constructs a Reader over a pre-taken snapshot of streamName's
// locations.
func New(streamName string, snapshot []index.Element, dir string) *Reader {
	return &Reader{streamName: streamName, snapshot: snapshot, dir: dir}
}

// Read drives the reader from startPosition until the snapshot is
// exhausted, the context is cancelled, or the sink reports it has
// dropped interest. It never mutates or touches the engine's locked
// state.
func (r *Reader) Read(ctx context.Context, sink Sink, startPosition uint64) error {
	last := len(r.snapshot) - 1
	if last < 0 || int(startPosition) > last {
		return nil
	}

	current := int(startPosition)
	for current <= last {
		elem := r.snapshot[current]

		events, err := chunk.StreamEventsOut(elem.ChunkID, r.dir, elem.Offset)
		if err != nil {
			return fmt.Errorf("reader: stream %s at chunk %d offset %d: %w", r.streamName, elem.ChunkID, elem.Offset, err)
		}

		advanced := false
		for _, ev := range events {
			if r.streamName != index.AllStream && ev.Name != r.streamName {
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err := sink.Send(ctx, Envelope{Event: ev.Payload, StreamPosition: ev.ID}); err != nil {
				return nil
			}

			current++
			advanced = true
			if current > last {
				break
			}
		}

		if !advanced {
			return fmt.Errorf("reader: chunk %d at offset %d yielded no event for stream %s", elem.ChunkID, elem.Offset, r.streamName)
		}
	}

	return nil
}
