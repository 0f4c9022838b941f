// Package index holds the in-memory mapping from stream name to an
// ordered sequence of chunk locations, including the synthetic $all
// stream that records every event in global append order.
//
// Index is not safe for concurrent use on its own; the engine serializes
// all access to it under its own exclusive lock (see package engine).
package index

import (
	"fmt"
	"log/slog"
	"slices"

	"eventstore/internal/chunk"
	"eventstore/internal/logging"
)

// AllStream is the reserved synthetic stream containing every event in
// global append order.
const AllStream = "$all"

// Element is the location of one event: the chunk that holds it and the
// byte offset, from the start of that chunk's file, of its length
// prefix.
type Element struct {
	ChunkID uint32
	Offset  uint32
}

// Index maps stream names to their ordered location lists.
type Index struct {
	streams map[string][]Element
	logger  *slog.Logger
}

// New returns an empty index.
func New(logger *slog.Logger) *Index {
	return &Index{
		streams: make(map[string][]Element),
		logger:  logging.Default(logger).With("component", "index"),
	}
}

// Initialize ensures dir exists, scans every chunk file in ascending id
// order, and populates the index from their recovered event metadata.
// It returns the still-open handle to the highest-id chunk (nil if the
// store is empty, in which case the caller must create chunk 1 itself)
// and the next event id to assign.
func (idx *Index) Initialize(dir string) (active *chunk.Chunk, nextID uint64, err error) {
	ids, err := chunk.ListIDs(dir)
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return nil, 1, nil
	}

	nextID = 1
	for i, id := range ids {
		isHighest := i == len(ids)-1

		if isHighest {
			recovered, offsets, metas, err := chunk.OpenActive(id, dir)
			if err != nil {
				return nil, 0, fmt.Errorf("index: recover chunk %d: %w", id, err)
			}
			for k, meta := range metas {
				idx.Add(meta.Name, Element{ChunkID: id, Offset: offsets[k]})
			}
			if len(metas) > 0 {
				nextID = metas[len(metas)-1].ID + 1
			}
			active = recovered
			idx.logger.Info("recovered active chunk", "chunk_id", id, "events", len(metas))
			continue
		}

		offsets, metas, scanErr := chunk.Scan(id, dir)
		if scanErr != nil {
			return nil, 0, fmt.Errorf("index: scan chunk %d: %w", id, scanErr)
		}
		for k, meta := range metas {
			idx.Add(meta.Name, Element{ChunkID: id, Offset: offsets[k]})
		}
	}

	return active, nextID, nil
}

// Add appends element to name's list and to $all's list.
func (idx *Index) Add(name string, element Element) {
	idx.streams[name] = append(idx.streams[name], element)
	if name != AllStream {
		idx.streams[AllStream] = append(idx.streams[AllStream], element)
	}
}

// Fetch returns a value-copy of name's location list, creating an empty
// list for a previously unknown stream rather than returning an error.
// The copy lets a Reader snapshot a stream without pinning the
// underlying slice against future appends (see package engine).
func (idx *Index) Fetch(name string) []Element {
	list, ok := idx.streams[name]
	if !ok {
		idx.streams[name] = nil
		return nil
	}
	return slices.Clone(list)
}
