package writer

import (
	"os"
	"strings"
	"testing"
	"time"

	"eventstore/internal/chunk"
	"eventstore/internal/index"
)

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func TestAppendEventsFreshStore(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	w, err := New(nil, 1, dir, fixedNow, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	nextID, err := w.AppendEvents(idx, "A", []string{"x", "y", "z"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nextID != 4 {
		t.Errorf("expected nextID 4, got %d", nextID)
	}

	stream := idx.Fetch("A")
	if len(stream) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(stream))
	}

	all := idx.Fetch(index.AllStream)
	if len(all) != 3 {
		t.Fatalf("expected 3 elements in $all, got %d", len(all))
	}

	events, err := chunk.StreamEventsOut(stream[0].ChunkID, dir, stream[0].Offset)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"x", "y", "z"}
	for i, ev := range events {
		if ev.Payload != want[i] || ev.ID != uint64(i+1) {
			t.Errorf("event[%d] = %+v, want payload %q id %d", i, ev, want[i], i+1)
		}
	}
}

func TestAppendEventsRotates(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	w, err := New(nil, 1, dir, fixedNow, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	big := strings.Repeat("a", 900_000)
	if _, err := w.AppendEvents(idx, "A", []string{big}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	nextID, err := w.AppendEvents(idx, "A", []string{big})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nextID != 3 {
		t.Errorf("expected nextID 3, got %d", nextID)
	}

	info1, err := os.Stat(chunk.ChunkPath(dir, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info1.Size() > chunk.MaxChunkSize {
		t.Errorf("chunk 1 exceeds MaxChunkSize: %d", info1.Size())
	}

	if _, err := os.Stat(chunk.ChunkPath(dir, 2)); err != nil {
		t.Fatalf("expected chunk 2 to exist: %v", err)
	}

	stream := idx.Fetch("A")
	if len(stream) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(stream))
	}
	if stream[0].ChunkID != 1 || stream[1].ChunkID != 2 {
		t.Errorf("expected events split across chunks 1 and 2, got %+v", stream)
	}
}

func TestAppendEventsOversizedIsFatal(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	w, err := New(nil, 1, dir, fixedNow, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	tooBig := strings.Repeat("a", chunk.MaxChunkSize)
	if _, err := w.AppendEvents(idx, "A", []string{tooBig}); err == nil {
		t.Fatal("expected fatal error for an oversized event")
	}
}

type recordingMetrics struct {
	appends          int
	rotations        int
	activeChunkBytes int
}

func (m *recordingMetrics) ObserveAppend(streamName string, n int, bytes int) { m.appends++ }
func (m *recordingMetrics) ObserveRotation(newChunkID uint32)                 { m.rotations++ }
func (m *recordingMetrics) SetActiveChunkBytes(bytes int)                     { m.activeChunkBytes = bytes }

func TestAppendEventsReportsActiveChunkBytes(t *testing.T) {
	dir := t.TempDir()
	idx := index.New(nil)
	m := &recordingMetrics{}
	w, err := New(nil, 1, dir, fixedNow, nil, m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	if _, err := w.AppendEvents(idx, "A", []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.appends != 1 {
		t.Errorf("expected 1 append observation, got %d", m.appends)
	}
	if m.activeChunkBytes <= chunk.HeaderSize {
		t.Errorf("expected active chunk bytes to exceed the bare header, got %d", m.activeChunkBytes)
	}
}

func TestNewCreatesInitialChunkWhenNoneGiven(t *testing.T) {
	dir := t.TempDir()
	w, err := New(nil, 1, dir, fixedNow, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer w.Close()

	if _, err := os.Stat(chunk.ChunkPath(dir, 1)); err != nil {
		t.Fatalf("expected chunk 1 to be created: %v", err)
	}
}
