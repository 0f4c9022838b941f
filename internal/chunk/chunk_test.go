package chunk

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func TestCreateWritesValidHeader(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(1, dir, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	if c.available != MaxChunkSize-HeaderSize {
		t.Errorf("expected available %d, got %d", MaxChunkSize-HeaderSize, c.available)
	}

	data, err := os.ReadFile(ChunkPath(dir, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != HeaderSize {
		t.Fatalf("expected file of %d bytes, got %d", HeaderSize, len(data))
	}
	if _, ok := verifyDigest(data); !ok {
		t.Errorf("fresh chunk header digest does not verify")
	}
}

func TestCreateFailsIfExists(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(1, dir, fixedNow); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Create(1, dir, fixedNow); err == nil {
		t.Fatal("expected error creating a chunk that already exists")
	}
}

func TestAttemptToWriteEventAndScan(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(1, dir, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := []Event{
		{ID: 1, Timestamp: 1700000000, Name: "A", Payload: "x"},
		{ID: 2, Timestamp: 1700000001, Name: "A", Payload: "y"},
		{ID: 3, Timestamp: 1700000002, Name: "A", Payload: "z"},
	}
	for i, ev := range events {
		if _, err := c.AttemptToWriteEvent(ev, i == len(events)-1); err != nil {
			t.Fatalf("unexpected error writing event %d: %v", i, err)
		}
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	offsets, metas, err := Scan(1, dir)
	if err != nil {
		t.Fatalf("unexpected error scanning: %v", err)
	}
	if len(offsets) != 3 || len(metas) != 3 {
		t.Fatalf("expected 3 offsets and metas, got %d and %d", len(offsets), len(metas))
	}
	for i, m := range metas {
		if m.Name != "A" || m.ID != uint64(i+1) {
			t.Errorf("meta[%d] = %+v, want name A id %d", i, m, i+1)
		}
	}

	got, err := StreamEventsOut(1, dir, offsets[0])
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, ev := range got {
		if ev != events[i] {
			t.Errorf("event[%d] = %+v, want %+v", i, ev, events[i])
		}
	}
}

func TestOpenActiveReconstructsDigestAndAppends(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(1, dir, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.AttemptToWriteEvent(Event{ID: 1, Timestamp: 1, Name: "A", Payload: "x"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reopened, _, metas, err := OpenActive(1, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer reopened.Close()

	if len(metas) != 1 || metas[0].ID != 1 {
		t.Fatalf("expected one recovered event, got %+v", metas)
	}

	if _, err := reopened.AttemptToWriteEvent(Event{ID: 2, Timestamp: 2, Name: "A", Payload: "y"}, true); err != nil {
		t.Fatalf("unexpected error appending after recovery: %v", err)
	}

	data, err := os.ReadFile(ChunkPath(dir, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := verifyDigest(data); !ok {
		t.Errorf("digest does not verify after append following recovery")
	}

	offsets, recMetas, err := Scan(1, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(offsets) != 2 || len(recMetas) != 2 || recMetas[1].ID != 2 {
		t.Fatalf("expected 2 events after recovery append, got %+v", recMetas)
	}
}

func TestOpenActiveDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(1, dir, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.AttemptToWriteEvent(Event{ID: 1, Timestamp: 1, Name: "A", Payload: "x"}, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path := ChunkPath(dir, 1)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data[HeaderSize+10] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, _, err := OpenActive(1, dir); err == nil {
		t.Fatal("expected corruption error, got nil")
	}
	if _, _, err := Scan(1, dir); err == nil {
		t.Fatal("expected corruption error from Scan, got nil")
	}
}

func TestAttemptToWriteEventNoSpace(t *testing.T) {
	dir := t.TempDir()
	c, err := Create(1, dir, fixedNow)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer c.Close()

	big := Event{ID: 1, Timestamp: 1, Name: "A", Payload: string(make([]byte, MaxChunkSize))}
	if _, err := c.AttemptToWriteEvent(big, true); err != ErrNoSpace {
		t.Fatalf("expected ErrNoSpace, got %v", err)
	}
}

func TestListIDsSortsAscendingAndCreatesDir(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "chunks")

	ids, err := ListIDs(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no ids in fresh dir, got %v", ids)
	}

	for _, id := range []uint32{3, 1, 2} {
		if _, err := Create(id, dir, fixedNow); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	ids, err = ListIDs(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint32{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}
