// Package chunk implements the on-disk segment format of the event log:
// fixed-layout headers protected by a rolling SHA-256 digest, a sequence
// of length-prefixed records, and the create/scan/append/flush
// operations a single chunk file supports.
package chunk

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

// MaxChunkSize is the maximum on-disk size of any chunk file, header
// included.
const MaxChunkSize = 1_000_000

// Chunk is one segment of the log. Once it stops being the active
// chunk it is never written to again; only an active Chunk holds an
// open, writable file handle.
type Chunk struct {
	ID        uint32
	path      string
	file      *os.File
	offsets   []uint32
	available uint32
	digest    hash.Hash
}

// EventMeta is the (stream name, event id) pair recovered by scanning a
// chunk, without decoding the full payload.
type EventMeta struct {
	Name string
	ID   uint64
}

// ChunkPath returns the canonical path of chunk id under dir.
func ChunkPath(dir string, id uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%d.chk", id))
}

// ListIDs returns the ids of every "{id}.chk" file in dir, ascending.
// dir is created if it does not already exist.
func ListIDs(dir string) ([]uint32, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chunk: create %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("chunk: read %s: %w", dir, err)
	}

	var ids []uint32
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem, ok := parseChunkStem(entry.Name())
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(stem, 10, 32)
		if err != nil {
			continue
		}
		ids = append(ids, uint32(id))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func parseChunkStem(name string) (string, bool) {
	const suffix = ".chk"
	if len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	stem := name[:len(name)-len(suffix)]
	for _, r := range stem {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return stem, true
}

// Create makes a new, empty chunk file at dir/{id}.chk, failing if it
// already exists. The header is written with a placeholder digest,
// hashed, patched in place, and flushed before Create returns. The
// returned Chunk's digest context has consumed exactly the header bytes
// and is ready to accumulate subsequent records.
func Create(id uint32, dir string, now func() time.Time) (*Chunk, error) {
	path := ChunkPath(dir, id)

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("chunk: create %s: %w", path, err)
	}

	header := Header{Version: HeaderVersion, Timestamp: now().Unix()}
	buf := header.Encode()

	digest := sha256.New()
	digest.Write(buf)

	var sum [32]byte
	digest.Sum(sum[:0]) // non-destructive: digest keeps accumulating below
	copy(buf[0:32], sum[:])

	if _, err := file.Write(buf); err != nil {
		file.Close()
		return nil, fmt.Errorf("chunk: write header %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("chunk: sync header %s: %w", path, err)
	}

	return &Chunk{
		ID:        id,
		path:      path,
		file:      file,
		available: MaxChunkSize - HeaderSize,
		digest:    digest,
	}, nil
}

// Scan reads and integrity-checks a sealed (non-active) chunk and
// returns, in file order, the metadata of every event it holds plus the
// file offset of each event's length prefix. It never opens a writable
// handle; sealed chunks are immutable.
func Scan(id uint32, dir string) (offsets []uint32, metas []EventMeta, err error) {
	path := ChunkPath(dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("chunk: read %s: %w", path, err)
	}
	if len(data) < HeaderSize {
		return nil, nil, fmt.Errorf("%w: chunk %d", ErrHeaderTooSmall, id)
	}
	if _, ok := verifyDigest(data); !ok {
		return nil, nil, fmt.Errorf("%w: chunk %d", ErrCorruption, id)
	}
	return decodeBody(data[HeaderSize:], HeaderSize)
}

// OpenActive integrity-checks and decodes the chunk with the highest id
// on disk, then reopens it for writing as the engine's active chunk.
// The running digest context is reconstructed by feeding the entire
// existing body (digest field zeroed) into a fresh SHA-256 context,
// since the live hash.Hash from the writing process does not survive a
// restart.
func OpenActive(id uint32, dir string) (c *Chunk, offsets []uint32, metas []EventMeta, err error) {
	path := ChunkPath(dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chunk: read %s: %w", path, err)
	}
	if len(data) < HeaderSize {
		return nil, nil, nil, fmt.Errorf("%w: chunk %d", ErrHeaderTooSmall, id)
	}
	if _, ok := verifyDigest(data); !ok {
		return nil, nil, nil, fmt.Errorf("%w: chunk %d", ErrCorruption, id)
	}

	offsets, metas, err = decodeBody(data[HeaderSize:], HeaderSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chunk %d: %w", id, err)
	}

	working := make([]byte, len(data))
	copy(working, data)
	var zero [32]byte
	copy(working[0:32], zero[:])
	digest := contextFromBody(working)

	file, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("chunk: open %s: %w", path, err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, nil, nil, fmt.Errorf("chunk: seek %s: %w", path, err)
	}

	c = &Chunk{
		ID:        id,
		path:      path,
		file:      file,
		available: MaxChunkSize - uint32(len(data)),
		digest:    digest,
	}
	return c, offsets, metas, nil
}

// AttemptToWriteEvent tries to append ev to the chunk. If the record
// does not fit, the chunk is flushed (so its digest reflects whatever
// is durable) and ErrNoSpace is returned; the writer is expected to
// rotate to a new chunk and retry there. On success it returns the
// byte offset, from the start of the file, of the written record's
// length prefix.
func (c *Chunk) AttemptToWriteEvent(ev Event, flushNow bool) (uint32, error) {
	encLen := ev.EncodedLen()
	need := uint32(4 + encLen)
	if need > c.available {
		if err := c.FlushChunk(); err != nil {
			return 0, err
		}
		return 0, ErrNoSpace
	}

	offset := MaxChunkSize - c.available

	record := make([]byte, 0, need)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(encLen))
	record = append(record, lenBuf[:]...)
	record = ev.Encode(record)

	if _, err := c.file.Write(record); err != nil {
		return 0, fmt.Errorf("chunk: write event to %s: %w", c.path, err)
	}
	c.digest.Write(record)
	c.offsets = append(c.offsets, offset)
	c.available -= need

	if flushNow {
		if err := c.FlushChunk(); err != nil {
			return 0, err
		}
	}

	return offset, nil
}

// FlushChunk finalizes a non-destructive copy of the running digest and
// overwrites the header's digest field at file offset 0, then syncs.
func (c *Chunk) FlushChunk() error {
	var sum [32]byte
	c.digest.Sum(sum[:0])
	if _, err := c.file.WriteAt(sum[:], 0); err != nil {
		return fmt.Errorf("chunk: flush digest for %s: %w", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("chunk: sync %s: %w", c.path, err)
	}
	return nil
}

// Close releases the chunk's file handle without flushing.
func (c *Chunk) Close() error {
	return c.file.Close()
}

// Size returns the number of bytes written to the chunk so far,
// header included.
func (c *Chunk) Size() uint32 {
	return MaxChunkSize - c.available
}

// StreamEventsOut opens chunk id read-only, decodes every record from
// offset to end of file, and returns the events in file order.
func StreamEventsOut(id uint32, dir string, offset uint32) ([]Event, error) {
	path := ChunkPath(dir, id)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chunk: read %s: %w", path, err)
	}
	if uint64(offset) > uint64(len(data)) {
		return nil, fmt.Errorf("%w: offset %d past end of chunk %d", ErrDecode, offset, id)
	}
	return decodeEventsFrom(data, offset)
}

func decodeBody(body []byte, base uint32) (offsets []uint32, metas []EventMeta, err error) {
	pos := 0
	for pos < len(body) {
		if len(body)-pos < 4 {
			return nil, nil, fmt.Errorf("%w: truncated record length", ErrDecode)
		}
		recLen := binary.LittleEndian.Uint32(body[pos : pos+4])
		offsets = append(offsets, base+uint32(pos))
		pos += 4

		if uint32(len(body)-pos) < recLen {
			return nil, nil, fmt.Errorf("%w: truncated record body", ErrDecode)
		}
		ev, err := DecodeEvent(body[pos : pos+int(recLen)])
		if err != nil {
			return nil, nil, err
		}
		metas = append(metas, EventMeta{Name: ev.Name, ID: ev.ID})
		pos += int(recLen)
	}
	return offsets, metas, nil
}

func decodeEventsFrom(data []byte, offset uint32) ([]Event, error) {
	pos := int(offset)
	var events []Event
	for pos < len(data) {
		if len(data)-pos < 4 {
			return nil, fmt.Errorf("%w: truncated record length", ErrDecode)
		}
		recLen := binary.LittleEndian.Uint32(data[pos : pos+4])
		pos += 4

		if len(data)-pos < int(recLen) {
			return nil, fmt.Errorf("%w: truncated record body", ErrDecode)
		}
		ev, err := DecodeEvent(data[pos : pos+int(recLen)])
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		pos += int(recLen)
	}
	return events, nil
}
