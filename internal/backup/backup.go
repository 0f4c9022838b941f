// Package backup exports the sealed (non-active) chunks of an event
// store directory into a single zstd-compressed archive for off-box
// retention, without ever rewriting a chunk file in place. Chunk files
// on disk are read-only inputs to this package; nothing here touches
// the digest contract chunk files must satisfy.
package backup

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"eventstore/internal/chunk"
	"eventstore/internal/format"
)

// concurrency bounds how many chunk files are compressed at once during
// Export.
const concurrency = 4

// Entry describes one archived chunk.
type Entry struct {
	ChunkID        uint32
	OriginalSize   uint64
	CompressedSize uint64
}

// Export compresses every chunk in dir except activeChunkID (the one
// currently being written to, which may not yet satisfy the digest
// invariant a backup should trust) into a single archive at
// archivePath, in ascending chunk-id order.
func Export(archivePath, dir string, activeChunkID uint32) ([]Entry, error) {
	ids, err := chunk.ListIDs(dir)
	if err != nil {
		return nil, fmt.Errorf("backup: list chunks in %s: %w", dir, err)
	}

	var sealed []uint32
	for _, id := range ids {
		if id != activeChunkID {
			sealed = append(sealed, id)
		}
	}

	compressed := make([][]byte, len(sealed))
	originalSizes := make([]int, len(sealed))

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, id := range sealed {
		i, id := i, id
		g.Go(func() error {
			data, err := os.ReadFile(chunk.ChunkPath(dir, id))
			if err != nil {
				return fmt.Errorf("backup: read chunk %d: %w", id, err)
			}
			enc, err := zstd.NewWriter(nil)
			if err != nil {
				return fmt.Errorf("backup: new zstd writer: %w", err)
			}
			compressed[i] = enc.EncodeAll(data, nil)
			originalSizes[i] = len(data)
			return enc.Close()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := os.OpenFile(archivePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("backup: create archive %s: %w", archivePath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	header := format.Header{Type: format.TypeBackupManifest, Version: 1}
	if _, err := w.Write(header.Encode()[:]); err != nil {
		return nil, fmt.Errorf("backup: write manifest header: %w", err)
	}

	var countBuf [4]byte
	binary.LittleEndian.PutUint32(countBuf[:], uint32(len(sealed)))
	if _, err := w.Write(countBuf[:]); err != nil {
		return nil, fmt.Errorf("backup: write chunk count: %w", err)
	}

	entries := make([]Entry, len(sealed))
	for i, id := range sealed {
		entry := Entry{
			ChunkID:        id,
			OriginalSize:   uint64(originalSizes[i]),
			CompressedSize: uint64(len(compressed[i])),
		}
		entries[i] = entry

		if err := writeEntryHeader(w, entry); err != nil {
			return nil, err
		}
		if _, err := w.Write(compressed[i]); err != nil {
			return nil, fmt.Errorf("backup: write chunk %d payload: %w", id, err)
		}
	}

	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("backup: flush archive: %w", err)
	}
	return entries, nil
}

func writeEntryHeader(w io.Writer, e Entry) error {
	var buf [20]byte
	binary.LittleEndian.PutUint32(buf[0:4], e.ChunkID)
	binary.LittleEndian.PutUint64(buf[4:12], e.OriginalSize)
	binary.LittleEndian.PutUint64(buf[12:20], e.CompressedSize)
	_, err := w.Write(buf[:])
	return err
}

func readEntryHeader(r io.Reader) (Entry, error) {
	var buf [20]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Entry{}, err
	}
	return Entry{
		ChunkID:        binary.LittleEndian.Uint32(buf[0:4]),
		OriginalSize:   binary.LittleEndian.Uint64(buf[4:12]),
		CompressedSize: binary.LittleEndian.Uint64(buf[12:20]),
	}, nil
}

// List reads an archive's manifest and per-chunk headers, validating
// the compressed payloads decompress to their declared original size,
// without writing anything to disk.
func List(archivePath string) ([]Entry, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("backup: open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)

	var headerBuf [format.HeaderSize]byte
	if _, err := io.ReadFull(r, headerBuf[:]); err != nil {
		return nil, fmt.Errorf("backup: read manifest header: %w", err)
	}
	if _, err := format.DecodeAndValidate(headerBuf[:], format.TypeBackupManifest, 1); err != nil {
		return nil, fmt.Errorf("backup: %s: %w", archivePath, err)
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return nil, fmt.Errorf("backup: read chunk count: %w", err)
	}
	count := binary.LittleEndian.Uint32(countBuf[:])

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("backup: new zstd reader: %w", err)
	}
	defer dec.Close()

	entries := make([]Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		entry, err := readEntryHeader(r)
		if err != nil {
			return nil, fmt.Errorf("backup: read entry %d header: %w", i, err)
		}

		payload := make([]byte, entry.CompressedSize)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("backup: read entry %d payload: %w", i, err)
		}
		decoded, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("backup: decode chunk %d: %w", entry.ChunkID, err)
		}
		if uint64(len(decoded)) != entry.OriginalSize {
			return nil, fmt.Errorf("backup: chunk %d decoded to %d bytes, manifest says %d", entry.ChunkID, len(decoded), entry.OriginalSize)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
