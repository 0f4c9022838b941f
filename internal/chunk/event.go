package chunk

import (
	"encoding/binary"
	"fmt"
)

// Event is an immutable record in the log: a globally increasing id, a
// write-time timestamp, the stream it was written to, and an opaque
// UTF-8 payload.
type Event struct {
	ID        uint64
	Timestamp int64
	Name      string
	Payload   string
}

// EncodedLen returns the number of bytes Encode will produce for this
// event, excluding the leading u32 record-length prefix.
func (e Event) EncodedLen() int {
	return 8 + 8 + 8 + len(e.Name) + 8 + len(e.Payload)
}

// Encode appends the event's wire representation to buf and returns the
// extended slice. Layout: u64 id, i64 timestamp, u64-length-prefixed
// name, u64-length-prefixed payload, all little-endian.
func (e Event) Encode(buf []byte) []byte {
	var scratch [8]byte

	binary.LittleEndian.PutUint64(scratch[:], e.ID)
	buf = append(buf, scratch[:]...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(e.Timestamp))
	buf = append(buf, scratch[:]...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(len(e.Name)))
	buf = append(buf, scratch[:]...)
	buf = append(buf, e.Name...)

	binary.LittleEndian.PutUint64(scratch[:], uint64(len(e.Payload)))
	buf = append(buf, scratch[:]...)
	buf = append(buf, e.Payload...)

	return buf
}

// DecodeEvent decodes a single event from buf, which must contain
// exactly one encoded event (no surrounding record-length prefix).
func DecodeEvent(buf []byte) (Event, error) {
	if len(buf) < 24 {
		return Event{}, fmt.Errorf("%w: event header truncated", ErrDecode)
	}

	id := binary.LittleEndian.Uint64(buf[0:8])
	ts := int64(binary.LittleEndian.Uint64(buf[8:16]))

	nameLen := binary.LittleEndian.Uint64(buf[16:24])
	pos := 24 + nameLen
	if uint64(len(buf)) < pos {
		return Event{}, fmt.Errorf("%w: name truncated", ErrDecode)
	}
	name := string(buf[24:pos])

	if uint64(len(buf)) < pos+8 {
		return Event{}, fmt.Errorf("%w: payload length truncated", ErrDecode)
	}
	payloadLen := binary.LittleEndian.Uint64(buf[pos : pos+8])
	pos += 8
	end := pos + payloadLen
	if uint64(len(buf)) < end {
		return Event{}, fmt.Errorf("%w: payload truncated", ErrDecode)
	}
	payload := string(buf[pos:end])

	return Event{ID: id, Timestamp: ts, Name: name, Payload: payload}, nil
}
