package chunk

import "encoding/binary"

// HeaderVersion is the current chunk header format version.
const HeaderVersion uint8 = 1

// HeaderSize is the on-disk size of a chunk header: a 32-byte digest, a
// 1-byte version, and an 8-byte signed timestamp.
const HeaderSize = 32 + 1 + 8

// Header is the fixed-layout prefix of every chunk file.
type Header struct {
	Digest    [32]byte
	Version   uint8
	Timestamp int64
}

// Encode writes the header into a fresh HeaderSize-byte slice.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:32], h.Digest[:])
	buf[32] = h.Version
	binary.LittleEndian.PutUint64(buf[33:41], uint64(h.Timestamp))
	return buf
}

// DecodeHeader reads a header from the start of buf.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrHeaderTooSmall
	}
	var h Header
	copy(h.Digest[:], buf[0:32])
	h.Version = buf[32]
	h.Timestamp = int64(binary.LittleEndian.Uint64(buf[33:41]))
	return h, nil
}
