package chunk

import (
	"crypto/sha256"
	"hash"
)

// verifyDigest checks that the first 32 bytes of data equal the SHA-256
// of data with those same 32 bytes zero-filled. It returns the
// recomputed digest and whether it matched the stored one. data is
// modified in place (the digest field is zeroed and then restored) so
// callers must not rely on it being untouched across concurrent use.
func verifyDigest(data []byte) (computed [32]byte, ok bool) {
	var stored [32]byte
	copy(stored[:], data[0:32])

	var zero [32]byte
	copy(data[0:32], zero[:])

	h := sha256.New()
	h.Write(data)
	h.Sum(computed[:0])

	copy(data[0:32], stored[:])

	return computed, computed == stored
}

// contextFromBody feeds data (with its digest field already zeroed) into
// a fresh SHA-256 context and returns it, positioned to accept further
// writes. Used to reconstruct the running digest of a recovered active
// chunk, since the original in-process hash.Hash is lost across restart.
func contextFromBody(data []byte) hash.Hash {
	h := sha256.New()
	h.Write(data)
	return h
}
