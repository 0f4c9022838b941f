package chunk

import "errors"

var (
	// ErrNoSpace is returned by AttemptToWriteEvent when a record does not
	// fit in the remaining space of the chunk. It is an internal signal
	// consumed by the writer to trigger rotation; it must never reach a
	// caller of the engine.
	ErrNoSpace = errors.New("chunk: no space remaining")

	// ErrCorruption is returned when a chunk's stored digest does not
	// match the digest recomputed over its body. Corruption is fatal to
	// the process that discovers it.
	ErrCorruption = errors.New("chunk: digest mismatch")

	// ErrOversizedEvent is returned when a single encoded event cannot
	// fit in an otherwise-empty chunk. This is a fatal configuration
	// error, not a rotation trigger.
	ErrOversizedEvent = errors.New("chunk: event too large for a chunk")

	// ErrDecode indicates the chunk body could not be parsed into a
	// sequence of records. Treated the same as ErrCorruption by callers.
	ErrDecode = errors.New("chunk: malformed record")

	// ErrHeaderTooSmall indicates a chunk file is shorter than a header.
	ErrHeaderTooSmall = errors.New("chunk: file smaller than header")
)
