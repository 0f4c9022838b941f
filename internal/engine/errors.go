package engine

import "errors"

// ErrReservedStream is returned by Append when the caller targets the
// synthetic $all stream, which is read-only.
var ErrReservedStream = errors.New(`engine: illegal stream_name parameter "$all"`)
