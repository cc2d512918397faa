package core

import "errors"

// Error taxonomy for the scrubbing pipeline. Container-level failures live
// here; codec-level failures (bad offsets, cycles, type mismatches) are
// defined in core/tiff and wrap up through the same chain.
var (
	// ErrUnsupportedFormat means the container kind was not recognised.
	// Batch callers treat it as "skip this file", not as a failure.
	ErrUnsupportedFormat = errors.New("unsupported container format")

	// ErrTruncated means a declared segment or chunk length runs past the
	// end of the buffer. The file is left untouched.
	ErrTruncated = errors.New("truncated container")

	// ErrNoMetadata is the valid "nothing to do" outcome: the container is
	// well-formed but carries no EXIF segment.
	ErrNoMetadata = errors.New("no metadata present")
)
