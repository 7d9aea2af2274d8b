package snapshot

import "errors"

// Load-time errors (§4.1, §7 "Resource errors"). All are fatal: the
// process must not start search with a partially valid snapshot.
var (
	ErrBadMagic           = errors.New("snapshot: bad magic")
	ErrUnsupportedVersion = errors.New("snapshot: unsupported version")
	ErrTruncatedFile      = errors.New("snapshot: truncated file")
	ErrInvalidOffsets     = errors.New("snapshot: invalid section offsets")
	ErrSnapshotCorrupt    = errors.New("snapshot: corrupt (crc mismatch)")
)
