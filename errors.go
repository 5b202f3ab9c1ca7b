package lantern

import "errors"

var (
	// ErrRootNotFound is returned by New and Build when the root path does
	// not exist or is not a readable directory. It is the only fatal build
	// condition; per-file parse failures are recorded as degraded files.
	ErrRootNotFound = errors.New("lantern: root path not found")

	// ErrEntityNotFound is returned by LookupEntity for an unknown ID.
	ErrEntityNotFound = errors.New("lantern: entity not found")

	// ErrEncoderUnavailable is returned by Search and VectorFor when no
	// encoder is configured or the configured encoder fails. Callers decide
	// whether to retry or fall back to token search.
	ErrEncoderUnavailable = errors.New("lantern: encoder unavailable")

	// ErrNoIndex is returned by queries issued before the first Build.
	ErrNoIndex = errors.New("lantern: index not built")
)
