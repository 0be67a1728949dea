package tocmodel

import "errors"

var (
	// ErrOffsetOrder is returned when entry offsets are not strictly
	// increasing in TOC order.
	ErrOffsetOrder = errors.New("tocmodel: entry offsets not strictly increasing")

	// ErrChunkWithoutHead is returned when a "chunk" entry appears
	// before any "reg" entry of the same name.
	ErrChunkWithoutHead = errors.New("tocmodel: chunk entry has no preceding reg entry")

	// ErrChunkGap is returned when a file's chunks leave a gap in
	// [0, size).
	ErrChunkGap = errors.New("tocmodel: gap between chunks")

	// ErrChunkOverlap is returned when a file's chunks overlap.
	ErrChunkOverlap = errors.New("tocmodel: overlapping chunks")

	// ErrDuplicateEntry is returned when two non-chunk entries share a
	// name.
	ErrDuplicateEntry = errors.New("tocmodel: duplicate entry name")
)
