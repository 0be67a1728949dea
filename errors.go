package stargz

import (
	"errors"

	"github.com/bennyz/stargz/internal/footer"
	"github.com/bennyz/stargz/internal/tocmodel"
)

// Format and invariant errors, re-exported from the internal packages
// that detect them so callers never need to import internal/*.
var (
	// ErrFooterSize is returned when the trailing footer is not
	// exactly 51 bytes.
	ErrFooterSize = footer.ErrSize

	// ErrFooterMagic is returned when the footer's gzip header or
	// Extra field does not match the expected stargz layout.
	ErrFooterMagic = footer.ErrMagic

	// ErrOffsetOrder is returned when entry offsets are not strictly
	// increasing in TOC order.
	ErrOffsetOrder = tocmodel.ErrOffsetOrder

	// ErrChunkWithoutHead is returned when a chunk entry has no
	// preceding reg entry of the same name.
	ErrChunkWithoutHead = tocmodel.ErrChunkWithoutHead

	// ErrChunkGap is returned when a file's chunks leave a gap.
	ErrChunkGap = tocmodel.ErrChunkGap

	// ErrChunkOverlap is returned when a file's chunks overlap.
	ErrChunkOverlap = tocmodel.ErrChunkOverlap

	// ErrDuplicateEntry is returned when two non-chunk entries share a
	// name.
	ErrDuplicateEntry = tocmodel.ErrDuplicateEntry
)

var (
	// ErrTOCMissing is returned when the TOC member cannot be located
	// or does not contain stargz.index.json.
	ErrTOCMissing = errors.New("stargz: TOC member missing or malformed")

	// ErrTOCMalformed is returned when the TOC JSON cannot be parsed.
	ErrTOCMalformed = errors.New("stargz: TOC json malformed")

	// ErrNotRegularFile is returned by OpenFile when the named entry
	// exists but is not a regular file.
	ErrNotRegularFile = errors.New("stargz: not a regular file")

	// ErrNegativeOffset is returned by ReadAt when called with a
	// negative logical offset.
	ErrNegativeOffset = errors.New("stargz: negative offset")

	// ErrArchiveTooShort is returned when the archive is shorter than
	// the fixed footer size.
	ErrArchiveTooShort = errors.New("stargz: archive shorter than footer")

	// ErrAlreadyClosed is returned by AppendTar or Close when Close
	// has already been called.
	ErrAlreadyClosed = errors.New("stargz: writer already closed")

	// ErrChunkSizeAfterWrite is returned by SetChunkSize once any
	// entry has already been appended.
	ErrChunkSizeAfterWrite = errors.New("stargz: SetChunkSize called after AppendTar")
)
