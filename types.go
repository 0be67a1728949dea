package stargz

import "github.com/bennyz/stargz/internal/tocmodel"

// Entry is one record of the table of contents.
type Entry = tocmodel.Entry

// EntryType identifies the kind of a TOC entry.
type EntryType = tocmodel.EntryType

// Entry type constants.
const (
	TypeDir      = tocmodel.TypeDir
	TypeReg      = tocmodel.TypeReg
	TypeSymlink  = tocmodel.TypeSymlink
	TypeHardlink = tocmodel.TypeHardlink
	TypeChar     = tocmodel.TypeChar
	TypeBlock    = tocmodel.TypeBlock
	TypeFifo     = tocmodel.TypeFifo
	TypeChunk    = tocmodel.TypeChunk
)

// TOCEntryName is the fixed name of the JSON index file stored in the
// TOC member's synthetic single-entry tar.
const TOCEntryName = "stargz.index.json"

// DefaultChunkSize is the chunk threshold a Writer uses unless
// overridden with SetChunkSize.
const DefaultChunkSize = 4 << 20 // 4 MiB
