// Package tocmodel holds the in-memory table-of-contents representation:
// the entry type, its JSON wire shape, and the by_name/children/chunks
// indices built once per Reader.Open the way a parsed flatbuffer index
// is built once per load in other archive formats.
package tocmodel

import "github.com/opencontainers/go-digest"

// EntryType identifies the kind of a TOC entry.
type EntryType string

const (
	TypeDir      EntryType = "dir"
	TypeReg      EntryType = "reg"
	TypeSymlink  EntryType = "symlink"
	TypeHardlink EntryType = "hardlink"
	TypeChar     EntryType = "char"
	TypeBlock    EntryType = "block"
	TypeFifo     EntryType = "fifo"
	TypeChunk    EntryType = "chunk"
)

// Entry is one record of the table of contents, matching the on-disk
// JSON field names exactly (§3 of the archive format).
type Entry struct {
	Name     string    `json:"name"`
	Type     EntryType `json:"type"`
	Size     int64     `json:"size,omitempty"`
	ModeRaw  int64     `json:"mode,omitempty"`
	UID      int       `json:"uid,omitempty"`
	GID      int       `json:"gid,omitempty"`
	Uname    string    `json:"uname,omitempty"`
	Gname    string    `json:"gname,omitempty"`
	ModTime  string    `json:"mod_time,omitempty"`
	DevMajor int64     `json:"devmajor,omitempty"`
	DevMinor int64     `json:"devminor,omitempty"`
	LinkName string    `json:"link_name,omitempty"`

	Digest digest.Digest `json:"digest,omitempty"`

	Offset int64 `json:"offset,omitempty"`

	ChunkOffset int64         `json:"chunk_offset,omitempty"`
	ChunkSize   int64         `json:"chunk_size,omitempty"`
	ChunkDigest digest.Digest `json:"chunk_digest,omitempty"`

	Xattrs map[string][]byte `json:"xattrs,omitempty"`

	// NextOffset is derived during Build, never serialized: the byte
	// position where the gzip member holding this entry ends.
	NextOffset int64 `json:"-"`
}

// IsHead reports whether e is the first (and possibly only) chunk of
// its regular file: either a plain "reg" entry, or the first "chunk"
// entry recorded at ChunkOffset 0.
func (e *Entry) IsHead() bool {
	if e.Type == TypeReg {
		return true
	}
	return e.Type == TypeChunk && e.ChunkOffset == 0
}

// IsDir reports whether e names a directory.
func (e *Entry) IsDir() bool {
	return e.Type == TypeDir
}

// ChunkSizeOrDefault returns the size of the payload covered by this
// chunk entry. An unchunked "reg" entry carries no explicit ChunkSize
// since it is the only chunk of its file, so the default is the
// remainder of the file from ChunkOffset.
func (e *Entry) ChunkSizeOrDefault() int64 {
	if e.ChunkSize != 0 {
		return e.ChunkSize
	}
	return e.Size - e.ChunkOffset
}
