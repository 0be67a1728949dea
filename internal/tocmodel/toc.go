package tocmodel

import (
	"fmt"
	"strings"
)

// Version is the only supported TOC document version.
const Version = 1

// Document is the top-level shape of stargz.index.json.
type Document struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Index is the built in-memory table of contents: the ordered entry
// sequence plus the by_name, children, and chunks lookup structures
// described by the archive format.
type Index struct {
	entries  []Entry
	byName   map[string]*Entry
	children map[string][]string
	chunks   map[string][]*Entry
}

// Entries returns the TOC entries in on-disk order.
func (idx *Index) Entries() []Entry {
	return idx.entries
}

// Lookup resolves path to its canonical entry. A path without a
// trailing slash also matches a directory entry stored with one; exact
// matches take precedence. Paths are matched byte-for-byte, including
// any embedded ".." segments: callers normalize before calling Lookup
// if they want POSIX-style resolution. A "hardlink" entry is
// transparently resolved to the entry named by its LinkName, so callers
// never see the stub itself.
func (idx *Index) Lookup(path string) (*Entry, bool) {
	e, ok := idx.byName[path]
	if !ok && !strings.HasSuffix(path, "/") {
		e, ok = idx.byName[path+"/"]
	}
	if !ok {
		return nil, false
	}
	if e.Type == TypeHardlink {
		target, ok := idx.byName[e.LinkName]
		return target, ok
	}
	return e, true
}

// Children returns the ordered direct-child basenames of dir (which
// must include a trailing slash, or be "" for the archive root).
func (idx *Index) Children(dir string) []string {
	return idx.children[dir]
}

// Chunks returns the ordered chunk list for a regular file, including
// its head "reg" entry as the first element. Returns nil if name does
// not name a regular file.
func (idx *Index) Chunks(name string) []*Entry {
	return idx.chunks[name]
}

// Build validates and indexes a freshly parsed entry sequence, computes
// each entry's NextOffset (§4.5 step 3), and rejects any entry sequence
// that violates the archive's invariants. tocOffset is the absolute
// byte offset of the TOC member itself, used as the last entry's
// NextOffset.
func Build(entries []Entry, tocOffset int64) (*Index, error) {
	idx := &Index{
		entries:  entries,
		byName:   make(map[string]*Entry, len(entries)),
		children: make(map[string][]string),
		chunks:   make(map[string][]*Entry),
	}

	if err := checkOffsetOrder(entries, tocOffset); err != nil {
		return nil, err
	}
	for i := range entries {
		if i+1 < len(entries) {
			entries[i].NextOffset = entries[i+1].Offset
		} else {
			entries[i].NextOffset = tocOffset
		}
	}

	seenHead := make(map[string]bool, len(entries))
	for i := range entries {
		e := &entries[i]
		switch e.Type {
		case TypeChunk:
			if !seenHead[e.Name] {
				return nil, fmt.Errorf("%w: %s", ErrChunkWithoutHead, e.Name)
			}
			idx.chunks[e.Name] = append(idx.chunks[e.Name], e)
		case TypeReg:
			if _, dup := idx.byName[e.Name]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
			}
			idx.byName[e.Name] = e
			seenHead[e.Name] = true
			idx.chunks[e.Name] = append(idx.chunks[e.Name], e)
			addChild(idx.children, e.Name)
		default:
			if _, dup := idx.byName[e.Name]; dup {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateEntry, e.Name)
			}
			idx.byName[e.Name] = e
			addChild(idx.children, e.Name)
		}
	}

	if err := checkChunkCoverage(idx.chunks); err != nil {
		return nil, err
	}

	for i := range entries {
		if entries[i].Type == TypeChunk {
			continue
		}
		idx.ensureDir(parentOf(entries[i].Name))
	}

	return idx, nil
}

// ensureDir guarantees that dir and every non-empty ancestor of it has a
// byName entry and is registered as a child of its own parent, the way
// an implicit directory is materialized when a tar stream carries a
// leaf path (e.g. "a/b/c.txt") without explicit headers for "a/" or
// "a/b/". Real, explicitly-declared directories are left untouched;
// synthesized ones are not part of the on-disk entry sequence and carry
// no Offset, so they never appear from Entries().
func (idx *Index) ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, ok := idx.byName[dir]; ok {
		return
	}
	e := &Entry{Name: dir, Type: TypeDir, ModeRaw: 0o755}
	idx.byName[dir] = e
	addChild(idx.children, dir)
	idx.ensureDir(parentOf(dir))
}

func checkOffsetOrder(entries []Entry, tocOffset int64) error {
	var prev int64 = -1
	for i := range entries {
		off := entries[i].Offset
		if off <= prev {
			return fmt.Errorf("%w: entry %d offset %d", ErrOffsetOrder, i, off)
		}
		prev = off
	}
	if len(entries) > 0 && prev >= tocOffset {
		return fmt.Errorf("%w: last entry offset %d >= toc offset %d", ErrOffsetOrder, prev, tocOffset)
	}
	return nil
}

func checkChunkCoverage(chunks map[string][]*Entry) error {
	for name, list := range chunks {
		if len(list) < 2 {
			continue
		}
		var want int64
		for _, c := range list {
			if c.ChunkOffset < want {
				return fmt.Errorf("%w: %s at %d", ErrChunkOverlap, name, c.ChunkOffset)
			}
			if c.ChunkOffset > want {
				return fmt.Errorf("%w: %s at %d", ErrChunkGap, name, c.ChunkOffset)
			}
			want = c.ChunkOffset + c.ChunkSizeOrDefault()
		}
	}
	return nil
}

// addChild records name as a direct child of its parent directory path.
func addChild(children map[string][]string, name string) {
	parent := parentOf(name)
	children[parent] = append(children[parent], name)
}

// parentOf returns the parent directory path (with trailing slash, or
// "" for the root) of an entry name.
func parentOf(name string) string {
	trimmed := strings.TrimSuffix(name, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}
