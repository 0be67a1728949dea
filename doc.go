// Package stargz implements the seekable tar.gz container-image layer
// format: a byte-compatible superset of tar.gz whose compression layout
// permits random, per-file decompression without scanning the archive
// from the start.
//
// [Writer] converts an input tar stream into a stargz byte stream.
// [Reader] opens an existing stargz byte stream, given random access to
// its bytes and its total length, and exposes lookups and ranged reads
// into entry contents via [FileReader].
//
// # Quick start
//
// Write an archive from a tar stream:
//
//	w := stargz.NewWriter(out)
//	if err := w.AppendTar(tr); err != nil {
//	    return err
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
//	diffID := w.DiffID()
//
// Read entries back out:
//
//	r, err := stargz.Open(src, size)
//	if err != nil {
//	    return err
//	}
//	f, err := r.OpenFile("hello.txt")
//	if err != nil {
//	    return err
//	}
//	buf := make([]byte, 13)
//	_, err = f.ReadAt(buf, 0)
//
// # Byte sources
//
// The Reader is generic over any capability providing positional reads:
// use [NewFileSource] for a file-backed archive, or [NewMemorySource]
// for an in-memory one (handy in tests).
package stargz
