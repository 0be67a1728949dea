package stargz

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"time"

	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/bennyz/stargz/internal/footer"
	"github.com/bennyz/stargz/internal/tocmodel"
)

const tarBlockSize = 512

// Writer converts an input tar stream into a stargz byte stream: one
// independent gzip member per entry (or per chunk of a large entry),
// followed by a TOC member and a fixed 51-byte footer.
//
// A Writer is single-consumer: AppendTar and Close must not be called
// concurrently, and Sink writes occur strictly in the order entries are
// emitted.
type Writer struct {
	sink      *countingWriter
	chunkSize int64
	logger    *slog.Logger

	entries    []tocmodel.Entry
	diffHasher hash.Hash

	wroteAny bool
	closed   bool

	tocOffset int64
	diffID    digest.Digest
}

// Option configures a Writer.
type Option func(*Writer)

// WithChunkSize overrides the default 4 MiB chunk threshold. Must be
// applied before any entry is appended; calling it afterward returns
// ErrChunkSizeAfterWrite from AppendTar.
func WithChunkSize(n int64) Option {
	return func(w *Writer) {
		w.chunkSize = n
	}
}

// WithLogger sets the logger used for per-entry debug messages. A nil
// logger (or omitting this option) discards all log output.
func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		w.logger = l
	}
}

// NewWriter wraps sink, a writable byte sink, with a Writer using the
// default 4 MiB chunk size.
func NewWriter(sink io.Writer, opts ...Option) *Writer {
	w := &Writer{
		sink:       &countingWriter{w: sink},
		chunkSize:  DefaultChunkSize,
		diffHasher: sha256.New(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w
}

// SetChunkSize overrides the chunk threshold. It is equivalent to
// WithChunkSize but may be called any time before the first AppendTar.
func (w *Writer) SetChunkSize(n int64) error {
	if w.wroteAny {
		return ErrChunkSizeAfterWrite
	}
	w.chunkSize = n
	return nil
}

// AppendTar consumes a tar stream and emits one or more gzip members per
// entry into the sink, accumulating the in-memory TOC.
func (w *Writer) AppendTar(r io.Reader) error {
	if w.closed {
		return ErrAlreadyClosed
	}
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stargz: read tar header: %w", err)
		}
		if err := w.appendEntry(hdr, tr); err != nil {
			return err
		}
		w.wroteAny = true
	}
}

func (w *Writer) appendEntry(hdr *tar.Header, body io.Reader) error {
	entryType, err := entryTypeFromTar(hdr.Typeflag)
	if err != nil {
		return fmt.Errorf("stargz: %s: %w", hdr.Name, err)
	}

	if entryType == tocmodel.TypeReg && hdr.Size > w.chunkSize {
		return w.appendChunkedReg(hdr, body)
	}

	offset := w.sink.n
	gz := gzip.NewWriter(w.sink)
	tee := io.MultiWriter(gz, w.diffHasher)

	hdrBlock, err := encodeHeaderBlock(hdr)
	if err != nil {
		return fmt.Errorf("stargz: %s: encode header: %w", hdr.Name, err)
	}
	if _, err := tee.Write(hdrBlock); err != nil {
		return fmt.Errorf("stargz: %s: write header: %w", hdr.Name, err)
	}

	var payloadDigest digest.Digest
	if entryType == tocmodel.TypeReg && hdr.Size > 0 {
		h := sha256.New()
		n, err := io.Copy(io.MultiWriter(tee, h), io.LimitReader(body, hdr.Size))
		if err != nil {
			return fmt.Errorf("stargz: %s: write payload: %w", hdr.Name, err)
		}
		if n != hdr.Size {
			return fmt.Errorf("stargz: %s: short payload: wrote %d of %d", hdr.Name, n, hdr.Size)
		}
		payloadDigest = digest.NewDigest(digest.SHA256, h)
	}

	if err := writePadding(tee, hdr.Size); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("stargz: %s: close member: %w", hdr.Name, err)
	}

	entry := buildEntry(hdr, entryType, offset)
	entry.Digest = payloadDigest
	w.entries = append(w.entries, entry)
	w.logger.Debug("wrote entry member", "name", hdr.Name, "offset", offset, "type", entryType)
	return nil
}

// appendChunkedReg handles a regular file larger than the chunk
// threshold: the head chunk carries the full tar header (with the
// entry's full logical size), and every subsequent chunk writes raw
// payload bytes into its own gzip member with no header at all.
func (w *Writer) appendChunkedReg(hdr *tar.Header, body io.Reader) error {
	total := hdr.Size
	overall := sha256.New()

	headOffset := w.sink.n
	headSize := min(w.chunkSize, total)
	headChunkDigest, err := w.writeChunkMember(hdr, body, headOffset, headSize, overall, true)
	if err != nil {
		return err
	}

	headEntry := buildEntry(hdr, tocmodel.TypeReg, headOffset)
	headEntry.ChunkOffset = 0
	headEntry.ChunkSize = headSize
	headEntry.ChunkDigest = headChunkDigest
	w.entries = append(w.entries, headEntry)
	headIdx := len(w.entries) - 1

	remaining := total - headSize
	chunkOffset := headSize
	for remaining > 0 {
		n := min(w.chunkSize, remaining)
		isLast := n == remaining
		offset := w.sink.n
		chunkDigest, err := w.writeChunkMember(hdr, body, offset, n, overall, false)
		if err != nil {
			return err
		}
		if isLast {
			if err := w.padLastChunk(offset, total); err != nil {
				return err
			}
		}

		chunkEntry := tocmodel.Entry{
			Name:        hdr.Name,
			Type:        tocmodel.TypeChunk,
			Offset:      offset,
			ChunkOffset: chunkOffset,
			ChunkSize:   n,
			ChunkDigest: chunkDigest,
		}
		w.entries = append(w.entries, chunkEntry)

		remaining -= n
		chunkOffset += n
	}

	w.entries[headIdx].Digest = digest.NewDigest(digest.SHA256, overall)
	w.logger.Debug("wrote chunked entry", "name", hdr.Name, "size", total, "chunk_size", w.chunkSize)
	return nil
}

// writeChunkMember opens one gzip member, optionally writes the tar
// header (head chunk only), writes n payload bytes teed through the
// archive-wide diff hasher and the overall per-file digest hasher, and
// closes the member. It never pads: only the complete entry's payload
// needs to land on a tar block boundary, once, after the final chunk;
// padLastChunk handles that.
func (w *Writer) writeChunkMember(hdr *tar.Header, body io.Reader, _ int64, n int64, overall hash.Hash, withHeader bool) (digest.Digest, error) {
	gz := gzip.NewWriter(w.sink)
	tee := io.MultiWriter(gz, w.diffHasher)

	if withHeader {
		hdrBlock, err := encodeHeaderBlock(hdr)
		if err != nil {
			return "", fmt.Errorf("stargz: %s: encode header: %w", hdr.Name, err)
		}
		if _, err := tee.Write(hdrBlock); err != nil {
			return "", fmt.Errorf("stargz: %s: write header: %w", hdr.Name, err)
		}
	}

	chunkHasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tee, chunkHasher, overall), io.LimitReader(body, n))
	if err != nil {
		return "", fmt.Errorf("stargz: %s: write chunk: %w", hdr.Name, err)
	}
	if written != n {
		return "", fmt.Errorf("stargz: %s: short chunk: wrote %d of %d", hdr.Name, written, n)
	}

	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("stargz: %s: close chunk member: %w", hdr.Name, err)
	}
	return digest.NewDigest(digest.SHA256, chunkHasher), nil
}

// padLastChunk cannot reopen an already-closed gzip member, so instead
// the padding for an entry's final chunk is written as its own trailing
// gzip member: it inflates to pure zero-padding bytes, which a
// sequential tar reader skips as part of the preceding file's block
// alignment, and it carries no TOC entry of its own.
func (w *Writer) padLastChunk(_ int64, total int64) error {
	pad := tarBlockSize - int(total%tarBlockSize)
	if pad == tarBlockSize {
		return nil
	}
	gz := gzip.NewWriter(w.sink)
	tee := io.MultiWriter(gz, w.diffHasher)
	if err := writePaddingBytes(tee, pad); err != nil {
		return err
	}
	return gz.Close()
}

// Close finalizes the archive: it serializes the TOC to JSON, wraps it
// in a synthetic single-entry tar named stargz.index.json, gzip
// compresses that as the TOC member, and writes the fixed footer
// pointing at it.
func (w *Writer) Close() error {
	if w.closed {
		return ErrAlreadyClosed
	}
	w.closed = true

	tocJSON, err := marshalTOC(w.entries)
	if err != nil {
		return fmt.Errorf("stargz: marshal toc: %w", err)
	}

	tocHdr := &tar.Header{
		Name:     TOCEntryName,
		Typeflag: tar.TypeReg,
		Size:     int64(len(tocJSON)),
		Mode:     0o644,
		ModTime:  time.Unix(0, 0).UTC(),
	}

	w.tocOffset = w.sink.n
	gz := gzip.NewWriter(w.sink)
	tee := io.MultiWriter(gz, w.diffHasher)

	hdrBlock, err := encodeHeaderBlock(tocHdr)
	if err != nil {
		return fmt.Errorf("stargz: encode toc header: %w", err)
	}
	if _, err := tee.Write(hdrBlock); err != nil {
		return fmt.Errorf("stargz: write toc header: %w", err)
	}
	if _, err := tee.Write(tocJSON); err != nil {
		return fmt.Errorf("stargz: write toc body: %w", err)
	}
	if err := writePadding(tee, tocHdr.Size); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("stargz: close toc member: %w", err)
	}

	if _, err := w.sink.Write(footer.Encode(uint64(w.tocOffset))); err != nil { //nolint:gosec // toc offset is never negative
		return fmt.Errorf("stargz: write footer: %w", err)
	}

	w.diffID = digest.NewDigest(digest.SHA256, w.diffHasher)
	w.logger.Debug("closed archive", "toc_offset", w.tocOffset, "entries", len(w.entries))
	return nil
}

// DiffID returns the sha256 digest of the fully inflated output
// archive, valid only after Close returns successfully.
func (w *Writer) DiffID() digest.Digest {
	return w.diffID
}

// Descriptor returns an OCI descriptor for the archive written so far,
// valid only after Close returns successfully.
func (w *Writer) Descriptor() ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageLayerGzip,
		Digest:    w.diffID,
		Size:      w.sink.n,
	}
}

func entryTypeFromTar(flag byte) (tocmodel.EntryType, error) {
	switch flag {
	case tar.TypeDir:
		return tocmodel.TypeDir, nil
	case tar.TypeReg, tar.TypeRegA:
		return tocmodel.TypeReg, nil
	case tar.TypeSymlink:
		return tocmodel.TypeSymlink, nil
	case tar.TypeLink:
		return tocmodel.TypeHardlink, nil
	case tar.TypeChar:
		return tocmodel.TypeChar, nil
	case tar.TypeBlock:
		return tocmodel.TypeBlock, nil
	case tar.TypeFifo:
		return tocmodel.TypeFifo, nil
	default:
		return "", fmt.Errorf("unsupported tar entry type %q", flag)
	}
}

func buildEntry(hdr *tar.Header, entryType tocmodel.EntryType, offset int64) tocmodel.Entry {
	name := hdr.Name
	if entryType == tocmodel.TypeDir && len(name) > 0 && name[len(name)-1] != '/' {
		name += "/"
	}
	return tocmodel.Entry{
		Name:     name,
		Type:     entryType,
		Size:     hdr.Size,
		ModeRaw:  hdr.Mode,
		UID:      hdr.Uid,
		GID:      hdr.Gid,
		Uname:    hdr.Uname,
		Gname:    hdr.Gname,
		ModTime:  hdr.ModTime.UTC().Format(time.RFC3339),
		DevMajor: hdr.Devmajor,
		DevMinor: hdr.Devminor,
		LinkName: hdr.Linkname,
		Offset:   offset,
		Xattrs:   extractXattrs(hdr),
	}
}

func extractXattrs(hdr *tar.Header) map[string][]byte {
	const paxPrefix = "SCHILY.xattr."
	var out map[string][]byte
	for k, v := range hdr.PAXRecords {
		if name, ok := trimPrefix(k, paxPrefix); ok {
			if out == nil {
				out = make(map[string][]byte)
			}
			out[name] = []byte(v)
		}
	}
	for k, v := range hdr.Xattrs { //nolint:staticcheck // still the carrier for xattrs set directly on Header
		if out == nil {
			out = make(map[string][]byte)
		}
		if _, exists := out[k]; !exists {
			out[k] = []byte(v)
		}
	}
	return out
}

func trimPrefix(s, prefix string) (string, bool) {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// encodeHeaderBlock renders hdr the way a real tar.Writer would: the
// 512-byte header block (or more, for names/xattrs that need PAX
// extension records), without writing any payload.
func encodeHeaderBlock(hdr *tar.Header) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePadding(w io.Writer, size int64) error {
	pad := tarBlockSize - int(size%tarBlockSize)
	if pad == tarBlockSize {
		return nil
	}
	return writePaddingBytes(w, pad)
}

func writePaddingBytes(w io.Writer, n int) error {
	if n == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

func marshalTOC(entries []tocmodel.Entry) ([]byte, error) {
	doc := tocmodel.Document{Version: tocmodel.Version, Entries: entries}
	return json.Marshal(doc)
}

// countingWriter tracks the absolute byte position written to an
// underlying sink so the Writer knows the offset at which each gzip
// member begins.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	written, err := c.w.Write(p)
	c.n += int64(written)
	return written, err
}
