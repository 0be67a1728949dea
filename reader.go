package stargz

import (
	"archive/tar"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/bennyz/stargz/internal/footer"
	"github.com/bennyz/stargz/internal/section"
	"github.com/bennyz/stargz/internal/sizing"
	"github.com/bennyz/stargz/internal/tocmodel"
)

// DefaultMaxTOCSize bounds how much decompressed TOC JSON a Reader will
// buffer in memory before giving up, guarding against a maliciously
// oversized TOC member.
const DefaultMaxTOCSize = 256 << 20

// Reader parses the footer and TOC of an existing stargz byte stream
// and serves lookups and ranged reads into its entries. A Reader is
// immutable after Open: ReadAt calls derived from it are safe to invoke
// concurrently as long as the underlying ByteSource's ReadAt is itself
// safe for concurrent positional reads.
type Reader struct {
	source ByteSource
	size   int64
	idx    *tocmodel.Index
	logger *slog.Logger
}

// ReaderOption configures Open.
type ReaderOption func(*readerConfig)

type readerConfig struct {
	maxTOCSize int64
	logger     *slog.Logger
}

// WithMaxTOCSize overrides DefaultMaxTOCSize.
func WithMaxTOCSize(n int64) ReaderOption {
	return func(c *readerConfig) {
		c.maxTOCSize = n
	}
}

// WithReaderLogger sets the logger Open and subsequent Reader
// operations use for debug output. A nil logger discards all output.
func WithReaderLogger(l *slog.Logger) ReaderOption {
	return func(c *readerConfig) {
		c.logger = l
	}
}

// Open parses source as a stargz archive of the given total length: it
// reads and validates the footer, decompresses and parses the TOC, and
// builds the by-name/children/chunk indices. Format and invariant
// errors are detected here so later ReadAt calls never need to
// re-validate.
func Open(source ByteSource, size int64, opts ...ReaderOption) (*Reader, error) {
	cfg := readerConfig{maxTOCSize: DefaultMaxTOCSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if size < footer.Size {
		return nil, ErrArchiveTooShort
	}

	footerBuf := make([]byte, footer.Size)
	if _, err := source.ReadAt(footerBuf, size-footer.Size); err != nil {
		return nil, fmt.Errorf("stargz: read footer: %w", err)
	}
	rawOffset, err := footer.Decode(footerBuf)
	if err != nil {
		return nil, fmt.Errorf("stargz: decode footer: %w", err)
	}
	tocOffset, err := sizing.ToInt64(rawOffset, ErrTOCMissing)
	if err != nil || tocOffset >= size-footer.Size {
		return nil, fmt.Errorf("stargz: decode footer: %w: toc offset %d out of range", ErrTOCMissing, rawOffset)
	}

	entries, err := readTOC(source, tocOffset, size-footer.Size, cfg.maxTOCSize)
	if err != nil {
		return nil, err
	}

	idx, err := tocmodel.Build(entries, tocOffset)
	if err != nil {
		return nil, fmt.Errorf("stargz: %w", err)
	}

	cfg.logger.Debug("opened archive", "toc_offset", tocOffset, "entries", len(entries))
	return &Reader{source: source, size: size, idx: idx, logger: cfg.logger}, nil
}

// readTOC decompresses the gzip member spanning [tocOffset, end), pulls
// its single tar entry (which must be named stargz.index.json), and
// parses its JSON body into a TOC document's entry list.
func readTOC(source ByteSource, tocOffset, end, maxSize int64) ([]tocmodel.Entry, error) {
	view := section.New(source, tocOffset, end-tocOffset)
	gz, err := gzip.NewReader(view.Reader())
	if err != nil {
		return nil, fmt.Errorf("stargz: %w: %v", ErrTOCMissing, err)
	}
	defer gz.Close() //nolint:errcheck // read errors already surfaced below

	tr := tar.NewReader(gz)
	hdr, err := tr.Next()
	if err != nil {
		return nil, fmt.Errorf("stargz: %w: %v", ErrTOCMissing, err)
	}
	if hdr.Name != TOCEntryName {
		return nil, fmt.Errorf("stargz: %w: unexpected toc entry name %q", ErrTOCMissing, hdr.Name)
	}
	if hdr.Size > maxSize {
		return nil, fmt.Errorf("stargz: %w: toc entry too large (%d bytes)", ErrTOCMalformed, hdr.Size)
	}

	body, err := sizing.ReadAllWithLimit(tr, uint64(hdr.Size), ErrTOCMalformed) //nolint:gosec // hdr.Size already bounded above
	if err != nil {
		return nil, fmt.Errorf("stargz: %w: %v", ErrTOCMissing, err)
	}
	if int64(len(body)) != hdr.Size {
		return nil, fmt.Errorf("stargz: %w: toc entry size mismatch", ErrTOCMalformed)
	}

	var doc tocmodel.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("stargz: %w: %v", ErrTOCMalformed, err)
	}
	if doc.Version != tocmodel.Version {
		return nil, fmt.Errorf("stargz: %w: unsupported toc version %d", ErrTOCMalformed, doc.Version)
	}
	return doc.Entries, nil
}

// Lookup resolves path to its TOC entry. Paths are matched byte-for-byte
// (embedded ".." segments are not normalized); a query without a
// trailing slash also matches a directory entry stored with one.
func (r *Reader) Lookup(path string) (Entry, bool) {
	e, ok := r.idx.Lookup(path)
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// TOC returns the entry sequence in on-disk order.
func (r *Reader) TOC() []Entry {
	return r.idx.Entries()
}

// Children returns the ordered direct-child basenames of dir (which
// must include a trailing slash, or be "" for the archive root).
func (r *Reader) Children(dir string) []string {
	return r.idx.Children(dir)
}

// Size returns the total archive length this Reader was opened with.
func (r *Reader) Size() int64 {
	return r.size
}

// OpenFile returns a FileReader bound to the regular-file entry named
// by path. It fails with a *fs.PathError wrapping fs.ErrNotExist if no
// such entry exists, or ErrNotRegularFile if it exists but is not a
// regular file.
func (r *Reader) OpenFile(path string) (*FileReader, error) {
	e, ok := r.idx.Lookup(path)
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	if e.Type != tocmodel.TypeReg {
		return nil, &fs.PathError{Op: "open", Path: path, Err: ErrNotRegularFile}
	}
	chunks := r.idx.Chunks(e.Name)
	if len(chunks) == 0 {
		chunks = []*tocmodel.Entry{e}
	}
	return &FileReader{r: r, name: e.Name, size: e.Size, chunks: chunks}, nil
}
