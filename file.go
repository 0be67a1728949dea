package stargz

import (
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"

	"github.com/bennyz/stargz/internal/section"
	"github.com/bennyz/stargz/internal/tocmodel"
)

// FileReader is a bound handle over one regular-file entry of a Reader.
// It holds a shared, non-owning reference back to its Reader and never
// outlives it; it carries no mutable state of its own beyond what each
// ReadAt call uses transiently.
type FileReader struct {
	r      *Reader
	name   string
	size   int64
	chunks []*tocmodel.Entry // ascending by ChunkOffset, head entry first
}

// ReadAt implements io.ReaderAt over the file's logical byte range.
// Each call locates the covering chunk(s) by binary search, decodes
// exactly the gzip member(s) involved, discards the embedded tar header
// on the head chunk only, and copies the requested slice.
func (f *FileReader) ReadAt(buf []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeOffset
	}
	if off >= f.size {
		return 0, io.EOF
	}

	var total int
	for total < len(buf) {
		cur := off + int64(total)
		if cur >= f.size {
			break
		}
		chunk := f.findChunk(cur)
		if chunk == nil {
			return total, fmt.Errorf("stargz: %s: no chunk covers offset %d", f.name, cur)
		}
		n, err := f.readFromChunk(chunk, cur, buf[total:])
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
		total += n
	}

	if total < len(buf) {
		return total, io.EOF
	}
	return total, nil
}

// findChunk returns the chunk entry whose [ChunkOffset, ChunkOffset+size)
// range contains logicalOffset, via binary search over the file's
// ascending chunk list. Chunk boundaries are half-open and abut
// exactly, so the first chunk whose end exceeds the offset is the one
// that starts at or before it.
func (f *FileReader) findChunk(logicalOffset int64) *tocmodel.Entry {
	chunks := f.chunks
	i := sort.Search(len(chunks), func(i int) bool {
		c := chunks[i]
		return c.ChunkOffset+c.ChunkSizeOrDefault() > logicalOffset
	})
	if i == len(chunks) {
		return nil
	}
	return chunks[i]
}

// readFromChunk decodes the single gzip member holding chunk, discards
// the tar header if chunk is the file's head chunk, discards any
// decoded bytes before logicalOffset, and fills as much of buf as the
// chunk's remaining bytes allow.
func (f *FileReader) readFromChunk(chunk *tocmodel.Entry, logicalOffset int64, buf []byte) (int, error) {
	view := section.New(f.r.source, chunk.Offset, chunk.NextOffset-chunk.Offset)
	gz, err := gzip.NewReader(view.Reader())
	if err != nil {
		return 0, fmt.Errorf("stargz: %s: open chunk at %d: %w", f.name, chunk.Offset, err)
	}
	defer gz.Close() //nolint:errcheck // decode errors already surfaced via Read

	if chunk.IsHead() {
		if _, err := io.CopyN(io.Discard, gz, tarBlockSize); err != nil {
			return 0, fmt.Errorf("stargz: %s: skip tar header: %w", f.name, err)
		}
	}

	skip := logicalOffset - chunk.ChunkOffset
	if skip > 0 {
		if _, err := io.CopyN(io.Discard, gz, skip); err != nil {
			return 0, fmt.Errorf("stargz: %s: seek within chunk: %w", f.name, err)
		}
	}

	avail := chunk.ChunkSizeOrDefault() - skip
	want := int64(len(buf))
	if want > avail {
		want = avail
	}
	if want <= 0 {
		return 0, nil
	}

	n, err := io.ReadFull(gz, buf[:want])
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return n, fmt.Errorf("stargz: %s: decode chunk: %w", f.name, err)
	}
	if int64(n) < want {
		return n, fmt.Errorf("stargz: %s: short chunk read: got %d of %d", f.name, n, want)
	}
	return n, nil
}
