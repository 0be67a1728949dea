package stargz

import (
	"bytes"
	"io"
	"os"
)

// ByteSource is the random-access capability a Reader needs: positional
// reads plus a known total length. It is the standard pread-style
// contract; any type satisfying it may be handed to [Open].
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// fileSource adapts an *os.File to ByteSource.
type fileSource struct {
	f    *os.File
	size int64
}

// NewFileSource returns a ByteSource backed by an already-open file. The
// caller retains ownership of f and is responsible for closing it once
// the Reader (and any FileReader derived from it) is no longer in use.
func NewFileSource(f *os.File) (ByteSource, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return &fileSource{f: f, size: info.Size()}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	return s.f.ReadAt(p, off)
}

func (s *fileSource) Size() int64 {
	return s.size
}

// memorySource adapts a byte slice to ByteSource.
type memorySource struct {
	data []byte
}

// NewMemorySource returns a ByteSource backed by an in-memory buffer.
// data is not copied; the caller must not mutate it while the source is
// in use.
func NewMemorySource(data []byte) ByteSource {
	return &memorySource{data: data}
}

func (s *memorySource) ReadAt(p []byte, off int64) (int, error) {
	r := bytes.NewReader(s.data)
	return r.ReadAt(p, off)
}

func (s *memorySource) Size() int64 {
	return int64(len(s.data))
}
