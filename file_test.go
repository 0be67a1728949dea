package stargz

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestFileReaderRandomAccessWithinSingleChunk(t *testing.T) {
	t.Parallel()

	content := "the quick brown fox jumps over the lazy dog"
	data := buildArchive(t, map[string]string{"f.txt": content})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	f, err := r.OpenFile("f.txt")
	require.NoError(t, err)

	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, content[10:15], string(buf))
}

func TestFileReaderReadAtCrossesChunkBoundary(t *testing.T) {
	t.Parallel()

	const chunkSize = 16
	content := bytes.Repeat([]byte("0123456789"), 5) // 50 bytes, spans 4 chunks
	data := buildArchive(t, map[string]string{"f.bin": string(content)}, WithChunkSize(chunkSize))
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	f, err := r.OpenFile("f.bin")
	require.NoError(t, err)

	buf := make([]byte, 20)
	n, err := f.ReadAt(buf, 10)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, content[10:30], buf)
}

func TestFileReaderReadAtPastEOF(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"f.txt": "hello"})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	f, err := r.OpenFile("f.txt")
	require.NoError(t, err)

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, 5)
	assert.ErrorIs(t, err, io.EOF)
}

func TestFileReaderReadAtNegativeOffset(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"f.txt": "hello"})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	f, err := r.OpenFile("f.txt")
	require.NoError(t, err)

	_, err = f.ReadAt(make([]byte, 1), -1)
	assert.ErrorIs(t, err, ErrNegativeOffset)
}

func TestFileReaderConcurrentReadAt(t *testing.T) {
	t.Parallel()

	const chunkSize = 64
	content := make([]byte, 4096)
	for i := range content {
		content[i] = byte(i)
	}
	data := buildArchive(t, map[string]string{"f.bin": string(content)}, WithChunkSize(chunkSize))
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	f, err := r.OpenFile("f.bin")
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			off := rand.Int63n(int64(len(content) - 10))
			buf := make([]byte, 10)
			n, err := f.ReadAt(buf, off)
			if err != nil {
				return err
			}
			if n != 10 || !bytes.Equal(buf, content[off:off+10]) {
				return fmt.Errorf("content mismatch at offset %d", off)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
