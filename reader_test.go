package stargz

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildArchive(t *testing.T, files map[string]string, opts ...Option) []byte {
	t.Helper()
	var out bytes.Buffer
	w := NewWriter(&out, opts...)
	require.NoError(t, w.AppendTar(bytes.NewReader(writeTarEntries(t, files))))
	require.NoError(t, w.Close())
	return out.Bytes()
}

func TestOpenRejectsTooShortArchive(t *testing.T) {
	t.Parallel()

	_, err := Open(NewMemorySource([]byte("short")), 5)
	assert.ErrorIs(t, err, ErrArchiveTooShort)
}

func TestOpenRejectsCorruptFooter(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello"})
	corrupt := append([]byte{}, data...)
	markerOffset := len(corrupt) - 51 + 16 // first byte of the STARGZ marker
	corrupt[markerOffset] ^= 0xff

	_, err := Open(NewMemorySource(corrupt), int64(len(corrupt)))
	assert.Error(t, err)
}

func TestOpenRejectsTruncatedArchive(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello"})
	truncated := data[:len(data)-10]

	_, err := Open(NewMemorySource(truncated), int64(len(truncated)))
	assert.Error(t, err)
}

func TestReaderLookupMissingEntry(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello"})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	_, ok := r.Lookup("missing.txt")
	assert.False(t, ok)
}

func TestReaderOpenFileOnDirectoryFails(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"dir/": ""})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	_, err = r.OpenFile("dir/")
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestReaderOpenFileOnMissingPathFails(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello"})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	_, err = r.OpenFile("missing.txt")
	assert.Error(t, err)
}

func TestReaderSizeMatchesArchiveLength(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello"})
	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), r.Size())
}

func TestReaderLookupResolvesHardlink(t *testing.T) {
	t.Parallel()

	content := "hello world"
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "a.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "b.txt", Typeflag: tar.TypeLink, Linkname: "a.txt"}))
	require.NoError(t, tw.Close())

	var out bytes.Buffer
	w := NewWriter(&out)
	require.NoError(t, w.AppendTar(bytes.NewReader(tarBuf.Bytes())))
	require.NoError(t, w.Close())
	data := out.Bytes()

	r, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	e, ok := r.Lookup("b.txt")
	require.True(t, ok)
	assert.Equal(t, "a.txt", e.Name)

	f, err := r.OpenFile("b.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(io.NewSectionReader(f, 0, int64(len(content))))
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestOpenIsIdempotentAcrossCalls(t *testing.T) {
	t.Parallel()

	data := buildArchive(t, map[string]string{"a.txt": "hello", "b.txt": "world"})

	r1, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)
	r2, err := Open(NewMemorySource(data), int64(len(data)))
	require.NoError(t, err)

	assert.Equal(t, r1.TOC(), r2.TOC())
}
