package footer

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	for _, off := range []uint64{0, 1, 4096, 1 << 32, 0xffffffffffffffff} {
		b := Encode(off)
		require.Len(t, b, Size)

		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, off, got)
	}
}

func TestEncodeIsValidGzipMember(t *testing.T) {
	t.Parallel()

	b := Encode(123)
	gz, err := gzip.NewReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer gz.Close() //nolint:errcheck

	out := make([]byte, 1)
	n, err := gz.Read(out)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeWrongLength(t *testing.T) {
	t.Parallel()

	_, err := Decode(make([]byte, Size-1))
	assert.ErrorIs(t, err, ErrSize)
}

func TestDecodeBadGzipMagic(t *testing.T) {
	t.Parallel()

	b := Encode(0)
	b[0] = 0x00
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMagic)
}

func TestDecodeMissingFextraFlag(t *testing.T) {
	t.Parallel()

	b := Encode(0)
	b[3] = 0x00
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMagic)
}

func TestDecodeCorruptMarker(t *testing.T) {
	t.Parallel()

	b := Encode(0)
	b[16] = 'X' // inside the "STARGZ" marker bytes
	_, err := Decode(b)
	assert.ErrorIs(t, err, ErrMagic)
}
