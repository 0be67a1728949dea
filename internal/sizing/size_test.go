package sizing

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errOverflow = errors.New("overflow")

func TestToInt64(t *testing.T) {
	t.Parallel()

	got, err := ToInt64(100, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got)

	_, err = ToInt64(1<<63, errOverflow)
	assert.ErrorIs(t, err, errOverflow)
}

func TestReadAllWithLimitAcceptsExactLimit(t *testing.T) {
	t.Parallel()

	data := strings.Repeat("x", 10)
	got, err := ReadAllWithLimit(strings.NewReader(data), 10, errOverflow)
	require.NoError(t, err)
	assert.Equal(t, data, string(got))
}

func TestReadAllWithLimitRejectsOversizedInput(t *testing.T) {
	t.Parallel()

	_, err := ReadAllWithLimit(strings.NewReader(strings.Repeat("x", 11)), 10, errOverflow)
	assert.ErrorIs(t, err, errOverflow)
}

func TestReadAllWithLimitPropagatesReadError(t *testing.T) {
	t.Parallel()

	r := io.MultiReader(strings.NewReader("x"), errReader{})
	_, err := ReadAllWithLimit(r, 10, errOverflow)
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) {
	return 0, errors.New("boom")
}
