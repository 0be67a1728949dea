package stargz

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ComputeDiffID sequentially gzip-decompresses the archive bytes
// (everything but the fixed footer, whose payload is empty anyway) and
// returns the sha256 digest of the resulting stream: the same value a
// Writer's DiffID returns immediately after Close, recoverable from an
// already-written archive without re-running the Writer.
func ComputeDiffID(source ByteSource, size int64) (digest.Digest, error) {
	gz, err := gzip.NewReader(io.NewSectionReader(source, 0, size))
	if err != nil {
		return "", fmt.Errorf("stargz: compute diff id: %w", err)
	}
	defer gz.Close() //nolint:errcheck // read errors already surfaced below
	gz.Multistream(true)

	h := sha256.New()
	if _, err := io.Copy(h, gz); err != nil {
		return "", fmt.Errorf("stargz: compute diff id: %w", err)
	}
	return digest.NewDigest(digest.SHA256, h), nil
}

// Descriptor returns an OCI descriptor for an already-written archive of
// the given size, with DiffID computed via ComputeDiffID.
func Descriptor(source ByteSource, size int64) (ocispec.Descriptor, error) {
	id, err := ComputeDiffID(source, size)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	return ocispec.Descriptor{
		MediaType: ocispec.MediaTypeImageLayerGzip,
		Digest:    id,
		Size:      size,
	}, nil
}
