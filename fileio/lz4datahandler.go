package fileio

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// CompressChunk attempts to compress a chunk in LZ4 and either returns original or compressed chunk
func CompressChunk(chunk []byte) ([]byte, bool) {
	if len(chunk) == 0 {
		return chunk, false
	}
	buffer := make([]byte, lz4.CompressBlockBound(len(chunk)))
	compressedSize, err := lz4.CompressBlock(chunk, buffer, nil)

	if err != nil || compressedSize == 0 || compressedSize >= len(chunk) {
		// Chunk was not compressible.
		return chunk, false
	}
	// Chunk was compressed.
	return buffer[:compressedSize], true
}

// DecompressChunk returns uncompressed data of given chunk, refusing output larger than limit
func DecompressChunk(chunk []byte, limit int) ([]byte, error) {
	buffer := make([]byte, limit)
	actual, err := lz4.UncompressBlock(chunk, buffer)
	if err != nil {
		// Corrupt block or more than limit bytes.
		return nil, fmt.Errorf("fileio: decompress chunk: %w", err)
	}
	return buffer[:actual], nil
}
