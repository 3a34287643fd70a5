package fileio

import (
	"hash/crc32"
	"io"
	"os"
)

// GetFileChecksumCRC32 returns CRC32 checksum of given file
func GetFileChecksumCRC32(file string) ([]byte, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	hash := crc32.New(crc32.IEEETable)
	if _, err := io.CopyBuffer(hash, handle, make([]byte, 64*1024)); err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}

// progressiveChecksumCRC32 incrementally calculates CRC32 checksum
func progressiveChecksumCRC32(hash uint32, data []byte) uint32 {
	return crc32.Update(hash, crc32.IEEETable, data)
}
