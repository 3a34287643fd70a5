package fileio

import (
	"bufio"
	"encoding/binary"
	"os"
)

// BufferedWriter does buffered writes to file and checksums what it writes
type BufferedWriter struct {
	filename   string
	bufferSize int
	file       *os.File
	writer     *bufio.Writer
	crc32Hash  uint32
	written    int64
	closed     bool
}

// CreateWriter creates new file for writing or returns error upon failing to do so
func CreateWriter(filename string, bufferSize int) (*BufferedWriter, error) {
	b := LazyWriter(filename, bufferSize)
	if err := b.open(); err != nil {
		return nil, err
	}
	return b, nil
}

// LazyWriter returns a writer that creates filename only once data or Close arrives
func LazyWriter(filename string, bufferSize int) *BufferedWriter {
	return &BufferedWriter{filename: filename, bufferSize: bufferSize}
}

func (b *BufferedWriter) open() error {
	if b.closed {
		return os.ErrClosed
	}
	if b.file != nil {
		return nil
	}
	file, err := os.Create(b.filename)
	if err != nil {
		return err
	}
	b.file = file
	// New buffered writer.
	b.writer = bufio.NewWriterSize(b.file, b.bufferSize)
	return nil
}

func (b *BufferedWriter) Write(chunk []byte) (int, error) {
	if err := b.open(); err != nil {
		return 0, err
	}
	n, err := b.writer.Write(chunk)
	// Update hash.
	b.crc32Hash = progressiveChecksumCRC32(b.crc32Hash, chunk[:n])
	b.written += int64(n)
	return n, err
}

// Close commits the stream, creating an empty file if nothing was written
func (b *BufferedWriter) Close() error {
	if b.closed {
		return nil
	}
	if err := b.open(); err != nil {
		return err
	}
	return b.release()
}

// Abort flushes and closes what was written so far. It never creates the file.
func (b *BufferedWriter) Abort() error {
	if b.file == nil {
		b.closed = true
		return nil
	}
	return b.release()
}

func (b *BufferedWriter) release() error {
	// Write any remaining bytes.
	err := b.writer.Flush()
	if cerr := b.file.Close(); err == nil {
		err = cerr
	}
	b.file = nil
	b.closed = true
	return err
}

// Written returns the number of bytes accepted so far
func (b *BufferedWriter) Written() int64 {
	return b.written
}

// Checksum returns CRC32 checksum for all data written so far
func (b *BufferedWriter) Checksum() []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), b.crc32Hash)
}
