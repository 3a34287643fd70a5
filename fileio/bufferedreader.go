package fileio

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// BufferedReader reads a file ahead of its consumer in chunks
type BufferedReader struct {
	src     io.ReadCloser
	chunks  chan []byte
	done    chan struct{}
	current []byte
	err     error
	crc32   uint32
	once    sync.Once
}

// OpenReader opens file for reading or returns error upon failing to do so
func OpenReader(filename string, chunkSize, numchunks int) (*BufferedReader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	return NewReader(file, chunkSize, numchunks), nil
}

// NewReader starts a goroutine reading src contents in chunks, keeping up to numchunks queued
func NewReader(src io.ReadCloser, chunkSize, numchunks int) *BufferedReader {
	b := &BufferedReader{
		src:    src,
		chunks: make(chan []byte, numchunks),
		done:   make(chan struct{}),
	}
	go b.readAhead(chunkSize)
	return b
}

func (b *BufferedReader) readAhead(chunkSize int) {
	defer close(b.chunks)
	for {
		buf := make([]byte, chunkSize)
		// Read from file.
		read, err := b.src.Read(buf)
		if read > 0 {
			select {
			case b.chunks <- buf[:read]:
			case <-b.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				b.err = err
			}
			// File has been fully consumed.
			return
		}
	}
}

// Read implements io.Reader on top of the read-ahead queue
func (b *BufferedReader) Read(p []byte) (int, error) {
	for len(b.current) == 0 {
		chunk, open := <-b.chunks
		if !open {
			if b.err != nil {
				return 0, b.err
			}
			return 0, io.EOF
		}
		b.current = chunk
	}
	n := copy(p, b.current)
	b.current = b.current[n:]
	b.crc32 = progressiveChecksumCRC32(b.crc32, p[:n])
	return n, nil
}

// Checksum returns CRC32 of all bytes returned by Read so far
func (b *BufferedReader) Checksum() []byte {
	return binary.BigEndian.AppendUint32(make([]byte, 0, 4), b.crc32)
}

// Close stops the read-ahead goroutine and closes the source
func (b *BufferedReader) Close() error {
	var err error
	b.once.Do(func() {
		close(b.done)
		err = b.src.Close()
	})
	return err
}
