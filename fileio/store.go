package fileio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go_uftp/constants"
)

var ErrInvalidName = errors.New("fileio: invalid file name")

// ByteSink receives one stream. Close commits it, Abort releases it as is.
type ByteSink interface {
	io.Writer
	Close() error
	Abort() error
}

// Store is the server's view of its file directory
type Store interface {
	Entries() ([]string, error)
	Exists(name string) bool
	Open(name string) (io.ReadCloser, error)
	Create(name string) (ByteSink, error)
	Delete(name string) error
}

// DiskStore is a Store over one flat directory
type DiskStore struct {
	root string
}

// NewDiskStore checks that root is a directory
func NewDiskStore(root string) (*DiskStore, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid root folder: %s is not a directory", root)
	}
	return &DiskStore{root: root}, nil
}

// Root returns the served directory
func (d *DiskStore) Root() string {
	return d.root
}

// ValidName reports whether name refers to an entry directly inside a store
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return false
	}
	return filepath.IsLocal(name)
}

func (d *DiskStore) path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(d.root, name), nil
}

// Entries returns the names in the directory sorted by name
func (d *DiskStore) Entries() ([]string, error) {
	dirents, err := os.ReadDir(d.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirents))
	for _, de := range dirents {
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether name is a regular file in the store
func (d *DiskStore) Exists(name string) bool {
	p, err := d.path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Open returns a read-ahead reader over name
func (d *DiskStore) Open(name string) (io.ReadCloser, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return OpenReader(p, constants.MAX_PAYLOAD_SIZE, constants.READ_AHEAD_CHUNKS)
}

// Create truncates or creates name and returns a sink for it
func (d *DiskStore) Create(name string) (ByteSink, error) {
	p, err := d.path(name)
	if err != nil {
		return nil, err
	}
	return CreateWriter(p, constants.FILE_WRITE_BUFFER)
}

// Delete removes name
func (d *DiskStore) Delete(name string) error {
	p, err := d.path(name)
	if err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", name)
	}
	return os.Remove(p)
}

// BufferSink collects a stream in memory
type BufferSink struct {
	bytes.Buffer
}

func (b *BufferSink) Close() error { return nil }
func (b *BufferSink) Abort() error { return nil }

// Discard accepts and drops a stream
var Discard ByteSink = discard{}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Close() error                { return nil }
func (discard) Abort() error                { return nil }
