package record

import (
	"fmt"
	"io"
	"os"
)

// MemMedium is an in-memory Medium of fixed size, initialized to the erased
// state (0xFF) like a fresh EEPROM.
type MemMedium struct {
	data []byte
}

var _ Medium = (*MemMedium)(nil)

// NewMemMedium creates an erased medium of size bytes.
func NewMemMedium(size int) *MemMedium {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &MemMedium{data: data}
}

// ReadAt implements io.ReaderAt.
func (m *MemMedium) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(m.data)) {
		return 0, fmt.Errorf("read offset %d outside medium of %d bytes", off, len(m.data))
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements io.WriterAt. Writes past the end of the medium fail
// without modifying it.
func (m *MemMedium) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("write of %d bytes at %d outside medium of %d bytes", len(p), off, len(m.data))
	}
	return copy(m.data[off:], p), nil
}

// Bytes returns the underlying storage.
func (m *MemMedium) Bytes() []byte {
	return m.data
}

// FileMedium is a Medium backed by a host file.
type FileMedium struct {
	f *os.File
}

var _ Medium = (*FileMedium)(nil)

// OpenFile opens or creates the file at path as a medium.
func OpenFile(path string) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file: %w", err)
	}
	return &FileMedium{f: f}, nil
}

// ReadAt implements io.ReaderAt.
func (m *FileMedium) ReadAt(p []byte, off int64) (int, error) {
	return m.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt and syncs the file.
func (m *FileMedium) WriteAt(p []byte, off int64) (int, error) {
	n, err := m.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, m.f.Sync()
}

// Close closes the file.
func (m *FileMedium) Close() error {
	return m.f.Close()
}
