package record

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// Marker is the byte stored at the base address of an initialized record.
	Marker byte = 0xA5
	// Version is the current layout version stored after the marker.
	Version byte = 2

	headerSize = 2
	crcSize    = 4
)

// LayoutSize is the number of bytes the store occupies on the medium.
var LayoutSize = headerSize + ImageSize + crcSize

// Medium is byte-addressable non-volatile storage.
type Medium interface {
	io.ReaderAt
	io.WriterAt
}

// Store persists a single Record on a Medium at a fixed base address.
//
// Layout: [Marker][Version][image][crc32(Version+image), little-endian].
type Store struct {
	medium Medium
	base   int64
	out    io.Writer
}

// NewStore creates a store at base on medium. Status lines emitted by Load
// are written to out; nil discards them.
func NewStore(medium Medium, base int64, out io.Writer) *Store {
	if out == nil {
		out = io.Discard
	}
	return &Store{
		medium: medium,
		base:   base,
		out:    out,
	}
}

// Load returns the persisted record. If the medium does not hold a valid
// record for the current layout, the defaults are written and returned.
// Every call emits a status line followed by the CFG dump of the result.
func (s *Store) Load() (Record, error) {
	buf := make([]byte, LayoutSize)
	n, err := s.medium.ReadAt(buf, s.base)
	if err != nil && !(errors.Is(err, io.EOF) && n < len(buf)) {
		return Record{}, fmt.Errorf("failed to read config storage: %w", err)
	}

	r, reason := decodeLayout(buf[:n])
	if reason != "" {
		fmt.Fprintf(s.out, "WARN config %s, writing defaults\n", reason)
		return s.Reset()
	}

	fmt.Fprintln(s.out, "INFO config loaded from storage")
	fmt.Fprintln(s.out, r.String())
	return r, nil
}

// Save writes the marker, version, image and checksum, overwriting the
// previous contents.
func (s *Store) Save(r Record) error {
	buf, err := encodeLayout(r)
	if err != nil {
		return err
	}
	if _, err := s.medium.WriteAt(buf, s.base); err != nil {
		return fmt.Errorf("failed to write config storage: %w", err)
	}
	return nil
}

// Reset writes the compiled-in defaults and returns them.
func (s *Store) Reset() (Record, error) {
	def := Default()
	if err := s.Save(def); err != nil {
		return Record{}, err
	}
	fmt.Fprintln(s.out, "INFO config reset to defaults")
	fmt.Fprintln(s.out, def.String())
	return def, nil
}

func encodeLayout(r Record) ([]byte, error) {
	img, err := r.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, LayoutSize)
	buf = append(buf, Marker, Version)
	buf = append(buf, img...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[1:]))
	return buf, nil
}

// decodeLayout returns the stored record, or a non-empty reason describing
// why the stored bytes cannot be used.
func decodeLayout(buf []byte) (Record, string) {
	if len(buf) < LayoutSize {
		return Record{}, "storage uninitialized (short read)"
	}
	if buf[0] != Marker {
		return Record{}, fmt.Sprintf("storage uninitialized (marker 0x%02X)", buf[0])
	}
	if buf[1] != Version {
		return Record{}, fmt.Sprintf("version %d unsupported", buf[1])
	}

	body := buf[1 : headerSize+ImageSize]
	sum := binary.LittleEndian.Uint32(buf[headerSize+ImageSize:])
	if crc32.ChecksumIEEE(body) != sum {
		return Record{}, "checksum mismatch"
	}

	var r Record
	if err := r.UnmarshalBinary(buf[headerSize : headerSize+ImageSize]); err != nil {
		return Record{}, err.Error()
	}
	if err := r.Validate(); err != nil {
		return Record{}, err.Error()
	}
	return r, ""
}
