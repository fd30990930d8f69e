package ext2

import (
	"fmt"
	"os"
)

// Volume is the backing store of a filesystem. Reads are positioned: there is
// no shared cursor, so independent traversals may interleave freely. Read
// fills all of `buffer` or fails; a short read is an `IOError`.
type Volume interface {
	Read(offset uint64, buffer []byte) error
}

type FileVolume struct {
	file *os.File
}

// OpenFileVolume opens a block device or image file read-only.
func OpenFileVolume(path string) (*FileVolume, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume `%s`: %w", path, err)
	}
	return &FileVolume{file}, nil
}

func NewFileVolume(file *os.File) *FileVolume { return &FileVolume{file} }

func (volume *FileVolume) Read(offset uint64, buffer []byte) error {
	n, err := volume.file.ReadAt(buffer, int64(offset))
	if n == len(buffer) {
		// ReadAt may report io.EOF alongside a complete read at the very end
		// of the file.
		return nil
	}
	return fmt.Errorf(
		"reading file `%s`: %w",
		volume.file.Name(),
		&IOError{Offset: offset, Wanted: len(buffer), Found: n, Err: err},
	)
}

func (volume *FileVolume) Close() error {
	if err := volume.file.Close(); err != nil {
		return fmt.Errorf("closing file `%s`: %w", volume.file.Name(), err)
	}
	return nil
}

type MemoryVolume struct {
	buf []byte
}

func NewMemoryVolume(buf []byte) MemoryVolume {
	return MemoryVolume{buf}
}

func (volume MemoryVolume) Read(offset uint64, buffer []byte) error {
	var n int
	if offset < uint64(len(volume.buf)) {
		n = copy(buffer, volume.buf[offset:])
	}
	if n != len(buffer) {
		return fmt.Errorf(
			"reading memory volume: %w",
			&IOError{Offset: offset, Wanted: len(buffer), Found: n},
		)
	}
	return nil
}

// OffsetVolume exposes the region of an inner volume which begins at a fixed
// base offset, e.g. a filesystem inside a partitioned disk image.
type OffsetVolume struct {
	inner  Volume
	offset uint64
}

func NewOffsetVolume(inner Volume, offset uint64) *OffsetVolume {
	return &OffsetVolume{inner: inner, offset: offset}
}

func (v *OffsetVolume) Read(offset uint64, buffer []byte) error {
	if err := v.inner.Read(offset+v.offset, buffer); err != nil {
		return fmt.Errorf(
			"reading additional offset `%d` from base offset `%d` (total "+
				"offset `%d` bytes): %w",
			offset,
			v.offset,
			offset+v.offset,
			err,
		)
	}
	return nil
}

// Close closes the inner volume if it can be closed.
func (v *OffsetVolume) Close() error {
	if closer, ok := v.inner.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
