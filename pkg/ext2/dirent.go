package ext2

import (
	"fmt"
	"io"
)

// DirEntryHeaderSize is the size of the fixed portion of a directory record.
const DirEntryHeaderSize = 8

type DirEntry struct {
	Ino     Ino
	RecLen  uint16
	NameLen uint16
	Name    string
}

// DecodeDirEntry decodes the record at `offset` in a directory block and
// returns it along with the offset of the following record. Padding past the
// name is skipped via the record length. A zero `Ino` marks an unused record
// which callers skip while continuing the scan.
func DecodeDirEntry(block []byte, offset int) (DirEntry, int, error) {
	if offset < 0 || offset+DirEntryHeaderSize > len(block) {
		return DirEntry{}, 0, ErrBadDirEntry{
			Offset: offset,
			Reason: "header extends past the end of the block",
		}
	}

	ino, n := DecodeUint32(block[offset:])
	recLen, m := DecodeUint16(block[offset+n:])
	nameLen, _ := DecodeUint16(block[offset+n+m:])

	switch {
	case recLen < DirEntryHeaderSize:
		return DirEntry{}, 0, ErrBadDirEntry{
			Offset: offset,
			RecLen: recLen,
			Reason: "record length is smaller than the header",
		}
	case offset+int(recLen) > len(block):
		return DirEntry{}, 0, ErrBadDirEntry{
			Offset: offset,
			RecLen: recLen,
			Reason: "record extends past the end of the block",
		}
	case DirEntryHeaderSize+int(nameLen) > int(recLen):
		return DirEntry{}, 0, ErrBadDirEntry{
			Offset: offset,
			RecLen: recLen,
			Reason: fmt.Sprintf(
				"name length `%d` extends past the end of the record",
				nameLen,
			),
		}
	}

	start := offset + DirEntryHeaderSize
	return DirEntry{
		Ino:     Ino(ino),
		RecLen:  recLen,
		NameLen: nameLen,
		Name:    string(block[start : start+int(nameLen)]),
	}, offset + int(recLen), nil
}

// scanDir calls `visit` on each used entry of directory `dir` in on-disk order
// until `visit` returns false or the directory is exhausted.
func scanDir(
	it *BlockIterator,
	dir *Inode,
	visit func(entry *DirEntry) bool,
) error {
	block := make([]byte, it.BlockSize())
	for {
		start := it.Offset()
		n, err := it.Next(block)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scanning dir `%d`: %w", dir.Ino, err)
		}

		for offset := 0; offset < n; {
			entry, next, err := DecodeDirEntry(block[:n], offset)
			if err != nil {
				return fmt.Errorf(
					"scanning dir `%d` at offset `%#x`: %w",
					dir.Ino,
					start+uint64(offset),
					err,
				)
			}
			offset = next
			if entry.Ino == 0 {
				continue
			}
			if !visit(&entry) {
				return nil
			}
		}
	}
}
