package ext2

import (
	"fmt"
	iofs "io/fs"
)

// ConstError is an error kind. Detailed errors report their kind via `Is`, so
// callers can distinguish failures with `errors.Is(err, NotExt2Err)` and
// friends regardless of how much context has been wrapped around them.
type ConstError string

func (err ConstError) Error() string { return string(err) }

const (
	IOErr                  ConstError = "i/o error"
	NotExt2Err             ConstError = "not an ext2 filesystem"
	UnsupportedFeaturesErr ConstError = "unsupported filesystem features"
	NotADirErr             ConstError = "not a directory"
	NotFoundErr            ConstError = "no such file or directory"
	InvalidInodeErr        ConstError = "invalid inode number"
	CorruptErr             ConstError = "corrupt filesystem"
)

type IOError struct {
	Offset uint64
	Wanted int
	Found  int
	Err    error
}

func (err *IOError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf(
			"reading `%d` bytes at offset `%#x`: %v",
			err.Wanted,
			err.Offset,
			err.Err,
		)
	}
	return fmt.Sprintf(
		"short read at offset `%#x`: wanted `%d` bytes; found `%d`",
		err.Offset,
		err.Wanted,
		err.Found,
	)
}

func (err *IOError) Unwrap() error { return err.Err }

func (err *IOError) Is(target error) bool { return target == IOErr }

type ErrBadMagic struct {
	Found uint16
}

func (err ErrBadMagic) Error() string {
	return fmt.Sprintf(
		"bad magic: wanted `%#04x`; found `%#04x`",
		SuperblockMagic,
		err.Found,
	)
}

func (err ErrBadMagic) Is(target error) bool { return target == NotExt2Err }

type ErrIncompatibleFeatures struct {
	Found uint32
}

func (err ErrIncompatibleFeatures) Error() string {
	return fmt.Sprintf(
		"volume uses incompatible features: `%#08x`",
		err.Found,
	)
}

func (err ErrIncompatibleFeatures) Is(target error) bool {
	return target == UnsupportedFeaturesErr
}

type ErrBadGeometry struct {
	Field string
	Found uint64
}

func (err ErrBadGeometry) Error() string {
	return fmt.Sprintf(
		"unsupported geometry: field `%s` has value `%d`",
		err.Field,
		err.Found,
	)
}

func (err ErrBadGeometry) Is(target error) bool {
	return target == UnsupportedFeaturesErr
}

type ErrMultipleGroups struct {
	Groups uint32
}

func (err ErrMultipleGroups) Error() string {
	return fmt.Sprintf(
		"volume has `%d` block groups; only single-group volumes are "+
			"supported",
		err.Groups,
	)
}

func (err ErrMultipleGroups) Is(target error) bool {
	return target == UnsupportedFeaturesErr
}

type ErrFileTooLarge struct {
	Ino      Ino
	Size     uint64
	Capacity uint64
}

func (err ErrFileTooLarge) Error() string {
	return fmt.Sprintf(
		"inode `%d` has size `%d` which exceeds the singly indirect "+
			"capacity of `%d` bytes",
		err.Ino,
		err.Size,
		err.Capacity,
	)
}

func (err ErrFileTooLarge) Is(target error) bool {
	return target == UnsupportedFeaturesErr
}

type ErrInvalidIno struct {
	Ino   Ino
	Count uint32
}

func (err ErrInvalidIno) Error() string {
	return fmt.Sprintf(
		"inode `%d` is outside of the valid range `[1, %d]`",
		err.Ino,
		err.Count,
	)
}

func (err ErrInvalidIno) Is(target error) bool {
	return target == InvalidInodeErr
}

type ErrUnknownFileType struct {
	FoundNibble uint16
}

func (err ErrUnknownFileType) Error() string {
	return fmt.Sprintf("unknown file type nibble: `%#x`", err.FoundNibble)
}

func (err ErrUnknownFileType) Is(target error) bool { return target == CorruptErr }

// ErrBadDirEntry reports a directory record which can't be decoded within
// its block.
type ErrBadDirEntry struct {
	Offset int
	RecLen uint16
	Reason string
}

func (err ErrBadDirEntry) Error() string {
	return fmt.Sprintf(
		"bad directory entry at offset `%d` (rec_len `%d`): %s",
		err.Offset,
		err.RecLen,
		err.Reason,
	)
}

func (err ErrBadDirEntry) Is(target error) bool { return target == CorruptErr }

type ErrNotADir struct {
	Ino      Ino
	FileType FileType
}

func (err ErrNotADir) Error() string {
	return fmt.Sprintf(
		"inode `%d` is a `%s`, not a directory",
		err.Ino,
		err.FileType,
	)
}

func (err ErrNotADir) Is(target error) bool { return target == NotADirErr }

type ErrNotFound struct {
	Dir  Ino
	Name string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("no entry `%s` in directory `%d`", err.Name, err.Dir)
}

func (err ErrNotFound) Is(target error) bool { return target == NotFoundErr }

type ErrNotASymlink struct {
	Ino      Ino
	FileType FileType
}

func (err ErrNotASymlink) Error() string {
	return fmt.Sprintf(
		"inode `%d` is a `%s`, not a symlink",
		err.Ino,
		err.FileType,
	)
}

type ErrBadBlockPtr struct {
	Ino    Ino
	Index  uint64
	Block  uint32
	Blocks uint32
}

func (err ErrBadBlockPtr) Error() string {
	return fmt.Sprintf(
		"inode `%d`: block `%d` points to block `%d` past the end of the "+
			"volume (`%d` blocks)",
		err.Ino,
		err.Index,
		err.Block,
		err.Blocks,
	)
}

func (err ErrBadBlockPtr) Is(target error) bool { return target == CorruptErr }

type ErrIsADir struct {
	Ino Ino
}

func (err ErrIsADir) Error() string {
	return fmt.Sprintf("inode `%d` is a directory", err.Ino)
}

func (err ErrIsADir) Is(target error) bool { return target == iofs.ErrInvalid }
