package ext2

import (
	"fmt"
	iofs "io/fs"
)

type FileType uint16

const (
	FileTypeRegular FileType = iota
	FileTypeDir
	FileTypeCharDev
	FileTypeBlockDev
	FileTypeFifo
	FileTypeSocket
	FileTypeSymlink
)

func (fileType FileType) String() string {
	switch fileType {
	case FileTypeRegular:
		return "Regular"
	case FileTypeDir:
		return "Dir"
	case FileTypeCharDev:
		return "CharDev"
	case FileTypeBlockDev:
		return "BlockDev"
	case FileTypeFifo:
		return "Fifo"
	case FileTypeSocket:
		return "Socket"
	case FileTypeSymlink:
		return "Symlink"
	default:
		return fmt.Sprintf("FileType(%d)", uint16(fileType))
	}
}

// FileMode returns the io/fs type bits for the file type.
func (fileType FileType) FileMode() iofs.FileMode {
	switch fileType {
	case FileTypeDir:
		return iofs.ModeDir
	case FileTypeCharDev:
		return iofs.ModeDevice | iofs.ModeCharDevice
	case FileTypeBlockDev:
		return iofs.ModeDevice
	case FileTypeFifo:
		return iofs.ModeNamedPipe
	case FileTypeSocket:
		return iofs.ModeSocket
	case FileTypeSymlink:
		return iofs.ModeSymlink
	default:
		return 0
	}
}

func decodeFileType(mode uint16) (FileType, error) {
	switch nibble := (mode & 0xf000) >> 12; nibble {
	case 1:
		return FileTypeFifo, nil
	case 2:
		return FileTypeCharDev, nil
	case 4:
		return FileTypeDir, nil
	case 6:
		return FileTypeBlockDev, nil
	case 8:
		return FileTypeRegular, nil
	case 10:
		return FileTypeSymlink, nil
	case 12:
		return FileTypeSocket, nil
	default:
		return 0, ErrUnknownFileType{nibble}
	}
}
