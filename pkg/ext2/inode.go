package ext2

import "fmt"

// InodeRecordSize is the portion of each inode table slot which is decoded.
// Dynamic revision volumes may use larger slots; the remainder is ignored.
const InodeRecordSize = 128

// RootIno is the inode number of the root directory.
const RootIno Ino = 2

const (
	NumDirectBlocks = 12
	IndirectBlock   = 12
	DIndirectBlock  = 13
	TIndirectBlock  = 14
	NumBlockPtrs    = 15
)

type Ino uint32

type FileAttr struct {
	UID   uint16
	GID   uint16
	ATime uint32
	CTime uint32
	MTime uint32
	DTime uint32
}

type Mode struct {
	FileType     FileType
	SUID         bool
	SGID         bool
	Sticky       bool
	AccessRights uint16
}

func DecodeInodeMode(mode uint16) (Mode, error) {
	fileType, err := decodeFileType(mode)
	if err != nil {
		return Mode{}, fmt.Errorf("decoding inode mode `%#o`: %w", mode, err)
	}
	return Mode{
		FileType:     fileType,
		SUID:         (mode & 0x0800) != 0,
		SGID:         (mode & 0x0400) != 0,
		Sticky:       (mode & 0x0200) != 0,
		AccessRights: mode & 0x01ff,
	}, nil
}

type Inode struct {
	Ino        Ino
	Mode       Mode
	Attr       FileAttr
	Size       uint64
	LinksCount uint16
	Size512    uint32
	Flags      uint32
	OSD1       uint32
	Block      [NumBlockPtrs]uint32
	Generation uint32
	FileACL    uint32
	DirACL     uint32
	FAddr      uint32
	OSD2       [12]byte
}

// DecodeInode decodes an inode record. On dynamic revision volumes the
// directory ACL field of a regular file holds the upper 32 bits of its size.
func DecodeInode(
	ino Ino,
	revLevel RevLevel,
	b *[InodeRecordSize]byte,
) (Inode, error) {
	d := decoder{b: b[:]}
	mode, err := DecodeInodeMode(d.u16())
	if err != nil {
		return Inode{}, fmt.Errorf("decoding inode `%d`: %w", ino, err)
	}

	inode := Inode{Ino: ino, Mode: mode}
	inode.Attr.UID = d.u16()
	inode.Size = uint64(d.u32())
	inode.Attr.ATime = d.u32()
	inode.Attr.CTime = d.u32()
	inode.Attr.MTime = d.u32()
	inode.Attr.DTime = d.u32()
	inode.Attr.GID = d.u16()
	inode.LinksCount = d.u16()
	inode.Size512 = d.u32()
	inode.Flags = d.u32()
	inode.OSD1 = d.u32()
	for i := range inode.Block {
		inode.Block[i] = d.u32()
	}
	inode.Generation = d.u32()
	inode.FileACL = d.u32()
	inode.DirACL = d.u32()
	inode.FAddr = d.u32()
	copy(inode.OSD2[:], d.bytes(len(inode.OSD2)))

	if revLevel > RevLevelStatic && mode.FileType == FileTypeRegular {
		inode.Size |= uint64(inode.DirACL) << 32
	}
	return inode, nil
}

// InodeOffset returns the byte offset of `ino` within the single block
// group's inode table.
func InodeOffset(sb *Superblock, gd *GroupDesc, ino Ino) uint64 {
	return uint64(gd.InodeTable)*sb.BlockSize() +
		uint64(ino-1)*uint64(sb.InodeSize)
}

// ReadInode reads inode `ino` from disk. Out-of-range inode numbers are
// refused without touching the volume.
func ReadInode(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	ino Ino,
) (Inode, error) {
	if ino < 1 || uint32(ino) > sb.InodesCount {
		return Inode{}, fmt.Errorf(
			"reading inode: %w",
			ErrInvalidIno{Ino: ino, Count: sb.InodesCount},
		)
	}

	offset := InodeOffset(sb, gd, ino)
	var b [InodeRecordSize]byte
	if err := volume.Read(offset, b[:]); err != nil {
		return Inode{}, fmt.Errorf(
			"reading inode `%d` at offset `%#x`: %w",
			ino,
			offset,
			err,
		)
	}
	return DecodeInode(ino, sb.RevLevel, &b)
}
