package ext2

import "fmt"

// GroupDescSize is the size of a GroupDesc on disk in bytes.
const GroupDescSize = 32

type GroupDesc struct {
	BlockBitmap     uint32
	InodeBitmap     uint32
	InodeTable      uint32
	FreeBlocksCount uint16
	FreeInodesCount uint16
	UsedDirsCount   uint16
}

func DecodeGroupDesc(b *[GroupDescSize]byte) GroupDesc {
	d := decoder{b: b[:]}
	return GroupDesc{
		BlockBitmap:     d.u32(),
		InodeBitmap:     d.u32(),
		InodeTable:      d.u32(),
		FreeBlocksCount: d.u16(),
		FreeInodesCount: d.u16(),
		UsedDirsCount:   d.u16(),
	}
}

// GroupDescOffset is the byte offset of the descriptor table, which begins in
// the block following the superblock. With 1 KiB blocks this is the boot area
// plus the superblock record (2048).
func GroupDescOffset(sb *Superblock) uint64 {
	return (uint64(sb.FirstDataBlock) + 1) * sb.BlockSize()
}

// LoadGroupDesc reads the descriptor of the first (and only supported) block
// group. Volumes with more than one group are refused rather than read
// incorrectly.
func LoadGroupDesc(volume Volume, sb *Superblock) (GroupDesc, error) {
	if groups := sb.GroupCount(); groups != 1 {
		return GroupDesc{}, fmt.Errorf(
			"loading group descriptor: %w",
			ErrMultipleGroups{groups},
		)
	}

	offset := GroupDescOffset(sb)
	var b [GroupDescSize]byte
	if err := volume.Read(offset, b[:]); err != nil {
		return GroupDesc{}, fmt.Errorf(
			"loading descriptor for group `0` at offset `%#x`: %w",
			offset,
			err,
		)
	}
	return DecodeGroupDesc(&b), nil
}
