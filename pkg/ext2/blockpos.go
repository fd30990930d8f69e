package ext2

type BlockPosLevel uint8

const (
	PosDirect     BlockPosLevel = 0
	PosIndirect   BlockPosLevel = 1
	PosOutOfRange BlockPosLevel = 2
)

// BlockPos locates the pointer to a file's `k`th block: either a slot in the
// inode's direct pointers or an index into the singly indirect table. Double
// and triple indirection are out of range.
type BlockPos struct {
	Level BlockPosLevel
	Index uint64
}

func BlockPosOf(k uint64, ptrsPerBlock uint64) BlockPos {
	if k < NumDirectBlocks {
		return BlockPos{Level: PosDirect, Index: k}
	}
	if k -= NumDirectBlocks; k < ptrsPerBlock {
		return BlockPos{Level: PosIndirect, Index: k}
	}
	return BlockPos{Level: PosOutOfRange}
}

// Capacity returns the largest file size in bytes addressable with direct
// pointers plus one singly indirect block.
func Capacity(blockSize uint64) uint64 {
	return (NumDirectBlocks + blockSize/4) * blockSize
}
