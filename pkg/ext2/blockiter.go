package ext2

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/weberc2/ext2/pkg/math"
)

// BlockIterator yields the data blocks of an inode in file order, covering
// exactly `inode.Size` bytes. It isn't restartable and must not be shared
// between goroutines; independent iterators over one Volume are fine.
type BlockIterator struct {
	volume    Volume
	inode     Inode
	blockSize uint64
	blocks    uint32
	offset    uint64

	// indirect is nil until the cursor first moves past the direct blocks.
	indirect []uint32

	logger logrus.FieldLogger
}

// NewBlockIterator fails with `ErrFileTooLarge` if the inode's size can't be
// addressed without double indirection, so no data is ever produced for a
// file which can't be read in full.
func NewBlockIterator(
	volume Volume,
	sb *Superblock,
	inode *Inode,
) (*BlockIterator, error) {
	blockSize := sb.BlockSize()
	if capacity := Capacity(blockSize); inode.Size > capacity {
		return nil, fmt.Errorf(
			"creating block iterator: %w",
			ErrFileTooLarge{
				Ino:      inode.Ino,
				Size:     inode.Size,
				Capacity: capacity,
			},
		)
	}
	return &BlockIterator{
		volume:    volume,
		inode:     *inode,
		blockSize: blockSize,
		blocks:    sb.BlocksCount,
		logger:    discardLogger,
	}, nil
}

func (it *BlockIterator) BlockSize() uint64 { return it.blockSize }

// Offset is the number of bytes yielded so far.
func (it *BlockIterator) Offset() uint64 { return it.offset }

// Next reads the next block into `buf`, which must hold at least one block,
// and returns the number of bytes read. The final block is trimmed to the
// file size. `io.EOF` is returned once the whole file has been read.
func (it *BlockIterator) Next(buf []byte) (int, error) {
	if it.offset >= it.inode.Size {
		return 0, io.EOF
	}
	n := math.Min(it.blockSize, it.inode.Size-it.offset)
	if uint64(len(buf)) < n {
		return 0, fmt.Errorf(
			"reading inode `%d` at offset `%#x`: %w",
			it.inode.Ino,
			it.offset,
			io.ErrShortBuffer,
		)
	}
	chunk := buf[:n]

	k := it.offset / it.blockSize
	block, err := it.pointer(k)
	if err != nil {
		return 0, fmt.Errorf(
			"reading inode `%d` at offset `%#x`: %w",
			it.inode.Ino,
			it.offset,
			err,
		)
	}

	if block == 0 {
		// sparse hole
		clear(chunk)
	} else if err := it.volume.Read(
		uint64(block)*it.blockSize,
		chunk,
	); err != nil {
		return 0, fmt.Errorf(
			"reading inode `%d` block `%d` (disk block `%d`): %w",
			it.inode.Ino,
			k,
			block,
			err,
		)
	}

	it.offset += n
	return int(n), nil
}

func (it *BlockIterator) pointer(k uint64) (uint32, error) {
	var block uint32
	switch pos := BlockPosOf(k, it.blockSize/4); pos.Level {
	case PosDirect:
		block = it.inode.Block[pos.Index]
	case PosIndirect:
		if it.indirect == nil {
			if err := it.loadIndirect(); err != nil {
				return 0, err
			}
		}
		block = it.indirect[pos.Index]
	default:
		// unreachable given the capacity check in the constructor
		return 0, ErrFileTooLarge{
			Ino:      it.inode.Ino,
			Size:     it.inode.Size,
			Capacity: Capacity(it.blockSize),
		}
	}
	if block >= it.blocks {
		return 0, ErrBadBlockPtr{
			Ino:    it.inode.Ino,
			Index:  k,
			Block:  block,
			Blocks: it.blocks,
		}
	}
	return block, nil
}

func (it *BlockIterator) loadIndirect() error {
	table := make([]uint32, it.blockSize/4)
	ptr := it.inode.Block[IndirectBlock]
	it.logger.WithFields(logrus.Fields{
		"ino":   it.inode.Ino,
		"block": ptr,
	}).Debug("loading indirect block")

	if ptr == 0 {
		// every block past the direct pointers is a hole
		it.indirect = table
		return nil
	}
	if ptr >= it.blocks {
		return ErrBadBlockPtr{
			Ino:    it.inode.Ino,
			Index:  IndirectBlock,
			Block:  ptr,
			Blocks: it.blocks,
		}
	}

	buf := make([]byte, it.blockSize)
	if err := it.volume.Read(uint64(ptr)*it.blockSize, buf); err != nil {
		return fmt.Errorf("loading indirect block `%d`: %w", ptr, err)
	}
	for i := range table {
		table[i], _ = DecodeUint32(buf[4*i:])
	}
	it.indirect = table
	return nil
}
