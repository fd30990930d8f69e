package ext2

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/weberc2/ext2/pkg/math"
)

type SuperblockState uint16

type RevLevel uint32

const (
	SuperblockMagic uint16 = 0xef53

	// SuperblockSize is the size allocated for the superblock on disk. The
	// superblock doesn't actually use this much space; the remainder is
	// reserved.
	SuperblockSize   = 1024
	SuperblockOffset = 1024

	StateClean SuperblockState = 1
	StateDirty SuperblockState = 2

	RevLevelStatic  RevLevel = 0
	RevLevelDynamic RevLevel = 1

	DefaultFirstIno  uint32 = 11
	DefaultInodeSize uint16 = 128

	maxLogBlockSize = 6 // 64 KiB
)

type Superblock struct {
	InodesCount     uint32
	BlocksCount     uint32
	RBlocksCount    uint32
	FreeBlocksCount uint32
	FreeInodesCount uint32
	FirstDataBlock  uint32
	LogBlockSize    uint32
	LogFragSize     uint32
	BlocksPerGroup  uint32
	FragsPerGroup   uint32
	InodesPerGroup  uint32
	MTime           uint32
	WTime           uint32
	MntCount        uint16
	MaxMntCount     int16
	Magic           uint16
	State           SuperblockState
	Errors          uint16
	MinorRevLevel   uint16
	LastCheck       uint32
	CheckInterval   uint32
	CreatorOS       uint32
	RevLevel        RevLevel
	DefResUID       uint16
	DefResGID       uint16
	FirstIno        uint32
	InodeSize       uint16
	BlockGroupNr    uint16
	FeatureCompat   uint32
	FeatureIncompat uint32
	FeatureROCompat uint32
	UUID            uuid.UUID
	VolumeName      string
	LastMounted     string
}

func (sb *Superblock) BlockSize() uint64 {
	return 1024 << sb.LogBlockSize
}

// GroupCount is the number of block groups implied by the block count.
func (sb *Superblock) GroupCount() uint32 {
	return math.DivRoundUp(
		sb.BlocksCount-sb.FirstDataBlock,
		sb.BlocksPerGroup,
	)
}

// LoadSuperblock reads and validates the superblock of `volume`.
func LoadSuperblock(volume Volume) (Superblock, error) {
	var b [SuperblockSize]byte
	if err := volume.Read(SuperblockOffset, b[:]); err != nil {
		return Superblock{}, fmt.Errorf("loading superblock: %w", err)
	}

	sb, err := DecodeSuperblock(&b)
	if err != nil {
		return Superblock{}, fmt.Errorf("loading superblock: %w", err)
	}
	return sb, nil
}

func DecodeSuperblock(b *[SuperblockSize]byte) (Superblock, error) {
	var sb Superblock
	err := sb.Decode(b)
	return sb, err
}

// Decode decodes and validates a superblock record. Magic is checked before
// the feature bitmasks so that "not ext2" and "unsupported ext2 variant" are
// reported distinctly.
func (sb *Superblock) Decode(b *[SuperblockSize]byte) error {
	d := decoder{b: b[:]}
	var tmp Superblock
	tmp.InodesCount = d.u32()
	tmp.BlocksCount = d.u32()
	tmp.RBlocksCount = d.u32()
	tmp.FreeBlocksCount = d.u32()
	tmp.FreeInodesCount = d.u32()
	tmp.FirstDataBlock = d.u32()
	tmp.LogBlockSize = d.u32()
	tmp.LogFragSize = d.u32()
	tmp.BlocksPerGroup = d.u32()
	tmp.FragsPerGroup = d.u32()
	tmp.InodesPerGroup = d.u32()
	tmp.MTime = d.u32()
	tmp.WTime = d.u32()
	tmp.MntCount = d.u16()
	tmp.MaxMntCount = int16(d.u16())
	tmp.Magic = d.u16()
	tmp.State = SuperblockState(d.u16())
	tmp.Errors = d.u16()
	tmp.MinorRevLevel = d.u16()
	tmp.LastCheck = d.u32()
	tmp.CheckInterval = d.u32()
	tmp.CreatorOS = d.u32()
	tmp.RevLevel = RevLevel(d.u32())
	tmp.DefResUID = d.u16()
	tmp.DefResGID = d.u16()

	if tmp.Magic != SuperblockMagic {
		return fmt.Errorf("decoding superblock: %w", ErrBadMagic{tmp.Magic})
	}

	tmp.FirstIno = d.u32()
	tmp.InodeSize = d.u16()
	tmp.BlockGroupNr = d.u16()
	tmp.FeatureCompat = d.u32()
	tmp.FeatureIncompat = d.u32()
	tmp.FeatureROCompat = d.u32()
	copy(tmp.UUID[:], d.bytes(len(tmp.UUID)))
	tmp.VolumeName = d.cstring(16)
	tmp.LastMounted = d.cstring(64)

	if tmp.RevLevel == RevLevelStatic {
		tmp.FirstIno = DefaultFirstIno
		tmp.InodeSize = DefaultInodeSize
	}

	// any incompatible bit is refused, even on static revision volumes where
	// the field should never have been written
	if tmp.FeatureIncompat != 0 {
		return fmt.Errorf(
			"decoding superblock: %w",
			ErrIncompatibleFeatures{tmp.FeatureIncompat},
		)
	}

	if err := tmp.validateGeometry(); err != nil {
		return fmt.Errorf("decoding superblock: %w", err)
	}

	*sb = tmp
	return nil
}

func (sb *Superblock) validateGeometry() error {
	if sb.LogBlockSize > maxLogBlockSize {
		return ErrBadGeometry{"s_log_block_size", uint64(sb.LogBlockSize)}
	}
	if sb.BlocksPerGroup == 0 {
		return ErrBadGeometry{"s_blocks_per_group", 0}
	}
	if sb.InodesPerGroup == 0 {
		return ErrBadGeometry{"s_inodes_per_group", 0}
	}
	if sb.InodeSize < DefaultInodeSize {
		return ErrBadGeometry{"s_inode_size", uint64(sb.InodeSize)}
	}
	if sb.BlocksCount <= sb.FirstDataBlock {
		return ErrBadGeometry{"s_blocks_count", uint64(sb.BlocksCount)}
	}
	return nil
}
