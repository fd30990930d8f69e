package ext2

import (
	"errors"
	"testing"

	"github.com/weberc2/ext2/internal/testimage"
)

func TestLoadGroupDesc(t *testing.T) {
	for _, blockSize := range []uint32{1024, 2048, 4096} {
		img := testimage.MustBuild(
			testimage.Options{BlockSize: blockSize},
			testimage.Entry{Path: "dir/file", Data: []byte("hello")},
		)
		volume := NewMemoryVolume(img.Bytes)
		sb, err := LoadSuperblock(volume)
		if err != nil {
			t.Fatalf("LoadSuperblock(): unexpected err: %v", err)
		}

		wantedOffset := uint64(2048)
		if blockSize > 1024 {
			wantedOffset = uint64(blockSize)
		}
		if offset := GroupDescOffset(&sb); offset != wantedOffset {
			t.Fatalf(
				"GroupDescOffset() with block size `%d`: wanted `%d`; "+
					"found `%d`",
				blockSize,
				wantedOffset,
				offset,
			)
		}

		gd, err := LoadGroupDesc(volume, &sb)
		if err != nil {
			t.Fatalf("LoadGroupDesc(): unexpected err: %v", err)
		}
		if gd.InodeTable != img.InodeTable {
			t.Fatalf(
				"InodeTable with block size `%d`: wanted `%d`; found `%d`",
				blockSize,
				img.InodeTable,
				gd.InodeTable,
			)
		}
		if gd.UsedDirsCount != 2 {
			t.Fatalf(
				"UsedDirsCount: wanted `2`; found `%d`",
				gd.UsedDirsCount,
			)
		}
	}
}

func TestLoadGroupDescMultipleGroups(t *testing.T) {
	img := testimage.MustBuild(testimage.Options{})
	img.PutUint32(SuperblockOffset+32, 8) // blocks per group

	_, err := Mount(NewMemoryVolume(img.Bytes))
	if !errors.Is(err, UnsupportedFeaturesErr) {
		t.Fatalf("Mount(): wanted `%v`; found `%v`", UnsupportedFeaturesErr, err)
	}

	var multiple ErrMultipleGroups
	if !errors.As(err, &multiple) {
		t.Fatalf("Mount(): wanted `ErrMultipleGroups`; found `%v`", err)
	}
	if wanted := (img.Blocks - 1 + 7) / 8; multiple.Groups != wanted {
		t.Fatalf(
			"ErrMultipleGroups.Groups: wanted `%d`; found `%d`",
			wanted,
			multiple.Groups,
		)
	}
}
