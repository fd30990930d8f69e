package ext2

import (
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/weberc2/ext2/internal/testimage"
)

func putDirEntry(block []byte, offset int, ino uint32, recLen uint16, name string) {
	binary.LittleEndian.PutUint32(block[offset:], ino)
	binary.LittleEndian.PutUint16(block[offset+4:], recLen)
	binary.LittleEndian.PutUint16(block[offset+6:], uint16(len(name)))
	copy(block[offset+8:], name)
}

func TestDecodeDirEntry(t *testing.T) {
	block := make([]byte, 64)
	putDirEntry(block, 0, 2, 12, ".")
	putDirEntry(block, 12, 0, 20, "gone") // unused record, kept for padding
	putDirEntry(block, 32, 11, 32, "hello")

	var found []DirEntry
	for offset := 0; offset < len(block); {
		entry, next, err := DecodeDirEntry(block, offset)
		if err != nil {
			t.Fatalf("DecodeDirEntry(%d): unexpected err: %v", offset, err)
		}
		found = append(found, entry)
		offset = next
	}

	wanted := []DirEntry{
		{Ino: 2, RecLen: 12, NameLen: 1, Name: "."},
		{Ino: 0, RecLen: 20, NameLen: 4, Name: "gone"},
		{Ino: 11, RecLen: 32, NameLen: 5, Name: "hello"},
	}
	if diff := cmp.Diff(wanted, found); diff != "" {
		t.Fatalf("DecodeDirEntry(): (-wanted +found):\n%s", diff)
	}
}

func TestDecodeDirEntryCorrupt(t *testing.T) {
	for _, testCase := range []struct {
		name   string
		offset int
		build  func(block []byte)
	}{{
		name:  "zero-rec-len",
		build: func(block []byte) { putDirEntry(block, 0, 11, 0, "a") },
	}, {
		name:  "rec-len-smaller-than-header",
		build: func(block []byte) { putDirEntry(block, 0, 11, 4, "") },
	}, {
		name:  "rec-len-past-block",
		build: func(block []byte) { putDirEntry(block, 0, 11, 68, "a") },
	}, {
		name:  "name-past-record",
		build: func(block []byte) { putDirEntry(block, 0, 11, 12, "hello") },
	}, {
		name:   "header-past-block",
		offset: 60,
		build:  func(block []byte) {},
	}} {
		t.Run(testCase.name, func(t *testing.T) {
			block := make([]byte, 64)
			testCase.build(block)
			_, _, err := DecodeDirEntry(block, testCase.offset)
			if !errors.Is(err, CorruptErr) {
				t.Fatalf("DecodeDirEntry(): wanted `%v`; found `%v`", CorruptErr, err)
			}
		})
	}
}

func names(entries []DirEntry) []string {
	out := make([]string, len(entries))
	for i := range entries {
		out[i] = entries[i].Name
	}
	return out
}

func TestListDirectory(t *testing.T) {
	img := testimage.MustBuild(
		testimage.Options{},
		testimage.Entry{Path: "dir", Dir: true},
		testimage.Entry{Path: "dir/removed", Deleted: true},
		testimage.Entry{Path: "dir/b", Data: []byte("b")},
		testimage.Entry{Path: "dir/also-removed", Deleted: true},
		testimage.Entry{Path: "dir/a", Data: []byte("a")},
		testimage.Entry{Path: "dir/sub", Dir: true},
	)
	fs := mount(t, img)

	dir := Ino(img.Ino("dir"))
	entries, err := fs.ListDirectory(dir)
	if err != nil {
		t.Fatalf("ListDirectory(): unexpected err: %v", err)
	}

	wanted := []DirEntry{
		{Ino: dir, Name: "."},
		{Ino: RootIno, Name: ".."},
		{Ino: Ino(img.Ino("dir/b")), Name: "b"},
		{Ino: Ino(img.Ino("dir/a")), Name: "a"},
		{Ino: Ino(img.Ino("dir/sub")), Name: "sub"},
	}
	if diff := cmp.Diff(
		wanted,
		entries,
		cmp.Comparer(func(a, b DirEntry) bool {
			return a.Ino == b.Ino && a.Name == b.Name
		}),
	); diff != "" {
		t.Fatalf("ListDirectory(): (-wanted +found):\n%s", diff)
	}
}

func TestListDirectoryMultipleBlocks(t *testing.T) {
	var entries []testimage.Entry
	var wanted []string
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("a-rather-long-file-name-number-%03d", i)
		entries = append(entries, testimage.Entry{
			Path: "big/" + name,
			Data: []byte(name),
		})
		wanted = append(wanted, name)
	}
	img := testimage.MustBuild(testimage.Options{}, entries...)
	fs := mount(t, img)

	inode, err := fs.Stat(Ino(img.Ino("big")))
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if blocks := inode.Size / fs.Superblock.BlockSize(); blocks < 2 {
		t.Fatalf("directory blocks: wanted at least `2`; found `%d`", blocks)
	}

	found, err := fs.ListDirectory(inode.Ino)
	if err != nil {
		t.Fatalf("ListDirectory(): unexpected err: %v", err)
	}
	wanted = append([]string{".", ".."}, wanted...)
	if diff := cmp.Diff(wanted, names(found)); diff != "" {
		t.Fatalf("ListDirectory(): (-wanted +found):\n%s", diff)
	}
}

func TestListDirectoryErrors(t *testing.T) {
	img := testimage.MustBuild(
		testimage.Options{},
		testimage.Entry{Path: "file", Data: []byte("x")},
		testimage.Entry{Path: "dir", Dir: true},
	)
	fs := mount(t, img)

	if _, err := fs.ListDirectory(Ino(img.Ino("file"))); !errors.Is(err, NotADirErr) {
		t.Fatalf("ListDirectory(file): wanted `%v`; found `%v`", NotADirErr, err)
	}

	// zero the record length of the directory's first entry
	dir, err := fs.Stat(Ino(img.Ino("dir")))
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	offset := int(dir.Block[0]) * int(img.BlockSize)
	img.PutUint16(offset+4, 0)

	if _, err := fs.ListDirectory(dir.Ino); !errors.Is(err, CorruptErr) {
		t.Fatalf("ListDirectory(dir): wanted `%v`; found `%v`", CorruptErr, err)
	}
}
