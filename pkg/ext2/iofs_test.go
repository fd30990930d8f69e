package ext2

import (
	"errors"
	iofs "io/fs"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/weberc2/ext2/internal/testimage"
)

func iofsFixture() *testimage.Image {
	return testimage.MustBuild(
		testimage.Options{Time: 1700000000},
		testimage.Entry{Path: "README", Data: []byte("read me\n")},
		testimage.Entry{Path: "docs/guide.txt", Data: pattern(5000)},
		testimage.Entry{Path: "docs/old", Deleted: true},
		testimage.Entry{Path: "docs/big", Data: pattern(1024 * (NumDirectBlocks + 7))},
		testimage.Entry{Path: "empty", Dir: true},
		testimage.Entry{Path: "bin/tool", Data: []byte("#!/bin/sh\n"), Perm: 0755},
		testimage.Entry{Path: "bin/nested/deeper/leaf", Data: []byte("leaf")},
	)
}

func TestFS(t *testing.T) {
	fs := mount(t, iofsFixture())
	if err := fstest.TestFS(
		fs.FS(),
		"README",
		"docs/guide.txt",
		"docs/big",
		"empty",
		"bin/tool",
		"bin/nested/deeper/leaf",
	); err != nil {
		t.Fatal(err)
	}
}

func TestFSReadDir(t *testing.T) {
	fs := mount(t, iofsFixture())
	entries, err := iofs.ReadDir(fs.FS(), ".")
	if err != nil {
		t.Fatalf("ReadDir(): unexpected err: %v", err)
	}

	var found []string
	for _, entry := range entries {
		found = append(found, entry.Name())
	}
	wanted := []string{"README", "bin", "docs", "empty"}
	if diff := cmp.Diff(wanted, found); diff != "" {
		t.Fatalf("ReadDir(): (-wanted +found):\n%s", diff)
	}
}

func TestFSStat(t *testing.T) {
	img := iofsFixture()
	fs := mount(t, img)

	info, err := iofs.Stat(fs.FS(), "bin/tool")
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if info.Name() != "tool" {
		t.Fatalf("Name(): wanted `tool`; found `%s`", info.Name())
	}
	if info.Mode() != 0755 {
		t.Fatalf("Mode(): wanted `%v`; found `%v`", iofs.FileMode(0755), info.Mode())
	}
	if info.Size() != 10 {
		t.Fatalf("Size(): wanted `10`; found `%d`", info.Size())
	}
	if info.ModTime().Unix() != 1700000000 {
		t.Fatalf("ModTime(): wanted `1700000000`; found `%d`", info.ModTime().Unix())
	}
	inode, ok := info.Sys().(*Inode)
	if !ok {
		t.Fatalf("Sys(): wanted `*Inode`; found `%T`", info.Sys())
	}
	if wanted := Ino(img.Ino("bin/tool")); inode.Ino != wanted {
		t.Fatalf("Sys().Ino: wanted `%d`; found `%d`", wanted, inode.Ino)
	}

	info, err = iofs.Stat(fs.FS(), "docs")
	if err != nil {
		t.Fatalf("Stat(): unexpected err: %v", err)
	}
	if !info.IsDir() || info.Mode() != iofs.ModeDir|0755 {
		t.Fatalf("Mode(): wanted `%v`; found `%v`", iofs.ModeDir|0755, info.Mode())
	}
}

func TestFSErrors(t *testing.T) {
	fsys := mount(t, iofsFixture()).FS()
	for _, testCase := range []struct {
		name   string
		wanted error
	}{
		{"missing", iofs.ErrNotExist},
		{"README/x", iofs.ErrNotExist},
		{"/README", iofs.ErrInvalid},
		{"docs/../README", iofs.ErrInvalid},
		{"docs/", iofs.ErrInvalid},
	} {
		_, err := fsys.Open(testCase.name)
		if !errors.Is(err, testCase.wanted) {
			t.Fatalf(
				"Open(%q): wanted `%v`; found `%v`",
				testCase.name,
				testCase.wanted,
				err,
			)
		}
		var pathErr *iofs.PathError
		if !errors.As(err, &pathErr) || pathErr.Path != testCase.name {
			t.Fatalf("Open(%q): wanted `*fs.PathError`; found `%v`", testCase.name, err)
		}
	}

	if _, err := iofs.ReadFile(fsys, "docs"); !errors.Is(err, iofs.ErrInvalid) {
		t.Fatalf("ReadFile(docs): wanted `%v`; found `%v`", iofs.ErrInvalid, err)
	}
	if _, err := iofs.ReadDir(fsys, "README"); !errors.Is(err, NotADirErr) {
		t.Fatalf("ReadDir(README): wanted `%v`; found `%v`", NotADirErr, err)
	}
}
