package ext2

import (
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path"
	"slices"
	"strings"
	"time"
)

// FS exposes the filesystem through the standard `io/fs` interfaces. Listings
// omit "." and ".." and are sorted by name. Symlinks are not followed; opening
// one reads its target.
func (fs *FileSystem) FS() iofs.FS { return ioFS{fs} }

type ioFS struct {
	fs *FileSystem
}

var (
	_ iofs.ReadDirFS  = ioFS{}
	_ iofs.ReadFileFS = ioFS{}
	_ iofs.StatFS     = ioFS{}
)

func (fsys ioFS) resolve(op, name string) (Ino, Inode, error) {
	if !iofs.ValidPath(name) {
		return 0, Inode{}, &iofs.PathError{Op: op, Path: name, Err: iofs.ErrInvalid}
	}
	ino, err := fsys.fs.Resolve(name)
	if err != nil {
		return 0, Inode{}, pathError(op, name, err)
	}
	inode, err := fsys.fs.Stat(ino)
	if err != nil {
		return 0, Inode{}, pathError(op, name, err)
	}
	return ino, inode, nil
}

func pathError(op, name string, err error) error {
	if errors.Is(err, NotFoundErr) || errors.Is(err, NotADirErr) {
		err = fmt.Errorf("%w: %w", iofs.ErrNotExist, err)
	}
	return &iofs.PathError{Op: op, Path: name, Err: err}
}

func (fsys ioFS) Open(name string) (iofs.File, error) {
	ino, inode, err := fsys.resolve("open", name)
	if err != nil {
		return nil, err
	}
	info := &fileInfo{name: path.Base(name), inode: inode}
	if inode.Mode.FileType == FileTypeDir {
		entries, err := fsys.readDir(name, ino)
		if err != nil {
			return nil, err
		}
		return &dirFile{info: info, entries: entries}, nil
	}
	f, err := fsys.fs.OpenFile(ino)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return &regularFile{info: info, f: f}, nil
}

func (fsys ioFS) Stat(name string) (iofs.FileInfo, error) {
	_, inode, err := fsys.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return &fileInfo{name: path.Base(name), inode: inode}, nil
}

func (fsys ioFS) ReadFile(name string) ([]byte, error) {
	ino, inode, err := fsys.resolve("readfile", name)
	if err != nil {
		return nil, err
	}
	if inode.Mode.FileType == FileTypeDir {
		return nil, &iofs.PathError{
			Op:   "readfile",
			Path: name,
			Err:  ErrIsADir{Ino: ino},
		}
	}
	data, err := fsys.fs.ReadFile(ino)
	if err != nil {
		return nil, pathError("readfile", name, err)
	}
	return data, nil
}

func (fsys ioFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	ino, inode, err := fsys.resolve("readdir", name)
	if err != nil {
		return nil, err
	}
	if inode.Mode.FileType != FileTypeDir {
		return nil, pathError(
			"readdir",
			name,
			ErrNotADir{Ino: ino, FileType: inode.Mode.FileType},
		)
	}
	return fsys.readDir(name, ino)
}

func (fsys ioFS) readDir(name string, ino Ino) ([]iofs.DirEntry, error) {
	entries, err := fsys.fs.ListDirectory(ino)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}

	out := make([]iofs.DirEntry, 0, len(entries))
	for i := range entries {
		if entries[i].Name == "." || entries[i].Name == ".." {
			continue
		}
		inode, err := fsys.fs.Stat(entries[i].Ino)
		if err != nil {
			return nil, pathError("readdir", name, err)
		}
		out = append(out, iofs.FileInfoToDirEntry(
			&fileInfo{name: entries[i].Name, inode: inode},
		))
	}
	slices.SortFunc(out, func(a, b iofs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out, nil
}

type fileInfo struct {
	name  string
	inode Inode
}

func (info *fileInfo) Name() string { return info.name }

func (info *fileInfo) Size() int64 { return int64(info.inode.Size) }

func (info *fileInfo) Mode() iofs.FileMode {
	mode := info.inode.Mode
	m := mode.FileType.FileMode() | iofs.FileMode(mode.AccessRights)
	if mode.SUID {
		m |= iofs.ModeSetuid
	}
	if mode.SGID {
		m |= iofs.ModeSetgid
	}
	if mode.Sticky {
		m |= iofs.ModeSticky
	}
	return m
}

func (info *fileInfo) ModTime() time.Time {
	return time.Unix(int64(info.inode.Attr.MTime), 0)
}

func (info *fileInfo) IsDir() bool { return info.inode.Mode.FileType == FileTypeDir }

// Sys returns the underlying *Inode.
func (info *fileInfo) Sys() any { return &info.inode }

type regularFile struct {
	info *fileInfo
	f    *File
}

func (f *regularFile) Stat() (iofs.FileInfo, error) { return f.info, nil }

func (f *regularFile) Read(p []byte) (int, error) {
	if f.f == nil {
		return 0, iofs.ErrClosed
	}
	return f.f.Read(p)
}

func (f *regularFile) Close() error {
	if f.f == nil {
		return iofs.ErrClosed
	}
	f.f = nil
	return nil
}

type dirFile struct {
	info    *fileInfo
	entries []iofs.DirEntry
	offset  int
	closed  bool
}

func (d *dirFile) Stat() (iofs.FileInfo, error) { return d.info, nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &iofs.PathError{
		Op:   "read",
		Path: d.info.name,
		Err:  ErrIsADir{Ino: d.info.inode.Ino},
	}
}

func (d *dirFile) ReadDir(n int) ([]iofs.DirEntry, error) {
	if d.closed {
		return nil, iofs.ErrClosed
	}
	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(remaining))
	d.offset += n
	return remaining[:n], nil
}

func (d *dirFile) Close() error {
	if d.closed {
		return iofs.ErrClosed
	}
	d.closed = true
	return nil
}
