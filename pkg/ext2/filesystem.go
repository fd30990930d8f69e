package ext2

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// FastSymlinkMaxSize bounds the length of a symlink target stored inline in
// the inode's block pointers rather than in a data block.
const FastSymlinkMaxSize = 60

var discardLogger logrus.FieldLogger = newDiscardLogger()

func newDiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.Out = io.Discard
	logger.Level = logrus.PanicLevel
	return logger
}

// FileSystem is a mounted, read-only ext2 volume. Its fields are not modified
// after mounting, so its methods may be called concurrently; each call reads
// fresh metadata from the volume through its own iterator.
type FileSystem struct {
	Volume     Volume
	Superblock Superblock
	GroupDesc  GroupDesc

	// Logger receives debug traces. A nil Logger discards them.
	Logger logrus.FieldLogger
}

type Option func(*FileSystem)

func WithLogger(logger logrus.FieldLogger) Option {
	return func(fs *FileSystem) { fs.Logger = logger }
}

// Open opens the image or block device at `path` and mounts it. The volume is
// closed again if mounting fails.
func Open(path string, options ...Option) (*FileSystem, error) {
	volume, err := OpenFileVolume(path)
	if err != nil {
		return nil, fmt.Errorf("opening filesystem: %w", err)
	}
	fs, err := Mount(volume, options...)
	if err != nil {
		volume.Close()
		return nil, fmt.Errorf("opening filesystem `%s`: %w", path, err)
	}
	return fs, nil
}

// Mount loads and validates the superblock and group descriptor of `volume`.
func Mount(volume Volume, options ...Option) (*FileSystem, error) {
	fs := FileSystem{Volume: volume}
	for _, option := range options {
		option(&fs)
	}

	sb, err := LoadSuperblock(volume)
	if err != nil {
		return nil, fmt.Errorf("mounting filesystem: %w", err)
	}
	gd, err := LoadGroupDesc(volume, &sb)
	if err != nil {
		return nil, fmt.Errorf("mounting filesystem: %w", err)
	}
	fs.Superblock, fs.GroupDesc = sb, gd

	fs.logger().WithFields(logrus.Fields{
		"blockSize":   sb.BlockSize(),
		"blocks":      sb.BlocksCount,
		"inodes":      sb.InodesCount,
		"inodeSize":   sb.InodeSize,
		"revLevel":    sb.RevLevel,
		"inodeTable":  gd.InodeTable,
		"volumeName":  sb.VolumeName,
		"uuid":        sb.UUID,
		"lastMounted": sb.LastMounted,
	}).Debug("mounted filesystem")
	return &fs, nil
}

func (fs *FileSystem) logger() logrus.FieldLogger {
	if fs.Logger == nil {
		return discardLogger
	}
	return fs.Logger
}

// Close closes the volume if it can be closed.
func (fs *FileSystem) Close() error {
	if closer, ok := fs.Volume.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("closing filesystem: %w", err)
		}
	}
	return nil
}

func (fs *FileSystem) Resolve(path string) (Ino, error) {
	return resolve(fs.Volume, &fs.Superblock, &fs.GroupDesc, fs.logger(), path)
}

func (fs *FileSystem) Stat(ino Ino) (Inode, error) {
	return ReadInode(fs.Volume, &fs.Superblock, &fs.GroupDesc, ino)
}

// ReadFile returns the whole content of inode `ino`. On failure no data is
// returned.
func (fs *FileSystem) ReadFile(ino Ino) ([]byte, error) {
	f, err := fs.OpenFile(ino)
	if err != nil {
		return nil, fmt.Errorf("reading file `%d`: %w", ino, err)
	}
	data := make([]byte, f.inode.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("reading file `%d`: %w", ino, err)
	}
	return data, nil
}

// OpenFile returns a stream over the content of inode `ino`. The content of a
// fast symlink is its target.
func (fs *FileSystem) OpenFile(ino Ino) (*File, error) {
	inode, err := fs.Stat(ino)
	if err != nil {
		return nil, fmt.Errorf("opening file `%d`: %w", ino, err)
	}
	if isFastSymlink(&inode) {
		return &File{inode: inode, pending: fastSymlinkTarget(&inode)}, nil
	}
	it, err := NewBlockIterator(fs.Volume, &fs.Superblock, &inode)
	if err != nil {
		return nil, fmt.Errorf("opening file `%d`: %w", ino, err)
	}
	it.logger = fs.logger()
	return &File{
		inode: inode,
		it:    it,
		block: make([]byte, it.BlockSize()),
	}, nil
}

// ListDirectory returns the used entries of directory `ino` in on-disk order,
// including "." and "..".
func (fs *FileSystem) ListDirectory(ino Ino) ([]DirEntry, error) {
	it, dir, err := openDir(
		fs.Volume,
		&fs.Superblock,
		&fs.GroupDesc,
		fs.logger(),
		ino,
	)
	if err != nil {
		return nil, fmt.Errorf("listing dir `%d`: %w", ino, err)
	}

	var entries []DirEntry
	if err := scanDir(it, &dir, func(entry *DirEntry) bool {
		entries = append(entries, *entry)
		return true
	}); err != nil {
		return nil, fmt.Errorf("listing dir `%d`: %w", ino, err)
	}
	return entries, nil
}

// ReadLink returns the target of symlink `ino`.
func (fs *FileSystem) ReadLink(ino Ino) (string, error) {
	inode, err := fs.Stat(ino)
	if err != nil {
		return "", fmt.Errorf("reading link `%d`: %w", ino, err)
	}
	if inode.Mode.FileType != FileTypeSymlink {
		return "", fmt.Errorf(
			"reading link `%d`: %w",
			ino,
			ErrNotASymlink{Ino: ino, FileType: inode.Mode.FileType},
		)
	}
	target, err := fs.ReadFile(ino)
	if err != nil {
		return "", fmt.Errorf("reading link `%d`: %w", ino, err)
	}
	return string(target), nil
}

func isFastSymlink(inode *Inode) bool {
	return inode.Mode.FileType == FileTypeSymlink &&
		inode.Size < FastSymlinkMaxSize
}

func fastSymlinkTarget(inode *Inode) []byte {
	var b [4 * NumBlockPtrs]byte
	for i, ptr := range inode.Block {
		b[4*i] = byte(ptr)
		b[4*i+1] = byte(ptr >> 8)
		b[4*i+2] = byte(ptr >> 16)
		b[4*i+3] = byte(ptr >> 24)
	}
	return b[:inode.Size]
}

// File is a sequential reader over the content of one inode. Like the
// iterator beneath it, a File must not be shared between goroutines.
type File struct {
	inode   Inode
	it      *BlockIterator
	block   []byte
	pending []byte
}

func (f *File) Inode() *Inode { return &f.inode }

func (f *File) Read(p []byte) (int, error) {
	for len(f.pending) == 0 {
		if f.it == nil {
			return 0, io.EOF
		}
		n, err := f.it.Next(f.block)
		if err == io.EOF {
			f.it = nil
			return 0, io.EOF
		}
		if err != nil {
			return 0, err
		}
		f.pending = f.block[:n]
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}
