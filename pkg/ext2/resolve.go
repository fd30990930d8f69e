package ext2

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// SplitPath splits `path` on '/' and drops empty components, so "//a//b/" and
// "/a/b" are equivalent and "/" and "" have no components at all.
func SplitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

// Resolve walks `path` from the root directory and returns the inode number
// it names. "." and ".." are ordinary directory entries.
func Resolve(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	path string,
) (Ino, error) {
	return resolve(volume, sb, gd, discardLogger, path)
}

func resolve(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	logger logrus.FieldLogger,
	path string,
) (Ino, error) {
	ino := RootIno
	for _, name := range SplitPath(path) {
		child, err := lookup(volume, sb, gd, logger, ino, name)
		if err != nil {
			return 0, fmt.Errorf("resolving path `%s`: %w", path, err)
		}
		logger.WithFields(logrus.Fields{
			"dir":  ino,
			"name": name,
			"ino":  child,
		}).Debug("resolved path component")
		ino = child
	}
	return ino, nil
}

// Lookup finds the entry called `name` in directory `dir`. Names are compared
// byte for byte.
func Lookup(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	dir Ino,
	name string,
) (Ino, error) {
	return lookup(volume, sb, gd, discardLogger, dir, name)
}

func lookup(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	logger logrus.FieldLogger,
	dir Ino,
	name string,
) (Ino, error) {
	it, inode, err := openDir(volume, sb, gd, logger, dir)
	if err != nil {
		return 0, fmt.Errorf("looking up `%s` in dir `%d`: %w", name, dir, err)
	}

	var found Ino
	if err := scanDir(it, &inode, func(entry *DirEntry) bool {
		if entry.Name == name {
			found = entry.Ino
			return false
		}
		return true
	}); err != nil {
		return 0, fmt.Errorf("looking up `%s` in dir `%d`: %w", name, dir, err)
	}
	if found == 0 {
		return 0, fmt.Errorf(
			"looking up `%s` in dir `%d`: %w",
			name,
			dir,
			ErrNotFound{Dir: dir, Name: name},
		)
	}
	return found, nil
}

// openDir reads inode `ino`, checks that it's a directory and returns an
// iterator over its blocks.
func openDir(
	volume Volume,
	sb *Superblock,
	gd *GroupDesc,
	logger logrus.FieldLogger,
	ino Ino,
) (*BlockIterator, Inode, error) {
	inode, err := ReadInode(volume, sb, gd, ino)
	if err != nil {
		return nil, Inode{}, err
	}
	if inode.Mode.FileType != FileTypeDir {
		return nil, Inode{}, ErrNotADir{Ino: ino, FileType: inode.Mode.FileType}
	}
	it, err := NewBlockIterator(volume, sb, &inode)
	if err != nil {
		return nil, Inode{}, err
	}
	it.logger = logger
	return it, inode, nil
}
