// Package testimage builds small single-group ext2 images in memory for
// tests.
package testimage

import (
	"encoding/binary"
	"fmt"
	"path"
	"strings"
)

const (
	rootIno  = 2
	firstIno = 11

	numDirect = 12
	indirect  = 12

	modeDir     = 0x4000
	modeRegular = 0x8000
	modeSymlink = 0xa000

	fastSymlinkMax = 60
)

// Entry describes one file, directory or symlink in the image. Parent
// directories are created implicitly.
type Entry struct {
	Path    string
	Data    []byte
	Dir     bool
	Symlink string

	// Perm defaults to 0755 for directories and symlinks and 0644 otherwise.
	Perm uint16

	// Holes lists the indexes of data blocks which are left unallocated. The
	// corresponding regions of Data should be zero.
	Holes []int

	// Deleted writes a record with inode number zero in the parent
	// directory instead of a real entry.
	Deleted bool
}

type Options struct {
	BlockSize  uint32 // default 1024
	Static     bool   // revision 0 superblock
	InodeSize  uint16 // default 128; ignored for static volumes
	Inodes     uint32 // default 32, or as many as are needed
	VolumeName string
	UUID       [16]byte
	Time       uint32
}

type Image struct {
	Bytes      []byte
	BlockSize  uint32
	InodeTable uint32
	InodeSize  uint16
	Blocks     uint32

	// Used is the number of allocated blocks, which precede the free ones.
	Used uint32

	inos map[string]uint32
}

// Ino returns the inode number assigned to `p`.
func (img *Image) Ino(p string) uint32 {
	ino, ok := img.inos[clean(p)]
	if !ok {
		panic(fmt.Sprintf("testimage: no entry `%s`", p))
	}
	return ino
}

// InodeOffset returns the byte offset of inode `ino`.
func (img *Image) InodeOffset(ino uint32) int {
	return int(img.InodeTable)*int(img.BlockSize) +
		int(ino-1)*int(img.InodeSize)
}

// PutUint32 overwrites a little endian field of the image in place.
func (img *Image) PutUint32(offset int, v uint32) {
	binary.LittleEndian.PutUint32(img.Bytes[offset:], v)
}

func (img *Image) PutUint16(offset int, v uint16) {
	binary.LittleEndian.PutUint16(img.Bytes[offset:], v)
}

// MustBuild is like Build but panics on error.
func MustBuild(opts Options, entries ...Entry) *Image {
	img, err := Build(opts, entries...)
	if err != nil {
		panic(err)
	}
	return img
}

type node struct {
	name     string
	entry    Entry
	ino      uint32
	parent   *node
	children []*node
}

func clean(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

func Build(opts Options, entries ...Entry) (*Image, error) {
	b := builder{opts: opts}
	b.defaults()
	if err := b.tree(entries); err != nil {
		return nil, err
	}
	return b.build()
}

type builder struct {
	opts   Options
	bs     uint32
	isz    uint16
	root   *node
	nodes  map[string]*node
	order  []*node
	maxIno uint32
	blocks [][]byte
	inodes map[uint32][]byte
}

func (b *builder) defaults() {
	b.bs = b.opts.BlockSize
	if b.bs == 0 {
		b.bs = 1024
	}
	b.isz = b.opts.InodeSize
	if b.isz == 0 || b.opts.Static {
		b.isz = 128
	}
}

func (b *builder) tree(entries []Entry) error {
	b.root = &node{entry: Entry{Dir: true}, ino: rootIno}
	b.nodes = map[string]*node{"": b.root}
	b.order = []*node{b.root}
	b.maxIno = firstIno - 1

	for _, entry := range entries {
		p := clean(entry.Path)
		if p == "" {
			return fmt.Errorf("testimage: entry with empty path")
		}
		parent, err := b.mkdirAll(path.Dir(p))
		if err != nil {
			return err
		}
		n := &node{name: path.Base(p), entry: entry, parent: parent}
		if !entry.Deleted {
			if _, exists := b.nodes[p]; exists {
				return fmt.Errorf("testimage: duplicate entry `%s`", p)
			}
			b.maxIno++
			n.ino = b.maxIno
			b.nodes[p] = n
			b.order = append(b.order, n)
		}
		parent.children = append(parent.children, n)
	}
	return nil
}

func (b *builder) mkdirAll(p string) (*node, error) {
	if p == "." {
		p = ""
	}
	if n, ok := b.nodes[p]; ok {
		if !n.entry.Dir {
			return nil, fmt.Errorf("testimage: `%s` is not a directory", p)
		}
		return n, nil
	}
	parent, err := b.mkdirAll(path.Dir(p))
	if err != nil {
		return nil, err
	}
	b.maxIno++
	n := &node{
		name:   path.Base(p),
		entry:  Entry{Path: p, Dir: true},
		ino:    b.maxIno,
		parent: parent,
	}
	b.nodes[p] = n
	b.order = append(b.order, n)
	parent.children = append(parent.children, n)
	return n, nil
}

func (b *builder) firstDataBlock() uint32 {
	if b.bs == 1024 {
		return 1
	}
	return 0
}

func (b *builder) build() (*Image, error) {
	inodes := b.opts.Inodes
	if inodes < b.maxIno {
		inodes = b.maxIno
	}
	if inodes < 32 {
		inodes = 32
	}
	perBlock := b.bs / uint32(b.isz)
	inodes = (inodes + perBlock - 1) / perBlock * perBlock
	tableBlocks := inodes / perBlock

	fdb := b.firstDataBlock()
	gdtBlock := fdb + 1
	blockBitmap := gdtBlock + 1
	inodeBitmap := blockBitmap + 1
	inodeTable := inodeBitmap + 1

	// metadata blocks are allocated up front; data follows the inode table
	b.blocks = make([][]byte, inodeTable+tableBlocks)
	b.inodes = map[uint32][]byte{}

	var usedDirs uint16
	for _, n := range b.order {
		var err error
		if n.entry.Dir {
			usedDirs++
			err = b.writeDir(n)
		} else if n.entry.Symlink != "" {
			err = b.writeSymlink(n)
		} else {
			err = b.writeData(n, modeRegular, n.entry.Data, n.entry.Holes)
		}
		if err != nil {
			return nil, err
		}
	}

	const spare = 16
	blocksCount := uint32(len(b.blocks)) + spare
	if blocksCount-fdb > b.bs*8 {
		return nil, fmt.Errorf(
			"testimage: `%d` blocks don't fit in a single group",
			blocksCount,
		)
	}

	img := make([]byte, int(blocksCount)*int(b.bs))
	for i, block := range b.blocks {
		copy(img[i*int(b.bs):], block)
	}
	for ino, record := range b.inodes {
		copy(img[int(inodeTable)*int(b.bs)+int(ino-1)*int(b.isz):], record)
	}

	bb := img[int(blockBitmap)*int(b.bs):]
	for i := fdb; i < uint32(len(b.blocks)); i++ {
		bb[(i-fdb)/8] |= 1 << ((i - fdb) % 8)
	}
	ib := img[int(inodeBitmap)*int(b.bs):]
	for i := uint32(0); i < b.maxIno; i++ {
		ib[i/8] |= 1 << (i % 8)
	}

	gd := img[int(gdtBlock)*int(b.bs):]
	le := binary.LittleEndian
	le.PutUint32(gd[0:], blockBitmap)
	le.PutUint32(gd[4:], inodeBitmap)
	le.PutUint32(gd[8:], inodeTable)
	le.PutUint16(gd[12:], uint16(spare))
	le.PutUint16(gd[14:], uint16(inodes-b.maxIno))
	le.PutUint16(gd[16:], usedDirs)

	b.superblock(img[1024:2048], blocksCount, inodes)

	return &Image{
		Bytes:      img,
		BlockSize:  b.bs,
		InodeTable: inodeTable,
		InodeSize:  b.isz,
		Blocks:     blocksCount,
		Used:       uint32(len(b.blocks)),
		inos:       b.inoMap(),
	}, nil
}

func (b *builder) inoMap() map[string]uint32 {
	inos := make(map[string]uint32, len(b.nodes))
	for p, n := range b.nodes {
		inos[p] = n.ino
	}
	return inos
}

func (b *builder) superblock(sb []byte, blocks, inodes uint32) {
	le := binary.LittleEndian
	var logBlockSize uint32
	for 1024<<logBlockSize < b.bs {
		logBlockSize++
	}
	le.PutUint32(sb[0:], inodes)
	le.PutUint32(sb[4:], blocks)
	le.PutUint32(sb[8:], 0)
	le.PutUint32(sb[12:], blocks-uint32(len(b.blocks)))
	le.PutUint32(sb[16:], inodes-b.maxIno)
	le.PutUint32(sb[20:], b.firstDataBlock())
	le.PutUint32(sb[24:], logBlockSize)
	le.PutUint32(sb[28:], logBlockSize)
	le.PutUint32(sb[32:], b.bs*8)
	le.PutUint32(sb[36:], b.bs*8)
	le.PutUint32(sb[40:], inodes)
	le.PutUint32(sb[44:], b.opts.Time)
	le.PutUint32(sb[48:], b.opts.Time)
	le.PutUint16(sb[52:], 0)
	le.PutUint16(sb[54:], 0xffff)
	le.PutUint16(sb[56:], 0xef53)
	le.PutUint16(sb[58:], 1)
	le.PutUint16(sb[60:], 1)
	le.PutUint32(sb[64:], b.opts.Time)
	if b.opts.Static {
		return
	}
	le.PutUint32(sb[76:], 1)
	le.PutUint32(sb[84:], firstIno)
	le.PutUint16(sb[88:], b.isz)
	copy(sb[104:120], b.opts.UUID[:])
	copy(sb[120:136], b.opts.VolumeName)
}

func (b *builder) alloc(data []byte) uint32 {
	block := make([]byte, b.bs)
	copy(block, data)
	b.blocks = append(b.blocks, block)
	return uint32(len(b.blocks) - 1)
}

func (b *builder) inode(
	n *node,
	mode uint16,
	size uint64,
	ptrs [15]uint32,
	allocated uint32,
) {
	le := binary.LittleEndian
	record := make([]byte, b.isz)
	perm := n.entry.Perm
	if perm == 0 {
		perm = 0644
		if mode != modeRegular {
			perm = 0755
		}
	}
	links := uint16(1)
	if n.entry.Dir {
		links = 2
		for _, child := range n.children {
			if child.entry.Dir && !child.entry.Deleted {
				links++
			}
		}
	}
	le.PutUint16(record[0:], mode|perm)
	le.PutUint32(record[4:], uint32(size))
	le.PutUint32(record[8:], b.opts.Time)
	le.PutUint32(record[12:], b.opts.Time)
	le.PutUint32(record[16:], b.opts.Time)
	le.PutUint16(record[26:], links)
	le.PutUint32(record[28:], allocated*(b.bs/512))
	for i, ptr := range ptrs {
		le.PutUint32(record[40+4*i:], ptr)
	}
	if mode == modeRegular && !b.opts.Static {
		le.PutUint32(record[108:], uint32(size>>32))
	}
	b.inodes[n.ino] = record
}

func (b *builder) writeData(
	n *node,
	mode uint16,
	data []byte,
	holes []int,
) error {
	bs := int(b.bs)
	count := (len(data) + bs - 1) / bs
	perBlock := bs / 4
	if count > numDirect+perBlock {
		return fmt.Errorf(
			"testimage: `%s` needs more than one indirect block",
			n.entry.Path,
		)
	}

	hole := make(map[int]bool, len(holes))
	for _, k := range holes {
		hole[k] = true
	}

	var ptrs [15]uint32
	var table []byte
	var allocated uint32
	for k := 0; k < count; k++ {
		if hole[k] {
			continue
		}
		ptr := b.alloc(data[k*bs : min((k+1)*bs, len(data))])
		allocated++
		if k < numDirect {
			ptrs[k] = ptr
			continue
		}
		if table == nil {
			table = make([]byte, bs)
			ptrs[indirect] = b.alloc(nil)
			allocated++
		}
		binary.LittleEndian.PutUint32(table[4*(k-numDirect):], ptr)
	}
	if table != nil {
		copy(b.blocks[ptrs[indirect]], table)
	}

	b.inode(n, mode, uint64(len(data)), ptrs, allocated)
	return nil
}

func (b *builder) writeSymlink(n *node) error {
	target := []byte(n.entry.Symlink)
	if len(target) >= fastSymlinkMax {
		return b.writeData(n, modeSymlink, target, nil)
	}
	var inline [60]byte
	copy(inline[:], target)
	var ptrs [15]uint32
	for i := range ptrs {
		ptrs[i] = binary.LittleEndian.Uint32(inline[4*i:])
	}
	b.inode(n, modeSymlink, uint64(len(target)), ptrs, 0)
	return nil
}

type record struct {
	ino  uint32
	name string
}

func (b *builder) writeDir(n *node) error {
	parent := n.parent
	if parent == nil {
		parent = n
	}
	records := []record{{n.ino, "."}, {parent.ino, ".."}}
	for _, child := range n.children {
		records = append(records, record{child.ino, child.name})
	}

	data := packDir(records, int(b.bs))
	return b.writeData(n, modeDir, data, nil)
}

// packDir lays out directory records the way ext2 does: each record is
// padded to four bytes and the last record in each block extends to the end
// of the block.
func packDir(records []record, bs int) []byte {
	var data []byte
	block := make([]byte, bs)
	offset, last := 0, -1
	for _, r := range records {
		size := (8 + len(r.name) + 3) &^ 3
		if offset+size > bs {
			binary.LittleEndian.PutUint16(block[last+4:], uint16(bs-last))
			data = append(data, block...)
			block = make([]byte, bs)
			offset = 0
		}
		binary.LittleEndian.PutUint32(block[offset:], r.ino)
		binary.LittleEndian.PutUint16(block[offset+4:], uint16(size))
		binary.LittleEndian.PutUint16(block[offset+6:], uint16(len(r.name)))
		copy(block[offset+8:], r.name)
		last = offset
		offset += size
	}
	binary.LittleEndian.PutUint16(block[last+4:], uint16(bs-last))
	return append(data, block...)
}
