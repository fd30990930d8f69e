package ext2

import (
	"sync"
	"testing"

	"github.com/weberc2/ext2/internal/testimage"
)

// pattern returns `n` bytes of deterministic, non-repeating-per-block content.
func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func mount(t *testing.T, img *testimage.Image) *FileSystem {
	t.Helper()
	fs, err := Mount(NewMemoryVolume(img.Bytes))
	if err != nil {
		t.Fatalf("Mount(): unexpected err: %v", err)
	}
	return fs
}

// recordingVolume records the offset of every read passed through it.
type recordingVolume struct {
	inner Volume

	lock    sync.Mutex
	offsets []uint64
}

func (v *recordingVolume) Read(offset uint64, buffer []byte) error {
	v.lock.Lock()
	v.offsets = append(v.offsets, offset)
	v.lock.Unlock()
	return v.inner.Read(offset, buffer)
}

func (v *recordingVolume) reads() int {
	v.lock.Lock()
	defer v.lock.Unlock()
	return len(v.offsets)
}

func (v *recordingVolume) readsAt(offset uint64) int {
	v.lock.Lock()
	defer v.lock.Unlock()
	var n int
	for _, o := range v.offsets {
		if o == offset {
			n++
		}
	}
	return n
}

func (v *recordingVolume) reset() {
	v.lock.Lock()
	v.offsets = nil
	v.lock.Unlock()
}

func mountRecording(
	t *testing.T,
	img *testimage.Image,
) (*FileSystem, *recordingVolume) {
	t.Helper()
	volume := &recordingVolume{inner: NewMemoryVolume(img.Bytes)}
	fs, err := Mount(volume)
	if err != nil {
		t.Fatalf("Mount(): unexpected err: %v", err)
	}
	volume.reset()
	return fs, volume
}
