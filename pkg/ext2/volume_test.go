package ext2

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryVolume(t *testing.T) {
	volume := NewMemoryVolume([]byte("0123456789"))

	buf := make([]byte, 4)
	if err := volume.Read(3, buf); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if string(buf) != "3456" {
		t.Fatalf("Read(): wanted `3456`; found `%s`", buf)
	}

	for _, offset := range []uint64{8, 10, 1 << 40} {
		err := volume.Read(offset, buf)
		var ioErr *IOError
		if !errors.As(err, &ioErr) {
			t.Fatalf("Read(%d): wanted `*IOError`; found `%v`", offset, err)
		}
		if ioErr.Wanted != 4 || ioErr.Offset != offset {
			t.Fatalf("Read(%d): unexpected `%+v`", offset, ioErr)
		}
	}
}

func TestFileVolume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume")
	if err := os.WriteFile(path, []byte("0123456789"), 0644); err != nil {
		t.Fatalf("writing volume: %v", err)
	}
	volume, err := OpenFileVolume(path)
	if err != nil {
		t.Fatalf("OpenFileVolume(): unexpected err: %v", err)
	}
	defer volume.Close()

	// a read ending exactly at the end of the file is complete
	buf := make([]byte, 4)
	if err := volume.Read(6, buf); err != nil {
		t.Fatalf("Read(6): unexpected err: %v", err)
	}
	if string(buf) != "6789" {
		t.Fatalf("Read(6): wanted `6789`; found `%s`", buf)
	}

	err = volume.Read(8, buf)
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("Read(8): wanted `*IOError`; found `%v`", err)
	}
	if ioErr.Found != 2 {
		t.Fatalf("Read(8): wanted `2` bytes found; found `%d`", ioErr.Found)
	}
	if !errors.Is(err, IOErr) {
		t.Fatalf("Read(8): wanted `%v`; found `%v`", IOErr, err)
	}
}

func TestOffsetVolume(t *testing.T) {
	volume := NewOffsetVolume(NewMemoryVolume([]byte("0123456789")), 4)

	buf := make([]byte, 3)
	if err := volume.Read(1, buf); err != nil {
		t.Fatalf("Read(): unexpected err: %v", err)
	}
	if string(buf) != "567" {
		t.Fatalf("Read(): wanted `567`; found `%s`", buf)
	}
	if err := volume.Read(5, buf); !errors.Is(err, IOErr) {
		t.Fatalf("Read(5): wanted `%v`; found `%v`", IOErr, err)
	}
}
