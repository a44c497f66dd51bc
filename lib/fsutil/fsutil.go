package fsutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/mazen160/go-random"
)

// Exists reports whether something exists at `name`.
func Exists(fs billy.Filesystem, name string) (bool, error) {
	_, err := fs.Stat(name)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("fsutil: stat %q: %w", name, err)
	}
}

// RemoveIfEmpty removes `dir` when it is an empty directory and reports whether
// a directory (empty or not) is still there afterwards.
func RemoveIfEmpty(fs billy.Filesystem, dir string) (exists bool, err error) {
	info, err := fs.Stat(dir)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fsutil: stat %q: %w", dir, err)
	}
	if !info.IsDir() {
		return true, nil
	}

	entries, err := fs.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("fsutil: readdir %q: %w", dir, err)
	}
	if len(entries) > 0 {
		return true, nil
	}
	err = fs.Remove(dir)
	if err != nil {
		return false, fmt.Errorf("fsutil: remove %q: %w", dir, err)
	}
	return false, nil
}

// WriteFileAtomic writes to a randomly named sibling of `name` first and renames it into
// place, so readers never observe a half written file.
func WriteFileAtomic(fs billy.Filesystem, name string, data []byte) error {
	_, err := CopyInto(fs, name, bytes.NewReader(data))
	return err
}

// CopyInto streams `r` into `name` the same way WriteFileAtomic does.
func CopyInto(fs billy.Filesystem, name string, r io.Reader) (int64, error) {
	suffix, err := random.String(8)
	if err != nil {
		return 0, fmt.Errorf("fsutil: temp name for %q: %w", name, err)
	}
	dir := path.Dir(name)
	tmp := path.Join(dir, fmt.Sprintf(".%s.%s.tmp", path.Base(name), suffix))

	err = fs.MkdirAll(dir, 0o755)
	if err != nil {
		return 0, fmt.Errorf("fsutil: mkdirall %q: %w", dir, err)
	}
	f, err := fs.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("fsutil: create %q: %w", tmp, err)
	}
	n, err := io.Copy(f, r)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("fsutil: write %q: %w", tmp, err)
	}
	err = fs.Rename(tmp, name)
	if err != nil {
		_ = fs.Remove(tmp)
		return n, fmt.Errorf("fsutil: rename %q: %w", tmp, err)
	}
	return n, nil
}

// Move moves a file between two filesystems, which may be rooted in different places.
func Move(src billy.Filesystem, srcName string, dst billy.Filesystem, dstName string) error {
	f, err := src.Open(srcName)
	if err != nil {
		return fmt.Errorf("fsutil: open %q: %w", srcName, err)
	}
	_, err = CopyInto(dst, dstName, f)
	f.Close()
	if err != nil {
		return err
	}
	err = src.Remove(srcName)
	if err != nil {
		return fmt.Errorf("fsutil: remove %q: %w", srcName, err)
	}
	return nil
}
