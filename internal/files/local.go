package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrTooLarge    = errors.New("file exceeds size limit")
	ErrInvalidName = errors.New("invalid file name")
	ErrNotFound    = errors.New("file not found")
)

// Local stores uploaded blobs under a root folder on disk. Names are relative
// to the root and may contain one level of sub-folder such as "avatars/x.png".
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string { return l.root }

// resolve maps a stored name to an absolute path inside root.
func (l *Local) resolve(name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || filepath.IsAbs(name) {
		return "", ErrInvalidName
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	full := filepath.Join(l.root, clean)
	if !strings.HasPrefix(full, l.root+string(filepath.Separator)) {
		return "", ErrInvalidName
	}
	return full, nil
}

// Put copies r into name and returns the number of bytes written. Writes
// larger than maxBytes are discarded with ErrTooLarge. The file appears under
// its final name only once completely written.
func (l *Local) Put(name string, r io.Reader, maxBytes int64) (int64, error) {
	full, err := l.resolve(name)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("create directories for %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	n, copyErr := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	closeErr := tmp.Close()
	if copyErr == nil && n > maxBytes {
		copyErr = ErrTooLarge
	}
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(tmpName)
		if errors.Is(copyErr, ErrTooLarge) {
			return 0, ErrTooLarge
		}
		return 0, fmt.Errorf("write %s: %w", name, copyErr)
	}
	if err := os.Rename(tmpName, full); err != nil {
		_ = os.Remove(tmpName)
		return 0, fmt.Errorf("move %s into place: %w", name, err)
	}
	return n, nil
}

// Remove deletes name. A file that is already gone is not an error.
func (l *Local) Remove(name string) error {
	full, err := l.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) Exists(name string) bool {
	full, err := l.resolve(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// Open returns the stored file for streaming.
func (l *Local) Open(name string) (*os.File, error) {
	full, err := l.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return f, nil
}
