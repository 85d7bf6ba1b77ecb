package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/sermuns/static-listing/pkg/types"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	dirPerm  os.FileMode = 0755
	filePerm os.FileMode = 0644
)

// Linker is implemented by filesystems that can create hard links.
type Linker interface {
	Link(oldname, newname string) error
}

// OsFs is the local filesystem with hard link support.
type OsFs struct {
	afero.OsFs
}

func (OsFs) Link(oldname, newname string) error {
	return os.Link(oldname, newname)
}

// OpError records a failed filesystem operation and the paths involved.
type OpError struct {
	Op   string
	Path string
	Dest string
	Err  error
}

func (e *OpError) Error() string {
	if e.Dest != "" {
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Path, e.Dest, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

type FS struct {
	fs     afero.Fs
	logger *zap.Logger
}

func New(fs afero.Fs, logger *zap.Logger) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{fs: fs, logger: logger}
}

// NewOS returns an FS backed by the local disk.
func NewOS(logger *zap.Logger) *FS {
	return New(OsFs{}, logger)
}

func (f *FS) Stat(path string) (os.FileInfo, error) {
	return f.fs.Stat(path)
}

// ListDir returns the directories and regular files directly inside dir, sorted
// by full path. Children whose metadata cannot be read are skipped, as are
// entries that are neither regular files nor directories. Symlinks are followed.
func (f *FS) ListDir(dir string) ([]types.Entry, error) {
	d, err := f.fs.Open(dir)
	if err != nil {
		return nil, &OpError{Op: "open directory", Path: dir, Err: err}
	}
	names, err := d.Readdirnames(-1)
	d.Close()
	if err != nil && len(names) == 0 {
		return nil, &OpError{Op: "read directory", Path: dir, Err: err}
	}

	entries := make([]types.Entry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := f.fs.Stat(path)
		if err != nil {
			f.logger.Debug("skipping unreadable entry", zap.String("path", path), zap.Error(err))
			continue
		}
		if !info.IsDir() && !info.Mode().IsRegular() {
			f.logger.Debug("skipping special file", zap.String("path", path), zap.Stringer("mode", info.Mode()))
			continue
		}

		entry := types.Entry{
			Path:    path,
			Name:    name,
			IsDir:   info.IsDir(),
			ModTime: info.ModTime(),
			Mode:    info.Mode(),
		}
		if !entry.IsDir {
			entry.Size = info.Size()
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

// Reset removes dir with everything below it and recreates it empty. A missing
// dir is not an error.
func (f *FS) Reset(dir string) error {
	if err := f.fs.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		return &OpError{Op: "remove output directory", Path: dir, Err: err}
	}
	return f.EnsureDir(dir)
}

// EnsureDir creates dir and any missing parents.
func (f *FS) EnsureDir(dir string) error {
	if err := f.fs.MkdirAll(dir, dirPerm); err != nil {
		return &OpError{Op: "create directory", Path: dir, Err: err}
	}
	return nil
}

// WriteFile replaces the file at path with data. An existing file is unlinked
// first so a hard-linked input file is never written through.
func (f *FS) WriteFile(path string, data []byte) error {
	if err := f.fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return &OpError{Op: "write", Path: path, Err: err}
	}
	if err := afero.WriteFile(f.fs, path, data, filePerm); err != nil {
		return &OpError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// Place puts the file at src into dst. A hard link is tried first when allowed
// and supported; any link failure falls back to copying the bytes. Only a copy
// failure is returned.
func (f *FS) Place(src, dst string, allowLink bool) (types.PlaceMethod, error) {
	if allowLink {
		err := f.link(src, dst)
		if err == nil {
			return types.MethodLink, nil
		}
		f.logger.Debug("hard link failed, copying instead",
			zap.String("src", src), zap.String("dst", dst), zap.Error(err))
	}

	if err := f.copyFile(src, dst); err != nil {
		return "", &OpError{Op: "copy", Path: src, Dest: dst, Err: err}
	}
	return types.MethodCopy, nil
}

func (f *FS) link(src, dst string) error {
	linker, ok := f.fs.(Linker)
	if !ok {
		return fmt.Errorf("filesystem %s does not support hard links", f.fs.Name())
	}
	return linker.Link(src, dst)
}

func (f *FS) copyFile(src, dst string) error {
	in, err := f.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := f.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
