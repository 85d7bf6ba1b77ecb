package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sermuns/static-listing/pkg/types"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newMemFS(t *testing.T, files map[string]string) (*FS, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, mem.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(mem, path, []byte(content), 0644))
	}
	return New(mem, zaptest.NewLogger(t)), mem
}

func TestFS_ListDir(t *testing.T) {
	fsys, mem := newMemFS(t, map[string]string{
		"/in/b.txt":         "bb",
		"/in/a/nested.txt":  "n",
		"/in/C.md":          "ccc",
		"/in/.hidden":       "h",
		"/in/z/deeper/f.go": "package f",
	})
	modTime := time.Date(2024, 3, 1, 12, 30, 45, 0, time.Local)
	require.NoError(t, mem.Chtimes("/in/b.txt", modTime, modTime))

	entries, err := fsys.ListDir("/in")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	// Byte-wise order on the full path, directories and files interleaved.
	assert.Equal(t, []string{".hidden", "C.md", "a", "b.txt", "z"}, names)

	byName := make(map[string]types.Entry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	assert.True(t, byName["a"].IsDir)
	assert.Zero(t, byName["a"].Size)
	assert.False(t, byName["b.txt"].IsDir)
	assert.Equal(t, int64(2), byName["b.txt"].Size)
	assert.Equal(t, filepath.Join("/in", "b.txt"), byName["b.txt"].Path)
	assert.True(t, byName["b.txt"].ModTime.Equal(modTime))
}

func TestFS_ListDirEmpty(t *testing.T) {
	fsys, mem := newMemFS(t, nil)
	require.NoError(t, mem.MkdirAll("/empty", 0755))

	entries, err := fsys.ListDir("/empty")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFS_ListDirMissing(t *testing.T) {
	fsys, _ := newMemFS(t, nil)

	_, err := fsys.ListDir("/missing")
	require.Error(t, err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "open directory", opErr.Op)
	assert.Equal(t, "/missing", opErr.Path)
}

func TestFS_ListDirSkipsDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.txt"), []byte("ok"), 0644))
	if err := os.Symlink(filepath.Join(dir, "gone"), filepath.Join(dir, "broken")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	core, logs := observer.New(zapcore.DebugLevel)
	fsys := NewOS(zap.New(core))

	entries, err := fsys.ListDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good.txt", entries[0].Name)

	skipped := logs.FilterMessage("skipping unreadable entry").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, filepath.Join(dir, "broken"), skipped[0].ContextMap()["path"])
}

func TestFS_ListDirFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	require.NoError(t, os.Mkdir(target, 0755))
	if err := os.Symlink(target, filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	entries, err := NewOS(zaptest.NewLogger(t)).ListDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "link", entries[0].Name)
	assert.True(t, entries[0].IsDir)
}

func TestFS_Reset(t *testing.T) {
	fsys, mem := newMemFS(t, map[string]string{
		"/out/old/index.html": "stale",
		"/out/file.txt":       "stale",
	})

	require.NoError(t, fsys.Reset("/out"))

	entries, err := afero.ReadDir(mem, "/out")
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Missing directories are created from scratch.
	require.NoError(t, fsys.Reset("/fresh/site"))
	info, err := mem.Stat("/fresh/site")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFS_Reset_ReadOnlyFails(t *testing.T) {
	mem := afero.NewMemMapFs()
	require.NoError(t, mem.MkdirAll("/out", 0755))
	fsys := New(afero.NewReadOnlyFs(mem), nil)

	err := fsys.Reset("/out")
	require.Error(t, err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "remove output directory", opErr.Op)
}

func TestFS_EnsureDirAndWriteFile(t *testing.T) {
	fsys, mem := newMemFS(t, nil)

	require.NoError(t, fsys.EnsureDir("/out/a/b"))
	require.NoError(t, fsys.EnsureDir("/out/a/b"))
	require.NoError(t, fsys.WriteFile("/out/a/b/index.html", []byte("<html>")))

	data, err := afero.ReadFile(mem, "/out/a/b/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>", string(data))
}

func TestFS_WriteFileError(t *testing.T) {
	fsys := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), nil)

	err := fsys.WriteFile("/out/index.html", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write /out/index.html")
}

func TestFS_PlaceCopiesWithoutLinker(t *testing.T) {
	fsys, mem := newMemFS(t, map[string]string{"/in/data.bin": "0123456789"})
	require.NoError(t, mem.MkdirAll("/out", 0755))

	method, err := fsys.Place("/in/data.bin", "/out/data.bin", true)
	require.NoError(t, err)
	assert.Equal(t, types.MethodCopy, method)

	data, err := afero.ReadFile(mem, "/out/data.bin")
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

func TestFS_PlaceLinksOnDisk(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("linked"), 0644))

	method, err := NewOS(zaptest.NewLogger(t)).Place(src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, types.MethodLink, method)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))
}

func TestFS_PlaceCopiesWhenLinkDisallowed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("copied"), 0640))

	method, err := NewOS(zaptest.NewLogger(t)).Place(src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, types.MethodCopy, method)

	srcInfo, err := os.Stat(src)
	require.NoError(t, err)
	dstInfo, err := os.Stat(dst)
	require.NoError(t, err)
	assert.False(t, os.SameFile(srcInfo, dstInfo))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "copied", string(data))
}

func TestFS_PlaceFallsBackWhenLinkFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0644))
	// An existing destination makes os.Link fail; the copy then overwrites it.
	require.NoError(t, os.WriteFile(dst, []byte("old content"), 0644))

	core, logs := observer.New(zapcore.DebugLevel)
	method, err := NewOS(zap.New(core)).Place(src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, types.MethodCopy, method)
	assert.Equal(t, 1, logs.FilterMessage("hard link failed, copying instead").Len())

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFS_PlaceMissingSource(t *testing.T) {
	fsys, mem := newMemFS(t, nil)
	require.NoError(t, mem.MkdirAll("/out", 0755))

	_, err := fsys.Place("/in/missing.txt", "/out/missing.txt", true)
	require.Error(t, err)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "copy", opErr.Op)
	assert.Equal(t, "/in/missing.txt", opErr.Path)
	assert.Equal(t, "/out/missing.txt", opErr.Dest)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, "copy /in/missing.txt -> /out/missing.txt: "+opErr.Err.Error(), err.Error())
}
